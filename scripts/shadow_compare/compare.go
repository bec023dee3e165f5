package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"
)

// target pairs one Go route with its counterpart on the legacy Express server.
// The legacy server answers {"success": true, "<LegacyKey>": payload} while the
// Go API answers {"data": payload}; only the payloads are compared.
type target struct {
	Method     string   `json:"method"`
	Path       string   `json:"path"`
	LegacyPath string   `json:"legacy_path"`
	LegacyKey  string   `json:"legacy_key"`
	Auth       bool     `json:"auth"`
	Critical   bool     `json:"critical"`
	Ignore     []string `json:"ignore"`
}

type targetsFile struct {
	Targets []target `json:"targets"`
}

type endpoint struct {
	Base  string
	Token string
}

type comparison struct {
	Target         target
	LegacyStatus   int
	GoStatus       int
	StatusMatch    bool
	BodyMatch      bool
	Error          error
	DurationGo     time.Duration
	DurationLegacy time.Duration
}

func (c comparison) failed() bool {
	return c.Error != nil || !c.StatusMatch || !c.BodyMatch
}

func parseTargets(data []byte) ([]target, error) {
	var cfg targetsFile
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if len(cfg.Targets) == 0 {
		return nil, fmt.Errorf("no targets defined")
	}
	for i := range cfg.Targets {
		if cfg.Targets[i].LegacyPath == "" {
			cfg.Targets[i].LegacyPath = cfg.Targets[i].Path
		}
	}
	return cfg.Targets, nil
}

func compareTarget(client *http.Client, goAPI, legacy endpoint, tgt target) comparison {
	comp := comparison{Target: tgt}

	goStatus, goBody, goDur, err := fetch(client, goAPI, tgt.Method, tgt.Path, tgt.Auth)
	comp.DurationGo = goDur
	if err != nil {
		comp.Error = fmt.Errorf("go request failed: %w", err)
		return comp
	}
	legacyStatus, legacyBody, legacyDur, err := fetch(client, legacy, tgt.Method, tgt.LegacyPath, tgt.Auth)
	comp.DurationLegacy = legacyDur
	if err != nil {
		comp.Error = fmt.Errorf("legacy request failed: %w", err)
		return comp
	}

	comp.GoStatus = goStatus
	comp.LegacyStatus = legacyStatus
	comp.StatusMatch = goStatus == legacyStatus

	// Error bodies differ by design between the two servers; the status is what counts.
	if goStatus >= http.StatusBadRequest {
		comp.BodyMatch = comp.StatusMatch
		return comp
	}
	comp.BodyMatch = payloadsEqual(goBody, legacyBody, tgt)
	return comp
}

func fetch(client *http.Client, ep endpoint, method, path string, auth bool) (int, []byte, time.Duration, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodGet
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	req, err := http.NewRequest(method, strings.TrimRight(ep.Base, "/")+path, nil)
	if err != nil {
		return 0, nil, 0, err
	}
	if auth && ep.Token != "" {
		req.Header.Set("Authorization", "Bearer "+ep.Token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, time.Since(start), fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, time.Since(start), nil
}

func payloadsEqual(goBody, legacyBody []byte, tgt target) bool {
	if bytes.Equal(bytes.TrimSpace(goBody), bytes.TrimSpace(legacyBody)) {
		return true
	}

	var goDoc, legacyDoc map[string]interface{}
	if err := json.Unmarshal(goBody, &goDoc); err != nil {
		return false
	}
	if err := json.Unmarshal(legacyBody, &legacyDoc); err != nil {
		return false
	}

	goPayload := goDoc["data"]
	legacyPayload := interface{}(legacyDoc)
	if tgt.LegacyKey != "" {
		legacyPayload = legacyDoc[tgt.LegacyKey]
	}

	ignore := make(map[string]struct{}, len(tgt.Ignore)+1)
	ignore["__v"] = struct{}{}
	for _, key := range tgt.Ignore {
		ignore[key] = struct{}{}
	}
	normalize(&goPayload, ignore)
	normalize(&legacyPayload, ignore)
	return reflect.DeepEqual(goPayload, legacyPayload)
}

// normalize rewrites v in place: Mongo "_id" becomes "id", ignored keys are
// dropped and integral floats are folded to int64.
func normalize(v *interface{}, ignore map[string]struct{}) {
	switch val := (*v).(type) {
	case map[string]interface{}:
		if id, ok := val["_id"]; ok {
			if _, exists := val["id"]; !exists {
				val["id"] = id
			}
			delete(val, "_id")
		}
		for k, child := range val {
			if _, skip := ignore[k]; skip {
				delete(val, k)
				continue
			}
			normalize(&child, ignore)
			val[k] = child
		}
	case []interface{}:
		for i, child := range val {
			normalize(&child, ignore)
			val[i] = child
		}
	case float64:
		if val == float64(int64(val)) {
			*v = int64(val)
		}
	}
}

func writeReport(w io.Writer, results []comparison) {
	fmt.Fprintln(w, "Shadow Compare Report")
	fmt.Fprintln(w, "======================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.failed() {
			status = "DIFF"
		}
		fmt.Fprintf(w, "[%s] %s %s (legacy %s)\n", status, res.Target.Method, res.Target.Path, res.Target.LegacyPath)
		fmt.Fprintf(w, "  Go Status: %d (%s)\n", res.GoStatus, res.DurationGo)
		fmt.Fprintf(w, "  Legacy Status: %d (%s)\n", res.LegacyStatus, res.DurationLegacy)
		if res.Error != nil {
			fmt.Fprintf(w, "  Error: %v\n", res.Error)
		} else {
			fmt.Fprintf(w, "  Status match: %t | Body match: %t | Critical: %t\n", res.StatusMatch, res.BodyMatch, res.Target.Critical)
		}
	}
}
