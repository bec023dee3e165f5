// Command shadow_compare replays read-only requests against the Go API and
// the legacy Express server and reports where their answers diverge.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

func main() {
	var (
		goAPI       endpoint
		legacy      endpoint
		targetsPath string
		timeout     time.Duration
	)

	flag.StringVar(&goAPI.Base, "go-base", "http://localhost:8080", "Go API base URL")
	flag.StringVar(&legacy.Base, "legacy-base", "http://localhost:5000", "Legacy API base URL")
	flag.StringVar(&targetsPath, "targets", filepath.Join("scripts", "shadow_compare", "targets.json"), "Path to JSON targets file")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	goAPI.Token = os.Getenv("SHADOW_GO_TOKEN")
	legacy.Token = os.Getenv("SHADOW_LEGACY_TOKEN")

	data, err := os.ReadFile(targetsPath)
	if err != nil {
		log.Fatalf("failed to read targets: %v", err)
	}
	targets, err := parseTargets(data)
	if err != nil {
		log.Fatalf("failed to load targets from %s: %v", targetsPath, err)
	}

	client := &http.Client{Timeout: timeout}
	var (
		results      []comparison
		breaking     int
		optionalDiff int
	)
	for _, t := range targets {
		comp := compareTarget(client, goAPI, legacy, t)
		if comp.failed() {
			if t.Critical {
				breaking++
			} else {
				optionalDiff++
			}
		}
		results = append(results, comp)
	}

	writeReport(os.Stdout, results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optionalDiff)
	if breaking > 0 {
		os.Exit(1)
	}
}
