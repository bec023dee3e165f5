package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/skillswap-api/internal/middleware"
	"github.com/noah-isme/skillswap-api/internal/models"
	appErrors "github.com/noah-isme/skillswap-api/pkg/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")
	c.Request = req
	return c, w
}

// flushedCode commits a header that was only set with c.Status, which the
// recorder never sees until something is written.
func flushedCode(c *gin.Context, w *httptest.ResponseRecorder) int {
	c.Writer.WriteHeaderNow()
	return w.Code
}

// Path ids are uuid-checked before any service call.
const (
	testUser1    = "11111111-1111-4111-8111-111111111111"
	testUser2    = "22222222-2222-4222-8222-222222222222"
	testUser9    = "99999999-9999-4999-8999-999999999999"
	testAdmin    = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	testSwap     = "5a5a5a5a-5a5a-4a5a-8a5a-5a5a5a5a5a5a"
	testFeedback = "fbfbfbfb-fbfb-4bfb-8bfb-fbfbfbfbfbfb"
	testNote1    = "0e010000-0000-4000-8000-000000000001"
	testNote2    = "0e010000-0000-4000-8000-000000000002"
)

func asUser(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	env := decode(t, w)
	require.NotNil(t, env.Error)
	require.Equal(t, code, env.Error.Code)
}
