package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NetWarden/internal/engine"
	"NetWarden/internal/rules"
)

func testServer(t *testing.T) (*Server, *rules.Manager) {
	t.Helper()
	rm := rules.NewManager()
	eng := engine.New(engine.Config{NumLBs: 1, FPsPerLB: 1, QueueSize: 8, Quiet: true}, rm)
	return New(":0", rm, eng.Report), rm
}

func doRequest(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := testServer(t)

	rec := doRequest(s, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var report engine.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Len(t, report.Threads.FastPaths, 1)
}

func TestRuleLifecycle(t *testing.T) {
	s, rm := testServer(t)

	rec := doRequest(s, http.MethodPost, "/api/v1/rules", `{"kind":"domain","value":"ads.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"ads.example.com"}, rm.BlockedDomains())

	rec = doRequest(s, http.MethodPost, "/api/v1/rules", `{"kind":"ip","value":"10.0.0.9"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(s, http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed rulesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, []string{"10.0.0.9"}, listed.IPs)
	assert.Equal(t, []string{"ads.example.com"}, listed.Domains)

	rec = doRequest(s, http.MethodDelete, "/api/v1/rules", `{"kind":"domain","value":"ads.example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rm.BlockedDomains())
}

func TestRuleValidation(t *testing.T) {
	s, _ := testServer(t)

	for _, body := range []string{
		`{"kind":"ip","value":"not-an-ip"}`,
		`{"kind":"app","value":"NoSuchApp"}`,
		`{"kind":"port","value":"abc"}`,
		`{"kind":"bogus","value":"x"}`,
		`not json`,
	} {
		rec := doRequest(s, http.MethodPost, "/api/v1/rules", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := testServer(t)
	rec := doRequest(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
