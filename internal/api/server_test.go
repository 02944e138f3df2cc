package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/protocorpus/internal/config"
	"github.com/dgallion1/protocorpus/internal/pipeline"
	"github.com/dgallion1/protocorpus/internal/search"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

const protocol = `<TEI xmlns="http://www.tei-c.org/ns/1.0"><text><body>
<div><u xml:id="u1" who="talman" prev="x">Herr talman</u><note prev="y">Anf. 1</note><pb/><table/></div>
</body></text></TEI>`

func newTestServer(t *testing.T, idx *search.Index) (*Server, string) {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"1921/prot-1921--ak--5.xml":        protocol,
		"1950/prot-1950--fk--12.xml":       protocol,
		"1990/prot-199091--45.xml":         protocol,
		"broken/prot-1960--ak--1.xml":      "<TEI><text></TEI",
		"1921/prot-1921--ak--5.xml.backup": protocol,
	}
	for name, body := range files {
		p := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	}

	cfg := config.Config{
		CorpusRoot:   root,
		DocumentExt:  ".xml",
		TEINamespace: "http://www.tei-c.org/ns/1.0",
		APIKey:       testKey,
		WorkerCount:  2,
		MaxQueueSize: 4,
		JobTTL:       time.Hour,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	orch := pipeline.NewOrchestrator(cfg, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, idx, log, cfg), root
}

func do(t *testing.T, s *Server, method, target, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if auth {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/health", "", false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestMetadata(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/metadata?filename=prot-1933--fk--17.xml", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"protocol_id":"prot_1933__fk__17","year":1933,"chamber":"Första kammaren","number":17}`, rec.Body.String())

	rec = do(t, s, http.MethodGet, "/api/metadata", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProtocols(t *testing.T) {
	s, _ := newTestServer(t, nil)

	var resp struct {
		Count     int `json:"count"`
		Protocols []struct {
			Path string `json:"path"`
		} `json:"protocols"`
	}
	rec := do(t, s, http.MethodGet, "/api/protocols", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	assert.Equal(t, 4, resp.Count)

	rec = do(t, s, http.MethodGet, "/api/protocols?start=1949&end=1951", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &resp)
	require.Equal(t, 1, resp.Count)
	assert.True(t, strings.HasSuffix(resp.Protocols[0].Path, "1950/prot-1950--fk--12.xml"))
}

func TestListProtocolsRejectsBadRange(t *testing.T) {
	s, _ := newTestServer(t, nil)
	for _, target := range []string{
		"/api/protocols?start=1920",
		"/api/protocols?end=1920",
		"/api/protocols?start=abc&end=1930",
	} {
		rec := do(t, s, http.MethodGet, target, "", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestSummary(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/protocols/summary", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Total int `json:"total"`
	}
	decode(t, rec, &resp)
	assert.Equal(t, 4, resp.Total)
}

func TestElements(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/protocols/prot_1921__ak__5/elements", "", false)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Counts   map[string]int `json:"counts"`
		Elements []elementView  `json:"elements"`
	}
	decode(t, rec, &resp)
	require.Len(t, resp.Elements, 4)
	assert.Equal(t, elementView{Kind: "u", Tag: "{http://www.tei-c.org/ns/1.0}u", ID: "u1", Who: "talman"}, resp.Elements[0])
	assert.Equal(t, "unrecognized", resp.Elements[3].Kind)
	assert.Equal(t, 1, resp.Counts["unrecognized"])
}

func TestElementsErrors(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/protocols/prot_1800__ak__1/elements", "", false)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/protocols/prot_1960__ak__1/elements", "", false)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSearchUnavailable(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/search?q=talman", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSearch(t *testing.T) {
	idx, err := search.NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Add([]search.Utterance{
		{ID: "u1", ProtocolID: "prot_1921__ak__5", Year: 1921, Chamber: "Andra kammaren", Text: "Herr talman"},
		{ID: "u2", ProtocolID: "prot_1950__fk__12", Year: 1950, Chamber: "Första kammaren", Text: "Budgeten"},
	}))

	s, _ := newTestServer(t, idx)

	rec := do(t, s, http.MethodGet, "/api/search?q=talman&size=5", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var res search.Results
	decode(t, rec, &res)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "u1", res.Hits[0].ID)
	assert.Equal(t, 1921, res.Hits[0].Year)

	rec = do(t, s, http.MethodGet, "/api/search", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/search?q=talman&size=-1", "", false)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunsRequireAuth(t *testing.T) {
	s, _ := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/runs/remove-attribute", `{"key":"prev"}`, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/runs/check", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRunsDisabledWithoutKey(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.cfg.APIKey = ""
	s.setupRoutes()

	rec := do(t, s, http.MethodPost, "/api/runs/remove-attribute", `{"key":"prev"}`, true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRemoveAttributeRun(t *testing.T) {
	s, root := newTestServer(t, nil)

	rec := do(t, s, http.MethodPost, "/api/runs/remove-attribute", `{"key":"prev","start":1920,"end":1922}`, true)
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started map[string]string
	decode(t, rec, &started)
	runID := started["run_id"]
	require.NotEmpty(t, runID)
	assert.Equal(t, "/api/runs/"+runID, started["status_url"])

	run := s.orchestrator.GetRun(runID)
	require.NotNil(t, run)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, run.Wait(ctx))

	rec = do(t, s, http.MethodGet, "/api/runs/"+runID+"?jobs=true", "", true)
	require.Equal(t, http.StatusOK, rec.Code)
	var status struct {
		pipeline.RunSnapshot
		Jobs []pipeline.JobSnapshot `json:"jobs"`
	}
	decode(t, rec, &status)
	assert.True(t, status.Done)
	assert.Equal(t, 1, status.Total)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 2, status.Changed)
	assert.Len(t, status.Jobs, 1)

	data, err := os.ReadFile(filepath.Join(root, "1921", "prot-1921--ak--5.xml"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), `prev=`)

	untouched, err := os.ReadFile(filepath.Join(root, "1950", "prot-1950--fk--12.xml"))
	require.NoError(t, err)
	assert.Equal(t, protocol, string(untouched))
}

func TestRemoveAttributeRunValidation(t *testing.T) {
	s, _ := newTestServer(t, nil)

	for _, body := range []string{
		`{"key":""}`,
		`{"key":"prev","start":1920}`,
		`not json`,
	} {
		rec := do(t, s, http.MethodPost, "/api/runs/remove-attribute", body, true)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestRunStatusNotFound(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := do(t, s, http.MethodGet, "/api/runs/nope", "", true)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats(t *testing.T) {
	s, root := newTestServer(t, nil)

	rec := do(t, s, http.MethodGet, "/api/stats", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	decode(t, rec, &resp)
	assert.Equal(t, root, resp.CorpusRoot)
	assert.Equal(t, ".xml", resp.DocumentExt)
	assert.Equal(t, "http://www.tei-c.org/ns/1.0", resp.TEINamespace)
	assert.Equal(t, 0, resp.QueueDepth)
	assert.Nil(t, resp.Utterances)
}

func TestStatsWithIndex(t *testing.T) {
	idx, err := search.NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	require.NoError(t, idx.Add([]search.Utterance{{ID: "u1", ProtocolID: "p", Text: "talman"}}))

	s, _ := newTestServer(t, idx)
	rec := do(t, s, http.MethodGet, "/api/stats", "", false)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	decode(t, rec, &resp)
	require.NotNil(t, resp.Utterances)
	assert.Equal(t, uint64(1), *resp.Utterances)
}

func TestAuthMiddleware(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))
	h := middleware.RequestID(AuthMiddleware(testKey, log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		code   int
		errMsg string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing authorization"},
		{"wrong scheme", "Basic " + testKey, http.StatusUnauthorized, "missing authorization"},
		{"wrong key", "Bearer nope", http.StatusUnauthorized, "invalid api key"},
		{"valid key", "Bearer " + testKey, http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logs.Reset()
			req := httptest.NewRequest(http.MethodPost, "/api/runs/check", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.code, rec.Code)
			if tt.errMsg == "" {
				assert.Empty(t, logs.String())
				return
			}
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			var body map[string]string
			decode(t, rec, &body)
			assert.Equal(t, tt.errMsg, body["error"])

			var entry map[string]any
			require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
			assert.Equal(t, "run request rejected", entry["msg"])
			assert.NotEmpty(t, entry["request_id"])
		})
	}
}

func TestRequestLoggerIncludesRequestID(t *testing.T) {
	var logs bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&logs, nil))
	h := middleware.RequestID(RequestLogger(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "request", entry["msg"])
	assert.NotEmpty(t, entry["request_id"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
}
