package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"
	"github.com/KaramelBytes/tidyloom-cli/internal/history"
	"github.com/KaramelBytes/tidyloom-cli/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "Name,Score,When\n alice ,10,2024-01-02\nBob,12,2024-01-03\nBob,12,2024-01-03\nCarol,,2024-01-04\n"

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *metrics.Recorder) {
	t.Helper()
	cfg := Config{Addr: "127.0.0.1:0", Options: clean.DefaultOptions(), MaxBodyBytes: 1 << 20}
	if mutate != nil {
		mutate(&cfg)
	}
	rec := metrics.New(false)
	return New(cfg, nil, rec, nil), rec
}

func multipartBody(t *testing.T, filename, content, options string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if options != "" {
		require.NoError(t, mw.WriteField("options", options))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) apiError {
	t.Helper()
	var ae apiError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ae))
	return ae
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestDetect(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.Options.MinMatches = 1 })
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(sampleCSV)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got detectResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Rows)
	assert.Equal(t, 3, got.Columns)
	require.Len(t, got.Decisions, 3)
	assert.Equal(t, clean.TypeText, got.Decisions[0].Type)
	assert.Equal(t, clean.TypeNumeric, got.Decisions[1].Type)
	assert.Equal(t, clean.TypeDate, got.Decisions[2].Type)
}

func TestDetectEmptyDataset(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader("")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "empty_dataset", decodeError(t, rec).Code)
}

func TestDetectUnsupported(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/detect?filename=data.parquet", strings.NewReader("x")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "unsupported_format", decodeError(t, rec).Code)
}

func TestDetectUnreadable(t *testing.T) {
	s, _ := newTestServer(t, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/detect?filename=data.xlsx", strings.NewReader("not a zip at all")))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "unreadable_dataset", decodeError(t, rec).Code)
}

func TestBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.MaxBodyBytes = 64 })
	body := "a,b\n" + strings.Repeat("1,2\n", 100)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(body)))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "payload_too_large", decodeError(t, rec).Code)
}

func TestCleanResult(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.Options.MinMatches = 1 })
	body, ct := multipartBody(t, "scores.csv", sampleCSV, `{"steps":["clean_column_names","remove_duplicates","standardize_text"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/clean", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Result clean.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, 4, got.Result.RowsIn)
	assert.Equal(t, 3, got.Result.RowsOut)
	assert.Equal(t, 1, got.Result.RowsRemoved)
	assert.Equal(t, got.Result.RunID, w.Header().Get("X-Run-Id"))

	m := httptest.NewRecorder()
	s.Handler().ServeHTTP(m, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, m.Body.String(), `tidyloom_runs_total{status="completed"} 1`)
	assert.Contains(t, m.Body.String(), "tidyloom_rows_removed_total 1")
}

func TestCleanNullStepsRunsEverything(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "scores.csv", sampleCSV, `{"steps":null}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/clean", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var got struct {
		Result clean.Result `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, clean.StepOrder, got.Result.Steps)
}

func TestCleanCSVOutput(t *testing.T) {
	s, _ := newTestServer(t, nil)
	body, ct := multipartBody(t, "scores.csv", sampleCSV, `{"steps":{"clean_column_names":true,"standardize_text":true},"format":"csv"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/clean", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "name,score,when", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "Alice,"), lines[1])
}

func TestCleanRejectsBadRequests(t *testing.T) {
	cases := []struct {
		name     string
		filename string
		options  string
		status   int
		code     string
	}{
		{"missing file", "", `{}`, http.StatusBadRequest, "missing_file"},
		{"bad json", "a.csv", `{`, http.StatusBadRequest, "invalid_options"},
		{"unknown step", "a.csv", `{"steps":["launch"]}`, http.StatusBadRequest, "invalid_options"},
		{"bad format", "a.csv", `{"format":"parquet"}`, http.StatusBadRequest, "invalid_options"},
		{"bad engine option", "a.csv", `{"options":{"iqr_multiplier":-1}}`, http.StatusBadRequest, "invalid_options"},
		{"bad override", "a.csv", `{"overrides":{"Score":"money"}}`, http.StatusBadRequest, "unknown_column_type"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t, nil)
			body, ct := multipartBody(t, tc.filename, sampleCSV, tc.options)
			req := httptest.NewRequest(http.MethodPost, "/v1/clean", body)
			req.Header.Set("Content-Type", ct)
			w := httptest.NewRecorder()
			s.Handler().ServeHTTP(w, req)
			assert.Equal(t, tc.status, w.Code, w.Body.String())
			assert.Equal(t, tc.code, decodeError(t, w).Code)
		})
	}
}

func TestCleanCollisionRecordsFailure(t *testing.T) {
	store, err := history.Open(context.Background(), history.Config{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "h.db")})
	require.NoError(t, err)
	defer store.Close()

	cfg := Config{Options: clean.DefaultOptions()}
	cfg.Options.NameCollisions = clean.CollisionError
	rec := metrics.New(false)
	s := New(cfg, nil, rec, store)

	body, ct := multipartBody(t, "dup.csv", "First Name,first_name\na,b\n", `{"steps":["clean_column_names"]}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/clean", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "name_collision", decodeError(t, w).Code)

	runs, err := store.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusFailed, runs[0].Status)
	assert.Equal(t, "dup.csv", runs[0].Source)
	n, err := testutil.GatherAndCount(rec.Registry(), "tidyloom_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRateLimit(t *testing.T) {
	s, _ := newTestServer(t, func(c *Config) { c.RateLimit = 0.001 })
	first := httptest.NewRecorder()
	s.Handler().ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(sampleCSV)))
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)

	second := httptest.NewRecorder()
	s.Handler().ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/detect", strings.NewReader(sampleCSV)))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "rate_limited", decodeError(t, second).Code)

	health := httptest.NewRecorder()
	s.Handler().ServeHTTP(health, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, health.Code)
}
