package module

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sarbatch/internal/modkit"
	"sarbatch/internal/platform/config"
	phttp "sarbatch/internal/platform/net/http"
	"sarbatch/internal/services/scheduler/domain"

	"github.com/go-chi/chi/v5"
)

func report() domain.Report {
	t0 := time.Date(2021, 6, 1, 6, 0, 0, 0, time.UTC)
	return domain.Report{
		RunID:    "run-42",
		Started:  t0,
		Finished: t0.Add(time.Minute),
		Results: []domain.SiteResult{
			{SiteID: "Alpha", Accepted: 2, Attempts: 1},
		},
	}
}

func get(t *testing.T, h http.Handler, path string) (int, map[string]any) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %s: %v", rr.Body.String(), err)
	}
	return rr.Code, body
}

func TestModule_RoutesAndFinish(t *testing.T) {
	t.Setenv("RPT_CORE_REPORT_PRINT", "true")
	m := New(modkit.Deps{Cfg: config.New().Prefix("RPT_")}, nil)

	mux := chi.NewRouter()
	if got := modkit.Mount(phttp.AdaptChi(mux), m); len(got) != 1 || got[0] != "report" {
		t.Fatalf("Mount = %v", got)
	}

	if code, _ := get(t, mux, "/v1/report"); code != http.StatusNotFound {
		t.Fatalf("report before any run = %d", code)
	}

	var out bytes.Buffer
	if err := m.Finish(context.Background(), &out, report()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if !strings.Contains(out.String(), "run run-42") || !strings.Contains(out.String(), "Alpha") {
		t.Fatalf("printed report = %q", out.String())
	}

	code, body := get(t, mux, "/v1/report")
	data, _ := body["data"].(map[string]any)
	if code != http.StatusOK || data["run_id"] != "run-42" || data["source"] != "memory" {
		t.Fatalf("report = %d %v", code, body)
	}

	if code, _ := get(t, mux, "/v1/runs/run-42"); code != http.StatusOK {
		t.Fatalf("runs/run-42 = %d", code)
	}
	code, body = get(t, mux, "/v1/runs/other")
	if code != http.StatusNotFound || body["code"] != "not_found" {
		t.Fatalf("runs/other = %d %v", code, body)
	}
}

func TestModule_PrintDisabled(t *testing.T) {
	t.Setenv("QUIET_CORE_REPORT_PRINT", "false")
	m := New(modkit.Deps{Cfg: config.New().Prefix("QUIET_")}, nil)
	var out bytes.Buffer
	if err := m.Finish(context.Background(), &out, report()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Len() != 0 {
		t.Fatalf("print disabled but got %q", out.String())
	}
}
