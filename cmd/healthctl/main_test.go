package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func Test_buildEnvelope_WrapsBareExport(t *testing.T) {
	raw := []byte(`{"date": "2026-01-05", "steps_total": 1200}`)
	at := time.Date(2026, 1, 5, 21, 0, 0, 0, time.UTC)

	out, err := buildEnvelope(raw, "dev-1", "healthctl", at)
	if err != nil {
		t.Fatalf("buildEnvelope: %v", err)
	}

	var env map[string]any
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("envelope not JSON: %v", err)
	}
	if env["date"] != "2026-01-05" {
		t.Fatalf("date=%v", env["date"])
	}
	src, _ := env["source"].(map[string]any)
	if src["device_id"] != "dev-1" || src["collected_at"] != "2026-01-05T21:00:00Z" {
		t.Fatalf("source=%v", src)
	}

	var inner map[string]any
	if err := json.Unmarshal([]byte(env["raw_json"].(string)), &inner); err != nil {
		t.Fatalf("raw_json not JSON: %v", err)
	}
	if inner["steps_total"] != float64(1200) {
		t.Fatalf("inner=%v", inner)
	}
}

func Test_buildEnvelope_PassesThroughEnvelope(t *testing.T) {
	raw := []byte(`{"schema_version": 3, "date": "2026-01-05", "raw_json": "{}", "source": {"device_id": "d"}}`)
	out, err := buildEnvelope(raw, "ignored", "ignored", time.Now())
	if err != nil {
		t.Fatalf("buildEnvelope: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("envelope rewritten: %s", out)
	}
}

func Test_buildEnvelope_RejectsGarbage(t *testing.T) {
	if _, err := buildEnvelope([]byte("not json"), "d", "a", time.Now()); err == nil {
		t.Fatalf("want error for non-JSON input")
	}
}

func Test_client_SetsAPIKey(t *testing.T) {
	var gotKey, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		gotPath = r.URL.Path
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "ok"})
	}))
	defer srv.Close()

	c := newClient(srv.URL+"/", "k1")
	out, err := c.do(context.Background(), http.MethodGet, "/v1/records/latest", nil, nil)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotKey != "k1" || gotPath != "/v1/records/latest" {
		t.Fatalf("key=%q path=%q", gotKey, gotPath)
	}
	if out["status"] != "ok" {
		t.Fatalf("out=%v", out)
	}
}

func Test_client_SurfacesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": 401, "message": "missing or invalid API key"},
		})
	}))
	defer srv.Close()

	c := newClient(srv.URL, "wrong")
	_, err := c.do(context.Background(), http.MethodGet, "/v1/records/latest", nil, nil)
	if err == nil {
		t.Fatalf("want error for 401")
	}
	if want := "missing or invalid API key"; !strings.Contains(err.Error(), want) {
		t.Fatalf("err=%v, want substring %q", err, want)
	}
}
