package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/and161185/healthsync/internal/errs"
	"github.com/and161185/healthsync/internal/model"
	"github.com/and161185/healthsync/internal/normalize"
)

const testKey = "test-api-key"

type fakeSync struct {
	inReq  normalize.Request
	inKind model.Kind
	out    model.Result
	err    error
}

func (f *fakeSync) Ingest(_ context.Context, req normalize.Request, kind model.Kind) (model.Result, error) {
	f.inReq, f.inKind = req, kind
	return f.out, f.err
}

type fakeRecords struct {
	latest  *model.LatestRecord
	list    []model.LatestRecord
	entries []model.AuditEntry
	inFrom  time.Time
	inTo    time.Time
	inAudit model.AuditFilter
	err     error
}

func (f *fakeRecords) Latest(context.Context) (*model.LatestRecord, error) { return f.latest, f.err }
func (f *fakeRecords) ByDate(_ context.Context, _ time.Time) (*model.LatestRecord, error) {
	return f.latest, f.err
}
func (f *fakeRecords) Range(_ context.Context, start, end time.Time) ([]model.LatestRecord, error) {
	f.inFrom, f.inTo = start, end
	return f.list, f.err
}
func (f *fakeRecords) AuditLog(_ context.Context, filter model.AuditFilter) ([]model.AuditEntry, error) {
	f.inAudit = filter
	return f.entries, f.err
}

func newTestServer(sync *fakeSync, records *fakeRecords) *httptest.Server {
	if sync == nil {
		sync = &fakeSync{}
	}
	if records == nil {
		records = &fakeRecords{}
	}
	s := New(sync, records, func(context.Context) error { return nil }, Config{APIKey: testKey}, nil)
	return httptest.NewServer(s.Router())
}

func do(t *testing.T, method, url, body string, withKey bool) *http.Response {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if withKey {
		req.Header.Set("X-API-Key", testKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

const ingestBody = `{
	"schema_version": 3,
	"date": "2026-01-01",
	"raw_json": "{\"steps_total\": 100}",
	"source": {"device_id": "d1", "collected_at": "2026-01-01T21:00:00Z", "source_app": "health_connect"}
}`

func TestServer_AuthRequired(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	for _, route := range []string{"/v1/records/latest", "/v1/logs"} {
		resp := do(t, http.MethodGet, srv.URL+route, "", false)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/v1/records/latest", nil)
	req.Header.Set("X-API-Key", "wrong")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_HealthNoAuth(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/health", "", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", decode(t, resp)["status"])
}

func TestServer_HealthDBDown(t *testing.T) {
	s := New(&fakeSync{}, &fakeRecords{}, func(context.Context) error { return errors.New("down") }, Config{APIKey: testKey}, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/health", "", false)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_IngestDaily_OK(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	sync := &fakeSync{out: model.Result{ID: id, Inserted: true}}
	srv := newTestServer(sync, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", ingestBody, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "ok", body["status"])
	require.Equal(t, true, body["inserted"])
	require.Equal(t, id.String(), body["id"])

	require.Equal(t, model.KindDaily, sync.inKind)
	require.Equal(t, "d1", sync.inReq.Source.DeviceID)
}

func TestServer_IngestIntraday_WiresKind(t *testing.T) {
	sync := &fakeSync{out: model.Result{ID: uuid.Must(uuid.NewV4()), Inserted: true}}
	srv := newTestServer(sync, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/intraday", ingestBody, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
	require.Equal(t, model.KindIntraday, sync.inKind)
}

func TestServer_IngestDaily_StaleSkip(t *testing.T) {
	sync := &fakeSync{out: model.Result{ID: uuid.Must(uuid.NewV4()), Skipped: true, SkipReason: model.SkipReasonStale}}
	srv := newTestServer(sync, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", ingestBody, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, false, body["inserted"])
	require.Equal(t, true, body["skipped"])
	require.Equal(t, model.SkipReasonStale, body["reason"])
}

func TestServer_IngestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{errs.ErrMalformedPayload, http.StatusBadRequest},
		{errs.ErrKindMismatch, http.StatusBadRequest},
		{errs.ErrFutureDate, http.StatusBadRequest},
		{errs.ErrInvalidField, http.StatusBadRequest},
		{errs.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge},
		{errs.ErrRateLimited, http.StatusTooManyRequests},
		{errors.New("pg down"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		srv := newTestServer(&fakeSync{err: tc.err}, nil)
		resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", ingestBody, true)
		require.Equalf(t, tc.status, resp.StatusCode, "err=%v", tc.err)
		resp.Body.Close()
		srv.Close()
	}
}

func TestServer_Ingest_StorageErrorIsOpaque(t *testing.T) {
	srv := newTestServer(&fakeSync{err: errors.New("pg: connection refused host=10.0.0.3")}, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", ingestBody, true)
	body := decode(t, resp)
	msg := body["error"].(map[string]any)["message"].(string)
	require.Equal(t, "storage failure", msg)
}

func TestServer_Ingest_BadJSONBody(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", `{nope`, true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_Ingest_BodyCap(t *testing.T) {
	s := New(&fakeSync{}, &fakeRecords{}, func(context.Context) error { return nil },
		Config{APIKey: testKey, MaxBodyBytes: 128}, nil)
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	big := `{"raw_json": "` + strings.Repeat("x", 1024) + `"}`
	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/daily", big, true)
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_GetLatest(t *testing.T) {
	rec := &model.LatestRecord{
		ID:            uuid.Must(uuid.NewV4()),
		DeviceID:      "d1",
		Date:          time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		CollectedAt:   time.Date(2026, 1, 1, 21, 0, 0, 0, time.UTC),
		ReceivedAt:    time.Date(2026, 1, 1, 21, 0, 5, 0, time.UTC),
		SchemaVersion: 3,
		SourceApp:     "health_connect",
		Payload:       model.Document{"steps_total": float64(100)},
	}
	srv := newTestServer(nil, &fakeRecords{latest: rec})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/records/latest", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "d1", body["device_id"])
	require.Equal(t, "2026-01-01", body["date"])
	require.Equal(t, float64(100), body["data"].(map[string]any)["steps_total"])
}

func TestServer_GetLatest_NotFound(t *testing.T) {
	srv := newTestServer(nil, &fakeRecords{err: errs.ErrNotFound})
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/records/latest", "", true)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_GetByDate_BadDate(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/records/01-01-2026", "", true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_Range(t *testing.T) {
	records := &fakeRecords{list: []model.LatestRecord{
		{Date: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Payload: model.Document{}},
		{Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Payload: model.Document{}},
	}}
	srv := newTestServer(nil, records)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/records?start_date=2026-01-01&end_date=2026-01-07", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, float64(2), body["count"])
	require.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), records.inFrom)

	// missing bounds are a validation error
	resp = do(t, http.MethodGet, srv.URL+"/v1/records?start_date=2026-01-01", "", true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_AuditLog_Filters(t *testing.T) {
	records := &fakeRecords{entries: []model.AuditEntry{{
		ID:      uuid.Must(uuid.NewV4()),
		Kind:    model.KindIntraday,
		Date:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Payload: model.Document{},
	}}}
	srv := newTestServer(nil, records)
	defer srv.Close()

	resp := do(t, http.MethodGet, srv.URL+"/v1/logs?date=2026-01-01&device_id=d1&limit=25", "", true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, float64(1), body["count"])
	entry := body["logs"].([]any)[0].(map[string]any)
	require.Equal(t, "intraday", entry["record_kind"])

	require.Equal(t, "d1", records.inAudit.DeviceID)
	require.Equal(t, 25, records.inAudit.Limit)
	require.NotNil(t, records.inAudit.Date)

	resp = do(t, http.MethodGet, srv.URL+"/v1/logs?limit=zero", "", true)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestServer_IngestDebug_EchoesPayload(t *testing.T) {
	srv := newTestServer(nil, nil)
	defer srv.Close()

	resp := do(t, http.MethodPost, srv.URL+"/v1/ingest/debug", `{"date": "2026-01-01", "StepsRecord": []}`, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	require.Equal(t, "debug_logged", body["status"])
	require.Contains(t, body["top_level_keys"], "date")
	require.Contains(t, body["top_level_keys"], "StepsRecord")
	require.NotNil(t, body["payload"])
}
