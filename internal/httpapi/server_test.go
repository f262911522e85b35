package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridmate/fieldsync/internal/fieldsync"
	"github.com/gridmate/fieldsync/internal/hosttable"
	"github.com/gridmate/fieldsync/internal/lookup"
	"github.com/gridmate/fieldsync/internal/registry"
	"github.com/gridmate/fieldsync/internal/runstore"
)

type stubTable struct {
	fields  []hosttable.Field
	records map[string]hosttable.Record
	picked  []string
}

func (s *stubTable) ListFields(context.Context) ([]hosttable.Field, error) {
	return s.fields, nil
}

func (s *stubTable) CreateField(_ context.Context, name, fieldType string) (hosttable.Field, error) {
	field := hosttable.Field{ID: "fld_" + name, Name: name, Type: fieldType}
	s.fields = append(s.fields, field)
	return field, nil
}

func (s *stubTable) GetRecords(_ context.Context, recordIDs []string) ([]hosttable.Record, error) {
	out := make([]hosttable.Record, 0, len(recordIDs))
	for _, id := range recordIDs {
		if record, ok := s.records[id]; ok {
			out = append(out, record)
		}
	}
	return out, nil
}

func (s *stubTable) SetCellValue(context.Context, string, string, any) error {
	return nil
}

func (s *stubTable) ActiveRecordID(context.Context) (string, error) {
	return "", nil
}

func (s *stubTable) SelectRecordIDs(context.Context, int) ([]string, error) {
	return s.picked, nil
}

type stubLookup struct {
	results map[string]lookup.FieldValues
	err     error
}

func (s *stubLookup) Lookup(context.Context, []string) (map[string]lookup.FieldValues, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.results, nil
}

type serverFixture struct {
	server *Server
	store  runstore.Store
	lookup *stubLookup
	hub    *EventHub
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	table := &stubTable{
		fields: []hosttable.Field{
			{ID: "fld_order", Name: "Order No", Type: "text"},
			{ID: "fld_carrier", Name: "Carrier", Type: "text"},
		},
		records: map[string]hosttable.Record{
			"rec_1": {ID: "rec_1", Cells: map[string]any{"fld_order": "ORD-1"}},
		},
		picked: []string{"rec_1"},
	}
	lookupStub := &stubLookup{results: map[string]lookup.FieldValues{
		"ORD-1": {"carrier": "ACME Express", "trackingNumber": "TN1", "status": "shipped", "recipientName": "Kim"},
	}}
	store := runstore.NewMemoryStore()
	hub := NewEventHub()
	runner, err := fieldsync.NewRunner(fieldsync.RunnerOptions{
		Table:  table,
		Lookup: lookupStub,
		Store:  store,
		Events: hub,
		Ensurer: fieldsync.EnsurerOptions{
			Sleep: func(context.Context, time.Duration) error { return nil },
		},
	})
	require.NoError(t, err)

	reg, err := registry.New(registry.Options{})
	require.NoError(t, err)
	reg.Load(context.Background())

	server := NewServer(runner, reg, store, hub, ServerConfig{
		JWTSecret:           "test-secret",
		DefaultSourceColumn: "Order No",
	}, nil)
	return &serverFixture{server: server, store: store, lookup: lookupStub, hub: hub}
}

func authHeader(scopes ...string) string {
	return "Bearer " + SignToken("test-secret", "svc-test", scopes, time.Time{})
}

func doRequest(t *testing.T, server *Server, method, path, auth, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpointsRejectMissingToken(t *testing.T) {
	fx := newServerFixture(t)
	for _, path := range []string{"/v1/fields", "/v1/runs", "/v1/runs/run_1"} {
		rec := doRequest(t, fx.server, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestEndpointsRejectMissingScope(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodPost, "/v1/runs", authHeader("runs:read"), `{}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "forbidden", payload["code"])
}

func TestListFieldsReturnsCatalog(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodGet, "/v1/fields", authHeader("fields:read"), "")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Fields []fieldsync.FieldSpec `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Fields, len(registry.BuiltinCatalog()))
}

func TestTriggerRunHappyPath(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodPost, "/v1/runs", authHeader("runs:write"),
		`{"mode":"multi","fieldKeys":["carrier"]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report fieldsync.RunReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, fieldsync.StatusSuccess, report.Result.Status)
	assert.Equal(t, 1, report.Result.SuccessCount)

	runs, err := fx.store.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, report.RunID, runs[0].ID)
}

func TestTriggerRunEmptySelectionIsBadRequest(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodPost, "/v1/runs", authHeader("runs:write"),
		`{"mode":"single","fieldKeys":["carrier"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTriggerRunLookupFailureIsBadGateway(t *testing.T) {
	fx := newServerFixture(t)
	fx.lookup.err = assert.AnError

	rec := doRequest(t, fx.server, http.MethodPost, "/v1/runs", authHeader("runs:write"),
		`{"fieldKeys":["carrier"]}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "lookup_failed", payload["code"])
}

func TestTriggerRunRejectsInvalidJSON(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodPost, "/v1/runs", authHeader("runs:write"), `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRunsAndGetRun(t *testing.T) {
	fx := newServerFixture(t)
	require.NoError(t, fx.store.Save(context.Background(), runstore.Run{
		ID: "run_1", Mode: "multi", StartedAt: time.Now(), Status: "success",
	}))

	rec := doRequest(t, fx.server, http.MethodGet, "/v1/runs?limit=10", authHeader("runs:read"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listPayload struct {
		Runs []runstore.Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listPayload))
	require.Len(t, listPayload.Runs, 1)

	rec = doRequest(t, fx.server, http.MethodGet, "/v1/runs/run_1", authHeader("runs:read"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var run runstore.Run
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, "run_1", run.ID)
}

func TestGetRunNotFound(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodGet, "/v1/runs/missing", authHeader("runs:read"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRunsRejectsInvalidLimit(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodGet, "/v1/runs?limit=abc", authHeader("runs:read"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUnknownRouteIs404(t *testing.T) {
	fx := newServerFixture(t)
	rec := doRequest(t, fx.server, http.MethodGet, "/v1/nope", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSelectCatalogMarksOnlyRequestedKeys(t *testing.T) {
	catalog := registry.BuiltinCatalog()
	selected := selectCatalog(catalog, []string{"carrier"})

	for _, spec := range selected {
		assert.Equal(t, spec.Key == "carrier", spec.Checked, spec.Key)
	}
}

func TestSelectCatalogWithoutKeysKeepsDefaults(t *testing.T) {
	catalog := registry.BuiltinCatalog()
	selected := selectCatalog(catalog, nil)
	assert.Equal(t, catalog, selected)
}
