package handler_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/bizstore/facade"
	"github.com/stevemurr/bizstore/handler"
	"github.com/stevemurr/bizstore/identity"
	"github.com/stevemurr/bizstore/store"
)

var secret = []byte("test-secret")

func setup(t *testing.T) (*httptest.Server, *facade.Store) {
	t.Helper()
	s := facade.New(store.NewMemoryStore())
	h := handler.New(s, nil)
	ts := httptest.NewServer(handler.Authenticate(h, identity.NewTokenVerifier(secret), identity.Anonymous))
	t.Cleanup(ts.Close)
	return ts, s
}

func tokenFor(t *testing.T, user string) string {
	t.Helper()
	tok, err := identity.NewTokenVerifier(secret).Issue(user, time.Hour)
	require.NoError(t, err)
	return tok
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func decodeJSON(t *testing.T, r io.Reader) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

func decodeJSONArray(t *testing.T, r io.Reader) []any {
	t.Helper()
	var v []any
	require.NoError(t, json.NewDecoder(r).Decode(&v))
	return v
}

// do sends a request as user ("" for anonymous).
func do(t *testing.T, method, url, user string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(mustJSON(t, body))
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, user))
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestRootAndHealth(t *testing.T) {
	ts, _ := setup(t)

	resp := do(t, "GET", ts.URL+"/", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decodeJSON(t, resp.Body)["status"])

	resp = do(t, "GET", ts.URL+"/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, "GET", ts.URL+"/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRecordsCRUD(t *testing.T) {
	ts, _ := setup(t)
	base := ts.URL + "/collections/customers/items"

	resp := do(t, "GET", base, "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeJSONArray(t, resp.Body))

	resp = do(t, "POST", base, "alice", map[string]any{"id": "CUST-1", "name": "Acme", "phone": "9876543210"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeJSON(t, resp.Body)
	assert.Equal(t, "CUST-1", created["id"])
	assert.NotEmpty(t, created["createdAt"])

	resp = do(t, "GET", base+"/CUST-1", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decodeJSON(t, resp.Body))

	resp = do(t, "PATCH", base+"/CUST-1", "alice", map[string]any{"email": "acme@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	patched := decodeJSON(t, resp.Body)
	assert.Equal(t, "Acme", patched["name"])
	assert.Equal(t, "acme@example.com", patched["email"])
	assert.Equal(t, created["createdAt"], patched["createdAt"])

	resp = do(t, "PUT", base+"/CUST-1", "alice", map[string]any{"name": "Acme Ltd"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, "GET", base, "alice", nil)
	items := decodeJSONArray(t, resp.Body)
	require.Len(t, items, 1)
	assert.Equal(t, "Acme Ltd", items[0].(map[string]any)["name"])

	resp = do(t, "DELETE", base+"/CUST-1", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, "DELETE", base+"/CUST-1", "alice", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "delete is idempotent")

	resp = do(t, "GET", base+"/CUST-1", "alice", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	ts, _ := setup(t)
	base := ts.URL + "/collections/customers/items"

	resp := do(t, "POST", base, "alice", map[string]any{"name": "no id"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, "POST", base, "alice", map[string]any{"id": "CUST-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "name is required")

	resp = do(t, "PUT", base+"/CUST-1", "alice", map[string]any{"id": "CUST-2", "name": "Acme"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	resp = do(t, "GET", base, "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = do(t, "PATCH", base+"/CUST-404", "alice", map[string]any{"name": "X"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest("POST", base, bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, "alice"))
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)
	assert.Contains(t, decodeJSON(t, raw.Body)["detail"], "invalid JSON")
}

func TestAuthentication(t *testing.T) {
	ts, _ := setup(t)

	req, err := http.NewRequest("GET", ts.URL+"/collections", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	other, err := identity.NewTokenVerifier([]byte("other")).Issue("alice", time.Hour)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+other)
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp2.StatusCode)

	req.Header.Set("Authorization", "Basic abc")
	resp3, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp3.StatusCode)
}

func TestFallbackIdentity(t *testing.T) {
	s := facade.New(store.NewMemoryStore())
	ts := httptest.NewServer(handler.Authenticate(handler.New(s, nil), nil, identity.Identity{UserID: "owner"}))
	defer ts.Close()

	resp := do(t, "POST", ts.URL+"/collections/customers/items", "", map[string]any{"id": "CUST-1", "name": "Acme"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	all, err := s.Session(identity.Identity{UserID: "owner"}).GetAll(t.Context(), "customers")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestScopeIsolation(t *testing.T) {
	ts, _ := setup(t)
	base := ts.URL + "/collections/invoices/items"

	resp := do(t, "POST", base, "alice", map[string]any{"id": "INV-1", "customerId": "CUST-1"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, "GET", base, "bob", nil)
	assert.Empty(t, decodeJSONArray(t, resp.Body))
	resp = do(t, "GET", base+"/INV-1", "bob", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMasters(t *testing.T) {
	ts, _ := setup(t)

	resp := do(t, "POST", ts.URL+"/masters", "alice", map[string]any{"type": "category", "value": "Furniture"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decodeJSON(t, resp.Body)
	assert.Regexp(t, `^MST-`, first["id"])

	resp = do(t, "POST", ts.URL+"/masters", "bob", map[string]any{"type": "category", "value": "furniture "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, first["id"], decodeJSON(t, resp.Body)["id"], "duplicates resolve to the stored entry")

	resp = do(t, "POST", ts.URL+"/masters", "", map[string]any{"type": "supplier", "value": "Acme Supply"})
	require.Equal(t, http.StatusOK, resp.StatusCode, "masters are global")

	resp = do(t, "GET", ts.URL+"/masters/category", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cats := decodeJSONArray(t, resp.Body)
	require.Len(t, cats, 1)
	assert.Equal(t, "Furniture", cats[0].(map[string]any)["value"])

	resp = do(t, "GET", ts.URL+"/masters/unit", "", nil)
	assert.Empty(t, decodeJSONArray(t, resp.Body))

	resp = do(t, "GET", ts.URL+"/masters", "", nil)
	assert.Equal(t, []any{"category", "supplier"}, decodeJSONArray(t, resp.Body))

	resp = do(t, "POST", ts.URL+"/masters", "", map[string]any{"type": "category"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGenerateID(t *testing.T) {
	ts, _ := setup(t)
	resp := do(t, "POST", ts.URL+"/ids/cust", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Regexp(t, `^CUST-[0-9A-Z]+-[0-9A-F]{8}$`, decodeJSON(t, resp.Body)["id"])
}

func TestItemsSince(t *testing.T) {
	ts, _ := setup(t)
	base := ts.URL + "/collections/customers/items"
	do(t, "POST", base, "alice", map[string]any{"id": "OLD", "name": "a", "updatedAt": "2024-01-01T00:00:00Z"})
	do(t, "POST", base, "alice", map[string]any{"id": "NEW", "name": "b", "updatedAt": "2024-06-01T00:00:00Z"})

	resp := do(t, "GET", base+"/since/2024-03-01T00:00:00Z", "alice", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decodeJSONArray(t, resp.Body)
	require.Len(t, items, 1)
	assert.Equal(t, "NEW", items[0].(map[string]any)["id"])

	resp = do(t, "GET", base+"/since/yesterday", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCollections(t *testing.T) {
	ts, _ := setup(t)
	do(t, "POST", ts.URL+"/collections/customers/items", "alice", map[string]any{"id": "CUST-1", "name": "Acme"})
	do(t, "POST", ts.URL+"/masters", "alice", map[string]any{"type": "unit", "value": "kg"})

	resp := do(t, "GET", ts.URL+"/collections", "alice", nil)
	assert.Equal(t, []any{"customers", "masters"}, decodeJSONArray(t, resp.Body))
	resp = do(t, "GET", ts.URL+"/collections", "", nil)
	assert.Equal(t, []any{"masters"}, decodeJSONArray(t, resp.Body))
}

func TestSchemaEndpoints(t *testing.T) {
	ts, _ := setup(t)

	resp := do(t, "GET", ts.URL+"/schemas/customers", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, "built-in schema is served")

	resp = do(t, "GET", ts.URL+"/schemas/scratch", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	sch := map[string]any{"type": "object", "required": []any{"id", "title"}}
	resp = do(t, "PUT", ts.URL+"/schemas/scratch", "", sch)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, "POST", ts.URL+"/collections/scratch/items", "alice", map[string]any{"id": "N-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	resp = do(t, "POST", ts.URL+"/collections/scratch/items", "alice", map[string]any{"id": "N-1", "title": "hi"})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, "GET", ts.URL+"/schemas", "", nil)
	assert.Contains(t, decodeJSON(t, resp.Body), "scratch")

	resp = do(t, "DELETE", ts.URL+"/schemas/scratch", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp = do(t, "DELETE", ts.URL+"/schemas/scratch", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCORS(t *testing.T) {
	h := handler.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), []string{"http://localhost:5173", " http://127.0.0.1:5173"})

	req := httptest.NewRequest("OPTIONS", "/collections", nil)
	req.Header.Set("Origin", "http://127.0.0.1:5173")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://127.0.0.1:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	all := handler.CORS(http.NotFoundHandler(), []string{"*"})
	rec = httptest.NewRecorder()
	all.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
