package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"docnest/internal/handler"
	"docnest/internal/reminder"
	"docnest/internal/repository"
	"docnest/internal/service"
	"docnest/pkg/filestore"
	"docnest/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var testNow = time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

type fakeResetter struct{ calls int }

func (f *fakeResetter) Reset(context.Context) error {
	f.calls++
	return nil
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	router  *Router
	userID  uuid.UUID
	demo    *fakeResetter
	headers http.Header
}

func newTestServer(t *testing.T, cfg RouterConfig) *testServer {
	t.Helper()
	return newTestServerWithDev(t, cfg, "local", true)
}

func newTestServerWithDev(t *testing.T, cfg RouterConfig, env string, demoEnabled bool) *testServer {
	t.Helper()
	dir := t.TempDir()
	store, err := repository.OpenSQLite(context.Background(), filepath.Join(dir, "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	files, err := filestore.NewLocalStore(dir)
	require.NoError(t, err)

	svc := service.NewDocumentService(store, files, uuid.New(), zap.NewNop()).
		WithClock(func() time.Time { return testNow })
	demo := &fakeResetter{}

	ts := &testServer{
		router: NewRouter(cfg,
			handler.NewDocumentHandler(svc, zap.NewNop()),
			handler.NewDevHandler(demo, env, demoEnabled, zap.NewNop()),
			store, zap.NewNop()),
		userID:  uuid.New(),
		demo:    demo,
		headers: http.Header{},
	}
	if cfg.JWTSecret != "" {
		token, err := util.GenerateUserToken(ts.userID, cfg.JWTSecret, time.Now())
		require.NoError(t, err)
		ts.headers.Set("Authorization", "Bearer "+token)
	} else {
		ts.userID = cfg.DevUserID
	}
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range ts.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (ts *testServer) create(t *testing.T, body map[string]any) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/documents", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[map[string]string](t, w)["id"]
}

func TestRouter_CreateAndGet(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})

	w := ts.do(t, http.MethodPost, "/documents", map[string]any{
		"title": "Passport", "type": "ID", "expiresOn": "2027-03-01",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[map[string]string](t, w)["id"]
	assert.Equal(t, "/documents/"+id, w.Header().Get("Location"))
	assert.NotEmpty(t, w.Header().Get("X-Trace-ID"))

	w = ts.do(t, http.MethodGet, "/documents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc := decode[map[string]any](t, w)
	assert.Equal(t, "Passport", doc["title"])
	assert.Equal(t, "2027-03-01", doc["expiresOn"])
	assert.Nil(t, doc["file"])

	w = ts.do(t, http.MethodGet, "/documents/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodGet, "/documents/not-a-uuid", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_CreateValidation(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{name: "missing title", body: map[string]any{"type": "ID"}, field: "title"},
		{name: "bad date", body: map[string]any{"title": "Visa", "type": "ID", "expiresOn": "01/02/2027"}, field: "expiresOn"},
		{name: "past date", body: map[string]any{"title": "Visa", "type": "ID", "expiresOn": "2026-01-01"}, field: "expiresOn"},
		{name: "bad subject", body: map[string]any{"title": "Visa", "type": "ID", "subjectId": "x"}, field: "subjectId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodPost, "/documents", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), `"field":"`+tt.field+`"`)
		})
	}

	w := ts.do(t, http.MethodPost, "/documents", "{not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_List(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})
	ts.create(t, map[string]any{"title": "Passport", "type": "ID", "expiresOn": "2026-06-01"})
	ts.create(t, map[string]any{"title": "Car insurance", "type": "Insurance", "expiresOn": "2026-02-01"})
	ts.create(t, map[string]any{"title": "Birth certificate", "type": "Certificate"})

	tests := []struct {
		name   string
		query  string
		status int
		total  int
	}{
		{name: "defaults", query: "", status: http.StatusOK, total: 3},
		{name: "title search", query: "?q=PASS", status: http.StatusOK, total: 1},
		{name: "type", query: "?type=insurance", status: http.StatusOK, total: 1},
		{name: "expiry bound", query: "?expiresBefore=2026-03-01", status: http.StatusOK, total: 1},
		{name: "expiry bound with undated", query: "?expiresBefore=2026-03-01&includeNoExpiry=true", status: http.StatusOK, total: 2},
		{name: "page size too large", query: "?pageSize=51", status: http.StatusBadRequest},
		{name: "page zero", query: "?page=0", status: http.StatusBadRequest},
		{name: "page not a number", query: "?page=abc", status: http.StatusBadRequest},
		{name: "bad date", query: "?expiresAfter=tomorrow", status: http.StatusBadRequest},
		{name: "inverted window", query: "?expiresAfter=2026-06-01&expiresBefore=2026-01-01", status: http.StatusBadRequest},
		{name: "includeNoExpiry alone", query: "?includeNoExpiry=true", status: http.StatusBadRequest},
		{name: "long query", query: "?q=" + strings.Repeat("a", 201), status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := ts.do(t, http.MethodGet, "/documents"+tt.query, nil)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			if tt.status != http.StatusOK {
				return
			}
			page := decode[map[string]any](t, w)
			assert.EqualValues(t, tt.total, page["total"])
			assert.EqualValues(t, 1, page["page"])
			assert.EqualValues(t, 20, page["pageSize"])
		})
	}
}

func TestRouter_Update(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})
	id := ts.create(t, map[string]any{"title": "Lease", "type": "Contract"})

	w := ts.do(t, http.MethodPut, "/documents/"+id, map[string]any{"title": "Lease 2026", "type": "Contract", "expiresOn": "2026-12-31"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2026-12-31", decode[map[string]any](t, w)["expiresOn"])

	w = ts.do(t, http.MethodPut, "/documents/"+id, map[string]any{"title": "", "type": "Contract"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Auth(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})
	id := ts.create(t, map[string]any{"title": "Passport", "type": "ID"})

	ts.headers.Del("Authorization")
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/documents", nil).Code)

	ts.headers.Set("Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/documents", nil).Code)

	// Another user cannot see the document.
	other, err := util.GenerateUserToken(uuid.New(), "secret", time.Now())
	require.NoError(t, err)
	ts.headers.Set("Authorization", "Bearer "+other)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/documents/"+id, nil).Code)

	// Health endpoints stay public.
	ts.headers.Del("Authorization")
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodHead, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/readyz", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/metrics", nil).Code)
}

func TestRouter_DevModeAndReset(t *testing.T) {
	devUser := uuid.New()

	ts := newTestServer(t, RouterConfig{DevUserID: devUser})
	ts.create(t, map[string]any{"title": "Passport", "type": "ID"})
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/documents", nil).Code)

	w := ts.do(t, http.MethodPost, "/dev/reset-demo", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, ts.demo.calls)

	production := newTestServerWithDev(t, RouterConfig{DevUserID: devUser}, "production", true)
	assert.Equal(t, http.StatusForbidden, production.do(t, http.MethodPost, "/dev/reset-demo", nil).Code)
	assert.Zero(t, production.demo.calls)

	noDemo := newTestServerWithDev(t, RouterConfig{DevUserID: devUser}, "local", false)
	assert.Equal(t, http.StatusBadRequest, noDemo.do(t, http.MethodPost, "/dev/reset-demo", nil).Code)
	assert.Zero(t, noDemo.demo.calls)
}

func TestRouter_FileUploadAndDownload(t *testing.T) {
	ts := newTestServer(t, RouterConfig{JWTSecret: "secret"})
	id := ts.create(t, map[string]any{"title": "Passport", "type": "ID"})

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/documents/"+id+"/file", nil).Code)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "passport.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("passport scan"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPut, "/documents/"+id+"/file", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", ts.headers.Get("Authorization"))
	w := httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	file := decode[map[string]any](t, w)["file"].(map[string]any)
	assert.Equal(t, "passport.txt", file["originalFileName"])
	assert.EqualValues(t, len("passport scan"), file["sizeBytes"])

	w = ts.do(t, http.MethodGet, "/documents/"+id+"/file", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "passport scan", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "passport.txt")

	req = httptest.NewRequest(http.MethodPut, "/documents/"+id+"/file", strings.NewReader(""))
	req.Header.Set("Authorization", ts.headers.Get("Authorization"))
	w = httptest.NewRecorder()
	ts.router.Engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

type fakeScheduler struct {
	state reminder.State
	tick  *reminder.TickReport
}

func (f fakeScheduler) State() reminder.State { return f.state }

func (f fakeScheduler) LastTick() *reminder.TickReport { return f.tick }

func TestHealthRouter(t *testing.T) {
	get := func(r *gin.Engine, path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	healthy := NewHealthRouter(pinger{}, fakeScheduler{
		state: reminder.StateIdle,
		tick:  &reminder.TickReport{TraceID: "abc", Err: errors.New("timeout")},
	})
	assert.Equal(t, http.StatusOK, get(healthy, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(healthy, "/metrics").Code)

	w := get(healthy, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode[map[string]any](t, w)
	assert.Equal(t, "idle", status["scheduler"])
	assert.Equal(t, "timeout", status["last_tick"].(map[string]any)["error"])

	dbDown := NewHealthRouter(pinger{err: errors.New("connection refused")}, fakeScheduler{})
	assert.Equal(t, http.StatusServiceUnavailable, get(dbDown, "/readyz").Code)

	stopped := NewHealthRouter(pinger{}, fakeScheduler{state: reminder.StateStopped})
	assert.Equal(t, http.StatusServiceUnavailable, get(stopped, "/readyz").Code)
}
