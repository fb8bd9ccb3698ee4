package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"

	"krafti/internal/bus"
	"krafti/internal/credential"
	"krafti/internal/dbtest"
	"krafti/internal/metrics"
	"krafti/internal/models"
	"krafti/internal/pipeline"
	"krafti/internal/processors/admin"
	"krafti/internal/processors/web"
	"krafti/internal/session"
	"krafti/internal/users"
)

type recordingBus struct {
	mu       sync.Mutex
	subjects []string
	events   []bus.Event
}

func (b *recordingBus) Publish(_ context.Context, subj string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subjects = append(b.subjects, subj)
	if ev, ok := v.(bus.Event); ok {
		b.events = append(b.events, ev)
	}
	return nil
}

type testServer struct {
	handler http.Handler
	bus     *recordingBus
	course  *models.Course
	student *models.User
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	database := dbtest.Open(t)

	hash, err := users.HashPassword("secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	adminRole := &models.UserRole{Title: "Administrator", Scope: datatypes.JSONSlice[string]{models.ScopeAll}}
	userRole := &models.UserRole{Title: "User", Scope: datatypes.JSONSlice[string]{}}
	dbtest.MustCreate(t, database, adminRole, userRole)

	ts := &testServer{
		bus:     &recordingBus{},
		student: &models.User{Email: "sam@example.com", Password: hash, RoleID: userRole.ID, Active: true},
		course: &models.Course{Title: "Algebra", Category: "math", Active: true,
			Price: datatypes.NewJSONType(models.Prices{"1": 100})},
	}
	dbtest.MustCreate(t, database,
		&models.User{Email: "admin@example.com", Password: hash, RoleID: adminRole.ID, Active: true},
		ts.student, ts.course)

	codec, err := credential.NewCodec("test-secret", "HS256", []string{"HS256"})
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	m := metrics.New()
	cfg := pipeline.Config{DefaultLimit: 20, MaxLimit: 100, Metrics: m}
	adminRegistry := pipeline.NewRegistry(database, cfg)
	admin.Register(adminRegistry)
	webRegistry := pipeline.NewRegistry(database, cfg)
	web.Register(webRegistry)

	api, err := New(Deps{
		DB:       database,
		Sessions: session.NewManager(database, codec, session.Options{TTL: time.Hour, MaxActive: 5, Metrics: m}),
		Users:    users.NewDirectory(database),
		Admin:    adminRegistry,
		Web:      webRegistry,
		Metrics:  m,
		Bus:      ts.bus,
	}, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts.handler = api.Routes()
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, email string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/security/login", "", `{"email":"`+email+`","password":"secret123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body=%s", rec.Code, rec.Body)
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Token == "" {
		t.Fatalf("login body = %s (%v)", rec.Body, err)
	}
	return resp.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %s: %v", rec.Body, err)
	}
	return out
}

func TestNewValidatesDeps(t *testing.T) {
	if _, err := New(Deps{}, Config{}); err == nil {
		t.Fatal("expected error for missing deps")
	}
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "wrong password", body: `{"email":"sam@example.com","password":"nope"}`, want: http.StatusUnauthorized},
		{name: "unknown email", body: `{"email":"who@example.com","password":"secret123"}`, want: http.StatusUnauthorized},
		{name: "missing fields", body: `{"email":""}`, want: http.StatusUnprocessableEntity},
		{name: "unknown field", body: `{"login":"sam"}`, want: http.StatusBadRequest},
		{name: "ok", body: `{"email":"Sam@Example.com","password":"secret123"}`, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/security/login", "", tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body)
			}
			if tt.want != http.StatusOK {
				if got := decodeBody(t, rec); got["success"] != false || got["message"] == "" {
					t.Fatalf("error body = %v", got)
				}
			}
		})
	}
}

func TestProfileAndLogout(t *testing.T) {
	ts := newTestServer(t)

	if rec := ts.do(t, http.MethodGet, "/api/user/profile", "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous profile status = %d", rec.Code)
	}

	token := ts.login(t, "sam@example.com")
	rec := ts.do(t, http.MethodGet, "/api/user/profile", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("profile status = %d body=%s", rec.Code, rec.Body)
	}
	user, _ := decodeBody(t, rec)["user"].(map[string]any)
	if user["email"] != "sam@example.com" {
		t.Fatalf("profile user = %v", user)
	}
	if _, leaked := user["password"]; leaked {
		t.Fatal("profile exposes password hash")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/user/profile", nil)
	req.AddCookie(&http.Cookie{Name: session.DefaultCookie, Value: url.QueryEscape("Bearer " + token)})
	cookieRec := httptest.NewRecorder()
	ts.handler.ServeHTTP(cookieRec, req)
	if cookieRec.Code != http.StatusOK {
		t.Fatalf("cookie profile status = %d", cookieRec.Code)
	}

	if rec := ts.do(t, http.MethodPost, "/api/security/logout", token, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("logout status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/user/profile", token, ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("profile after logout status = %d", rec.Code)
	}
}

func TestAdminAccess(t *testing.T) {
	ts := newTestServer(t)
	adminToken := ts.login(t, "admin@example.com")
	studentToken := ts.login(t, "sam@example.com")

	tests := []struct {
		name   string
		target string
		token  string
		want   int
	}{
		{name: "anonymous", target: "/api/admin/orders", want: http.StatusUnauthorized},
		{name: "missing scope", target: "/api/admin/orders", token: studentToken, want: http.StatusForbidden},
		{name: "unknown entity", target: "/api/admin/widgets", token: adminToken, want: http.StatusNotFound},
		{name: "admin list", target: "/api/admin/orders", token: adminToken, want: http.StatusOK},
		{name: "missing record", target: "/api/admin/courses/999", token: adminToken, want: http.StatusNotFound},
		{name: "bad id", target: "/api/admin/courses/abc", token: adminToken, want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodGet, tt.target, tt.token, ""); rec.Code != tt.want {
				t.Fatalf("status = %d, want %d body=%s", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestAdminOrderLifecycle(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "admin@example.com")

	rec := ts.do(t, http.MethodPost, "/api/admin/orders", token,
		`{"user_id":`+itoa(ts.student.ID)+`,"course_id":`+itoa(ts.course.ID)+`}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("create without period status = %d body=%s", rec.Code, rec.Body)
	}
	if got := decodeBody(t, rec); got["message"] != "Select a payment period" {
		t.Fatalf("message = %v", got["message"])
	}

	rec = ts.do(t, http.MethodPost, "/api/admin/orders", token,
		`{"user_id":`+itoa(ts.student.ID)+`,"course_id":`+itoa(ts.course.ID)+`,"period":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("create status = %d body=%s", rec.Code, rec.Body)
	}
	created := decodeBody(t, rec)
	if created["cost"] != float64(100) {
		t.Fatalf("created = %v", created)
	}

	rec = ts.do(t, http.MethodGet, "/api/admin/orders?service=internal&limit=5&sort=id&dir=desc", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	list := decodeBody(t, rec)
	if list["total"] != float64(1) || list["total_cost"] != float64(100) {
		t.Fatalf("list = %v", list)
	}

	rec = ts.do(t, http.MethodGet, "/api/admin/orders", token, "")
	if got := decodeBody(t, rec); got["total"] != float64(1) || got["total_cost"] != float64(0) {
		t.Fatalf("list without service filter = %v, manual orders must not count", got)
	}

	id := itoa(uint(created["id"].(float64)))
	if rec := ts.do(t, http.MethodDelete, "/api/admin/orders/"+id, token, ""); rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("delete paid order status = %d", rec.Code)
	}

	ts.bus.mu.Lock()
	defer ts.bus.mu.Unlock()
	if len(ts.bus.subjects) != 1 || ts.bus.subjects[0] != "krafti.admin.orders.create" {
		t.Fatalf("subjects = %v", ts.bus.subjects)
	}
	if ev := ts.bus.events[0]; ev.ID == 0 || ev.ActorID == 0 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestWebCourses(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/web/courses", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body)
	}
	list := decodeBody(t, rec)
	items, _ := list["items"].([]any)
	if list["total"] != float64(1) || len(items) != 1 {
		t.Fatalf("list = %v", list)
	}

	if rec := ts.do(t, http.MethodGet, "/api/web/courses/"+itoa(ts.course.ID), "", ""); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/web/nothing", "", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown entity status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ts := newTestServer(t)
	for _, target := range []string{"/healthz", "/readyz", "/metrics"} {
		if rec := ts.do(t, http.MethodGet, target, "", ""); rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", target, rec.Code)
		}
	}
}

func TestProperties(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x?query=alg&status[]=1&status[]=2&tag=a&tag=b&limit=3",
		strings.NewReader(`{"limit":10,"title":"Algebra"}`))
	props, err := properties(req)
	if err != nil {
		t.Fatalf("properties: %v", err)
	}
	if props.String("query") != "alg" || props.String("title") != "Algebra" {
		t.Fatalf("props = %v", props)
	}
	if n, _ := props.Int("limit"); n != 10 {
		t.Fatalf("limit = %d, body should win", n)
	}
	if got := props.Strings("status"); len(got) != 2 {
		t.Fatalf("status = %v", got)
	}
	if got := props.Strings("tag"); len(got) != 2 {
		t.Fatalf("tag = %v", got)
	}

	bad := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`[1,2`))
	if _, err := properties(bad); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
