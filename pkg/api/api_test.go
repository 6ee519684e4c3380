package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"tablepos/pkg/config"
	"tablepos/pkg/intercept"
	"tablepos/pkg/logger"
	"tablepos/pkg/notify"
	"tablepos/pkg/order"
	"tablepos/pkg/order/memory"
	"tablepos/pkg/service"
	"tablepos/pkg/session"
	"tablepos/pkg/settings"
)

type fakeSessions struct {
	byID map[string]session.Session
}

func (f *fakeSessions) Create(_ context.Context, username string, roles []string) (session.Session, error) {
	s := session.Session{ID: "sid-" + username, Username: username, Roles: roles, ExpiresAt: time.Now().Add(time.Hour)}
	f.byID[s.ID] = s
	return s, nil
}

func (f *fakeSessions) Lookup(_ context.Context, id string) (session.Session, error) {
	s, ok := f.byID[id]
	if !ok {
		return session.Session{}, session.ErrNotFound
	}
	return s, nil
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	delete(f.byID, id)
	return nil
}

type fakeAuth map[string]config.Member

func (f fakeAuth) Authenticate(username, password string) (config.Member, bool) {
	m, ok := f[username]
	if !ok || password != "pw" {
		return config.Member{}, false
	}
	return m, true
}

type testApp struct {
	router   *mux.Router
	sessions *fakeSessions
	kitchen  *bytes.Buffer
}

func setupApp(t *testing.T) *testApp {
	t.Helper()
	log := logger.Nop()
	var kitchen bytes.Buffer
	cfg := settings.NewHandle(nil, log)
	svc := service.New(memory.New(), notify.NewRegistry(log), cfg, log, service.Options{
		Observers: []notify.Observer{notify.NewKitchen(logger.New(&kitchen, logger.LevelInfo, "test", nil))},
	})
	sessions := &fakeSessions{byID: map[string]session.Session{}}
	for _, name := range []string{"admin", "waiter", "chef", "cashier"} {
		sessions.byID["sid-"+name] = session.Session{ID: "sid-" + name, Username: name, Roles: []string{name}}
	}
	srv := New(Deps{
		Orders:   svc,
		Settings: cfg,
		Sessions: sessions,
		Auth: fakeAuth{
			"ana": {Username: "ana", Roles: []string{"waiter"}},
		},
		Chain: intercept.Standard(config.DefaultPermissions(), log),
		Log:   log,
	})
	return &testApp{router: srv.Routes(), sessions: sessions, kitchen: &kitchen}
}

func (a *testApp) do(t *testing.T, as, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, path, nil)
	} else {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	if as != "" {
		r.Header.Set(sessionHeader, "sid-"+as)
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, r)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func TestLogin(t *testing.T) {
	app := setupApp(t)
	rr := app.do(t, "", http.MethodPost, "/login", `{"username":"ana","password":"pw"}`)
	expectStatus(t, rr, http.StatusOK)
	resp := decodeBody[loginResponse](t, rr)
	if resp.Username != "ana" || resp.SessionID == "" {
		t.Fatalf("unexpected login response %+v", resp)
	}
	found := false
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookie && c.Value == resp.SessionID {
			found = true
		}
	}
	if !found {
		t.Fatal("session cookie not set")
	}

	rr = app.do(t, "", http.MethodPost, "/login", `{"username":"ana","password":"nope"}`)
	expectStatus(t, rr, http.StatusUnauthorized)
}

func TestRequiresSession(t *testing.T) {
	app := setupApp(t)
	rr := app.do(t, "", http.MethodGet, "/orders", "")
	expectStatus(t, rr, http.StatusUnauthorized)
	rr = app.do(t, "stranger", http.MethodGet, "/settings", "")
	expectStatus(t, rr, http.StatusUnauthorized)
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatal("request id header missing")
	}
}

func TestOrderLifecycle(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, "waiter", http.MethodPost, "/orders", `{"table":4}`)
	expectStatus(t, rr, http.StatusCreated)
	o := decodeBody[order.Order](t, rr)
	if o.State != order.StatePending || o.Table != 4 {
		t.Fatalf("unexpected order %+v", o)
	}
	if !strings.Contains(app.kitchen.String(), "[KITCHEN]") {
		t.Fatalf("kitchen not notified: %s", app.kitchen.String())
	}

	rr = app.do(t, "waiter", http.MethodPost, "/orders/1/items", `{"menu_item":"tacos","quantity":3,"unit_price":"40.00"}`)
	expectStatus(t, rr, http.StatusOK)
	o = decodeBody[order.Order](t, rr)
	if o.Total.StringFixed(2) != "139.20" {
		t.Fatalf("total = %s", o.Total.StringFixed(2))
	}

	for _, st := range []string{"preparing", "ready"} {
		rr = app.do(t, "chef", http.MethodPost, "/orders/1/state", `{"state":"`+st+`"}`)
		expectStatus(t, rr, http.StatusOK)
	}

	rr = app.do(t, "waiter", http.MethodPost, "/orders/1/items", `{"menu_item":"soda","quantity":1,"unit_price":"20"}`)
	expectStatus(t, rr, http.StatusConflict)
	if e := decodeBody[jsonError](t, rr); e.Error != "OrderLocked" {
		t.Fatalf("error kind = %q", e.Error)
	}

	rr = app.do(t, "waiter", http.MethodPost, "/orders/1/state", `{"state":"delivered"}`)
	expectStatus(t, rr, http.StatusOK)

	rr = app.do(t, "waiter", http.MethodPost, "/orders/1/payment", `{"method":"cash"}`)
	expectStatus(t, rr, http.StatusForbidden)

	rr = app.do(t, "cashier", http.MethodPost, "/orders/1/payment", `{"method":"card","tip":"10"}`)
	expectStatus(t, rr, http.StatusCreated)
	p := decodeBody[order.Payment](t, rr)
	if p.Amount.StringFixed(2) != "139.20" || p.Tip.StringFixed(2) != "10.00" {
		t.Fatalf("unexpected payment %+v", p)
	}

	rr = app.do(t, "cashier", http.MethodGet, "/orders/1/payment", "")
	expectStatus(t, rr, http.StatusOK)

	rr = app.do(t, "chef", http.MethodPost, "/orders/1/state", `{"state":"cancelled"}`)
	expectStatus(t, rr, http.StatusConflict)
	if e := decodeBody[jsonError](t, rr); e.Error != "TerminalStateViolation" {
		t.Fatalf("error kind = %q", e.Error)
	}

	rr = app.do(t, "waiter", http.MethodGet, "/orders?table=4&state=paid", "")
	expectStatus(t, rr, http.StatusOK)
	if list := decodeBody[[]order.Order](t, rr); len(list) != 1 {
		t.Fatalf("list = %+v", list)
	}
}

func TestForbiddenDoesNotChangeOrder(t *testing.T) {
	app := setupApp(t)
	expectStatus(t, app.do(t, "waiter", http.MethodPost, "/orders", `{"table":1}`), http.StatusCreated)

	rr := app.do(t, "cashier", http.MethodPost, "/orders/1/state", `{"state":"preparing"}`)
	expectStatus(t, rr, http.StatusForbidden)

	rr = app.do(t, "waiter", http.MethodGet, "/orders/1", "")
	expectStatus(t, rr, http.StatusOK)
	if o := decodeBody[order.Order](t, rr); o.State != order.StatePending {
		t.Fatalf("state = %s", o.State)
	}
}

func TestBadRequests(t *testing.T) {
	app := setupApp(t)
	cases := []struct {
		name, as, method, path, body string
		want                         int
	}{
		{"bad id", "waiter", http.MethodGet, "/orders/abc", "", http.StatusBadRequest},
		{"missing order", "waiter", http.MethodGet, "/orders/99", "", http.StatusNotFound},
		{"bad table", "waiter", http.MethodPost, "/orders", `{"table":0}`, http.StatusBadRequest},
		{"bad json", "waiter", http.MethodPost, "/orders", `{`, http.StatusBadRequest},
		{"unknown state", "chef", http.MethodPost, "/orders/1/state", `{"state":"eaten"}`, http.StatusBadRequest},
		{"bad json but forbidden", "cashier", http.MethodPost, "/orders", `{`, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			expectStatus(t, app.do(t, tc.as, tc.method, tc.path, tc.body), tc.want)
		})
	}
}

func TestSettings(t *testing.T) {
	app := setupApp(t)

	rr := app.do(t, "waiter", http.MethodPatch, "/settings", `{"tax_rate":18}`)
	expectStatus(t, rr, http.StatusForbidden)

	rr = app.do(t, "admin", http.MethodPatch, "/settings", `{"tax_rate":18,"currency":"USD"}`)
	expectStatus(t, rr, http.StatusOK)
	resp := decodeBody[settingsResponse](t, rr)
	if resp.Settings.TaxRate != 0.18 || resp.Settings.Currency != "USD" || resp.Warning != "" {
		t.Fatalf("unexpected settings %+v", resp)
	}

	rr = app.do(t, "chef", http.MethodGet, "/settings", "")
	expectStatus(t, rr, http.StatusOK)
	if s := decodeBody[settings.Settings](t, rr); s.TaxRate != 0.18 {
		t.Fatalf("tax rate not visible: %+v", s)
	}

	rr = app.do(t, "admin", http.MethodPatch, "/settings", `{"tip_rate":150}`)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestSwaggerServed(t *testing.T) {
	app := setupApp(t)
	rr := app.do(t, "", http.MethodGet, "/swagger/doc.json", "")
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), "tablepos API") {
		t.Fatalf("unexpected doc: %s", rr.Body.String())
	}
}
