package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kiwari-pos/terminal/internal/engine"
	"github.com/kiwari-pos/terminal/internal/floor"
	"github.com/kiwari-pos/terminal/internal/handler"
	"github.com/kiwari-pos/terminal/internal/model"
	"github.com/kiwari-pos/terminal/internal/store"
	"github.com/sirupsen/logrus"
)

func doRequest(t *testing.T, router http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		req = httptest.NewRequest(method, path, bytes.NewReader(b))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeResponse(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp
}

// sessionFixture wires a real engine over an in-memory store: the session
// surface depends on live session state, so mocking the engine away would
// test nothing.
type sessionFixture struct {
	router *chi.Mux
	store  *store.Memory
	table  model.Table
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	st := store.NewMemory()
	fl := floor.NewService(st, log)
	table, err := fl.Create(context.Background(), 5)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	eng := engine.New("terminal-test", st, fl, log)

	r := chi.NewRouter()
	r.Route("/tables/{tid}/session", handler.NewSessionHandler(eng).RegisterRoutes)
	return &sessionFixture{router: r, store: st, table: table}
}

func (f *sessionFixture) path(suffix string) string {
	return "/tables/" + f.table.ID + "/session" + suffix
}
