package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"connectrpc.com/connect"
	"github.com/mcdev12/birthdaycake/go/internal/cake/serverengine"
)

type fakeController struct {
	mu     sync.Mutex
	state  serverengine.State
	resets int
}

func (c *fakeController) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
	c.state.BlownOutCandleCount = 0
	c.state.MsAtTargetWindForce = 0
}

func (c *fakeController) State() serverengine.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func newTestClient(t *testing.T, controller Controller) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.Handle(NewAdminServiceHandler(NewService(controller)))
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return NewClient(ts.Client(), ts.URL)
}

func TestGetState(t *testing.T) {
	want := serverengine.State{
		ClientCount:         3,
		CandleCount:         26,
		BlownOutCandleCount: 7,
		TotalWindForce:      0.0045,
		TargetWindForce:     0.003,
		MsAtTargetWindForce: 12.5,
	}
	client := newTestClient(t, &fakeController{state: want})

	got, err := client.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got != want {
		t.Fatalf("GetState = %+v, want %+v", got, want)
	}
}

func TestReset(t *testing.T) {
	controller := &fakeController{state: serverengine.State{CandleCount: 5, BlownOutCandleCount: 4, MsAtTargetWindForce: 30}}
	client := newTestClient(t, controller)

	if err := client.Reset(context.Background()); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if controller.resets != 1 {
		t.Fatalf("controller reset %d times, want 1", controller.resets)
	}

	got, err := client.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState: %v", err)
	}
	if got.BlownOutCandleCount != 0 || got.CandleCount != 5 {
		t.Fatalf("state after reset = %+v", got)
	}
}

func TestUnknownProcedure(t *testing.T) {
	path, handler := NewAdminServiceHandler(NewService(&fakeController{}))
	if path != "/cake.v1.AdminService/" {
		t.Fatalf("path = %q", path)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/cake.v1.AdminService/Explode", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestUnreachableServer(t *testing.T) {
	client := NewDefaultClient("http://127.0.0.1:1/")
	err := client.Reset(context.Background())
	if err == nil {
		t.Fatalf("Reset against a closed port succeeded")
	}
	if code := connect.CodeOf(err); code != connect.CodeUnavailable {
		t.Fatalf("error code = %v, want unavailable", code)
	}
}
