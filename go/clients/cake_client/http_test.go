package cake_client

import (
	"context"
	"strings"
	"testing"
)

func TestHTTPClientStatsAndHealth(t *testing.T) {
	_, sh, url := setup(t)
	base := "http" + strings.TrimSuffix(strings.TrimPrefix(url, "ws"), "/ws")
	hc := NewHTTPClient(base + "/")

	if err := hc.Health(context.Background()); err != nil {
		t.Fatalf("Health: %v", err)
	}

	stats, err := hc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConnections != 0 {
		t.Fatalf("TotalConnections = %d before any dial", stats.TotalConnections)
	}

	c, err := Dial(context.Background(), Options{URL: url, Handler: newClientHandler()})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()
	id := wait(t, sh.connects)

	stats, err = hc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalConnections != 1 || len(stats.Connections) != 1 || stats.Connections[0].ID != id {
		t.Fatalf("Stats = %+v, want connection %s", stats, id)
	}
}

func TestHTTPClientReportsStatus(t *testing.T) {
	_, _, url := setup(t)
	hc := NewHTTPClient("http" + strings.TrimSuffix(strings.TrimPrefix(url, "ws"), "/ws"))

	_, err := hc.get(context.Background(), "/missing")
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("get(/missing) = %v, want a 404 error", err)
	}
}
