package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/railrunner/internal/infrastructure/config"
)

type fakeWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (w *fakeWriter) WritePoint(p *write.Point) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, p)
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func lineProtocol(p *write.Point) string {
	return write.PointToLineProtocol(p, time.Nanosecond)
}

func testClient() (*Client, *fakeWriter) {
	w := &fakeWriter{}
	c := newClient(w)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c, w
}

func TestWritePhaseTransition(t *testing.T) {
	c, w := testClient()

	c.WritePhaseTransition(42, "moving", "stopped")

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	line := lineProtocol(w.points[0])
	for _, want := range []string{
		"phase_transitions,",
		"to=stopped",
		"vehicle_id=42",
		`from="moving"`,
		"1700000000000000000",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestWriteSpeedCommand(t *testing.T) {
	c, w := testClient()

	c.WriteSpeedCommand(7, -2, "Rev_Med", "brake")

	if len(w.points) != 1 {
		t.Fatalf("points = %d, want 1", len(w.points))
	}
	line := lineProtocol(w.points[0])
	for _, want := range []string{
		"speed_commands,",
		"reason=brake",
		"vehicle_id=7",
		`name="Rev_Med"`,
		"speed=-2i",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
}

func TestClose_DropsLaterWrites(t *testing.T) {
	c, w := testClient()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if w.flushes != 1 {
		t.Errorf("flushes on close = %d, want 1", w.flushes)
	}

	c.WritePhaseTransition(1, "a", "b")
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Errorf("after close: points = %d, flushes = %d", len(w.points), w.flushes)
	}
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck after close = %v, want ErrNotConnected", err)
	}
}

func TestClose_Nil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("nil Close = %v", err)
	}
}

func TestConnect_Disabled(t *testing.T) {
	_, err := Connect(context.Background(), config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect disabled = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := Connect(ctx, config.InfluxDBConfig{Enabled: true, URL: "http://127.0.0.1:1", Token: "t"})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect unreachable = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_WritesBatches(t *testing.T) {
	var mu sync.Mutex
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/write") {
			body, _ := io.ReadAll(r.Body)
			mu.Lock()
			bodies = append(bodies, string(body))
			mu.Unlock()
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, err := Connect(context.Background(), config.InfluxDBConfig{
		Enabled: true, URL: srv.URL, Token: "t", Org: "rail", Bucket: "railrunner", FlushInterval: 1,
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := c.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck: %v", err)
	}

	c.WriteSpeedCommand(3, 3, "Fwd_Hi", "start")
	c.Close()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		got := strings.Join(bodies, "")
		mu.Unlock()
		if strings.Contains(got, "speed_commands") {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("speed command never reached the server")
}
