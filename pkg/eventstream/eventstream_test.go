package eventstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

func serve(t *testing.T, es *EventStream) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(es.Handler))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialURL(t *testing.T, url string) (*websocket.Conn, context.Context) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.CloseNow() })
	return c, ctx
}

func dial(t *testing.T, es *EventStream) (*websocket.Conn, context.Context) {
	t.Helper()
	return dialURL(t, serve(t, es))
}

func TestStreamDelivers(t *testing.T) {
	es := New()
	c, ctx := dial(t, es)
	if es.Subscribers() != 1 {
		t.Fatalf("Subscribers() = %d, want 1", es.Subscribers())
	}

	es.PublishDiagnostics([]task.Diagnostics{
		{Name: "horn", Period: 125 * time.Millisecond, WorstCPU: 250 * time.Microsecond, CPUUsage: 0.5},
		{Name: "distance", Period: 75 * time.Millisecond, CPUUsage: 1},
	}, []int{0, 2, 0})
	es.PublishStatus(robot.Report{RobotID: "r1", Current: 99, HasReading: true})

	_, b, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var d EventDiagnostics
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatal(err)
	}
	if d.Type != EventTypeDiagnostics || len(d.Tasks) != 2 {
		t.Fatalf("diagnostics event = %+v", d)
	}
	if d.Tasks[0].Period != 125000 || d.Tasks[0].WCET != 250 {
		t.Fatalf("horn timing = %+v", d.Tasks[0])
	}
	if d.TotalCPU != 1.5 || len(d.QueueDepths) != 3 || d.QueueDepths[1] != 2 {
		t.Fatalf("totals = %v, depths = %v", d.TotalCPU, d.QueueDepths)
	}

	_, b, err = c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var s EventStatus
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatal(err)
	}
	if s.Type != EventTypeStatus || s.Report.Current != 99 || s.Report.RobotID != "r1" {
		t.Fatalf("status event = %+v", s)
	}
}

func TestSamplerPublishes(t *testing.T) {
	reg := task.NewRegistry()
	reg.RegisterThread("main", 1, 0)

	es := New()
	c, ctx := dial(t, es)
	es.StartSampler(reg, nil, 10*time.Millisecond)
	defer es.Shutdown()

	_, b, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var d EventDiagnostics
	if err := json.Unmarshal(b, &d); err != nil {
		t.Fatal(err)
	}
	if len(d.Tasks) != 1 || d.Tasks[0].Name != "main" || !d.Tasks[0].Foreign {
		t.Fatalf("sampled %+v", d.Tasks)
	}
}

func TestStreamFilters(t *testing.T) {
	es := New()
	c, ctx := dialURL(t, serve(t, es)+"/?events=status")

	if es.wanted(EventTypeDiagnostics) || !es.wanted(EventTypeStatus) {
		t.Fatal("filter not applied to the viewer")
	}
	es.PublishDiagnostics(nil, nil)
	es.PublishLogLine("skipped")
	es.PublishStatus(robot.Report{RobotID: "r2", Current: 12, HasReading: true})

	_, b, err := c.Read(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var st EventStatus
	if err := json.Unmarshal(b, &st); err != nil {
		t.Fatal(err)
	}
	if st.Type != EventTypeStatus || st.Report.RobotID != "r2" {
		t.Fatalf("first event = %s", b)
	}
}

func TestStreamRejectsUnknownFilter(t *testing.T) {
	es := New()
	rec := httptest.NewRecorder()
	es.Handler(rec, httptest.NewRequest(http.MethodGet, "/?events=status,bogus", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if es.Subscribers() != 0 {
		t.Fatal("rejected request was subscribed")
	}
}

func TestShutdownDisconnectsViewers(t *testing.T) {
	es := New()
	url := serve(t, es)
	c, ctx := dialURL(t, url)

	es.Shutdown()
	_, _, err := c.Read(ctx)
	if websocket.CloseStatus(err) != websocket.StatusGoingAway {
		t.Fatalf("Read() after Shutdown error = %v", err)
	}

	dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if c2, _, err := websocket.Dial(dctx, url, nil); err == nil {
		c2.CloseNow()
		t.Fatal("viewer accepted after Shutdown")
	}
}

func TestNullStream(t *testing.T) {
	ns := NewNullStreamer()
	ns.PublishLogLine("x")
	if err := ns.PublishStatus(robot.Report{}); err != nil {
		t.Fatal(err)
	}
}
