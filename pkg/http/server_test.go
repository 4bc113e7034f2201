package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rtbot-platform/rtbot/pkg/cmdqueue"
	"github.com/rtbot-platform/rtbot/pkg/command"
	"github.com/rtbot-platform/rtbot/pkg/robot"
	"github.com/rtbot-platform/rtbot/pkg/task"
)

type fixedStatus struct {
	r  robot.Report
	ok bool
}

func (f fixedStatus) LastReport() (robot.Report, bool) { return f.r, f.ok }

func newTestServer(t *testing.T, opts ...Option) *httptest.Server {
	t.Helper()
	s, err := NewServer(opts...)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestTasks(t *testing.T) {
	reg := task.NewRegistry()
	reg.RegisterThread("main", 42, 0)
	task.NewPeriodic(reg, "horn", 125*time.Millisecond, task.TickFunc(func() {}))
	ts := newTestServer(t, WithTaskRegistry(reg))

	res, err := http.Get(ts.URL + "/tasks")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var tt taskTable
	if err := json.NewDecoder(res.Body).Decode(&tt); err != nil {
		t.Fatal(err)
	}
	if len(tt.Tasks) != 2 || tt.Tasks[0].Thread != 42 || tt.Tasks[1].Period != 125000 {
		t.Fatalf("tasks = %+v", tt.Tasks)
	}

	res, err = http.Get(ts.URL + "/tasks/report")
	if err != nil {
		t.Fatal(err)
	}
	b, err := io.ReadAll(res.Body)
	res.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Total CPU Usage") {
		t.Fatalf("report = %q", b)
	}

	res, err = http.Post(ts.URL+"/tasks/reset", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d", res.StatusCode)
	}
}

func TestQueues(t *testing.T) {
	table := cmdqueue.NewTable(cmdqueue.NumberOfQueues)
	ts := newTestServer(t, WithQueues(table))

	cases := []struct {
		path string
		body string
		want int
	}{
		{"/queues/1", "0x20000001", http.StatusAccepted},
		{"/queues/3", "0x40000000", http.StatusAccepted},
		{"/queues/9", "1", http.StatusNotFound},
		{"/queues/x", "1", http.StatusBadRequest},
		{"/queues/1", "fast", http.StatusBadRequest},
		{"/horn/mute", "", http.StatusAccepted},
	}
	for _, c := range cases {
		res, err := http.Post(ts.URL+c.path, "text/plain", strings.NewReader(c.body))
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != c.want {
			t.Errorf("POST %s %q = %d, want %d", c.path, c.body, res.StatusCode, c.want)
		}
	}

	if v, _ := table.MustGet(cmdqueue.HornQueue).TryDequeue(); v != command.HornMute {
		t.Fatalf("horn queue got %#x, want HornMute", v)
	}

	res, err := http.Get(ts.URL + "/queues")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	depths := map[string]int{}
	if err := json.NewDecoder(res.Body).Decode(&depths); err != nil {
		t.Fatal(err)
	}
	if depths["motor"] != 1 || depths["horn"] != 0 || depths["line"] != 1 {
		t.Fatalf("depths = %v", depths)
	}
}

func TestStatusAndMissingComponents(t *testing.T) {
	ts := newTestServer(t)
	for _, p := range []string{"/tasks", "/queues", "/status"} {
		res, err := http.Get(ts.URL + p)
		if err != nil {
			t.Fatal(err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("GET %s = %d, want 503", p, res.StatusCode)
		}
	}

	ts = newTestServer(t, WithStatusSource(fixedStatus{}))
	res, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	res.Body.Close()
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("status before first report = %d", res.StatusCode)
	}

	ts = newTestServer(t, WithStatusSource(fixedStatus{robot.Report{Current: 77}, true}))
	res, err = http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var rep robot.Report
	if err := json.NewDecoder(res.Body).Decode(&rep); err != nil {
		t.Fatal(err)
	}
	if rep.Current != 77 {
		t.Fatalf("report = %+v", rep)
	}
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "rtbot_test_gauge"})
	reg.MustRegister(g)
	g.Set(3)
	ts := newTestServer(t, WithPrometheusRegistry(reg))

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "rtbot_test_gauge 3") {
		t.Fatalf("metrics = %q", b)
	}
}
