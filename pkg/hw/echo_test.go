package hw

import (
	"testing"
	"time"
)

type fakePin struct{ levels []bool }

func (p *fakePin) SetLevel(high bool) error {
	p.levels = append(p.levels, high)
	return nil
}

type fakeEcho struct {
	results []EdgeResult
}

func (f *fakeEcho) WaitForEdge(time.Duration) (EdgeResult, error) {
	if len(f.results) == 0 {
		return EdgeResult{}, ErrTimeout
	}
	r := f.results[0]
	f.results = f.results[1:]
	return r, nil
}

func TestEchoDistance(t *testing.T) {
	cases := []struct {
		width time.Duration
		want  int
	}{
		{0, 0},
		{time.Millisecond, 171},
		{2 * time.Millisecond, 343},
		{11662 * time.Microsecond, 2000},
	}
	for _, c := range cases {
		if got := EchoDistance(c.width); got != c.want {
			t.Errorf("EchoDistance(%v) = %d, want %d", c.width, got, c.want)
		}
	}
}

func TestEchoRangefinder(t *testing.T) {
	t0 := time.Now()
	trig := &fakePin{}
	rf := &EchoRangefinder{
		Trigger: trig,
		Echo: &fakeEcho{results: []EdgeResult{
			{Edge: EdgeRising, At: t0},
			{Edge: EdgeFalling, At: t0.Add(2 * time.Millisecond)},
		}},
	}

	mm, err := rf.ReadDistanceMm()
	if err != nil {
		t.Fatalf("ReadDistanceMm() error = %v", err)
	}
	if mm != 343 {
		t.Fatalf("ReadDistanceMm() = %d, want 343", mm)
	}
	if len(trig.levels) != 2 || !trig.levels[0] || trig.levels[1] {
		t.Fatalf("trigger levels = %v, want [true false]", trig.levels)
	}

	if _, err := rf.ReadDistanceMm(); err == nil {
		t.Fatal("ReadDistanceMm() with no echo did not fail")
	}
}
