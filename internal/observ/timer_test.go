package observ

import (
	"strings"
	"sync"
	"testing"
)

func TestTimerConcurrentPhases(t *testing.T) {
	tm := NewTimer()
	var wg sync.WaitGroup
	for _, name := range []string{"unit:a", "unit:b", "unit:c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			done := tm.Track(name)
			done("ok")
		}()
	}
	wg.Wait()

	r := tm.Report()
	if len(r.Phases) != 3 {
		t.Fatalf("expected 3 phases, got %d", len(r.Phases))
	}
	for _, p := range r.Phases {
		if p.Note != "ok" {
			t.Fatalf("phase %s lost its note", p.Name)
		}
	}
	if s := tm.Summary(); !strings.Contains(s, "wall") {
		t.Fatalf("summary without wall time:\n%s", s)
	}
}

func TestNilTimerTrack(t *testing.T) {
	var tm *Timer
	tm.Track("x")("")
}
