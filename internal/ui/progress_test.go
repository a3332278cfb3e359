package ui

import (
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"tabi/internal/driver"
)

func TestProgressModelTracksUnits(t *testing.T) {
	events := make(chan driver.Event)
	m := NewProgressModel("lower", []string{"a.toml", "b.toml"}, events).(*progressModel)

	steps := []driver.Event{
		{File: "a.toml", Stage: driver.StageLoad, Status: driver.StatusDone},
		{File: "b.toml", Stage: driver.StageCache, Status: driver.StatusDone},
		{File: "a.toml", Stage: driver.StageLower, Status: driver.StatusWorking},
		{File: "missing.toml", Stage: driver.StageLower, Status: driver.StatusDone},
	}
	for _, ev := range steps {
		m.Update(eventMsg(ev))
	}
	if m.items[0].status != "lowering" || m.items[1].status != "cached" {
		t.Fatalf("statuses = %q, %q", m.items[0].status, m.items[1].status)
	}
	if got := progressOf(m.items[0]) + progressOf(m.items[1]); got < 1.69 || got > 1.71 {
		t.Fatalf("progress = %v", got)
	}

	m.Update(eventMsg{File: "a.toml", Stage: driver.StageLower, Status: driver.StatusError})
	m.Update(doneMsg{})
	view := m.View()
	if !strings.Contains(view, "done: lower") || !strings.Contains(view, "error") || !strings.Contains(view, "b.toml") {
		t.Fatalf("view:\n%s", view)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("units/very/long/path.toml", 10); got != "units/v..." {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("truncate = %q", got)
	}
	if got := truncate("units/very/long/path.toml", 3); got != "uni" {
		t.Fatalf("truncate = %q", got)
	}
	// широкие символы занимают две колонки
	if got := truncate("日本語/パス.toml", 8); got != "日本..." || runewidth.StringWidth(got) > 8 {
		t.Fatalf("truncate = %q", got)
	}
}
