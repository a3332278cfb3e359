package driver

import (
	"encoding/json"
	"fmt"

	"tabi/internal/diag"
	"tabi/internal/observ"
	"tabi/internal/source"
)

type timingPayload struct {
	Kind    string               `json:"kind"`
	Units   int                  `json:"units"`
	Cached  int                  `json:"cached"`
	TotalMS float64              `json:"total_ms"`
	Phases  []observ.PhaseReport `json:"phases"`
}

func timingPayloadFor(t *observ.Timer, units, cached int) timingPayload {
	rep := t.Report()
	return timingPayload{
		Kind:    "lower",
		Units:   units,
		Cached:  cached,
		TotalMS: rep.WallMS,
		Phases:  rep.Phases,
	}
}

// appendTimingDiagnostic attaches the payload as an info diagnostic; the
// JSON form goes into the single note so that tools can pick it up.
func appendTimingDiagnostic(bag *diag.Bag, payload timingPayload) {
	if bag == nil {
		return
	}
	if payload.Kind == "" {
		payload.Kind = "lower"
	}
	msg := fmt.Sprintf("timings (%s): total %.2f ms, %d units (%d cached)",
		payload.Kind, payload.TotalMS, payload.Units, payload.Cached)

	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	entry := diag.New(diag.SevInfo, diag.ObsTimings, source.NoSpan, msg)
	entry.Notes = []diag.Note{{Msg: string(data)}}

	if bag.Add(entry) {
		return
	}
	overflow := diag.NewBag(1)
	overflow.Add(entry)
	bag.Merge(overflow)
}
