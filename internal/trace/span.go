package trace

import (
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

var (
	globalSeq   uint64
	globalSpans uint64
)

// NextSeq returns a monotonically increasing sequence number.
func NextSeq() uint64 {
	return atomic.AddUint64(&globalSeq, 1)
}

// NextSpanID returns a unique span ID.
func NextSpanID() uint64 {
	return atomic.AddUint64(&globalSpans, 1)
}

// goroutineID reads the id from the "goroutine N [state]:" header of the current stack.
func goroutineID() uint64 {
	var buf [64]byte
	head := string(buf[:runtime.Stack(buf[:], false)])
	head, ok := strings.CutPrefix(head, "goroutine ")
	if !ok {
		return 0
	}
	num, _, ok := strings.Cut(head, " ")
	if !ok {
		return 0
	}
	gid, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0
	}
	return gid
}

// Span covers one unit, decl or driver phase. A disabled span is a no-op
// with ID 0, so callers never check the tracer themselves.
type Span struct {
	tracer   Tracer
	id       uint64
	parentID uint64
	gid      uint64
	scope    Scope
	name     string
	started  time.Time
	extra    map[string]string
	failure  string
	ended    bool
}

var disabledSpan = Span{tracer: Nop, ended: true}

// Begin emits the begin event of a new span under parent (0 for a root).
func Begin(t Tracer, scope Scope, name string, parent uint64) *Span {
	if t == nil || !t.Enabled() || !t.Level().ShouldEmit(scope) {
		s := disabledSpan
		return &s
	}

	s := &Span{
		tracer:   t,
		id:       NextSpanID(),
		parentID: parent,
		gid:      goroutineID(),
		scope:    scope,
		name:     name,
		started:  time.Now(),
	}
	t.Emit(s.event(KindSpanBegin, s.started, ""))
	return s
}

func (s *Span) event(kind Kind, at time.Time, detail string) *Event {
	return &Event{
		Time:     at,
		Seq:      NextSeq(),
		Kind:     kind,
		Scope:    s.scope,
		SpanID:   s.id,
		ParentID: s.parentID,
		GID:      s.gid,
		Name:     s.name,
		Detail:   detail,
	}
}

// End emits the end event and returns the span duration. Only the first
// call emits; a failed span reports its error instead of detail.
func (s *Span) End(detail string) time.Duration {
	if s == nil || s.ended {
		return 0
	}
	s.ended = true

	now := time.Now()
	if s.failure != "" {
		detail = "error: " + s.failure
	}
	ev := s.event(KindSpanEnd, now, detail)
	ev.Extra = s.extra
	s.tracer.Emit(ev)
	return now.Sub(s.started)
}

// Fail marks the span as failed with err. Nil err is ignored, the first
// non-nil one wins.
func (s *Span) Fail(err error) *Span {
	if s == nil || s.ended || err == nil || s.failure != "" {
		return s
	}
	s.failure = err.Error()
	return s
}

// WithExtra attaches key=value to the end event.
func (s *Span) WithExtra(key, value string) *Span {
	if s == nil || s.ended {
		return s
	}
	if s.extra == nil {
		s.extra = make(map[string]string, 4)
	}
	s.extra[key] = value
	return s
}

// ID returns the span ID, 0 for a disabled span.
func (s *Span) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}
