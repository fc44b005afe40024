// Package telemetry carries structured pipeline events to optional sinks.
// Sinks are fire-and-forget: a failing sink never affects the caller.
package telemetry

import (
	"go.uber.org/zap"

	"github.com/sells-group/decision-research/internal/config"
)

// Emitter receives named events with a structured payload.
type Emitter interface {
	Emit(event string, fields map[string]any)
}

// Func adapts a plain function to Emitter.
type Func func(event string, fields map[string]any)

// Emit calls f.
func (f Func) Emit(event string, fields map[string]any) { f(event, fields) }

// Nop discards every event.
type Nop struct{}

// Emit does nothing.
func (Nop) Emit(string, map[string]any) {}

// Zap writes each event as one structured Info line.
type Zap struct {
	log *zap.Logger
}

// NewZap returns an emitter writing to log, or to the global logger when nil.
func NewZap(log *zap.Logger) *Zap {
	return &Zap{log: log}
}

// Emit logs the event.
func (z *Zap) Emit(event string, fields map[string]any) {
	log := z.log
	if log == nil {
		log = zap.L()
	}
	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, zap.String("event", event))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	log.Info("telemetry: "+event, zf...)
}

// Multi fans each event out to every sink. A panicking sink is recovered and
// logged; the remaining sinks still receive the event.
type Multi []Emitter

// Emit forwards to each sink.
func (m Multi) Emit(event string, fields map[string]any) {
	for _, e := range m {
		safeEmit(e, event, fields)
	}
}

// Safe wraps e so a panicking sink is recovered and logged instead of
// unwinding into the caller. Nil yields Nop.
func Safe(e Emitter) Emitter {
	switch e.(type) {
	case nil:
		return Nop{}
	case Nop, safe, Multi:
		return e
	}
	return safe{next: e}
}

type safe struct {
	next Emitter
}

func (s safe) Emit(event string, fields map[string]any) {
	safeEmit(s.next, event, fields)
}

func safeEmit(e Emitter, event string, fields map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Warn("telemetry: sink panicked",
				zap.String("event", event),
				zap.Any("panic", r),
			)
		}
	}()
	e.Emit(event, fields)
}

// With returns an emitter that adds fixed fields to every event, such as a
// run ID. Event-specific fields win on key collisions.
func With(e Emitter, extra map[string]any) Emitter {
	if len(extra) == 0 {
		return e
	}
	return Func(func(event string, fields map[string]any) {
		merged := make(map[string]any, len(fields)+len(extra))
		for k, v := range extra {
			merged[k] = v
		}
		for k, v := range fields {
			merged[k] = v
		}
		e.Emit(event, merged)
	})
}

// FromConfig builds the emitter for cfg. Disabled or test-mode telemetry
// drops the log sink only; the extra sinks, such as metrics collectors, keep
// receiving events. With no sinks left the result is Nop.
func FromConfig(cfg config.TelemetryConfig, sinks ...Emitter) Emitter {
	var out Multi
	if !cfg.Disabled && !cfg.TestMode {
		out = append(out, NewZap(nil))
	}
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Nop{}
	}
	return out
}
