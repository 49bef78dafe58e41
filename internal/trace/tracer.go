package trace

// Tracer is the main interface for emitting trace events.
type Tracer interface {
	// Emit records a trace event. Must be goroutine-safe.
	Emit(ev *Event)

	// Flush ensures all buffered events are written.
	Flush() error

	// Close flushes and releases resources.
	Close() error

	// Level returns the current tracing level.
	Level() Level

	// Enabled returns true if tracing is active (Level > LevelOff).
	Enabled() bool
}

// Config holds tracer configuration.
type Config struct {
	Level    Level // tracing level
	RingSize int   // ring buffer capacity (default 4096)
}

// New creates a Tracer based on Config: a no-op tracer if Level is
// LevelOff, otherwise a RingTracer sized by RingSize.
func New(cfg Config) (Tracer, error) {
	if cfg.Level == LevelOff {
		return nopTracer{}, nil
	}

	ringSize := cfg.RingSize
	if ringSize <= 0 {
		ringSize = 4096
	}

	return NewRingTracer(ringSize, cfg.Level), nil
}
