package pipeline

// Logger is the diagnostic sink the dispatcher writes to.
type Logger interface {
	Warn(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Warn(string, ...any) {}

// Dispatcher resolves the chain for an artifact path.
type Dispatcher struct {
	registry *Registry
	logger   Logger
}

// NewDispatcher wires a dispatcher to a registry. A nil logger discards
// warnings.
func NewDispatcher(registry *Registry, logger Logger) *Dispatcher {
	if logger == nil {
		logger = nopLogger{}
	}
	return &Dispatcher{registry: registry, logger: logger}
}

// Resolve returns the first matching chain prefixed with the profiler step.
// An unmatched path logs one warning and yields an empty chain, which the
// executor treats as identity pass-through.
func (d *Dispatcher) Resolve(path string) Chain {
	chain, ok := d.registry.Lookup(path)
	if !ok {
		d.logger.Warn("pipeline: no chain matches %s, passing it through unchanged", path)
		return Chain{}
	}
	return append(Chain{StepProfiler}, chain...)
}
