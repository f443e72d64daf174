package firecracker

import (
	"fmt"
	"os"

	"github.com/maxdollinger/fireside/pkg/client"
)

// Tracing kinds.
const (
	TraceLogger = "logger"
	TraceFile   = "file"
)

// Tracing configures the HTTP trace hook installed on the machine's REST
// client: "logger" logs each round-trip through the machine's logger,
// "file" appends one line per round-trip to options["path"].
type Tracing struct {
	Kind    string
	Options map[string]any
}

// SetTracing attaches an HTTP trace configuration. Must happen before
// start, when the client is built.
func (m *Machine) SetTracing(kind string, options map[string]any) error {
	if m.state != StateInitial {
		return &InvalidStateError{State: m.state, Op: "set_tracing"}
	}
	switch kind {
	case TraceLogger, TraceFile:
	default:
		return fmt.Errorf("unknown tracing kind %q", kind)
	}
	m.tracing = &Tracing{Kind: kind, Options: options}
	return nil
}

// traceHook builds the client trace callback for the configured kind.
func (m *Machine) traceHook() func(client.TraceEvent) {
	if m.tracing == nil {
		return nil
	}
	switch m.tracing.Kind {
	case TraceLogger:
		return func(ev client.TraceEvent) {
			m.logger.Debug("api round-trip",
				"method", ev.Method,
				"path", ev.Path,
				"status", ev.Status,
				"duration", ev.Duration,
				"error", ev.Err)
		}
	case TraceFile:
		path, _ := m.tracing.Options["path"].(string)
		if path == "" {
			return nil
		}
		return func(ev client.TraceEvent) {
			f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
			if err != nil {
				return
			}
			defer f.Close()
			fmt.Fprintf(f, "%s %s %d %v %v\n", ev.Method, ev.Path, ev.Status, ev.Duration, ev.Err)
		}
	}
	return nil
}
