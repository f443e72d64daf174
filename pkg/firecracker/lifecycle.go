package firecracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/maxdollinger/fireside/pkg/client"
	"github.com/maxdollinger/fireside/pkg/process"
	"github.com/maxdollinger/fireside/pkg/resource"
)

// startupGrace is how long the spawned process gets before the liveness
// probe decides whether startup succeeded.
const startupGrace = 100 * time.Millisecond

// Start spawns the firecracker process and immediately applies every
// pre-declared resource over the API. Idempotent from started. If the
// process dies inside the grace window, host artifacts created for the
// attempt are removed and a StartupError is returned with the machine
// still in its initial state.
func (m *Machine) Start(ctx context.Context) error {
	switch m.state {
	case StateStarted:
		return nil
	case StateInitial:
	default:
		return &InvalidStateError{State: m.state, Op: "start"}
	}

	cmd, err := m.Command()
	if err != nil {
		m.cleanupStartup()
		return &StartupError{Err: err}
	}
	if m.socketPath != "" {
		_ = os.Remove(m.socketPath)
	}

	proc, err := process.Start(cmd.Binary, cmd.Args, process.WithLogger(m.logger))
	if err != nil {
		m.cleanupStartup()
		return &StartupError{Err: err}
	}

	select {
	case <-ctx.Done():
		_, _ = proc.Stop()
		m.cleanupStartup()
		return &StartupError{Err: ctx.Err()}
	case <-time.After(startupGrace):
	}

	if !proc.IsAlive() {
		code, _ := proc.ExitStatus()
		m.cleanupStartup()
		return &StartupError{Err: fmt.Errorf("process exited during startup (code %d)", code)}
	}

	m.proc = proc
	if !m.noAPI && m.api == nil {
		var opts []client.Option
		if hook := m.traceHook(); hook != nil {
			opts = append(opts, client.WithTrace(hook))
		}
		m.api = client.New(m.socketPath, opts...)
	}
	m.state = StateStarted
	m.logger.Info("machine started", "id", m.id, "pid", proc.Pid(), "socket", m.socketPath)

	return m.Apply(ctx)
}

// WaitReady blocks until the API answers on the instance endpoint.
func (m *Machine) WaitReady(ctx context.Context, timeout time.Duration) error {
	c, ok := m.api.(*client.Client)
	if !ok || c == nil {
		return ErrNoAPI
	}
	return c.WaitReady(ctx, timeout)
}

// Boot starts the guest. Legal from started, or from shutdown to boot
// again; idempotent from running. Without an API the guest already boots
// from the launch config file, so the transition is local.
func (m *Machine) Boot(ctx context.Context) error {
	switch m.state {
	case StateRunning:
		return nil
	case StateStarted, StateShutdown:
	default:
		return &InvalidStateError{State: m.state, Op: "boot"}
	}
	if m.api != nil {
		if err := m.api.CreateSyncAction(ctx, "InstanceStart"); err != nil {
			return err
		}
	}
	m.state = StateRunning
	m.logger.Info("guest booted", "id", m.id)
	return nil
}

// Pause freezes the vCPUs. Legal from running; idempotent from paused.
func (m *Machine) Pause(ctx context.Context) error {
	switch m.state {
	case StatePaused:
		return nil
	case StateRunning:
	default:
		return &InvalidStateError{State: m.state, Op: "pause"}
	}
	if m.api == nil {
		return ErrNoAPI
	}
	if err := m.api.PatchVM(ctx, "Paused"); err != nil {
		return err
	}
	m.state = StatePaused
	return nil
}

// Resume unfreezes the vCPUs. Legal from paused; idempotent from running.
func (m *Machine) Resume(ctx context.Context) error {
	switch m.state {
	case StateRunning:
		return nil
	case StatePaused:
	default:
		return &InvalidStateError{State: m.state, Op: "resume"}
	}
	if m.api == nil {
		return ErrNoAPI
	}
	if err := m.api.PatchVM(ctx, "Resumed"); err != nil {
		return err
	}
	m.state = StateRunning
	return nil
}

// Shutdown sends the guest a graceful shutdown (Ctrl+Alt+Del equivalent).
// Legal from running; idempotent from shutdown.
func (m *Machine) Shutdown(ctx context.Context) error {
	switch m.state {
	case StateShutdown:
		return nil
	case StateRunning:
	default:
		return &InvalidStateError{State: m.state, Op: "shutdown"}
	}
	if m.api == nil {
		return ErrNoAPI
	}
	if err := m.api.CreateSyncAction(ctx, "SendCtrlAltDel"); err != nil {
		return err
	}
	m.state = StateShutdown
	return nil
}

// FlushMetrics asks the microVM to flush its metrics. Legal whenever the
// process is up.
func (m *Machine) FlushMetrics(ctx context.Context) error {
	switch m.state {
	case StateStarted, StateRunning, StatePaused, StateShutdown:
	default:
		return &InvalidStateError{State: m.state, Op: "flush_metrics"}
	}
	if m.api == nil {
		return ErrNoAPI
	}
	return m.api.CreateSyncAction(ctx, "FlushMetrics")
}

// Describe fetches one of the API's GET surfaces (see the client package's
// describe kinds).
func (m *Machine) Describe(ctx context.Context, kind string) (map[string]any, error) {
	if m.api == nil {
		return nil, ErrNoAPI
	}
	return m.api.Describe(ctx, kind)
}

// Stop terminates the process with SIGTERM, waits for it, and removes the
// host artifacts the machine owns. The logger's log_path is preserved.
// Legal from started, running or paused; idempotent from exited.
func (m *Machine) Stop(ctx context.Context) error {
	switch m.state {
	case StateExited:
		return nil
	case StateStarted, StateRunning, StatePaused:
	default:
		return &InvalidStateError{State: m.state, Op: "stop"}
	}

	if m.proc != nil {
		code, err := m.proc.Stop()
		if err != nil {
			return fmt.Errorf("stop process: %w", err)
		}
		if code != process.ExitCodeSIGTERM {
			m.logger.Warn("unexpected exit code on stop", "id", m.id, "code", code)
		}
	}

	m.removeArtifacts()
	m.state = StateExited
	m.logger.Info("machine stopped", "id", m.id)
	return nil
}

// cleanupStartup removes artifacts created during a failed start attempt.
// Best-effort; never shadows the startup error.
func (m *Machine) cleanupStartup() {
	if m.autoConfig != "" {
		_ = os.Remove(m.autoConfig)
		m.autoConfig = ""
	}
	if m.socketPath != "" {
		_ = os.Remove(m.socketPath)
	}
}

// removeArtifacts deletes the host files the machine owns: the API socket,
// the auto-generated config file, the vsock UDS, the metrics FIFO and the
// serial output file. The logger's log_path stays.
func (m *Machine) removeArtifacts() {
	remove := func(path string) {
		if path == "" {
			return
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			m.logger.Warn("artifact cleanup failed", "path", path, "error", err)
		}
	}

	remove(m.socketPath)
	remove(m.autoConfig)
	remove(m.resourcePath(resource.KindVsock, "uds_path"))
	remove(m.resourcePath(resource.KindMetrics, "metrics_path"))
	remove(m.resourcePath(resource.KindSerial, "output_path"))
}

func (m *Machine) resourcePath(kind, field string) string {
	v, ok := m.singletons[kind]
	if !ok {
		return ""
	}
	path, _ := v.Fields()[field].(string)
	return path
}
