package firecracker

import (
	"context"
	"sort"
)

// SnapshotType selects a full or differential snapshot.
type SnapshotType string

const (
	SnapshotFull SnapshotType = "Full"
	SnapshotDiff SnapshotType = "Diff"
)

// Memory backend types for snapshot load.
const (
	BackendFile = "File"
	BackendUffd = "Uffd"
)

// MemoryBackend supplies guest memory on load from a file or a userfaultfd
// handler.
type MemoryBackend struct {
	Type string `json:"backend_type"`
	Path string `json:"backend_path"`
}

// Snapshot describes one saved microVM state: the paths written by save
// plus the knobs a later load consumes.
type Snapshot struct {
	MemFilePath  string
	SnapshotPath string
	Type         SnapshotType

	MemoryBackend *MemoryBackend
	// NetworkOverrides remaps guest interfaces to different host devices on
	// load: iface_id -> host_dev_name.
	NetworkOverrides map[string]string
	ResumeVM         bool
	TrackDirtyPages  bool
}

// SetMemoryBackend switches the snapshot to a memory backend, clearing the
// plain memory file path: the two are mutually exclusive in the load body.
func (s *Snapshot) SetMemoryBackend(backendType, path string) {
	s.MemoryBackend = &MemoryBackend{Type: backendType, Path: path}
	s.MemFilePath = ""
}

// SnapshotOption customises CreateSnapshot.
type SnapshotOption func(*Snapshot)

// WithSnapshotType overrides the default full snapshot.
func WithSnapshotType(t SnapshotType) SnapshotOption {
	return func(s *Snapshot) { s.Type = t }
}

// CreateSnapshot saves the paused microVM's state to the given paths and
// returns a descriptor for a later load. The machine must be paused.
func (m *Machine) CreateSnapshot(ctx context.Context, memFilePath, snapshotPath string, opts ...SnapshotOption) (*Snapshot, error) {
	if m.state != StatePaused {
		return nil, &InvalidStateError{State: m.state, Op: "snapshot"}
	}
	if m.api == nil {
		return nil, ErrNoAPI
	}

	s := &Snapshot{
		MemFilePath:  memFilePath,
		SnapshotPath: snapshotPath,
		Type:         SnapshotFull,
	}
	for _, opt := range opts {
		opt(s)
	}

	body := map[string]any{
		"mem_file_path": s.MemFilePath,
		"snapshot_path": s.SnapshotPath,
		"snapshot_type": string(s.Type),
	}
	if err := m.api.CreateSnapshot(ctx, body); err != nil {
		return nil, err
	}
	return s, nil
}

// LoadSnapshot restores a saved microVM into a freshly started, not yet
// booted machine. When the descriptor asks for resume_vm, the machine is
// running afterwards.
func (m *Machine) LoadSnapshot(ctx context.Context, s *Snapshot) error {
	if m.state != StateStarted {
		return &InvalidStateError{State: m.state, Op: "load_snapshot"}
	}
	if m.api == nil {
		return ErrNoAPI
	}

	if err := m.api.LoadSnapshot(ctx, s.loadBody()); err != nil {
		return err
	}
	if s.ResumeVM {
		m.state = StateRunning
	}
	return nil
}

// loadBody builds the load envelope: snapshot_type encoded as Full/Diff,
// overrides flattened to a list, empty nested objects dropped.
func (s *Snapshot) loadBody() map[string]any {
	body := map[string]any{
		"snapshot_path":     s.SnapshotPath,
		"resume_vm":         s.ResumeVM,
		"track_dirty_pages": s.TrackDirtyPages,
	}
	if s.Type != "" {
		body["snapshot_type"] = string(s.Type)
	}
	if s.MemoryBackend != nil {
		body["memory_backend"] = s.MemoryBackend
	} else if s.MemFilePath != "" {
		body["mem_file_path"] = s.MemFilePath
	}
	if len(s.NetworkOverrides) > 0 {
		ids := make([]string, 0, len(s.NetworkOverrides))
		for id := range s.NetworkOverrides {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		overrides := make([]map[string]string, 0, len(ids))
		for _, id := range ids {
			overrides = append(overrides, map[string]string{
				"iface_id":      id,
				"host_dev_name": s.NetworkOverrides[id],
			})
		}
		body["network_overrides"] = overrides
	}
	return body
}
