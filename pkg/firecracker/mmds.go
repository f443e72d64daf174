package firecracker

import "github.com/maxdollinger/fireside/pkg/resource"

// Metadata replaces the whole MMDS document. The next apply replays it with
// a PUT to /mmds. Legal in any state that still has a live HTTP surface,
// i.e. anything but exited.
func (m *Machine) Metadata(data map[string]any) error {
	if m.state == StateExited {
		return &InvalidStateError{State: m.state, Op: "metadata"}
	}
	def, _ := resource.Lookup(resource.KindMMDS)
	if existing, ok := m.singletons[resource.KindMMDS]; ok {
		return existing.Merge(resource.Options{"data": data}, false)
	}
	v, err := resource.New(def, resource.Options{"data": data}, false)
	if err != nil {
		return err
	}
	m.singletons[resource.KindMMDS] = v
	return nil
}

// SetMetadata creates or overwrites one key of the MMDS document.
func (m *Machine) SetMetadata(key string, value any) error {
	data := m.metadataDocument()
	data[key] = value
	return m.Metadata(data)
}

// UpdateMetadata reads one key (falling back to def when absent), applies
// fn, and stores the result. The read-modify-write happens on the spec; the
// microVM sees the result on the next apply.
func (m *Machine) UpdateMetadata(key string, def any, fn func(any) any) error {
	data := m.metadataDocument()
	current, ok := data[key]
	if !ok {
		current = def
	}
	data[key] = fn(current)
	return m.Metadata(data)
}

// MetadataDocument returns a copy of the current MMDS document.
func (m *Machine) MetadataDocument() map[string]any {
	return m.metadataDocument()
}

func (m *Machine) metadataDocument() map[string]any {
	out := make(map[string]any)
	v, ok := m.singletons[resource.KindMMDS]
	if !ok {
		return out
	}
	if data, ok := v.Fields()["data"].(map[string]any); ok {
		for k, val := range data {
			out[k] = val
		}
	}
	return out
}
