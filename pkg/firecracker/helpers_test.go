package firecracker

import (
	"context"
	"testing"

	"github.com/maxdollinger/fireside/pkg/resource"
)

type apiCall struct {
	Op   string // "put", "patch", "action", "snapshot_create", "snapshot_load", "patch_vm", "describe"
	Path string
	Body any
}

// fakeAPI records every call and fails paths listed in fail.
type fakeAPI struct {
	calls []apiCall
	fail  map[string]error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{fail: make(map[string]error)}
}

func (f *fakeAPI) record(op, path string, body any) error {
	f.calls = append(f.calls, apiCall{Op: op, Path: path, Body: body})
	return f.fail[path]
}

func (f *fakeAPI) Describe(ctx context.Context, kind string) (map[string]any, error) {
	if err := f.record("describe", kind, nil); err != nil {
		return nil, err
	}
	return map[string]any{}, nil
}

func (f *fakeAPI) Put(ctx context.Context, path string, body any) error {
	return f.record("put", path, body)
}

func (f *fakeAPI) Patch(ctx context.Context, path string, body any) error {
	return f.record("patch", path, body)
}

func (f *fakeAPI) CreateSyncAction(ctx context.Context, actionType string) error {
	return f.record("action", "/actions", actionType)
}

func (f *fakeAPI) CreateSnapshot(ctx context.Context, body any) error {
	return f.record("snapshot_create", "/snapshot/create", body)
}

func (f *fakeAPI) LoadSnapshot(ctx context.Context, body any) error {
	return f.record("snapshot_load", "/snapshot/load", body)
}

func (f *fakeAPI) PatchVM(ctx context.Context, state string) error {
	return f.record("patch_vm", "/vm", state)
}

func (f *fakeAPI) paths() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.Path
	}
	return out
}

// newTestMachine builds a machine wired to a fake API in the given state.
func newTestMachine(t *testing.T, state State, api API) *Machine {
	t.Helper()
	m, err := New(resource.Options{OptID: "test-vm"}, WithAPI(api))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	m.state = state
	return m
}
