package firecracker

import "context"

// API is the surface of the REST client the machine drives. *client.Client
// implements it; tests substitute a recording fake.
type API interface {
	Describe(ctx context.Context, kind string) (map[string]any, error)
	Put(ctx context.Context, path string, body any) error
	Patch(ctx context.Context, path string, body any) error
	CreateSyncAction(ctx context.Context, actionType string) error
	CreateSnapshot(ctx context.Context, body any) error
	LoadSnapshot(ctx context.Context, body any) error
	PatchVM(ctx context.Context, state string) error
}
