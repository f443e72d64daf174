package firecracker

import (
	"errors"
	"strings"
	"testing"

	"github.com/maxdollinger/fireside/pkg/resource"
)

func TestNewDefaults(t *testing.T) {
	m, err := New(nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !strings.HasPrefix(m.ID(), "anonymous-instance-") {
		t.Errorf("id = %q, want anonymous-instance-<unique>", m.ID())
	}
	if !strings.Contains(m.SocketPath(), "firecracker.") || !strings.HasSuffix(m.SocketPath(), ".sock") {
		t.Errorf("socket = %q, want firecracker.<unique>.sock", m.SocketPath())
	}
	if m.State() != StateInitial {
		t.Errorf("state = %q, want initial", m.State())
	}

	other, _ := New(nil)
	if other.SocketPath() == m.SocketPath() {
		t.Error("two machines share a default socket path")
	}
}

func TestNewRejectsUnknownOption(t *testing.T) {
	_, err := New(resource.Options{"turbo_mode": true})
	var invalid *resource.InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidOptionError", err)
	}
}

func TestNewNoAPIHasNoSocket(t *testing.T) {
	m, err := New(resource.Options{OptNoAPI: true, OptConfigFile: "/etc/fc.json"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if m.SocketPath() != "" {
		t.Errorf("socket = %q, want empty with no_api", m.SocketPath())
	}
}

func TestSetOptionOnlyInInitial(t *testing.T) {
	m, _ := New(nil)
	if err := m.SetOption("boot_timer", true); err != nil {
		t.Fatalf("SetOption in initial failed: %v", err)
	}

	m.state = StateStarted
	err := m.SetOption("boot_timer", false)
	var stateErr *InvalidStateError
	if !errors.As(err, &stateErr) {
		t.Fatalf("err = %v, want InvalidStateError", err)
	}
	if stateErr.Op != "set_option" || stateErr.State != StateStarted {
		t.Errorf("error = %+v", stateErr)
	}
}

func TestConfigureUnknownResource(t *testing.T) {
	m, _ := New(nil)
	err := m.Configure("floppy", resource.Options{"path": "/f"})
	var invalid *InvalidResourceError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidResourceError", err)
	}
}

func TestConfigureCollectionKindRejected(t *testing.T) {
	m, _ := New(nil)
	if err := m.Configure(resource.KindDrive, resource.Options{"drive_id": "a", "is_root_device": true}); err == nil {
		t.Fatal("Configure on a collection kind should fail")
	}
	if err := m.Add(resource.KindBootSource, "x", resource.Options{}); err == nil {
		t.Fatal("Add on a singleton kind should fail")
	}
}

func TestConfigureResetsApplied(t *testing.T) {
	m, _ := New(nil)
	mustConfigure(t, m, resource.KindMachineConfig, resource.Options{"vcpu_count": 2, "mem_size_mib": 512})
	m.singletons[resource.KindMachineConfig].MarkApplied()

	mustConfigure(t, m, resource.KindMachineConfig, resource.Options{"vcpu_count": 4})
	if m.Applied(resource.KindMachineConfig) {
		t.Error("mutation must reset applied")
	}
	fields, _ := m.Resource(resource.KindMachineConfig)
	if fields["vcpu_count"] != 4 || fields["mem_size_mib"] != 512 {
		t.Errorf("fields = %v, want merge over old value", fields)
	}
}

func TestPostBootGating(t *testing.T) {
	preBootOnly := []struct {
		kind string
		opts resource.Options
	}{
		{resource.KindBootSource, resource.Options{"kernel_image_path": "/x"}},
		{resource.KindCPUConfig, resource.Options{"cpuid_modifiers": []any{}}},
		{resource.KindEntropy, resource.Options{"rate_limiter": nil}},
		{resource.KindLogger, resource.Options{"log_path": "/l"}},
		{resource.KindMetrics, resource.Options{"metrics_path": "/m"}},
		{resource.KindMMDSConfig, resource.Options{"network_interfaces": []string{"eth0"}}},
		{resource.KindSerial, resource.Options{"output_path": "/s"}},
		{resource.KindVsock, resource.Options{"guest_cid": 3, "uds_path": "/v"}},
	}

	for _, tt := range preBootOnly {
		t.Run(tt.kind, func(t *testing.T) {
			m := newTestMachine(t, StateRunning, newFakeAPI())
			err := m.Configure(tt.kind, tt.opts)
			var invalid *resource.InvalidOptionError
			if !errors.As(err, &invalid) {
				t.Fatalf("Configure(%s) post-boot = %v, want InvalidOptionError", tt.kind, err)
			}
		})
	}
}

func TestPostBootBootSourceErrorNamesField(t *testing.T) {
	m := newTestMachine(t, StateRunning, newFakeAPI())
	err := m.Configure(resource.KindBootSource, resource.Options{"kernel_image_path": "/x"})
	var invalid *resource.InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidOptionError", err)
	}
	if invalid.Field != "kernel_image_path" {
		t.Errorf("error names %q, want kernel_image_path", invalid.Field)
	}
}

func TestPostBootBalloonDeflateRejected(t *testing.T) {
	m := newTestMachine(t, StateRunning, newFakeAPI())
	mustConfigureInState(t, m, StateInitial, resource.KindBalloon,
		resource.Options{"amount_mib": 64, "deflate_on_oom": true})

	err := m.Configure(resource.KindBalloon, resource.Options{"deflate_on_oom": false})
	var invalid *resource.InvalidOptionError
	if !errors.As(err, &invalid) {
		t.Fatalf("err = %v, want InvalidOptionError", err)
	}

	if err := m.Configure(resource.KindBalloon, resource.Options{"amount_mib": 128}); err != nil {
		t.Fatalf("post-boot amount_mib update failed: %v", err)
	}
}

func TestPostBootAddRejectedDistinctly(t *testing.T) {
	tests := []struct {
		kind string
		opts resource.Options
	}{
		{resource.KindDrive, resource.Options{"is_root_device": true, "path_on_host": "/r"}},
		{resource.KindNetworkInterface, resource.Options{"host_dev_name": "tap1"}},
		{resource.KindPmem, resource.Options{"path_on_host": "/p"}},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			m := newTestMachine(t, StateRunning, newFakeAPI())
			err := m.Add(tt.kind, "new-member", tt.opts)
			if !errors.Is(err, ErrPostBootAdd) {
				t.Fatalf("Add(%s) post-boot = %v, want ErrPostBootAdd", tt.kind, err)
			}
		})
	}
}

func TestPostBootMemberUpdateAllowed(t *testing.T) {
	m := newTestMachine(t, StateInitial, newFakeAPI())
	mustAdd(t, m, resource.KindDrive, "rootfs", resource.Options{"is_root_device": true, "path_on_host": "/r"})
	m.state = StateRunning

	if err := m.Add(resource.KindDrive, "rootfs", resource.Options{"path_on_host": "/r2"}); err != nil {
		t.Fatalf("post-boot member update failed: %v", err)
	}
	fields, _ := m.Member(resource.KindDrive, "rootfs")
	if fields["path_on_host"] != "/r2" {
		t.Errorf("fields = %v", fields)
	}
}

func TestMutationInExitedState(t *testing.T) {
	m := newTestMachine(t, StateExited, newFakeAPI())

	if err := m.Configure(resource.KindBalloon, resource.Options{"amount_mib": 1}); !isInvalidState(err) {
		t.Errorf("Configure in exited = %v, want InvalidStateError", err)
	}
	if err := m.Add(resource.KindDrive, "d", resource.Options{"is_root_device": false}); !isInvalidState(err) {
		t.Errorf("Add in exited = %v, want InvalidStateError", err)
	}
	if err := m.Metadata(map[string]any{"k": "v"}); !isInvalidState(err) {
		t.Errorf("Metadata in exited = %v, want InvalidStateError", err)
	}
}

func TestAddReusesIDToUpdate(t *testing.T) {
	m, _ := New(nil)
	mustAdd(t, m, resource.KindNetworkInterface, "eth0", resource.Options{"host_dev_name": "tap0"})
	mustAdd(t, m, resource.KindNetworkInterface, "eth0", resource.Options{"guest_mac": "AA:FC:00:00:00:01"})

	if len(m.collections[resource.KindNetworkInterface]) != 1 {
		t.Fatal("reusing an id must update, not add")
	}
	fields, _ := m.Member(resource.KindNetworkInterface, "eth0")
	if fields["host_dev_name"] != "tap0" || fields["guest_mac"] != "AA:FC:00:00:00:01" {
		t.Errorf("fields = %v", fields)
	}
}

func TestJailOnlyInInitial(t *testing.T) {
	m, _ := New(nil)
	if err := m.Jail(resource.Options{"uid": 1000, "gid": 1000}); err != nil {
		t.Fatalf("Jail failed: %v", err)
	}
	if !m.Jailed() {
		t.Error("jailer should be attached")
	}

	m.state = StateStarted
	if err := m.Jail(resource.Options{"uid": 1, "gid": 1}); !isInvalidState(err) {
		t.Errorf("Jail after start = %v, want InvalidStateError", err)
	}
}

func TestJailRequiresUIDAndGID(t *testing.T) {
	m, _ := New(nil)
	err := m.Jail(resource.Options{"uid": 1000})
	var invalid *resource.InvalidOptionError
	if !errors.As(err, &invalid) || invalid.Field != "gid" {
		t.Fatalf("err = %v, want missing gid", err)
	}
}

func TestCgroupHelpersNeedJailer(t *testing.T) {
	m, _ := New(nil)
	if err := m.Cgroup("cpu.shares", 512); !errors.Is(err, ErrNoJailer) {
		t.Errorf("Cgroup without jailer = %v, want ErrNoJailer", err)
	}

	if err := m.Jail(resource.Options{"uid": 1000, "gid": 1000}); err != nil {
		t.Fatalf("Jail failed: %v", err)
	}
	if err := m.Cgroup("cpu.shares", 512); err != nil {
		t.Errorf("Cgroup failed: %v", err)
	}
	if err := m.ResourceLimit("no-file", 2048); err != nil {
		t.Errorf("ResourceLimit failed: %v", err)
	}
}

func isInvalidState(err error) bool {
	var stateErr *InvalidStateError
	return errors.As(err, &stateErr)
}

func mustConfigureInState(t *testing.T, m *Machine, state State, kind string, opts resource.Options) {
	t.Helper()
	prev := m.state
	m.state = state
	if err := m.Configure(kind, opts); err != nil {
		t.Fatalf("Configure(%s) failed: %v", kind, err)
	}
	m.state = prev
}
