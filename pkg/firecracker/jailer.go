package firecracker

import (
	"os"

	"github.com/maxdollinger/fireside/pkg/resource"
)

// Jailer configures the sandboxing wrapper: chroot, privilege drop,
// cgroups and rlimits. When attached, the command builder launches the
// jailer binary and hands it the firecracker argv after a "--" separator.
type Jailer struct {
	fields  resource.Options
	cgroups map[string]any
	limits  map[string]any
}

const (
	defaultCgroupVersion = "1"
	defaultChrootBase    = "/srv/jailer"
)

var jailerDef = &resource.Definition{
	Kind: "jailer",
	PreBoot: []resource.Field{
		{Name: "uid", Type: resource.TypeNonNegInt, Required: true},
		{Name: "gid", Type: resource.TypeNonNegInt, Required: true},
		{Name: "parent_cgroup", Type: resource.TypeString},
		{Name: "cgroups", Type: resource.TypeOpaque},
		{Name: "netns", Type: resource.TypeString},
		{Name: "resource_limits", Type: resource.TypeOpaque},
		{Name: "daemonize", Type: resource.TypeBool},
		{Name: "new_pid_ns", Type: resource.TypeBool},
		{Name: "jailer_path", Type: resource.TypeString},
		{Name: "cgroup_version", Type: resource.TypeString},
		{Name: "chroot_base_dir", Type: resource.TypeString},
	},
}

// Jail attaches a jailer spec to the machine. Legal only before start.
// uid and gid are required; cgroup_version defaults to "1" and
// chroot_base_dir to /srv/jailer.
func (m *Machine) Jail(opts resource.Options) error {
	if m.state != StateInitial {
		return &InvalidStateError{State: m.state, Op: "jail"}
	}
	if err := jailerDef.ValidateCreate(opts); err != nil {
		return err
	}

	j := &Jailer{
		fields:  make(resource.Options, len(opts)),
		cgroups: make(map[string]any),
		limits:  make(map[string]any),
	}
	for k, v := range opts {
		j.fields[k] = v
	}
	if cg, ok := opts["cgroups"].(map[string]any); ok {
		for k, v := range cg {
			j.cgroups[k] = v
		}
	}
	if rl, ok := opts["resource_limits"].(map[string]any); ok {
		for k, v := range rl {
			j.limits[k] = v
		}
	}
	m.jailer = j
	return nil
}

// Cgroup sets one cgroup entry on the attached jailer.
func (m *Machine) Cgroup(name string, value any) error {
	if m.state != StateInitial {
		return &InvalidStateError{State: m.state, Op: "cgroup"}
	}
	if m.jailer == nil {
		return ErrNoJailer
	}
	m.jailer.cgroups[name] = value
	return nil
}

// ResourceLimit sets one rlimit entry on the attached jailer.
func (m *Machine) ResourceLimit(name string, value any) error {
	if m.state != StateInitial {
		return &InvalidStateError{State: m.state, Op: "resource_limit"}
	}
	if m.jailer == nil {
		return ErrNoJailer
	}
	m.jailer.limits[name] = value
	return nil
}

// Jailed reports whether a jailer is attached.
func (m *Machine) Jailed() bool { return m.jailer != nil }

func (j *Jailer) str(name, fallback string) string {
	if v, ok := j.fields[name].(string); ok && v != "" {
		return v
	}
	return fallback
}

func (j *Jailer) boolField(name string) bool {
	v, _ := j.fields[name].(bool)
	return v
}

// binary resolves the jailer wrapper: jailer_path option, then
// environment, then the default install location.
func (j *Jailer) binary() string {
	if p := j.str("jailer_path", ""); p != "" {
		return p
	}
	if env := os.Getenv(EnvJailerBinary); env != "" {
		return env
	}
	return defaultJailerPath()
}
