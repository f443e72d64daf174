package firecracker

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/maxdollinger/fireside/pkg/resource"
)

// Command is the materialised launch surface for one machine.
type Command struct {
	Binary     string
	Args       []string
	ConfigPath string
	SocketPath string
}

// DryRun is the builder's inspection view: the argv that would be spawned
// and the configuration apply would send, keyed by REST-path-style names.
// Applied resources are omitted.
type DryRun struct {
	Binary    string         `json:"binary"`
	Args      []string       `json:"args"`
	APISocket string         `json:"api_sock,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
}

type argPair struct {
	flag   string
	value  string
	hasVal bool
}

func sortArgs(pairs []argPair) []string {
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].flag < pairs[j].flag })
	out := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		out = append(out, p.flag)
		if p.hasVal {
			out = append(out, p.value)
		}
	}
	return out
}

// Command materialises the binary and argv for this machine. When no_api is
// set and no config file was supplied, the current declarative spec is
// serialised to <tmp>/<id>.config.json and passed via --config-file.
func (m *Machine) Command() (*Command, error) {
	configPath := m.configFile
	if m.noAPI && configPath == "" {
		path, err := m.writeAutoConfig()
		if err != nil {
			return nil, err
		}
		m.autoConfig = path
		configPath = path
	}

	args := m.firecrackerArgs(configPath, !m.Jailed())
	if m.jailer == nil {
		return &Command{
			Binary:     m.binaryPath(),
			Args:       args,
			ConfigPath: configPath,
			SocketPath: m.socketPath,
		}, nil
	}

	outer := m.jailerArgs()
	outer = append(outer, "--")
	outer = append(outer, args...)
	return &Command{
		Binary:     m.jailer.binary(),
		Args:       outer,
		ConfigPath: configPath,
		SocketPath: m.socketPath,
	}, nil
}

// DryRun returns the inspection view without touching the filesystem.
func (m *Machine) DryRun() *DryRun {
	configPath := m.configFile
	if m.noAPI && configPath == "" {
		configPath = m.autoConfigPath()
	}
	args := m.firecrackerArgs(configPath, !m.Jailed())
	if m.jailer != nil {
		outer := m.jailerArgs()
		outer = append(outer, "--")
		args = append(outer, args...)
	}

	binary := m.binaryPath()
	if m.jailer != nil {
		binary = m.jailer.binary()
	}
	return &DryRun{
		Binary:    binary,
		Args:      args,
		APISocket: m.socketPath,
		Config:    m.pendingConfig(),
	}
}

// firecrackerArgs emits the recognized CLI options plus the id, API socket
// and config file arguments, sorted by flag name. The jailer owns --id, so
// includeID is false when jailed.
func (m *Machine) firecrackerArgs(configPath string, includeID bool) []string {
	var pairs []argPair
	for name, value := range m.options {
		if sdkOptions[name] {
			continue
		}
		flag := "--" + strings.ReplaceAll(name, "_", "-")
		switch v := resource.Resolve(value).(type) {
		case bool:
			if v {
				pairs = append(pairs, argPair{flag: flag})
			}
		default:
			pairs = append(pairs, argPair{flag: flag, value: fmt.Sprint(v), hasVal: true})
		}
	}

	if includeID {
		pairs = append(pairs, argPair{flag: "--id", value: m.id, hasVal: true})
	}
	if m.noAPI {
		pairs = append(pairs, argPair{flag: "--no-api"})
	} else {
		pairs = append(pairs, argPair{flag: "--api-sock", value: m.socketPath, hasVal: true})
	}
	if configPath != "" {
		pairs = append(pairs, argPair{flag: "--config-file", value: configPath, hasVal: true})
	}
	return sortArgs(pairs)
}

// jailerArgs emits the jailer wrapper's own argv: --id and --exec-file
// first, then the spec-derived flags sorted by name.
func (m *Machine) jailerArgs() []string {
	j := m.jailer
	pairs := []argPair{
		{flag: "--uid", value: fmt.Sprint(resource.Resolve(j.fields["uid"])), hasVal: true},
		{flag: "--gid", value: fmt.Sprint(resource.Resolve(j.fields["gid"])), hasVal: true},
		{flag: "--cgroup-version", value: j.str("cgroup_version", defaultCgroupVersion), hasVal: true},
		{flag: "--chroot-base-dir", value: j.str("chroot_base_dir", defaultChrootBase), hasVal: true},
	}
	if v := j.str("parent_cgroup", ""); v != "" {
		pairs = append(pairs, argPair{flag: "--parent-cgroup", value: v, hasVal: true})
	}
	if v := j.str("netns", ""); v != "" {
		pairs = append(pairs, argPair{flag: "--netns", value: v, hasVal: true})
	}
	if j.boolField("daemonize") {
		pairs = append(pairs, argPair{flag: "--daemonize"})
	}
	if j.boolField("new_pid_ns") {
		pairs = append(pairs, argPair{flag: "--new-pid-ns"})
	}
	for _, k := range sortedKeys(j.cgroups) {
		pairs = append(pairs, argPair{flag: "--cgroup", value: fmt.Sprintf("%s=%v", k, j.cgroups[k]), hasVal: true})
	}
	for _, k := range sortedKeys(j.limits) {
		pairs = append(pairs, argPair{flag: "--resource-limit", value: fmt.Sprintf("%s=%v", k, j.limits[k]), hasVal: true})
	}

	args := []string{"--id", m.id, "--exec-file", m.binaryPath()}
	return append(args, sortArgs(pairs)...)
}

// pendingConfig collects every not-yet-applied resource in the layout the
// REST API expects: kebab-case top-level keys, the resources' own
// snake_case fields inside.
func (m *Machine) pendingConfig() map[string]any {
	out := make(map[string]any)
	for kind, v := range m.singletons {
		if v.Applied() {
			continue
		}
		if kind == resource.KindMMDS {
			if data, ok := v.Body()["data"]; ok {
				out["mmds"] = data
			}
			continue
		}
		out[strings.ReplaceAll(kind, "_", "-")] = map[string]any(v.Body())
	}

	collections := map[string]string{
		resource.KindDrive:            "drives",
		resource.KindNetworkInterface: "network-interfaces",
		resource.KindPmem:             "pmems",
	}
	for kind, key := range collections {
		members := m.collections[kind]
		var bodies []map[string]any
		for _, id := range sortedMemberIDs(members) {
			v := members[id]
			if v.Applied() {
				continue
			}
			bodies = append(bodies, map[string]any(v.Body()))
		}
		if len(bodies) > 0 {
			out[key] = bodies
		}
	}
	return out
}

func (m *Machine) autoConfigPath() string {
	return filepath.Join(os.TempDir(), m.id+".config.json")
}

func (m *Machine) writeAutoConfig() (string, error) {
	data, err := json.MarshalIndent(m.pendingConfig(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	path := m.autoConfigPath()
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write config file: %w", err)
	}
	return path, nil
}

// writeFileAtomic writes via a temp file and rename so a crashed start
// never leaves a truncated launch config behind.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func sortedKeys(m map[string]any) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func sortedMemberIDs(members map[string]*resource.Value) []string {
	ids := lo.Keys(members)
	sort.Strings(ids)
	return ids
}
