// Package specfile loads declarative microVM specs from YAML files. The
// document layout mirrors the builder's dry-run view: kebab-case top-level
// keys, snake_case resource fields inside. The one exception is the MMDS
// document, which goes under "metadata" rather than "mmds".
package specfile

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/maxdollinger/fireside/pkg/firecracker"
	"github.com/maxdollinger/fireside/pkg/resource"
)

// File is one parsed spec document.
type File struct {
	ID      string         `yaml:"id"`
	Options map[string]any `yaml:"options"`

	BootSource    map[string]any `yaml:"boot-source"`
	MachineConfig map[string]any `yaml:"machine-config"`
	Balloon       map[string]any `yaml:"balloon"`
	CPUConfig     map[string]any `yaml:"cpu-config"`
	Entropy       map[string]any `yaml:"entropy"`
	Logger        map[string]any `yaml:"logger"`
	Metrics       map[string]any `yaml:"metrics"`
	MMDSConfig    map[string]any `yaml:"mmds-config"`
	Serial        map[string]any `yaml:"serial"`
	Vsock         map[string]any `yaml:"vsock"`
	Metadata      map[string]any `yaml:"metadata"`

	Drives            []map[string]any `yaml:"drives"`
	NetworkInterfaces []map[string]any `yaml:"network-interfaces"`
	Pmems             []map[string]any `yaml:"pmems"`

	Jailer map[string]any `yaml:"jailer"`
}

// Load reads and builds a Machine from the YAML file at path.
func Load(path string, opts ...firecracker.Option) (*firecracker.Machine, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read spec file: %w", err)
	}
	return Parse(data, opts...)
}

// Parse builds a Machine from YAML bytes. Unknown top-level keys are
// rejected; resource fields go through the normal schema validation.
func Parse(data []byte, opts ...firecracker.Option) (*firecracker.Machine, error) {
	var f File
	if err := unmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parse spec file: %w", err)
	}
	return f.Build(opts...)
}

// Build turns the parsed document into a validated Machine.
func (f *File) Build(opts ...firecracker.Option) (*firecracker.Machine, error) {
	options := resource.Options{}
	for k, v := range f.Options {
		options[k] = v
	}
	if f.ID != "" {
		options[firecracker.OptID] = f.ID
	}

	m, err := firecracker.New(options, opts...)
	if err != nil {
		return nil, err
	}

	singletons := map[string]map[string]any{
		resource.KindBootSource:    f.BootSource,
		resource.KindMachineConfig: f.MachineConfig,
		resource.KindBalloon:       f.Balloon,
		resource.KindCPUConfig:     f.CPUConfig,
		resource.KindEntropy:       f.Entropy,
		resource.KindLogger:        f.Logger,
		resource.KindMetrics:       f.Metrics,
		resource.KindMMDSConfig:    f.MMDSConfig,
		resource.KindSerial:        f.Serial,
		resource.KindVsock:         f.Vsock,
	}
	for kind, fields := range singletons {
		if fields == nil {
			continue
		}
		if err := m.Configure(kind, fields); err != nil {
			return nil, err
		}
	}

	collections := []struct {
		kind    string
		members []map[string]any
	}{
		{resource.KindDrive, f.Drives},
		{resource.KindNetworkInterface, f.NetworkInterfaces},
		{resource.KindPmem, f.Pmems},
	}
	for _, c := range collections {
		def, _ := resource.Lookup(c.kind)
		for _, member := range c.members {
			id, _ := member[def.IDField].(string)
			if err := m.Add(c.kind, id, member); err != nil {
				return nil, err
			}
		}
	}

	if f.Metadata != nil {
		if err := m.Metadata(f.Metadata); err != nil {
			return nil, err
		}
	}
	if f.Jailer != nil {
		if err := m.Jail(f.Jailer); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}
