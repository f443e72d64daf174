package firecracker

import (
	"os"
	"path/filepath"

	"github.com/maxdollinger/fireside/pkg/resource"
)

// Recognized machine options (spec constructor / SetOption). The first five
// steer the SDK itself; the rest become firecracker CLI flags.
const (
	OptAPISock         = "api_sock"
	OptID              = "id"
	OptFirecrackerPath = "firecracker_path"
	OptConfigFile      = "config_file"
	OptNoAPI           = "no_api"
)

// optionsDef validates the machine option bag with the same schema
// machinery the resources use.
var optionsDef = &resource.Definition{
	Kind: "options",
	PreBoot: []resource.Field{
		{Name: OptAPISock, Type: resource.TypeString},
		{Name: OptID, Type: resource.TypeString},
		{Name: OptFirecrackerPath, Type: resource.TypeString},
		{Name: OptConfigFile, Type: resource.TypeString},
		{Name: OptNoAPI, Type: resource.TypeBool},

		{Name: "boot_timer", Type: resource.TypeBool},
		{Name: "no_seccomp", Type: resource.TypeBool},
		{Name: "show_level", Type: resource.TypeBool},
		{Name: "show_log_origin", Type: resource.TypeBool},
		{Name: "enable_pci", Type: resource.TypeBool},

		{Name: "http_api_max_payload_size", Type: resource.TypeNonNegInt},
		{Name: "mmds_size_limit", Type: resource.TypeNonNegInt},
		{Name: "start_time_us", Type: resource.TypeNonNegInt},
		{Name: "start_time_cpu_us", Type: resource.TypeNonNegInt},
		{Name: "parent_cpu_time_us", Type: resource.TypeNonNegInt},

		{Name: "level", Type: resource.TypeString},
		{Name: "log_path", Type: resource.TypeString},
		{Name: "metrics_path", Type: resource.TypeString},
		{Name: "metadata", Type: resource.TypeString},
		{Name: "module", Type: resource.TypeString},
		{Name: "seccomp_filter", Type: resource.TypeString},
	},
}

// sdkOptions are consumed by the SDK and never emitted as flags.
var sdkOptions = map[string]bool{
	OptAPISock:         true,
	OptID:              true,
	OptFirecrackerPath: true,
	OptConfigFile:      true,
	OptNoAPI:           true,
}

// EnvBinary overrides binary resolution when the firecracker_path option is
// unset.
const EnvBinary = "FIRECRACKER_BIN"

// EnvJailerBinary does the same for the jailer wrapper.
const EnvJailerBinary = "JAILER_BIN"

func defaultBinaryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	return filepath.Join(home, ".firecracker", "bin", "firecracker")
}

func defaultJailerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "/root"
	}
	return filepath.Join(home, ".firecracker", "bin", "jailer")
}

// binaryPath resolves the firecracker binary: option, then environment,
// then the default install location.
func (m *Machine) binaryPath() string {
	if v, ok := m.options[OptFirecrackerPath]; ok {
		if s, ok := resource.Resolve(v).(string); ok && s != "" {
			return s
		}
	}
	if env := os.Getenv(EnvBinary); env != "" {
		return env
	}
	return defaultBinaryPath()
}
