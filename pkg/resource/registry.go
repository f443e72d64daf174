package resource

import "fmt"

// Resource kinds.
const (
	KindBalloon          = "balloon"
	KindBootSource       = "boot_source"
	KindCPUConfig        = "cpu_config"
	KindDrive            = "drive"
	KindEntropy          = "entropy"
	KindLogger           = "logger"
	KindMachineConfig    = "machine_config"
	KindMetrics          = "metrics"
	KindMMDS             = "mmds"
	KindMMDSConfig       = "mmds_config"
	KindNetworkInterface = "network_interface"
	KindPmem             = "pmem"
	KindSerial           = "serial"
	KindVsock            = "vsock"
)

// BalloonStatisticsEndpoint receives stats_polling_interval_s updates on a
// running microVM; amount_mib updates keep going to the balloon endpoint.
const BalloonStatisticsEndpoint = "/balloon/statistics"

var definitions = map[string]*Definition{
	KindBootSource: {
		Kind:     KindBootSource,
		Endpoint: "/boot-source",
		PreBoot: []Field{
			{Name: "kernel_image_path", Type: TypeString, Required: true},
			{Name: "boot_args", Type: TypeString},
			{Name: "initrd_path", Type: TypeString},
		},
	},
	KindMachineConfig: {
		Kind:     KindMachineConfig,
		Endpoint: "/machine-config",
		PreBoot: []Field{
			{Name: "vcpu_count", Type: TypePosInt, Required: true},
			{Name: "mem_size_mib", Type: TypePosInt, Required: true},
			{Name: "smt", Type: TypeBool},
			{Name: "track_dirty_pages", Type: TypeBool},
			{Name: "huge_pages", Type: TypeString},
			{Name: "cpu_template", Type: TypeString},
		},
		PostBoot: []Field{
			{Name: "vcpu_count", Type: TypePosInt},
			{Name: "mem_size_mib", Type: TypePosInt},
			{Name: "smt", Type: TypeBool},
			{Name: "track_dirty_pages", Type: TypeBool},
			{Name: "huge_pages", Type: TypeString},
			{Name: "cpu_template", Type: TypeString},
		},
	},
	KindBalloon: {
		Kind:     KindBalloon,
		Endpoint: "/balloon",
		PreBoot: []Field{
			{Name: "amount_mib", Type: TypeNonNegInt, Required: true},
			{Name: "deflate_on_oom", Type: TypeBool, Required: true},
			{Name: "stats_polling_interval_s", Type: TypeNonNegInt},
		},
		PostBoot: []Field{
			{Name: "amount_mib", Type: TypeNonNegInt},
			{Name: "stats_polling_interval_s", Type: TypeNonNegInt},
		},
	},
	KindCPUConfig: {
		Kind:     KindCPUConfig,
		Endpoint: "/cpu-config",
		PreBoot: []Field{
			{Name: "cpuid_modifiers", Type: TypeOpaque},
			{Name: "msr_modifiers", Type: TypeOpaque},
			{Name: "reg_modifiers", Type: TypeOpaque},
			{Name: "vcpu_features", Type: TypeOpaque},
			{Name: "kvm_capabilities", Type: TypeOpaque},
		},
	},
	KindEntropy: {
		Kind:     KindEntropy,
		Endpoint: "/entropy",
		PreBoot: []Field{
			{Name: "rate_limiter", Type: TypeOpaque},
		},
	},
	KindLogger: {
		Kind:     KindLogger,
		Endpoint: "/logger",
		PreBoot: []Field{
			{Name: "level", Type: TypeString},
			{Name: "log_path", Type: TypeString},
			{Name: "show_level", Type: TypeBool},
			{Name: "show_log_origin", Type: TypeBool},
			{Name: "module", Type: TypeString},
		},
	},
	KindMetrics: {
		Kind:     KindMetrics,
		Endpoint: "/metrics",
		PreBoot: []Field{
			{Name: "metrics_path", Type: TypeString, Required: true},
		},
	},
	KindMMDSConfig: {
		Kind:     KindMMDSConfig,
		Endpoint: "/mmds/config",
		PreBoot: []Field{
			{Name: "network_interfaces", Type: TypeStringList, Required: true},
			{Name: "version", Type: TypeString},
			{Name: "ipv4_address", Type: TypeString},
			{Name: "imds_compat", Type: TypeBool},
		},
	},
	KindMMDS: {
		Kind:     KindMMDS,
		Endpoint: "/mmds",
		PreBoot: []Field{
			{Name: "data", Type: TypeOpaque, Required: true},
		},
		PostBoot: []Field{
			{Name: "data", Type: TypeOpaque},
		},
	},
	KindSerial: {
		Kind:     KindSerial,
		Endpoint: "/serial",
		PreBoot: []Field{
			{Name: "output_path", Type: TypeString},
		},
	},
	KindVsock: {
		Kind:     KindVsock,
		Endpoint: "/vsock",
		PreBoot: []Field{
			{Name: "guest_cid", Type: TypePosInt, Required: true},
			{Name: "uds_path", Type: TypeString, Required: true},
			{Name: "vsock_id", Type: TypeString},
		},
	},
	KindDrive: {
		Kind:     KindDrive,
		Endpoint: "/drives",
		IDField:  "drive_id",
		PreBoot: []Field{
			{Name: "drive_id", Type: TypeString, Required: true},
			{Name: "is_root_device", Type: TypeBool, Required: true},
			{Name: "path_on_host", Type: TypeString},
			{Name: "partuuid", Type: TypeString},
			{Name: "cache_type", Type: TypeString},
			{Name: "is_read_only", Type: TypeBool},
			{Name: "rate_limiter", Type: TypeOpaque},
			{Name: "io_engine", Type: TypeString},
			{Name: "socket", Type: TypeString},
		},
		PostBoot: []Field{
			{Name: "drive_id", Type: TypeString},
			{Name: "path_on_host", Type: TypeString},
			{Name: "rate_limiter", Type: TypeOpaque},
		},
	},
	KindNetworkInterface: {
		Kind:     KindNetworkInterface,
		Endpoint: "/network-interfaces",
		IDField:  "iface_id",
		PreBoot: []Field{
			{Name: "iface_id", Type: TypeString, Required: true},
			{Name: "host_dev_name", Type: TypeString, Required: true},
			{Name: "guest_mac", Type: TypeString},
			{Name: "rx_rate_limiter", Type: TypeOpaque},
			{Name: "tx_rate_limiter", Type: TypeOpaque},
		},
		PostBoot: []Field{
			{Name: "iface_id", Type: TypeString},
			{Name: "rx_rate_limiter", Type: TypeOpaque},
			{Name: "tx_rate_limiter", Type: TypeOpaque},
		},
	},
	KindPmem: {
		Kind:     KindPmem,
		Endpoint: "/pmem",
		IDField:  "id",
		PreBoot: []Field{
			{Name: "id", Type: TypeString, Required: true},
			{Name: "path_on_host", Type: TypeString, Required: true},
			{Name: "root_device", Type: TypeBool},
			{Name: "read_only", Type: TypeBool},
		},
	},
}

// Lookup returns the definition for kind.
func Lookup(kind string) (*Definition, error) {
	d, ok := definitions[kind]
	if !ok {
		return nil, fmt.Errorf("unknown resource kind %q", kind)
	}
	return d, nil
}

// Kinds returns all registered resource kinds.
func Kinds() []string {
	out := make([]string, 0, len(definitions))
	for k := range definitions {
		out = append(out, k)
	}
	return out
}
