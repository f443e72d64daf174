// Package firecracker builds declarative microVM specifications and drives
// them through the Firecracker lifecycle: spawn the process, reconcile the
// spec over the REST API, boot, pause, snapshot, stop.
package firecracker

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maxdollinger/fireside/pkg/process"
	"github.com/maxdollinger/fireside/pkg/resource"
	"github.com/maxdollinger/fireside/pkg/utils"
)

// Slot keys used for collection resources in error records.
const (
	slotDrives            = "drives"
	slotNetworkInterfaces = "network_interfaces"
	slotPmems             = "pmems"
)

var collectionSlots = map[string]string{
	resource.KindDrive:            slotDrives,
	resource.KindNetworkInterface: slotNetworkInterfaces,
	resource.KindPmem:             slotPmems,
}

// Machine is the root aggregate: one declarative microVM specification plus
// the handles to its external process and API socket. A Machine is meant
// for single-owner use; it performs no internal locking.
type Machine struct {
	id         string
	socketPath string
	noAPI      bool
	options    resource.Options
	configFile string
	// autoConfig is the synthesized launch config path, removed on stop.
	autoConfig string

	singletons  map[string]*resource.Value
	collections map[string]map[string]*resource.Value
	jailer      *Jailer

	state State
	proc  *process.Supervisor
	api   API
	errs  []ResourceError

	tracing *Tracing
	logger  *slog.Logger
}

// Option customises a new Machine.
type Option func(*Machine)

// WithLogger sets the machine's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) { m.logger = l }
}

// WithAPI injects a prepared API client, replacing the one the machine
// would build for its socket. Intended for tests and custom transports.
func WithAPI(api API) Option {
	return func(m *Machine) { m.api = api }
}

// New builds a Machine from an option bag (may be nil). Recognized options
// are listed in options.go; anything else fails validation.
func New(options resource.Options, opts ...Option) (*Machine, error) {
	if options == nil {
		options = resource.Options{}
	}
	if err := optionsDef.ValidateUpdate(options, false); err != nil {
		return nil, err
	}

	m := &Machine{
		options:     make(resource.Options, len(options)),
		singletons:  make(map[string]*resource.Value),
		collections: make(map[string]map[string]*resource.Value),
		state:       StateInitial,
		logger:      slog.Default(),
	}
	for k, v := range options {
		m.options[k] = v
	}

	suffix := utils.Suffix()
	if id, ok := m.options[OptID].(string); ok && id != "" {
		m.id = id
	} else {
		m.id = "anonymous-instance-" + suffix
	}

	if noAPI, ok := m.options[OptNoAPI].(bool); ok && noAPI {
		m.noAPI = true
	} else if sock, ok := m.options[OptAPISock].(string); ok && sock != "" {
		m.socketPath = sock
	} else {
		m.socketPath = filepath.Join(os.TempDir(), fmt.Sprintf("firecracker.%s.sock", suffix))
	}

	if cf, ok := m.options[OptConfigFile].(string); ok {
		m.configFile = cf
	}

	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// ID returns the instance id.
func (m *Machine) ID() string { return m.id }

// State returns the current lifecycle state.
func (m *Machine) State() State { return m.state }

// SocketPath returns the API socket path; empty when running without an
// API.
func (m *Machine) SocketPath() string { return m.socketPath }

// PID returns the supervised process id, or 0 before start.
func (m *Machine) PID() int {
	if m.proc == nil {
		return 0
	}
	return m.proc.Pid()
}

// Errors returns the recorded per-resource failures, most recent first.
func (m *Machine) Errors() []ResourceError {
	out := make([]ResourceError, len(m.errs))
	copy(out, m.errs)
	return out
}

// ClearErrors drops all recorded failures.
func (m *Machine) ClearErrors() { m.errs = nil }

func (m *Machine) recordError(slot string, err error) {
	m.errs = append([]ResourceError{{Resource: slot, Err: err}}, m.errs...)
}

// SetOption sets one machine option. Legal only before start.
func (m *Machine) SetOption(name string, value any) error {
	if m.state != StateInitial {
		return &InvalidStateError{State: m.state, Op: "set_option"}
	}
	if err := optionsDef.ValidateUpdate(resource.Options{name: value}, false); err != nil {
		return err
	}
	m.options[name] = value
	switch name {
	case OptID:
		if s, ok := value.(string); ok {
			m.id = s
		}
	case OptAPISock:
		if s, ok := value.(string); ok {
			m.socketPath = s
		}
	case OptNoAPI:
		if b, ok := value.(bool); ok {
			m.noAPI = b
			if b {
				m.socketPath = ""
			}
		}
	case OptConfigFile:
		if s, ok := value.(string); ok {
			m.configFile = s
		}
	}
	return nil
}

// Configure creates or updates a singleton resource. Field legality depends
// on the state: every pre-boot field before boot, only the post-boot schema
// afterwards. No mutation is legal once the machine has exited.
func (m *Machine) Configure(kind string, opts resource.Options) error {
	if m.state == StateExited {
		return &InvalidStateError{State: m.state, Op: "configure"}
	}
	def, err := resource.Lookup(kind)
	if err != nil {
		return &InvalidResourceError{Kind: kind}
	}
	if def.Collection() {
		return fmt.Errorf("%s is a collection resource, use Add", kind)
	}

	postBoot := m.state.postBoot()
	if existing, ok := m.singletons[kind]; ok {
		return existing.Merge(opts, postBoot)
	}
	v, err := resource.New(def, opts, postBoot)
	if err != nil {
		return err
	}
	m.singletons[kind] = v
	return nil
}

// Add creates or updates a collection member (drive, network interface,
// pmem). Reusing an id updates the existing member; creating a new member
// is only legal before boot.
func (m *Machine) Add(kind, id string, opts resource.Options) error {
	if m.state == StateExited {
		return &InvalidStateError{State: m.state, Op: "add"}
	}
	def, err := resource.Lookup(kind)
	if err != nil {
		return &InvalidResourceError{Kind: kind}
	}
	if !def.Collection() {
		return fmt.Errorf("%s is not a collection resource, use Configure", kind)
	}
	if id == "" {
		return &resource.InvalidOptionError{Kind: kind, Field: def.IDField, Reason: "required"}
	}

	members, ok := m.collections[kind]
	if !ok {
		members = make(map[string]*resource.Value)
		m.collections[kind] = members
	}

	postBoot := m.state.postBoot()
	merged := make(resource.Options, len(opts)+1)
	for k, v := range opts {
		merged[k] = v
	}
	merged[def.IDField] = id

	if existing, ok := members[id]; ok {
		return existing.Merge(merged, postBoot)
	}
	if postBoot {
		return fmt.Errorf("%s %q: %w", kind, id, ErrPostBootAdd)
	}
	v, err := resource.New(def, merged, false)
	if err != nil {
		return err
	}
	members[id] = v
	return nil
}

// Resource returns a copy of a singleton resource's fields.
func (m *Machine) Resource(kind string) (resource.Options, bool) {
	v, ok := m.singletons[kind]
	if !ok {
		return nil, false
	}
	return v.Fields(), true
}

// Member returns a copy of a collection member's fields.
func (m *Machine) Member(kind, id string) (resource.Options, bool) {
	v, ok := m.collections[kind][id]
	if !ok {
		return nil, false
	}
	return v.Fields(), true
}

// Applied reports whether a singleton resource has been applied to the
// microVM.
func (m *Machine) Applied(kind string) bool {
	v, ok := m.singletons[kind]
	return ok && v.Applied()
}

// MemberApplied reports whether a collection member has been applied.
func (m *Machine) MemberApplied(kind, id string) bool {
	v, ok := m.collections[kind][id]
	return ok && v.Applied()
}
