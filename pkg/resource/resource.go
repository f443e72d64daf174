// Package resource models the configurable pieces of a Firecracker microVM.
//
// Every resource kind carries two field schemas: the pre-boot schema, valid
// until the guest has booted, and the (usually smaller) post-boot schema of
// fields the API still accepts as updates on a running microVM. A resource
// with an empty post-boot schema can only be configured before boot.
package resource

// Options is a bag of declarative fields for one resource, keyed by the
// snake_case field names the Firecracker API uses on the wire.
type Options map[string]any

// FieldType describes the primitive expected for a field value.
type FieldType int

const (
	TypeString FieldType = iota
	TypeBool
	TypeNonNegInt
	TypePosInt
	TypeStringList
	// TypeOpaque accepts any JSON-compatible value, e.g. rate limiters and
	// cpu template modifier lists.
	TypeOpaque
)

func (t FieldType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	case TypeNonNegInt:
		return "non-negative integer"
	case TypePosInt:
		return "positive integer"
	case TypeStringList:
		return "string list"
	case TypeOpaque:
		return "opaque"
	default:
		return "unknown"
	}
}

// Field is one entry of a schema.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Definition is the static description of one resource kind.
type Definition struct {
	// Kind is the snake_case resource name, e.g. "boot_source".
	Kind string

	// Endpoint is the REST path the resource is written to. Collection
	// members append "/<id>".
	Endpoint string

	// IDField names the field holding a collection member's unique id
	// ("drive_id", "iface_id", "id"). Empty for singletons.
	IDField string

	PreBoot  []Field
	PostBoot []Field
}

// Collection reports whether the resource is an id-keyed collection.
func (d *Definition) Collection() bool { return d.IDField != "" }

func (d *Definition) preBootField(name string) *Field {
	return findField(d.PreBoot, name)
}

func (d *Definition) postBootField(name string) *Field {
	return findField(d.PostBoot, name)
}

func findField(schema []Field, name string) *Field {
	for i := range schema {
		if schema[i].Name == name {
			return &schema[i]
		}
	}
	return nil
}

// Deferred is a lazily evaluated option value, resolved when the value is
// actually consumed (e.g. at command build time). Deferred values skip type
// validation, and the resolved value is not type-checked either.
type Deferred func() any

// Resolve unwraps v if it is a Deferred value.
func Resolve(v any) any {
	if d, ok := v.(Deferred); ok {
		return d()
	}
	return v
}
