package resource

import "fmt"

// InvalidOptionError reports an option bag that fails schema validation:
// an unknown key, a missing required key, or a wrongly typed value.
type InvalidOptionError struct {
	Kind   string
	Field  string
	Reason string
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("%s: invalid option %q: %s", e.Kind, e.Field, e.Reason)
}

// ValidateCreate checks an option bag against the pre-boot schema,
// enforcing required fields. Used for first construction before boot.
func (d *Definition) ValidateCreate(opts Options) error {
	for _, f := range d.PreBoot {
		if !f.Required {
			continue
		}
		if _, ok := opts[f.Name]; !ok {
			return &InvalidOptionError{Kind: d.Kind, Field: f.Name, Reason: "required"}
		}
	}
	return d.validateFields(opts, false)
}

// ValidateUpdate checks an option bag against the schema selected by
// postBoot. Required fields are not enforced: updates merge over an
// existing value.
func (d *Definition) ValidateUpdate(opts Options, postBoot bool) error {
	return d.validateFields(opts, postBoot)
}

func (d *Definition) validateFields(opts Options, postBoot bool) error {
	for name, value := range opts {
		var f *Field
		if postBoot {
			f = d.postBootField(name)
		} else {
			f = d.preBootField(name)
		}
		if f == nil {
			reason := "unknown field"
			if postBoot && d.preBootField(name) != nil {
				reason = "not updatable after boot"
			}
			return &InvalidOptionError{Kind: d.Kind, Field: name, Reason: reason}
		}
		if _, lazy := value.(Deferred); lazy {
			continue
		}
		if err := checkType(d.Kind, f, value); err != nil {
			return err
		}
	}
	return nil
}

func checkType(kind string, f *Field, value any) error {
	switch f.Type {
	case TypeString:
		if _, ok := value.(string); !ok {
			return typeError(kind, f, value)
		}
	case TypeBool:
		if _, ok := value.(bool); !ok {
			return typeError(kind, f, value)
		}
	case TypeNonNegInt:
		n, ok := intValue(value)
		if !ok || n < 0 {
			return typeError(kind, f, value)
		}
	case TypePosInt:
		n, ok := intValue(value)
		if !ok || n < 1 {
			return typeError(kind, f, value)
		}
	case TypeStringList:
		if !isStringList(value) {
			return typeError(kind, f, value)
		}
	case TypeOpaque:
	}
	return nil
}

func typeError(kind string, f *Field, value any) error {
	return &InvalidOptionError{
		Kind:   kind,
		Field:  f.Name,
		Reason: fmt.Sprintf("expected %s, got %T", f.Type, value),
	}
}

// intValue normalises the integer representations that reach option bags:
// Go ints from callers, float64 from decoded JSON, int from decoded YAML.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint:
		return int64(n), true
	case uint32:
		return int64(n), true
	case uint64:
		return int64(n), true
	case float64:
		if n != float64(int64(n)) {
			return 0, false
		}
		return int64(n), true
	default:
		return 0, false
	}
}

func isStringList(v any) bool {
	switch list := v.(type) {
	case []string:
		return true
	case []any:
		for _, item := range list {
			if _, ok := item.(string); !ok {
				return false
			}
		}
		return true
	default:
		return false
	}
}
