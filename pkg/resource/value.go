package resource

import "fmt"

// Value is one configured resource: its declarative fields plus the applied
// flag recording whether the microVM has been told about the current fields.
type Value struct {
	def     *Definition
	fields  Options
	applied bool
}

// New builds a Value from an option bag. Pre-boot construction enforces
// required fields; post-boot construction validates against the post-boot
// schema without the required check.
func New(def *Definition, opts Options, postBoot bool) (*Value, error) {
	if postBoot {
		if err := def.ValidateUpdate(opts, true); err != nil {
			return nil, err
		}
	} else {
		if err := def.ValidateCreate(opts); err != nil {
			return nil, err
		}
	}
	v := &Value{def: def, fields: make(Options, len(opts))}
	for k, val := range opts {
		v.fields[k] = val
	}
	return v, nil
}

// Merge validates opts against the schema selected by postBoot and merges
// them over the existing fields, resetting the applied flag. On validation
// failure the value is unchanged.
func (v *Value) Merge(opts Options, postBoot bool) error {
	if err := v.def.ValidateUpdate(opts, postBoot); err != nil {
		return err
	}
	for k, val := range opts {
		v.fields[k] = val
	}
	v.applied = false
	return nil
}

func (v *Value) Kind() string     { return v.def.Kind }
func (v *Value) Endpoint() string { return v.def.Endpoint }
func (v *Value) Applied() bool    { return v.applied }
func (v *Value) MarkApplied()     { v.applied = true }
func (v *Value) ResetApplied()    { v.applied = false }

// ID returns the member id for collection resources.
func (v *Value) ID() string {
	if v.def.IDField == "" {
		return ""
	}
	id, _ := v.fields[v.def.IDField].(string)
	return id
}

// MemberEndpoint returns the REST path for this value, including the member
// id segment for collection resources.
func (v *Value) MemberEndpoint() string {
	if !v.def.Collection() {
		return v.def.Endpoint
	}
	return fmt.Sprintf("%s/%s", v.def.Endpoint, v.ID())
}

// Get returns one field value.
func (v *Value) Get(name string) (any, bool) {
	val, ok := v.fields[name]
	return val, ok
}

// Fields returns a copy of all fields.
func (v *Value) Fields() Options {
	out := make(Options, len(v.fields))
	for k, val := range v.fields {
		out[k] = Resolve(val)
	}
	return out
}

// Body is the full declarative payload for a PUT.
func (v *Value) Body() Options { return v.Fields() }

// PatchBody is the payload for a post-boot update: only the fields present
// on the value that the post-boot schema still accepts.
func (v *Value) PatchBody() Options {
	out := make(Options)
	for _, f := range v.def.PostBoot {
		if val, ok := v.fields[f.Name]; ok {
			out[f.Name] = Resolve(val)
		}
	}
	return out
}
