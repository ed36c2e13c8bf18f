package graph

// Object is one normalized source object: a plain attribute map.
type Object map[string]any

// Well-known attribute names.
const (
	AttrID               = "id"
	AttrType             = "type"
	AttrSourceRef        = "source_ref"
	AttrTargetRef        = "target_ref"
	AttrRelationshipType = "relationship_type"
	AttrCreated          = "created"
	AttrModified         = "modified"
	AttrSpecVersion      = "spec_version"
)

// Has reports whether the attribute is present, whatever its value.
func (o Object) Has(key string) bool {
	_, ok := o[key]
	return ok
}

// Lookup returns the attribute as a string. ok is false when the attribute
// is absent or not a string.
func (o Object) Lookup(key string) (value string, ok bool) {
	v, present := o[key]
	if !present {
		return "", false
	}
	s, isString := v.(string)
	return s, isString
}

// Str returns the attribute as a string, or "" when absent or not a string.
func (o Object) Str(key string) string {
	s, _ := o.Lookup(key)
	return s
}

// Clone returns a shallow copy of the object.
func (o Object) Clone() Object {
	if o == nil {
		return nil
	}
	out := make(Object, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Batch is the ordered list of objects produced by one adapter invocation.
// It is the scope of referential-integrity checking.
type Batch []Object
