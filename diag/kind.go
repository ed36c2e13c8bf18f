package diag

// Kind classifies a diagnostic by the rule family that produced it.
type Kind string

const (
	KindConfigurationError Kind = "ConfigurationError"
	KindSourceUnavailable  Kind = "SourceUnavailable"
	KindMalformedSource    Kind = "MalformedSource"
	KindSchemaViolation    Kind = "SchemaViolation"
	KindDanglingReference  Kind = "DanglingReference"
	KindUnrecognizedTriple Kind = "UnrecognizedTriple"
	KindDuplicateNode      Kind = "DuplicateNode"
)

// IsValid returns true if the kind is known.
func (k Kind) IsValid() bool {
	switch k {
	case KindConfigurationError,
		KindSourceUnavailable,
		KindMalformedSource,
		KindSchemaViolation,
		KindDanglingReference,
		KindUnrecognizedTriple,
		KindDuplicateNode:
		return true
	default:
		return false
	}
}

// IsFatal reports whether the kind aborts a whole run.
func (k Kind) IsFatal() bool {
	switch k {
	case KindConfigurationError, KindSourceUnavailable, KindMalformedSource:
		return true
	default:
		return false
	}
}

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// AllKinds returns every kind in a stable order.
func AllKinds() []Kind {
	return []Kind{
		KindConfigurationError,
		KindSourceUnavailable,
		KindMalformedSource,
		KindSchemaViolation,
		KindDanglingReference,
		KindUnrecognizedTriple,
		KindDuplicateNode,
	}
}
