// Package credential contains the structural checks applied to bearer credentials
// before they are used. Nothing in this package contacts the network; a credential
// that passes here may still be rejected by the authority.
package credential

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// MinLength is the shortest credential accepted as structurally valid.
const MinLength = 11

// Validator applies the structural predicate with a configurable minimum length.
type Validator struct {
	// MinLength overrides the package MinLength when positive.
	MinLength int
}

// Default returns a Validator using MinLength.
func Default() Validator {
	return Validator{MinLength: MinLength}
}

// IsStructurallyValid reports whether c is non-empty and at least MinLength long.
func (v Validator) IsStructurallyValid(c string) bool {
	if c == "" {
		return false
	}
	return len(c) >= v.minLength()
}

func (v Validator) minLength() int {
	if v.MinLength > 0 {
		return v.MinLength
	}
	return MinLength
}

// IsStructurallyValid applies the default Validator.
func IsStructurallyValid(c string) bool {
	return Default().IsStructurallyValid(c)
}

// Fingerprint returns a short non-reversible digest of c for log correlation.
// Empty input yields an empty fingerprint.
func Fingerprint(c string) string {
	if c == "" {
		return ""
	}
	return strconv.FormatUint(xxhash.Sum64String(c), 16)
}
