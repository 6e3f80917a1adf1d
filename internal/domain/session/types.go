// Package session owns the single authenticated session of a scope: the bearer
// credential, the opaque principal record, and a local correlation tag.
package session

import (
	"bytes"
	"encoding/json"
)

// Principal is the authenticated user's profile as returned by the authority.
// The session core stores and returns it verbatim and never interprets it.
type Principal json.RawMessage

// PrincipalFrom marshals v into a Principal. A nil v yields an empty Principal.
func PrincipalFrom(v any) (Principal, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Principal(data), nil
}

// IsZero reports whether the principal is absent. A JSON null counts as absent.
func (p Principal) IsZero() bool {
	trimmed := bytes.TrimSpace(p)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Clone returns an independent copy.
func (p Principal) Clone() Principal {
	if p == nil {
		return nil
	}
	out := make(Principal, len(p))
	copy(out, p)
	return out
}

// MarshalJSON returns the raw document.
func (p Principal) MarshalJSON() ([]byte, error) {
	if p.IsZero() {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of data.
func (p *Principal) UnmarshalJSON(data []byte) error {
	*p = Principal(data).Clone()
	return nil
}

// Session is a point-in-time copy of the scope's session.
type Session struct {
	// Credential is the opaque bearer token.
	Credential string
	// Principal is the authenticated user's profile, opaque to this package.
	Principal Principal
	// Tag is a locally generated correlation id. It is never sent to the authority.
	Tag string
}
