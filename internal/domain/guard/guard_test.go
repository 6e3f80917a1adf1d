package guard

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		kind Kind
		want error
	}{
		{KindValidation, ErrValidation},
		{KindNotAuthenticated, ErrNotAuthenticated},
		{KindAuthExpired, ErrAuthExpired},
		{KindConnection, ErrConnection},
		{KindRejected, ErrRejected},
		{KindStatus, ErrStatus},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			t.Parallel()
			err := fmt.Errorf("wrapped: %w", &Error{Kind: tt.kind, Op: "send"})
			if !errors.Is(err, tt.want) {
				t.Errorf("errors.Is(%v, %v) = false, want true", err, tt.want)
			}
			if KindOf(err) != tt.kind {
				t.Errorf("KindOf = %v, want %v", KindOf(err), tt.kind)
			}
		})
	}
}

func TestError_DoesNotMatchOtherKinds(t *testing.T) {
	t.Parallel()

	err := &Error{Kind: KindConnection}
	if errors.Is(err, ErrAuthExpired) {
		t.Error("connection error must not match ErrAuthExpired")
	}
	if KindOf(errors.New("plain")) != 0 {
		t.Error("KindOf(plain error) should be 0")
	}
}

func TestError_MessageAndUnwrap(t *testing.T) {
	t.Parallel()

	cause := errors.New("dial tcp: refused")
	err := &Error{Kind: KindConnection, Op: "verify", Target: "/auth/verify", Err: cause}

	if !errors.Is(err, cause) {
		t.Error("Unwrap should expose the cause")
	}
	msg := err.Error()
	for _, want := range []string{"verify", "connection error", "/auth/verify", "refused"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}

func TestPageSet_Contains(t *testing.T) {
	t.Parallel()

	ps := NewPageSet("admin.html", " users.html ", "")

	tests := []struct {
		path string
		want bool
	}{
		{"admin.html", true},
		{"/admin.html", true},
		{"/panel/users.html", true},
		{"/superadmin.html", false},
		{"/login.html", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := ps.Contains(tt.path); got != tt.want {
			t.Errorf("Contains(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
	if len(ps.Pages()) != 2 {
		t.Errorf("Pages() = %v, want 2 entries", ps.Pages())
	}
}
