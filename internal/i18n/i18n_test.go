package i18n

import (
	"testing"
)

func TestCatalog_Translates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lang string
		id   string
		data map[string]any
		want string
	}{
		{"en", "session.expired", nil, "Session expired. Redirecting to login..."},
		{"es", "session.expired", nil, "Sesión expirada. Redirigiendo al login..."},
		{"es", "login.status.429", nil, "Demasiados intentos de login. Espera unos minutos."},
		{"en", "login.server_message", map[string]any{"Message": "Cuenta bloqueada"}, "Cuenta bloqueada"},
		{"fr", "connection.lost", nil, "No internet connection"},
		{"en", "no.such.message", nil, "no.such.message"},
	}
	for _, tt := range tests {
		t.Run(tt.lang+"/"+tt.id, func(t *testing.T) {
			t.Parallel()
			c, err := New(tt.lang)
			if err != nil {
				t.Fatalf("New(%q) error: %v", tt.lang, err)
			}
			if got := c.T(tt.id, tt.data); got != tt.want {
				t.Errorf("T(%q) = %q, want %q", tt.id, got, tt.want)
			}
		})
	}
}

func TestCatalog_DefaultsAndInvalid(t *testing.T) {
	t.Parallel()

	c, err := New("")
	if err != nil {
		t.Fatalf("New(\"\") error: %v", err)
	}
	if c.Lang() != DefaultLang {
		t.Errorf("Lang() = %q, want %q", c.Lang(), DefaultLang)
	}

	if _, err := New("not a locale!"); err == nil {
		t.Error("New(invalid) should fail")
	}
}

func TestCatalogsHaveSameKeys(t *testing.T) {
	t.Parallel()

	en, _ := New("en")
	es, _ := New("es")
	ids := []string{
		"session.expired", "session.logged_out", "session.access_denied", "session.already_active",
		"login.success", "login.missing_fields", "login.invalid_email", "login.failed",
		"login.status.400", "login.status.401", "login.status.403", "login.status.404",
		"login.status.429", "login.status.500", "login.status.503",
		"connection.error", "connection.restored", "connection.lost", "presenter.default_name",
		"logout.confirm",
	}
	for _, id := range ids {
		if en.T(id, nil) == id {
			t.Errorf("en missing %q", id)
		}
		if es.T(id, nil) == en.T(id, nil) {
			t.Errorf("es translation of %q equals english", id)
		}
	}

	if got := Supported(); len(got) != 2 || got[0] != "en" || got[1] != "es" {
		t.Errorf("Supported() = %v, want [en es]", got)
	}
}
