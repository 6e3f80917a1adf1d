package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers sessionguard-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("storage_driver", validateStorageDriver); err != nil {
		return fmt.Errorf("failed to register storage_driver validator: %w", err)
	}
	return nil
}

// validateStorageDriver accepts memory, file, redis and sqlite.
func validateStorageDriver(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case DriverMemory, DriverFile, DriverRedis, DriverSQLite:
		return true
	}
	return false
}

// Validate validates the Config using struct tags and custom cross-field rules.
// Returns an error if validation fails, with actionable error messages.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateStorage(); err != nil {
		return err
	}

	return nil
}

// validateStorage ensures the selected driver has what it needs.
func (c *Config) validateStorage() error {
	s := c.Session.Storage
	switch s.Driver {
	case DriverFile, DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("session.storage.path is required for the %s driver", s.Driver)
		}
	case DriverRedis:
		if s.RedisAddr == "" {
			return errors.New("session.storage.redis_addr is required for the redis driver")
		}
	}
	return nil
}

// ValidateAuthorityServer checks settings only the development authority
// needs. Call it after Validate when starting the authority.
func (c *Config) ValidateAuthorityServer() error {
	if c.AuthorityServer.SigningKey == "" {
		return errors.New("authority_server.signing_key is required (or enable dev_mode)")
	}
	seen := make(map[int]struct{}, len(c.AuthorityServer.Users))
	for i, u := range c.AuthorityServer.Users {
		if _, dup := seen[u.ID]; dup {
			return fmt.Errorf("authority_server.users[%d]: duplicate id %d", i, u.ID)
		}
		seen[u.ID] = struct{}{}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for a single validation error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "url":
		return fmt.Sprintf("%s must be a valid URL", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "gt", "gte":
		return fmt.Sprintf("%s must be %s %s", field, comparison(e.Tag()), e.Param())
	case "storage_driver":
		return fmt.Sprintf("%s must be one of: memory file redis sqlite", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}

func comparison(tag string) string {
	if tag == "gt" {
		return "greater than"
	}
	return "at least"
}
