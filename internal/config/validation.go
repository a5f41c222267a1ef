package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateRequired checks if a required string field is not empty
func ValidateRequired(field, value, entityType string) error {
	if strings.TrimSpace(value) == "" {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("is required for %s", entityType),
		}
	}
	return nil
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateMaxLength checks if a string doesn't exceed maximum length
func ValidateMaxLength(field, value string, maxLength int) error {
	if len(value) > maxLength {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: fmt.Sprintf("must not exceed %d characters", maxLength),
		}
	}
	return nil
}

// ValidateEntityName validates that an entity name follows proper conventions
func ValidateEntityName(name, entityType string) error {
	if err := ValidateRequired("name", name, entityType); err != nil {
		return err
	}

	if err := ValidateMaxLength("name", name, 100); err != nil {
		return err
	}

	if strings.ContainsAny(name, " /\t\n") {
		return ValidationError{
			Field:   "name",
			Value:   name,
			Message: "cannot contain spaces or slashes",
		}
	}

	return nil
}

// Validate checks a loaded configuration.
func Validate(c WardenConfig) error {
	var errs ValidationErrors

	if err := ValidateRequired("servicesDir", c.ServicesDir, "configuration"); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateRequired("runtimeDir", c.RuntimeDir, "configuration"); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf("logLevel", strings.ToLower(c.LogLevel), []string{"debug", "info", "warn", "warning", "error"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateOneOf("logFormat", strings.ToLower(c.LogFormat), []string{"text", "json"}); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if c.Defaults.RestartPolicy != "" && !c.Defaults.RestartPolicy.Valid() {
		errs.Add("defaults.restartPolicy", "unknown restart policy", c.Defaults.RestartPolicy)
	}
	if c.Defaults.StartTimeout < 0 {
		errs.Add("defaults.startTimeout", "must not be negative", c.Defaults.StartTimeout)
	}
	if c.Defaults.StopTimeout < 0 {
		errs.Add("defaults.stopTimeout", "must not be negative", c.Defaults.StopTimeout)
	}
	if c.Defaults.RestartDelay < 0 {
		errs.Add("defaults.restartDelay", "must not be negative", c.Defaults.RestartDelay)
	}
	if c.WatchDebounce < 0 {
		errs.Add("watchDebounce", "must not be negative", c.WatchDebounce)
	}
	for key := range c.Environment {
		if key == "" || strings.Contains(key, "=") {
			errs.Add("environment", "invalid variable name", key)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}
