package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// KeyValidationConfig contains the rules applied to cache keys.
type KeyValidationConfig struct {
	ReservedPatterns  []string
	MaxKeyLength      int
	AllowEmpty        bool
	AllowControlChars bool
	AllowWhitespace   bool
}

// DefaultKeyValidationConfig returns the rules used when none are configured.
func DefaultKeyValidationConfig() KeyValidationConfig {
	return KeyValidationConfig{
		MaxKeyLength:    1024,
		AllowWhitespace: true,
	}
}

// KeyValidator checks cache keys before they reach a store.
type KeyValidator struct {
	config KeyValidationConfig
}

func NewKeyValidator(config KeyValidationConfig) *KeyValidator {
	return &KeyValidator{config: config}
}

// Validate returns an error wrapping ErrInvalidKey when key breaks a rule.
func (v *KeyValidator) Validate(key string) error {
	if key == "" {
		if v.config.AllowEmpty {
			return nil
		}
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}

	if v.config.MaxKeyLength > 0 && len(key) > v.config.MaxKeyLength {
		return fmt.Errorf("%w: key length %d exceeds maximum %d bytes",
			ErrInvalidKey, len(key), v.config.MaxKeyLength)
	}

	if !utf8.ValidString(key) {
		return fmt.Errorf("%w: key contains invalid UTF-8", ErrInvalidKey)
	}

	for i, r := range key {
		if !v.config.AllowControlChars && unicode.IsControl(r) {
			return fmt.Errorf("%w: control character at position %d", ErrInvalidKey, i)
		}
		// A plain space is always fine; tabs and newlines are whitespace.
		if !v.config.AllowWhitespace && r != ' ' && unicode.IsSpace(r) {
			return fmt.Errorf("%w: whitespace at position %d", ErrInvalidKey, i)
		}
	}

	for _, pattern := range v.config.ReservedPatterns {
		if strings.Contains(key, pattern) {
			return fmt.Errorf("%w: key contains reserved pattern %q", ErrInvalidKey, pattern)
		}
	}

	return nil
}

// DefaultKeyValidator applies DefaultKeyValidationConfig.
var DefaultKeyValidator = NewKeyValidator(DefaultKeyValidationConfig())

// ValidateKey validates a key using the default validator.
func ValidateKey(key string) error {
	return DefaultKeyValidator.Validate(key)
}

func IsInvalidKey(err error) bool {
	return errors.Is(err, ErrInvalidKey)
}
