package identity

import "fmt"

// validUsername constrains a canonical username to characters that are safe
// as a storage key on every backend. The file backend would reject anything
// else deep in its key check with an untyped error; validating up front
// keeps the behavior identical across backends and typed for the caller.
func validUsername(name string) error {
	if name == "" {
		return fmt.Errorf("username must not be empty: %w", ErrInvalidInput)
	}
	if name[0] == '.' {
		return fmt.Errorf("username must not start with a dot: %w", ErrInvalidInput)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9':
		case r == '.' || r == '_' || r == '-':
		default:
			return fmt.Errorf("username contains forbidden character %q: %w", r, ErrInvalidInput)
		}
	}
	return nil
}
