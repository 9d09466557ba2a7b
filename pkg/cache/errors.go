package cache

import "fmt"

// ConfigError indicates an invalid configuration value. It is returned
// by NewStore and Update before any state change is applied.
type ConfigError struct {
	// Field is the configuration field that failed validation.
	Field string

	// Message describes why the value was rejected.
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid cache config: %s: %s", e.Field, e.Message)
}

// PatternError indicates an invalidation pattern that cannot be used,
// typically a regex that fails to compile. No entries are removed when
// a PatternError is returned.
type PatternError struct {
	// Pattern is the offending pattern string.
	Pattern string

	// Err is the underlying failure.
	Err error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid invalidation pattern %q: %v", e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// CompressionError indicates a failed compression or decompression
// attempt. Compression failures during Set are absorbed: the entry is
// stored uncompressed and the error is only logged.
type CompressionError struct {
	// Op is "compress" or "decompress".
	Op string

	// Err is the underlying failure.
	Err error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CompressionError) Unwrap() error {
	return e.Err
}
