package labels

import "fmt"

// ConfigurationError reports malformed input or label configuration that
// must abort a run before any model work begins.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// NewConfigurationError formats a ConfigurationError.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

// UnknownLabelError is returned when a tag name is not part of the index.
type UnknownLabelError struct {
	Name string
}

func (e *UnknownLabelError) Error() string {
	return fmt.Sprintf("labels: unknown label %q", e.Name)
}

// IndexOutOfRangeError is returned when a class index falls outside [0, N).
type IndexOutOfRangeError struct {
	Index int
	Size  int
}

func (e *IndexOutOfRangeError) Error() string {
	return fmt.Sprintf("labels: index %d out of range [0, %d)", e.Index, e.Size)
}
