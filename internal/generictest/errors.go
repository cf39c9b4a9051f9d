package generictest

import "fmt"

// InvalidShapeError reports a test declaration that matches neither accepted
// syntax: not a mapping, wrong key count, arguments that are not a mapping,
// or a test name that is not a string.
type InvalidShapeError struct {
	Reason string
	Value  any
}

func (e *InvalidShapeError) Error() string {
	return fmt.Sprintf("invalid test declaration: %s (got %T)", e.Reason, e.Value)
}

// MalformedTestNameError reports a test name token that does not match the
// [namespace.]name pattern.
type MalformedTestNameError struct {
	Token string
}

func (e *MalformedTestNameError) Error() string {
	return fmt.Sprintf("test name %q does not match the expected [namespace.]name pattern", e.Token)
}

// ReservedArgumentError reports a user-supplied argument that collides with
// an argument the builder synthesizes itself.
type ReservedArgumentError struct {
	Arg string
}

func (e *ReservedArgumentError) Error() string {
	return fmt.Sprintf("argument %q is reserved and may not be supplied in a test declaration", e.Arg)
}

// DuplicateConfigKeyError reports a recognized config key supplied both as a
// legacy top-level argument and inside the nested config block.
type DuplicateConfigKeyError struct {
	Key string
}

func (e *DuplicateConfigKeyError) Error() string {
	return fmt.Sprintf("config key %q supplied both at the top level and inside config", e.Key)
}

// ConfigRenderError reports an undefined reference encountered while
// rendering a config value. It carries enough context for the user to locate
// the offending declaration.
type ConfigRenderError struct {
	Target string
	Column string
	Test   string
	Key    string
	Msg    string
	cause  error
}

func (e *ConfigRenderError) Error() string {
	loc := e.Target
	if e.Column != "" {
		loc = fmt.Sprintf("%s.%s", e.Target, e.Column)
	}
	return fmt.Sprintf("cannot render config key %q of test %q on %s: %s", e.Key, e.Test, loc, e.Msg)
}

func (e *ConfigRenderError) Unwrap() error { return e.cause }

// TagsError reports a tags config value that is neither a string nor a list
// of strings.
type TagsError struct {
	Value any
}

func (e *TagsError) Error() string {
	return fmt.Sprintf("tags must be a string or a list of strings, got %T (%v)", e.Value, e.Value)
}

// UnsupportedTargetKindError indicates a target variant without a dispatch
// handler. This is a programmer error, not a user-facing one.
type UnsupportedTargetKindError struct {
	Target any
}

func (e *UnsupportedTargetKindError) Error() string {
	return fmt.Sprintf("unsupported test target kind %T", e.Target)
}
