package errors

import (
	"fmt"
)

// AuthError reports a request the FuzzKit service refused even after the
// verification flow ran.
type AuthError struct {
	StatusCode int
	Body       string
	Err        error
}

// NewAuthError constructs an AuthError.
func NewAuthError(statusCode int, body string, err error) error {
	return &AuthError{StatusCode: statusCode, Body: body, Err: err}
}

func (e *AuthError) Error() string {
	if e == nil {
		return ""
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("authentication error: server returned %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("authentication error: %s", e.Body)
}

// Unwrap exposes the underlying error.
func (e *AuthError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// JobTypeUnsupportedError reports a testcase whose job type appears in no
// job definition table.
type JobTypeUnsupportedError struct {
	JobType string
}

// NewJobTypeUnsupportedError constructs a JobTypeUnsupportedError.
func NewJobTypeUnsupportedError(jobType string) error {
	return &JobTypeUnsupportedError{JobType: jobType}
}

func (e *JobTypeUnsupportedError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("job type %q is not supported", e.JobType)
}

// JobDefinitionError reports a job-types document entry that references an
// unknown builder, reproducer, or preset.
type JobDefinitionError struct {
	BuildType string
	JobType   string
	Message   string
	Err       error
}

// NewJobDefinitionError constructs a JobDefinitionError.
func NewJobDefinitionError(buildType, jobType, message string, err error) error {
	return &JobDefinitionError{BuildType: buildType, JobType: jobType, Message: message, Err: err}
}

func (e *JobDefinitionError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("bad job definition %s/%s: %s", e.BuildType, e.JobType, e.Message)
}

// Unwrap exposes the underlying error.
func (e *JobDefinitionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// GomaNotInstalledError reports a goma directory without a usable goma_ctl.
type GomaNotInstalledError struct {
	Dir string
}

// NewGomaNotInstalledError constructs a GomaNotInstalledError.
func NewGomaNotInstalledError(dir string) error {
	return &GomaNotInstalledError{Dir: dir}
}

func (e *GomaNotInstalledError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("goma is not installed: no goma_ctl.py under %s "+
		"(set GOMA_DIR or pass --disable-goma)", e.Dir)
}

// BinaryNotFoundError reports a required executable missing from PATH.
type BinaryNotFoundError struct {
	Binary string
	Err    error
}

// NewBinaryNotFoundError constructs a BinaryNotFoundError.
func NewBinaryNotFoundError(binary string, err error) error {
	return &BinaryNotFoundError{Binary: binary, Err: err}
}

func (e *BinaryNotFoundError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s is not found on PATH; please install it first", e.Binary)
}

// Unwrap exposes the underlying error.
func (e *BinaryNotFoundError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DirtyCheckoutError reports uncommitted changes blocking a checkout to the
// testcase revision.
type DirtyCheckoutError struct {
	Dir string
}

// NewDirtyCheckoutError constructs a DirtyCheckoutError.
func NewDirtyCheckoutError(dir string) error {
	return &DirtyCheckoutError{Dir: dir}
}

func (e *DirtyCheckoutError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("source directory %s has uncommitted changes: "+
		"commit or stash them and re-run", e.Dir)
}

// CommandError represents a subprocess that exited non-zero.
type CommandError struct {
	Command  string
	ExitCode int
	Output   string
	Err      error
}

// NewCommandError constructs a CommandError.
func NewCommandError(command string, exitCode int, output string, err error) error {
	return &CommandError{Command: command, ExitCode: exitCode, Output: output, Err: err}
}

func (e *CommandError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("command %q exited with %d", e.Command, e.ExitCode)
}

// Unwrap exposes the root error.
func (e *CommandError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ParseError represents a YAML parsing failure with optional line metadata.
type ParseError struct {
	Path    string
	Line    int
	Message string
	Err     error
}

// NewParseError constructs a ParseError.
func NewParseError(path string, line int, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ParseError{Path: path, Line: line, Message: message, Err: err}
}

func (e *ParseError) Error() string {
	if e == nil {
		return ""
	}
	if e.Line > 0 {
		return fmt.Sprintf("parse error: %s:%d: %s", e.Path, e.Line, e.Message)
	}
	return fmt.Sprintf("parse error: %s: %s", e.Path, e.Message)
}

// Unwrap exposes the underlying error.
func (e *ParseError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ValidationError captures configuration validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UnreproducibleError reports a testcase that never crashed within the
// requested number of attempts.
type UnreproducibleError struct {
	TestcaseID string
	Iterations int
}

// NewUnreproducibleError constructs an UnreproducibleError.
func NewUnreproducibleError(testcaseID string, iterations int) error {
	return &UnreproducibleError{TestcaseID: testcaseID, Iterations: iterations}
}

func (e *UnreproducibleError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("testcase %s did not crash after %d attempts", e.TestcaseID, e.Iterations)
}
