package gpu

import (
	"errors"
	"fmt"
	"strings"

	"vizgpu/shader"
)

var (
	// ErrUnboundResource is returned when a resource or job is used
	// before it was uploaded (and, for jobs, bound) in the session.
	ErrUnboundResource = errors.New("gpu: resource used before upload")

	// ErrCapabilityUnsupported is returned when the device cannot render
	// into a surface format.
	ErrCapabilityUnsupported = errors.New("gpu: capability unsupported")

	// ErrFeedbackLoop is returned when a draw would read the surface it
	// writes.
	ErrFeedbackLoop = errors.New("gpu: surface is both input and draw target")

	// ErrInvalidShape is returned when a draw shape does not fit the bound
	// resources.
	ErrInvalidShape = errors.New("gpu: invalid draw shape")

	// ErrNotPrimed is returned by PingPong.Step before Init.
	ErrNotPrimed = errors.New("gpu: ping-pong stepped before init")
)

// CompileError is a shader compile failure.
type CompileError struct {
	Stage  shader.Stage
	Log    string
	Source string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("gpu: %s shader compile failed: %s\n%s", e.Stage, strings.TrimSpace(e.Log), numberLines(e.Source))
}

// LinkError is a program link failure.
type LinkError struct {
	Log            string
	VertexSource   string
	FragmentSource string
}

func (e *LinkError) Error() string {
	return fmt.Sprintf("gpu: program link failed: %s\n--- vertex ---\n%s\n--- fragment ---\n%s",
		strings.TrimSpace(e.Log), numberLines(e.VertexSource), numberLines(e.FragmentSource))
}

func numberLines(src string) string {
	lines := strings.Split(strings.TrimRight(strings.ReplaceAll(src, "\x00", ""), "\n"), "\n")
	var sb strings.Builder
	for i, l := range lines {
		fmt.Fprintf(&sb, "%4d  %s\n", i+1, l)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// MissingBindingError lists the program inputs a job does not satisfy,
// in signature order.
type MissingBindingError struct {
	Names []string
}

func (e *MissingBindingError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("gpu: missing binding %q", e.Names[0])
	}
	return fmt.Sprintf("gpu: missing bindings %q", e.Names)
}

// Has reports whether name is among the missing inputs.
func (e *MissingBindingError) Has(name string) bool {
	for _, n := range e.Names {
		if n == name {
			return true
		}
	}
	return false
}

// BindingTypeError is a bound resource whose shape does not match the
// declaration it satisfies.
type BindingTypeError struct {
	Name string
	Want string
	Got  string
}

func (e *BindingTypeError) Error() string {
	return fmt.Sprintf("gpu: binding %q: want %s, got %s", e.Name, e.Want, e.Got)
}

// UnknownBindingError is an update that names no input of the job.
type UnknownBindingError struct {
	Name string
}

func (e *UnknownBindingError) Error() string {
	return fmt.Sprintf("gpu: unknown binding %q", e.Name)
}

// IncompatibleUpdateError is an update the existing allocation cannot
// absorb. Resource is the stale resource; the caller releases it and
// creates a replacement.
type IncompatibleUpdateError struct {
	Resource Resource
	Reason   string
}

func (e *IncompatibleUpdateError) Error() string {
	return fmt.Sprintf("gpu: incompatible update of %s: %s", e.Resource, e.Reason)
}
