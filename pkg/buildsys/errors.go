package buildsys

import (
	"fmt"
	"strings"
)

// MissingRequirementError is returned when a planned task requires a parameter that isn't set.
// It never contains the parameter's value.
type MissingRequirementError struct {
	Task      string
	Parameter string
}

var _ error = (*MissingRequirementError)(nil)

func (e MissingRequirementError) Error() string {
	return fmt.Sprintf("task %s requires parameter %s to be set", e.Task, e.Parameter)
}

// CycleError is returned by NewGraph if the dependency declarations contain a cycle.
type CycleError struct {
	Path []string
}

var _ error = (*CycleError)(nil)

func (e CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected: %s", strings.Join(e.Path, " -> "))
}

// TaskFailedError is returned by Runner.Run if at least one task failed.
type TaskFailedError struct {
	Tasks []string
}

var _ error = (*TaskFailedError)(nil)

func (e TaskFailedError) Error() string {
	return fmt.Sprintf("failed tasks: %s", strings.Join(e.Tasks, ", "))
}
