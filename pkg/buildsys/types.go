package buildsys

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/syntax"
)

// Action is the side effect of a task.
type Action func(ctx context.Context) error

// Condition decides whether a task runs. Static conditions are evaluated once before any task
// executes, dynamic conditions right before the task's own action.
type Condition struct {
	Name    string
	Dynamic bool
	Check   func(ctx context.Context) (bool, error)
}

// Requirement names a parameter that has to be present before a task may run.
type Requirement struct {
	Name    string
	Present func() bool
}

// TaskCmd is one entry of a script task's command list.
type TaskCmd interface {
	// Stmts returns the shell statements to run or nil if the entry references another task.
	Stmts(parser *syntax.Parser) ([]*syntax.Stmt, error)
	// Ref returns the referenced task or nil.
	Ref() *Task
}

// TaskCmdScript is a shell snippet that's parsed right before it runs.
type TaskCmdScript struct {
	Name    string
	Content string
}

func (s TaskCmdScript) Stmts(parser *syntax.Parser) ([]*syntax.Stmt, error) {
	file, err := parser.Parse(strings.NewReader(s.Content), s.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to parse command %s", s.Content)
	}

	return file.Stmts, nil
}

func (s TaskCmdScript) Ref() *Task { return nil }

// TaskCmdCall is a single command built from a list of arguments.
type TaskCmdCall struct {
	Call *syntax.CallExpr
}

func (c TaskCmdCall) Stmts(*syntax.Parser) ([]*syntax.Stmt, error) {
	return []*syntax.Stmt{{Cmd: c.Call}}, nil
}

func (c TaskCmdCall) Ref() *Task { return nil }

// TaskCmdTaskRef runs another task inline.
type TaskCmdTaskRef struct {
	Task *Task
}

func (t TaskCmdTaskRef) Stmts(*syntax.Parser) ([]*syntax.Stmt, error) { return nil, nil }

func (t TaskCmdTaskRef) Ref() *Task { return t.Task }

// Task is a named unit of work in the graph.
type Task struct {
	Short               string
	Desc                string
	Hidden              bool
	Deps                []string
	Requires            []Requirement
	Conditions          []Condition
	ProceedAfterFailure bool
	Action              Action

	// The remaining fields are only set for tasks declared in tasks.star
	Env          map[string]string
	Base         string
	Inputs       []string
	Outputs      []string
	SkipIfExists []string
	Cmds         []TaskCmd
}

// TaskList maps short names to each relevant task
type TaskList map[string]*Task

// ScriptOption is a name=value option declared by tasks.star.
type ScriptOption struct {
	DefaultValue string
	Help         string
}

func (o ScriptOption) Default() string {
	return o.DefaultValue
}

type TaskStatus int

const (
	StatusPending TaskStatus = iota
	StatusSkipped
	StatusSucceeded
	StatusFailed
	StatusNotRun
)

func (s TaskStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSkipped:
		return "skipped"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusNotRun:
		return "not run"
	}

	return fmt.Sprintf("status(%d)", int(s))
}

// satisfies reports whether dependents may run after a dependency ended with this status.
func (s TaskStatus) satisfies() bool {
	return s == StatusSucceeded || s == StatusSkipped
}

// TaskOutcome records what happened to a single task.
type TaskOutcome struct {
	Task     string
	Status   TaskStatus
	Reason   string
	Duration time.Duration
	Err      error
}

// RunResult lists the outcome of every planned task in execution order.
type RunResult struct {
	Outcomes []TaskOutcome
}

// Get returns the outcome for the named task.
func (r *RunResult) Get(name string) (TaskOutcome, bool) {
	for _, outcome := range r.Outcomes {
		if outcome.Task == name {
			return outcome, true
		}
	}

	return TaskOutcome{}, false
}

// Failed returns the names of all failed tasks.
func (r *RunResult) Failed() []string {
	result := []string{}
	for _, outcome := range r.Outcomes {
		if outcome.Status == StatusFailed {
			result = append(result, outcome.Task)
		}
	}

	return result
}
