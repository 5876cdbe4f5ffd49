package buildsys

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
)

// Options control a Runner.
type Options struct {
	// DryRun evaluates conditions and requirements and prints the plan without running any action.
	DryRun bool
}

// Runner executes tasks from a Graph.
type Runner struct {
	graph *Graph
	opts  Options
}

type (
	runtimeCtxKey struct{}
	runtimeCtx    struct {
		runner   *Runner
		outcomes map[string]*TaskOutcome
		order    []string
		running  map[string]bool
	}
)

func getRuntimeCtx(ctx context.Context) *runtimeCtx {
	rctx, _ := ctx.Value(runtimeCtxKey{}).(*runtimeCtx)
	return rctx
}

// NewRunner creates a runner for the given graph.
func NewRunner(graph *Graph, opts Options) *Runner {
	return &Runner{graph: graph, opts: opts}
}

// Run executes the given targets and all of their dependencies. Each task runs at most once.
// The returned error is non-nil if the graph couldn't be planned, a requirement is missing or any
// task failed. The result is returned whenever planning succeeded.
func (r *Runner) Run(ctx context.Context, targets ...string) (*RunResult, error) {
	plan, err := r.graph.Plan(targets...)
	if err != nil {
		return nil, err
	}

	rctx := &runtimeCtx{
		runner:   r,
		outcomes: make(map[string]*TaskOutcome, len(plan)),
		running:  make(map[string]bool),
	}
	for _, task := range plan {
		rctx.track(task.Short)
	}
	ctx = context.WithValue(ctx, runtimeCtxKey{}, rctx)

	// Static conditions are evaluated before anything runs so that a skipped task doesn't
	// have to satisfy its requirements.
	for _, task := range plan {
		ok, reason, err := evalConditions(ctx, task, false)
		if err != nil {
			return rctx.result(), err
		}

		if !ok {
			rctx.finish(task.Short, StatusSkipped, reason, 0, nil)
			logger(ctx).Info().
				Str("task", task.Short).
				Msgf("skipped because %s is false", reason)
		}
	}

	for _, task := range plan {
		if rctx.outcomes[task.Short].Status == StatusSkipped {
			continue
		}

		if err := checkRequirements(task); err != nil {
			return rctx.result(), err
		}
	}

	if r.opts.DryRun {
		for _, task := range plan {
			if rctx.outcomes[task.Short].Status == StatusPending {
				logger(ctx).Info().Str("task", task.Short).Msg("would run")
			}
		}

		return rctx.result(), nil
	}

	var runErr error
	for _, task := range plan {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		err := rctx.execute(ctx, task)
		if err != nil && !task.ProceedAfterFailure {
			break
		}
	}

	for _, name := range rctx.order {
		if outcome := rctx.outcomes[name]; outcome.Status == StatusPending {
			outcome.Status = StatusNotRun
			outcome.Reason = "run aborted"
		}
	}

	result := rctx.result()
	logSummary(ctx, result)

	if runErr != nil {
		return result, eris.Wrap(runErr, "run interrupted")
	}

	if failed := result.Failed(); len(failed) > 0 {
		return result, TaskFailedError{Tasks: failed}
	}

	return result, nil
}

// RunNested executes the named task from within a running task's action. Tasks that already ran
// are not run again.
func RunNested(ctx context.Context, name string) error {
	rctx := getRuntimeCtx(ctx)
	if rctx == nil {
		return eris.Errorf("can't run task %s outside of a runner", name)
	}

	task, ok := rctx.runner.graph.Get(name)
	if !ok {
		return eris.Errorf("Task %s not found", name)
	}

	for _, dep := range task.Deps {
		if err := RunNested(ctx, dep); err != nil {
			return eris.Wrapf(err, "Task %s failed due to its dependency %s", name, dep)
		}
	}

	rctx.track(name)
	if rctx.outcomes[name].Status == StatusPending {
		// nested tasks weren't part of the plan so their static conditions haven't been checked yet
		ok, reason, err := evalConditions(ctx, task, false)
		if err != nil {
			return err
		}

		if !ok {
			rctx.finish(name, StatusSkipped, reason, 0, nil)
			return nil
		}

		if err := checkRequirements(task); err != nil {
			rctx.finish(name, StatusFailed, "missing requirement", 0, err)
			return err
		}
	}

	if err := rctx.execute(ctx, task); err != nil {
		return err
	}

	if outcome := rctx.outcomes[name]; !outcome.Status.satisfies() {
		return eris.Errorf("Task %s did not run: %s", name, outcome.Reason)
	}

	return nil
}

func (r *runtimeCtx) track(name string) {
	if _, ok := r.outcomes[name]; !ok {
		r.outcomes[name] = &TaskOutcome{Task: name, Status: StatusPending}
		r.order = append(r.order, name)
	}
}

func (r *runtimeCtx) finish(name string, status TaskStatus, reason string, duration time.Duration, err error) {
	outcome := r.outcomes[name]
	outcome.Status = status
	outcome.Reason = reason
	outcome.Duration = duration
	outcome.Err = err
}

func (r *runtimeCtx) result() *RunResult {
	result := &RunResult{Outcomes: make([]TaskOutcome, 0, len(r.order))}
	for _, name := range r.order {
		result.Outcomes = append(result.Outcomes, *r.outcomes[name])
	}

	return result
}

// execute runs a single task if it's still pending. The returned error is the action's error.
func (r *runtimeCtx) execute(ctx context.Context, task *Task) error {
	outcome := r.outcomes[task.Short]
	if outcome.Status != StatusPending {
		// this task has already been handled
		logger(ctx).Debug().Msgf("Task %s already handled (%s)", task.Short, outcome.Status)
		return nil
	}

	if r.running[task.Short] {
		return eris.Errorf("Task %s was called recursively", task.Short)
	}

	for _, dep := range task.Deps {
		depOutcome, ok := r.outcomes[dep]
		if !ok || !depOutcome.Status.satisfies() {
			r.finish(task.Short, StatusNotRun, fmt.Sprintf("dependency %s did not succeed", dep), 0, nil)
			logger(ctx).Warn().
				Str("task", task.Short).
				Msgf("not running because dependency %s did not succeed", dep)
			return nil
		}
	}

	ok, reason, err := evalConditions(ctx, task, true)
	if err != nil {
		r.finish(task.Short, StatusFailed, "condition error", 0, err)
		return err
	}
	if !ok {
		r.finish(task.Short, StatusSkipped, reason, 0, nil)
		logger(ctx).Info().
			Str("task", task.Short).
			Msgf("skipped because %s is false", reason)
		return nil
	}

	if task.Action == nil {
		r.finish(task.Short, StatusSucceeded, "", 0, nil)
		return nil
	}

	taskLogger := logger(ctx).With().Str("task", task.Short).Logger()
	taskCtx := WithLogger(ctx, &taskLogger)

	taskLogger.Info().Msg("started")
	r.running[task.Short] = true
	start := time.Now()
	err = task.Action(taskCtx)
	duration := time.Since(start)
	delete(r.running, task.Short)

	if err != nil {
		r.finish(task.Short, StatusFailed, "action failed", duration, err)
		taskLogger.Error().Err(err).Msg("failed")
		return err
	}

	r.finish(task.Short, StatusSucceeded, "", duration, nil)
	taskLogger.Info().Dur("duration", duration).Msg("done")
	return nil
}

// evalConditions returns false and the name of the first condition that didn't hold.
func evalConditions(ctx context.Context, task *Task, dynamic bool) (bool, string, error) {
	for _, cond := range task.Conditions {
		if cond.Dynamic != dynamic {
			continue
		}

		ok, err := cond.Check(ctx)
		if err != nil {
			return false, cond.Name, eris.Wrapf(err, "failed to evaluate condition %s of task %s", cond.Name, task.Short)
		}

		if !ok {
			return false, cond.Name, nil
		}
	}

	return true, "", nil
}

func checkRequirements(task *Task) error {
	for _, req := range task.Requires {
		if !req.Present() {
			return MissingRequirementError{Task: task.Short, Parameter: req.Name}
		}
	}

	return nil
}

func logSummary(ctx context.Context, result *RunResult) {
	nameLen := 4
	for _, outcome := range result.Outcomes {
		if len(outcome.Task) > nameLen {
			nameLen = len(outcome.Task)
		}
	}

	lineFmt := fmt.Sprintf("%%-%ds  %%-10s %%s", nameLen)
	logger(ctx).Info().Msg(fmt.Sprintf(lineFmt, "Task", "Status", "Duration"))
	for _, outcome := range result.Outcomes {
		duration := ""
		if outcome.Status == StatusSucceeded || outcome.Status == StatusFailed {
			duration = outcome.Duration.Round(time.Millisecond).String()
		} else if outcome.Reason != "" {
			duration = "(" + outcome.Reason + ")"
		}

		logger(ctx).Info().Msg(fmt.Sprintf(lineFmt, outcome.Task, outcome.Status, duration))
	}
}
