package buildsys

import (
	"context"
	"os"

	"github.com/rotisserie/eris"
	"mvdan.cc/sh/v3/syntax"
)

// scriptAction runs the commands of a task declared in tasks.star
func scriptAction(task *Task, shell *Shell) Action {
	return func(ctx context.Context) error {
		if shell == nil {
			return eris.Errorf("task %s has no shell to run in", task.Short)
		}

		parser := syntax.NewParser()
		for idx, item := range task.Cmds {
			if ref := item.Ref(); ref != nil {
				if err := RunNested(ctx, ref.Short); err != nil {
					return err
				}
				continue
			}

			stmts, err := item.Stmts(parser)
			if err != nil {
				return eris.Wrapf(err, "failed to prepare command #%d", idx)
			}

			if err = shell.RunScript(ctx, task.Base, task.Env, stmts); err != nil {
				return err
			}
		}

		return nil
	}
}

// scriptConditions turns skip_if_exists and inputs/outputs into dynamic conditions.
func scriptConditions(task *Task) []Condition {
	var conditions []Condition

	if len(task.SkipIfExists) > 0 {
		conditions = append(conditions, Condition{
			Name:    "skip_if_exists",
			Dynamic: true,
			Check: func(context.Context) (bool, error) {
				return anyMissing(task.Base, task.SkipIfExists)
			},
		})
	}

	if len(task.Inputs) > 0 && len(task.Outputs) > 0 {
		conditions = append(conditions, Condition{
			Name:    "outdated",
			Dynamic: true,
			Check: func(ctx context.Context) (bool, error) {
				return outdated(ctx, task)
			},
		})
	}

	return conditions
}

// anyMissing reports whether one of the patterns has no existing match.
func anyMissing(base string, patterns []string) (bool, error) {
	for _, pattern := range patterns {
		matches, err := ResolvePatterns(base, []string{pattern})
		if err != nil {
			return false, eris.Wrap(err, "failed to resolve skip_if_exists")
		}

		if len(matches) == 0 {
			return true, nil
		}

		for _, match := range matches {
			_, err = os.Stat(match)
			if os.IsNotExist(err) {
				return true, nil
			}
			if err != nil {
				return false, eris.Wrapf(err, "failed to check %s", match)
			}
		}
	}

	return false, nil
}

// outdated is true unless every output is newer than the newest input.
func outdated(ctx context.Context, task *Task) (bool, error) {
	_, newestInput, err := mtimeRange(task.Base, task.Inputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to check inputs")
	}

	oldestOutput, _, err := mtimeRange(task.Base, task.Outputs)
	if err != nil {
		return false, eris.Wrap(err, "failed to check outputs")
	}

	if newestInput.IsZero() || oldestOutput.IsZero() {
		return true, nil
	}

	if oldestOutput.After(newestInput) {
		logger(ctx).Debug().
			Str("task", task.Short).
			Dur("margin", oldestOutput.Sub(newestInput)).
			Msg("outputs are up to date")
		return false, nil
	}

	return true, nil
}
