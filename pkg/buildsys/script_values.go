package buildsys

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.starlark.net/starlark"
	starsyntax "go.starlark.net/syntax"
)

// Tasks are handed to tasks.star as values so they can be used in cmds lists.

func (t *Task) String() string {
	return fmt.Sprintf("<task %s>", t.Short)
}

func (t *Task) Type() string { return "task" }

func (t *Task) Freeze() {}

func (t *Task) Truth() starlark.Bool { return starlark.True }

func (t *Task) Hash() (uint32, error) {
	return 0, eris.New("unhashable type: task")
}

// ScriptPath is an absolute path returned by resolve_path(). Commands receive it relative to the
// task's base directory.
type ScriptPath string

var _ starlark.Comparable = ScriptPath("")

func (p ScriptPath) String() string { return starlark.String(p).String() }

func (p ScriptPath) Type() string { return "path" }

func (p ScriptPath) Freeze() {}

func (p ScriptPath) Truth() starlark.Bool { return p != "" }

func (p ScriptPath) Hash() (uint32, error) { return starlark.String(p).Hash() }

func (p ScriptPath) CompareSameType(op starsyntax.Token, other starlark.Value, depth int) (bool, error) {
	return starlark.String(p).CompareSameType(op, starlark.String(other.(ScriptPath)), depth)
}

// pathValue accepts both plain strings and paths.
func pathValue(value starlark.Value) (string, bool) {
	switch v := value.(type) {
	case starlark.String:
		return v.GoString(), true
	case ScriptPath:
		return string(v), true
	default:
		return "", false
	}
}

// stringList converts an optional list argument into a string slice.
func stringList(value *starlark.List, field string) ([]string, error) {
	if value == nil {
		return []string{}, nil
	}

	result := make([]string, value.Len())
	for idx := range result {
		item, ok := pathValue(value.Index(idx))
		if !ok {
			return nil, eris.Errorf("%s[%d]: expected a string but found %s", field, idx, value.Index(idx).Type())
		}
		result[idx] = item
	}

	return result, nil
}
