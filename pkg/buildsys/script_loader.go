package buildsys

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"mvdan.cc/sh/v3/syntax"
)

// scriptLoader holds the state of a single tasks.star evaluation.
type scriptLoader struct {
	ctx      context.Context
	shell    *Shell
	root     string
	filename string
	values   map[string]string
	reserved TaskList

	options   map[string]ScriptOption
	tasks     TaskList
	documents map[string]interface{}

	// option() is only allowed at the top level, task() only inside configure()
	configuring bool
}

// LoadScript executes a Starlark task script and returns the declared tasks and options.
// Task names in reserved can't be redeclared but may be used as dependencies.
func LoadScript(ctx context.Context, filename, projectRoot string, options map[string]string, reserved TaskList, shell *Shell) (TaskList, map[string]ScriptOption, error) {
	root, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, nil, err
	}

	filename, err = filepath.Abs(filename)
	if err != nil {
		return nil, nil, err
	}

	l := &scriptLoader{
		ctx:       ctx,
		shell:     shell,
		root:      root,
		filename:  filename,
		values:    options,
		reserved:  reserved,
		options:   make(map[string]ScriptOption),
		tasks:     make(TaskList),
		documents: make(map[string]interface{}),
	}

	if err = l.load(); err != nil {
		return nil, nil, err
	}

	return l.tasks, l.options, nil
}

func (l *scriptLoader) load() error {
	source, err := os.ReadFile(l.filename)
	if err != nil {
		return eris.Wrapf(err, "failed to read %s", l.filename)
	}

	name := l.display(l.filename)
	thread := &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			logger(l.ctx).Info().Str("script", name).Msg(msg)
		},
	}

	globals, err := starlark.ExecFile(thread, name, source, l.globals())
	if err != nil {
		return scriptError(err, "failed to execute %s", name)
	}

	configure, ok := globals["configure"].(starlark.Callable)
	if !ok {
		return eris.Errorf("%s has to declare a configure() function", name)
	}

	l.configuring = true
	_, err = starlark.Call(thread, configure, nil, nil)
	if err != nil {
		return scriptError(err, "configure() failed in %s", name)
	}

	return nil
}

func scriptError(err error, format string, args ...interface{}) error {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return eris.Errorf("%s:\n%s", fmt.Sprintf(format, args...), evalErr.Backtrace())
	}

	return eris.Wrapf(err, format, args...)
}

func (l *scriptLoader) globals() starlark.StringDict {
	return starlark.StringDict{
		"OS":           starlark.String(runtime.GOOS),
		"ARCH":         starlark.String(runtime.GOARCH),
		"info":         starlark.NewBuiltin("info", l.logBuiltin(zerolog.InfoLevel)),
		"warn":         starlark.NewBuiltin("warn", l.logBuiltin(zerolog.WarnLevel)),
		"error":        starlark.NewBuiltin("error", failBuiltin),
		"getenv":       starlark.NewBuiltin("getenv", getenvBuiltin),
		"option":       starlark.NewBuiltin("option", l.declareOption),
		"task":         starlark.NewBuiltin("task", l.declareTask),
		"resolve_path": starlark.NewBuiltin("resolve_path", l.resolvePathBuiltin),
		"read_yaml":    starlark.NewBuiltin("read_yaml", l.readYAMLBuiltin),
		"isdir":        starlark.NewBuiltin("isdir", l.statBuiltin(os.FileInfo.IsDir)),
		"isfile":       starlark.NewBuiltin("isfile", l.statBuiltin(func(fi os.FileInfo) bool { return fi.Mode().IsRegular() })),
	}
}

// resolve joins parts relative to the script's directory. Parts starting with // are relative to
// the repository root.
func (l *scriptLoader) resolve(parts ...string) string {
	result := filepath.Dir(l.filename)

	for _, part := range parts {
		switch {
		case strings.HasPrefix(part, "//"):
			result = filepath.Join(l.root, part[2:])
		case strings.HasPrefix(part, "/"):
			result = filepath.Join(filepath.VolumeName(result), part)
		case filepath.IsAbs(part):
			result = part
		default:
			result = filepath.Join(result, part)
		}
	}

	return filepath.Clean(result)
}

// display shortens paths inside the repository to the //-form.
func (l *scriptLoader) display(path string) string {
	rel, err := filepath.Rel(l.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}

	return "//" + filepath.ToSlash(rel)
}

func (l *scriptLoader) log(thread *starlark.Thread, level zerolog.Level, msg string) {
	pos := thread.CallFrame(1).Pos
	logger(l.ctx).WithLevel(level).Msgf("%s:%d:%d: %s", l.display(l.filename), pos.Line, pos.Col, msg)
}

func (l *scriptLoader) declareOption(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name, defaultValue, help string
	err := starlark.UnpackArgs(fn.Name(), args, kwargs, "name", &name, "default?", &defaultValue, "help?", &help)
	if err != nil {
		return nil, err
	}

	if l.configuring {
		return nil, eris.Errorf("%s() has to be called at the top level of the script", fn.Name())
	}

	l.options[name] = ScriptOption{DefaultValue: defaultValue, Help: help}
	if value, ok := l.values[name]; ok {
		return starlark.String(value), nil
	}

	return starlark.String(defaultValue), nil
}

func (l *scriptLoader) declareTask(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if !l.configuring {
		return nil, eris.Errorf("%s() can only be called inside configure()", fn.Name())
	}

	var (
		deps, skipIfExists, inputs, outputs, cmds *starlark.List
		env                                       *starlark.Dict
		base                                      string
	)
	task := &Task{Env: map[string]string{}}

	err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"short?", &task.Short,
		"desc?", &task.Desc,
		"hidden?", &task.Hidden,
		"deps?", &deps,
		"base?", &base,
		"env?", &env,
		"skip_if_exists?", &skipIfExists,
		"inputs?", &inputs,
		"outputs?", &outputs,
		"cmds?", &cmds,
		"proceed_after_failure?", &task.ProceedAfterFailure,
	)
	if err != nil {
		return nil, err
	}

	if task.Short == "" {
		// anonymous tasks are only reachable through cmds lists
		task.Short = "auto#" + nanoid.New()
		task.Hidden = true
	}

	if _, ok := l.reserved[task.Short]; ok {
		return nil, eris.Errorf("the task name %q is reserved", task.Short)
	}
	if _, ok := l.tasks[task.Short]; ok {
		return nil, eris.Errorf("task %s was declared twice", task.Short)
	}

	task.Base = l.resolve(base)

	lists := []struct {
		field  string
		source *starlark.List
		target *[]string
	}{
		{"deps", deps, &task.Deps},
		{"skip_if_exists", skipIfExists, &task.SkipIfExists},
		{"inputs", inputs, &task.Inputs},
		{"outputs", outputs, &task.Outputs},
	}
	for _, list := range lists {
		*list.target, err = stringList(list.source, list.field)
		if err != nil {
			return nil, err
		}
	}

	if env != nil {
		for _, item := range env.Items() {
			key, keyOk := item[0].(starlark.String)
			value, valueOk := item[1].(starlark.String)
			if !keyOk || !valueOk {
				return nil, eris.Errorf("env: expected string pairs but found %s: %s", item[0].Type(), item[1].Type())
			}
			task.Env[key.GoString()] = value.GoString()
		}
	}

	task.Cmds, err = l.commands(task, cmds)
	if err != nil {
		return nil, err
	}

	if len(task.Inputs) > 0 && len(task.Outputs) == 0 {
		l.log(thread, zerolog.WarnLevel, fmt.Sprintf("task %s has inputs but no outputs", task.Short))
	}

	task.Conditions = scriptConditions(task)
	task.Action = scriptAction(task, l.shell)

	l.tasks[task.Short] = task
	return task, nil
}

// commands converts a cmds list. Strings are shell snippets, tuples and lists are argument
// vectors and tasks run inline.
func (l *scriptLoader) commands(task *Task, cmds *starlark.List) ([]TaskCmd, error) {
	if cmds == nil {
		return []TaskCmd{}, nil
	}

	result := make([]TaskCmd, 0, cmds.Len())
	for idx := 0; idx < cmds.Len(); idx++ {
		switch item := cmds.Index(idx).(type) {
		case starlark.String:
			result = append(result, TaskCmdScript{
				Name:    fmt.Sprintf("%s:%d", task.Short, idx),
				Content: item.GoString(),
			})
		case *Task:
			result = append(result, TaskCmdTaskRef{Task: item})
		case starlark.Indexable:
			parts := make([]starlark.Value, item.Len())
			for pos := range parts {
				parts[pos] = item.Index(pos)
			}

			call, err := commandCall(parts, task.Base)
			if err != nil {
				return nil, eris.Wrapf(err, "cmds[%d]", idx)
			}
			result = append(result, TaskCmdCall{Call: call})
		default:
			return nil, eris.Errorf("cmds[%d]: expected a string, list, tuple or task but found %s", idx, item.Type())
		}
	}

	return result, nil
}

// commandCall builds a command from an argument vector. Leading NAME=value items become variable
// assignments for that command.
func commandCall(parts []starlark.Value, base string) (*syntax.CallExpr, error) {
	var assigns []*syntax.Assign
	for len(parts) > 0 {
		text, ok := parts[0].(starlark.String)
		if !ok {
			break
		}

		name, value, found := strings.Cut(text.GoString(), "=")
		if !found || !syntax.ValidName(name) {
			break
		}

		assigns = append(assigns, &syntax.Assign{Name: &syntax.Lit{Value: name}, Value: literalWord(value)})
		parts = parts[1:]
	}

	args := make([]string, len(parts))
	for idx, part := range parts {
		switch value := part.(type) {
		case starlark.String:
			args[idx] = value.GoString()
		case ScriptPath:
			path := string(value)
			if rel, err := filepath.Rel(base, path); err == nil {
				path = rel
			}
			args[idx] = filepath.ToSlash(path)
		default:
			return nil, eris.Errorf("argument %d is a %s but only strings and paths are supported", idx, part.Type())
		}
	}

	call, err := callExpr(args)
	if err != nil {
		return nil, err
	}

	call.Assigns = assigns
	return call, nil
}
