package buildsys

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"gopkg.in/yaml.v3"
)

type builtinFunc = func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error)

func (l *scriptLoader) logBuiltin(level zerolog.Level) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var msg string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
			return nil, err
		}

		l.log(thread, level, msg)
		return starlark.None, nil
	}
}

func failBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var msg string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &msg); err != nil {
		return nil, err
	}

	return nil, eris.New(msg)
}

func getenvBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var key, fallback string
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &key, &fallback); err != nil {
		return nil, err
	}

	if value, ok := os.LookupEnv(key); ok {
		return starlark.String(value), nil
	}
	return starlark.String(fallback), nil
}

// resolve_path(*parts, base=None) returns an absolute path or, with base, one relative to base.
func (l *scriptLoader) resolvePathBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) == 0 {
		return nil, eris.Errorf("%s: expected at least one path", fn.Name())
	}

	base := ""
	for _, kv := range kwargs {
		if name := string(kv[0].(starlark.String)); name != "base" {
			return nil, eris.Errorf("%s: unexpected keyword argument %s", fn.Name(), name)
		}

		value, ok := pathValue(kv[1])
		if !ok {
			return nil, eris.Errorf("%s: base has to be a string or path, not %s", fn.Name(), kv[1].Type())
		}
		base = l.resolve(value)
	}

	parts := make([]string, len(args))
	for idx, arg := range args {
		value, ok := pathValue(arg)
		if !ok {
			return nil, eris.Errorf("%s: argument %d has to be a string or path, not %s", fn.Name(), idx, arg.Type())
		}
		parts[idx] = value
	}

	result := l.resolve(parts...)
	if base != "" {
		rel, err := filepath.Rel(base, result)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: can't make %s relative to %s", fn.Name(), result, base)
		}
		result = rel
	}

	return ScriptPath(result), nil
}

// read_yaml(file, key, default=None) looks up a dotted key in a YAML document.
func (l *scriptLoader) readYAMLBuiltin(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var file, key string
	var fallback starlark.Value = starlark.None
	if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 2, &file, &key, &fallback); err != nil {
		return nil, err
	}

	doc, err := l.document(l.resolve(file))
	if err != nil {
		return nil, err
	}

	value, found := lookupYAML(doc, key)
	if !found {
		return fallback, nil
	}

	return yamlToStarlark(value)
}

func (l *scriptLoader) document(path string) (interface{}, error) {
	if doc, ok := l.documents[path]; ok {
		return doc, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", l.display(path))
	}

	var doc interface{}
	if err = yaml.Unmarshal(content, &doc); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", l.display(path))
	}

	l.documents[path] = doc
	return doc, nil
}

func lookupYAML(doc interface{}, key string) (interface{}, bool) {
	node := doc
	for _, part := range strings.Split(key, ".") {
		switch value := node.(type) {
		case map[string]interface{}:
			next, ok := value[part]
			if !ok {
				return nil, false
			}
			node = next
		case []interface{}:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(value) {
				return nil, false
			}
			node = value[idx]
		default:
			return nil, false
		}
	}

	return node, node != nil
}

func yamlToStarlark(value interface{}) (starlark.Value, error) {
	switch v := value.(type) {
	case nil:
		return starlark.None, nil
	case string:
		return starlark.String(v), nil
	case bool:
		return starlark.Bool(v), nil
	case int:
		return starlark.MakeInt(v), nil
	case float64:
		return starlark.Float(v), nil
	case []interface{}:
		items := make([]starlark.Value, len(v))
		for idx, item := range v {
			converted, err := yamlToStarlark(item)
			if err != nil {
				return nil, err
			}
			items[idx] = converted
		}
		return starlark.NewList(items), nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		dict := starlark.NewDict(len(v))
		for _, key := range keys {
			converted, err := yamlToStarlark(v[key])
			if err != nil {
				return nil, err
			}
			if err = dict.SetKey(starlark.String(key), converted); err != nil {
				return nil, err
			}
		}
		return dict, nil
	default:
		return nil, eris.Errorf("unsupported YAML value %v (%T)", v, v)
	}
}

func (l *scriptLoader) statBuiltin(check func(os.FileInfo) bool) builtinFunc {
	return func(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &path); err != nil {
			return nil, err
		}

		info, err := os.Stat(l.resolve(path))
		return starlark.Bool(err == nil && check(info)), nil
	}
}
