package fsutil

import (
	"io/ioutil"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/pflag"
)

// IsBuiltin reports whether name is handled by Builtin.
func IsBuiltin(name string) bool {
	switch name {
	case "rm", "mv", "mkdir":
		return true
	}

	return false
}

// Builtin runs rm, mv or mkdir with POSIX-like flags. Relative paths are resolved against dir.
func Builtin(dir string, args []string) error {
	if len(args) < 1 || !IsBuiltin(args[0]) {
		return eris.Errorf("unsupported builtin %v", args)
	}

	flags := pflag.NewFlagSet(args[0], pflag.ContinueOnError)
	flags.SetOutput(ioutil.Discard)
	recursive := flags.BoolP("recursive", "r", false, "recursively delete directories")
	force := flags.BoolP("force", "f", false, "suppresses errors caused by missing files/folders")
	parents := flags.BoolP("parents", "p", false, "create parent directories as needed")

	err := flags.Parse(args[1:])
	if err != nil {
		return eris.Wrapf(err, "invalid arguments for %s", args[0])
	}

	items := flags.Args()
	for idx, item := range items {
		if !filepath.IsAbs(item) {
			items[idx] = filepath.Join(dir, item)
		}
	}

	switch args[0] {
	case "rm":
		return Remove(items, *recursive, *force)
	case "mv":
		if len(items) < 2 {
			return eris.New("Not enough parameters")
		}
		return Move(items[:len(items)-1], items[len(items)-1])
	default:
		return Mkdir(items, *parents)
	}
}
