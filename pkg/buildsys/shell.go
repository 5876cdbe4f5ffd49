package buildsys

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/ngld/relkit/pkg/fsutil"
)

const redacted = "[redacted]"

// Shell runs external commands through an embedded POSIX shell. Command lines and output are logged
// to the logger found in the context with all registered secrets masked.
type Shell struct {
	// Dir is the working directory for commands that don't specify one.
	Dir string
	// Env is added to the process environment of every command.
	Env map[string]string

	lock    sync.RWMutex
	secrets []string
}

// NewShell creates a shell rooted at dir.
func NewShell(dir string) *Shell {
	return &Shell{Dir: dir, Env: map[string]string{}}
}

// AddSecret registers a value that must never show up in logs.
func (s *Shell) AddSecret(value string) {
	if value == "" {
		return
	}

	s.lock.Lock()
	defer s.lock.Unlock()
	s.secrets = append(s.secrets, value)
}

// Redact replaces every registered secret in text.
func (s *Shell) Redact(text string) string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	for _, secret := range s.secrets {
		text = strings.ReplaceAll(text, secret, redacted)
	}

	return text
}

// Run executes a single command and fails if it exits with a non-zero status.
func (s *Shell) Run(ctx context.Context, args ...string) error {
	cmd, err := callExpr(args)
	if err != nil {
		return err
	}

	return s.exec(ctx, s.Dir, nil, []syntax.Node{cmd}, nil)
}

// Output executes a single command and returns its stdout.
func (s *Shell) Output(ctx context.Context, args ...string) (string, error) {
	cmd, err := callExpr(args)
	if err != nil {
		return "", err
	}

	buffer := strings.Builder{}
	err = s.exec(ctx, s.Dir, nil, []syntax.Node{cmd}, &buffer)
	return buffer.String(), err
}

// RunScript executes the passed statements with "set -e" semantics in dir.
func (s *Shell) RunScript(ctx context.Context, dir string, env map[string]string, stmts []*syntax.Stmt) error {
	nodes := make([]syntax.Node, len(stmts))
	for idx, stmt := range stmts {
		nodes[idx] = stmt
	}

	return s.exec(ctx, dir, env, nodes, nil)
}

func (s *Shell) exec(ctx context.Context, dir string, env map[string]string, nodes []syntax.Node, stdout io.Writer) error {
	log := logger(ctx)
	outWriter := newLineWriter(log, zerolog.InfoLevel, s.Redact)
	errWriter := newLineWriter(log, zerolog.WarnLevel, s.Redact)
	defer outWriter.Flush()
	defer errWriter.Flush()

	if stdout == nil {
		stdout = outWriter
	}

	if dir == "" {
		dir = s.Dir
	}

	runner, err := interp.New(
		interp.Dir(dir),
		interp.Env(expand.ListEnviron(s.environ(env)...)),
		interp.ExecHandler(execHandler),
		interp.OpenHandler(openHandler),
		interp.StdIO(nil, stdout, errWriter),
		interp.Params("-e"),
	)
	if err != nil {
		return eris.Wrap(err, "Failed to initialize runner")
	}

	printer := syntax.NewPrinter(syntax.Minify(true))
	strBuffer := strings.Builder{}

	for _, node := range nodes {
		strBuffer.Reset()
		err = printer.Print(&strBuffer, node)
		if err != nil {
			return eris.Wrap(err, "failed to print command")
		}

		cmdline := s.Redact(strBuffer.String())
		log.Info().Bool("command", true).Msg(cmdline)

		err = runner.Run(ctx, node)
		if err != nil {
			return eris.Wrapf(err, "command failed: %s", cmdline)
		}

		if runner.Exited() {
			return nil
		}
	}

	return nil
}

// environ merges the process environment with the shell's and the passed overrides
func (s *Shell) environ(overrides map[string]string) []string {
	merged := make(map[string]string, len(s.Env)+len(overrides))
	for k, v := range s.Env {
		merged[normalizeEnvKey(k)] = v
	}
	for k, v := range overrides {
		merged[normalizeEnvKey(k)] = v
	}

	osEnv := os.Environ()
	result := make([]string, 0, len(osEnv)+len(merged))
	for _, item := range osEnv {
		parts := strings.SplitN(item, "=", 2)

		// skip overriden entries to avoid conflicts
		if _, present := merged[normalizeEnvKey(parts[0])]; !present {
			result = append(result, item)
		}
	}

	for k, v := range merged {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}

	return result
}

func normalizeEnvKey(key string) string {
	if runtime.GOOS == "windows" {
		return strings.ToUpper(key)
	}

	return key
}

// callExpr turns an argument list into a shell command without going through the parser so that
// arguments are never split or expanded.
func callExpr(args []string) (*syntax.CallExpr, error) {
	if len(args) == 0 {
		return nil, eris.New("empty command")
	}

	cmd := &syntax.CallExpr{Args: make([]*syntax.Word, len(args))}
	for idx, arg := range args {
		cmd.Args[idx] = literalWord(arg)
	}

	return cmd, nil
}

func literalWord(value string) *syntax.Word {
	if value == "" || strings.ContainsAny(value, " \t\n$'\"\\*?[]{}~&|;<>()#`") {
		return &syntax.Word{Parts: []syntax.WordPart{&syntax.SglQuoted{Value: value}}}
	}

	return &syntax.Word{Parts: []syntax.WordPart{&syntax.Lit{Value: value}}}
}

var defaultExecHandler = interp.DefaultExecHandler(2 * time.Second)

func execHandler(ctx context.Context, args []string) error {
	if len(args) > 0 && fsutil.IsBuiltin(args[0]) {
		// always use our cross-platform implementation for these operations to make sure
		// they behave consistently
		hc := interp.HandlerCtx(ctx)
		err := fsutil.Builtin(hc.Dir, args)
		if err != nil {
			fmt.Fprintln(hc.Stderr, err.Error())
			return interp.NewExitStatus(1)
		}
		return nil
	}

	return defaultExecHandler(ctx, args)
}

var defaultOpenHandler = interp.DefaultOpenHandler()

func openHandler(ctx context.Context, path string, flag int, perm os.FileMode) (io.ReadWriteCloser, error) {
	if path == "/dev/null" {
		path = os.DevNull
	}

	return defaultOpenHandler(ctx, path, flag, perm)
}
