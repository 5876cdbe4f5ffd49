package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/colorstring"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ConsoleWriter renders zerolog's JSON events as coloured lines.
type ConsoleWriter struct {
	out    io.Writer
	buffer strings.Builder
	lock   sync.Mutex
}

func NewConsoleWriter(out io.Writer) *ConsoleWriter {
	return &ConsoleWriter{out: out}
}

func (w *ConsoleWriter) Write(p []byte) (n int, err error) {
	w.lock.Lock()
	defer w.lock.Unlock()

	var evt map[string]interface{}
	d := json.NewDecoder(bytes.NewReader(p))
	d.UseNumber()
	err = d.Decode(&evt)
	if err != nil {
		return n, eris.Wrapf(err, "cannot decode event: %s", p)
	}

	w.buffer.Reset()

	// only the prefix goes through colorstring since messages may contain brackets
	prefix := ""
	switch evt["level"] {
	case "fatal", "panic", "error":
		prefix = "[red]"
	case "warn":
		prefix = "[yellow]"
	case "debug", "trace":
		prefix = "[blue]"
	default:
		prefix = "[green]"
	}

	if task, ok := evt["task"].(string); ok {
		prefix += task + ": "
	}

	if evt["level"] == "error" {
		prefix += "Error: "
	}

	if isCmd, ok := evt["command"].(bool); ok && isCmd {
		prefix += "[bold]$ "
	}

	w.buffer.WriteString(colorstring.Color(prefix))

	if msg, ok := evt["message"].(string); ok {
		w.buffer.WriteString(msg)
	}

	if errorDetails, ok := evt["error"]; ok {
		w.buffer.WriteString("\n")
		w.buffer.WriteString(fmt.Sprint(errorDetails))
	}

	if debugEnabled() {
		names := make([]string, 0, len(evt))
		for name := range evt {
			names = append(names, name)
		}
		sort.Strings(names)

		w.buffer.WriteString("\n")
		for _, name := range names {
			w.buffer.WriteString(fmt.Sprintf("  %s: %+v\n", name, evt[name]))
		}
	}

	w.buffer.WriteString(colorstring.Color("[reset]"))
	w.buffer.WriteString("\n")

	_, err = io.WriteString(w.out, w.buffer.String())
	if err != nil {
		return 0, err
	}

	return len(p), nil
}

func debugEnabled() bool {
	return os.Getenv("RELKIT_DEBUG") != ""
}

func init() {
	zerolog.ErrorMarshalFunc = func(err error) interface{} {
		return eris.ToString(err, debugEnabled())
	}
}
