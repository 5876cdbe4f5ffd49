package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ngld/relkit/pkg/fsutil"
)

// The same implementations are used by the shell runtime so scripts can call them without relkit
// on the PATH.
var posixHelpers = []struct {
	name  string
	usage string
	short string
}{
	{"rm", "rm [-rf] <path>...", "Cross-platform implementation of the POSIX rm command"},
	{"mv", "mv <source>... <dest>", "Cross-platform implementation of the POSIX mv command"},
	{"mkdir", "mkdir [-p] <path>...", "Cross-platform implementation of the POSIX mkdir command"},
}

func posixHelperCmd(name, usage, short string) *cobra.Command {
	return &cobra.Command{
		Use:                usage,
		Short:              short,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fsutil.Builtin(".", append([]string{name}, args...))
		},
	}
}

func init() {
	for _, helper := range posixHelpers {
		rootCmd.AddCommand(posixHelperCmd(helper.name, helper.usage, helper.short))
	}
}
