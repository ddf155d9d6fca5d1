package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/examplewatch/internal/target"
)

type rootOptions struct {
	configFile  string
	printConfig bool
	completion  string

	target target.Target
}

// registerFlags adds the global and supervisor flags. Flag names match the
// configuration keys so viper can bind them directly.
func registerFlags(cmd *cobra.Command, opts *rootOptions) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (default: .examplewatch.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "text", "log format: text, json")
	pf.Bool("no-color", false, "disable colored output and screen clearing")
	pf.Bool("quiet", false, "suppress non-essential log output")

	f := cmd.Flags()
	f.String("root", ".", "project root holding the sources, Makefile and bin directory")
	f.Duration("debounce", 500*time.Millisecond, "quiet period that settles a burst of file changes")
	f.String("binary", "bin/{target}", "path of the built example, relative to the root")
	f.Bool("inherit-env", false, "pass the supervisor's environment to the example")
	f.BoolVar(&opts.printConfig, "print-config", false, "print the effective configuration as YAML and exit")
	f.StringVar(&opts.completion, "completion", "", "print a shell completion script: bash, zsh, fish, powershell")
}
