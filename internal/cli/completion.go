package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/examplewatch/internal/target"
)

// exampleDirs hold one source file per example, named after the target.
var exampleDirs = []string{"examples", filepath.Join("src", "examples")}

// writeCompletion prints a completion script for shell.
//
// To load completions:
//
//	Bash:       source <(examplewatch --completion bash)
//	Zsh:        examplewatch --completion zsh > "${fpath[1]}/_examplewatch"
//	Fish:       examplewatch --completion fish > ~/.config/fish/completions/examplewatch.fish
//	PowerShell: examplewatch --completion powershell | Out-String | Invoke-Expression
func writeCompletion(cmd *cobra.Command, shell string) error {
	w := cmd.OutOrStdout()

	switch shell {
	case "bash":
		return cmd.Root().GenBashCompletionV2(w, true)
	case "zsh":
		return cmd.Root().GenZshCompletion(w)
	case "fish":
		return cmd.Root().GenFishCompletion(w, true)
	case "powershell":
		return cmd.Root().GenPowerShellCompletionWithDesc(w)
	default:
		return &ExitError{Code: 2, Err: fmt.Errorf("unsupported shell %q: must be one of bash, zsh, fish, powershell", shell)}
	}
}

// completeTargets offers the example names found under the project root.
func completeTargets(cmd *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	root, _ := cmd.Flags().GetString("root")
	if root == "" {
		root = "."
	}

	return findTargets(root), cobra.ShellCompDirectiveNoFileComp
}

// findTargets lists valid target names derived from example source files.
func findTargets(root string) []string {
	seen := map[string]struct{}{}

	for _, dir := range exampleDirs {
		entries, err := os.ReadDir(filepath.Join(root, dir))
		if err != nil {
			continue
		}

		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".cpp" {
				continue
			}

			name := strings.TrimSuffix(e.Name(), ".cpp")
			if _, err := target.Parse(name); err == nil {
				seen[name] = struct{}{}
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
