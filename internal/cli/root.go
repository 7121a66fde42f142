// Package cli wires the safety toolchain into a command-line surface for
// creators and moderators: document validation, requirements manifests, URL
// checking, and regex linting.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envConfig := os.Getenv("QUIZGUARD_CONFIG")

	cmd := &cobra.Command{
		Use:   "quizguard",
		Short: "Safety checks for creator-authored quiz programs",
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", envConfig, "path to YAML config")
	cmd.AddCommand(NewValidateCmd(&configPath))
	cmd.AddCommand(NewRequirementsCmd())
	cmd.AddCommand(NewCheckURLCmd())
	cmd.AddCommand(NewLintRegexCmd())
	return cmd
}
