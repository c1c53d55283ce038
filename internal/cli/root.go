// Package cli wires the ollama-code commands together: flag parsing,
// configuration layering and the runtime assembly shared by the run,
// tasks and models commands.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/seanpoyner/ollama-code/internal/config"
	"github.com/seanpoyner/ollama-code/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "ollama-code [request]",
	Short: "Local coding assistant backed by Ollama",
	Long: `ollama-code is a coding assistant that runs entirely against a local
Ollama model. Complex requests are broken into a task batch and executed
one task at a time, with each result validated before moving on.`,
	Version: version.Version,
	Args:    cobra.ArbitraryArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A bare request runs directly: `ollama-code "build a fastapi app"`.
		if len(args) == 0 {
			return cmd.Help()
		}
		return runRequest(cmd, strings.Join(args, " "), false)
	},
}

// Flag values bound in init. Flags override config files, which override
// defaults.
var (
	flagModel       string
	flagHost        string
	flagLogLevel    string
	flagAutoApprove bool
	flagPlain       bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagModel, "model", "", "Ollama model to use")
	pf.StringVar(&flagHost, "host", "", "Ollama server URL")
	pf.StringVar(&flagLogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVarP(&flagAutoApprove, "yes", "y", false, "approve file writes and shell commands without asking")
	pf.BoolVar(&flagPlain, "plain", false, "plain line output instead of the interactive monitor")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig builds the effective config for the working directory and
// applies command-line overrides.
func loadConfig(dir string) (*config.Config, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)
	return cfg, nil
}

func applyFlags(cfg *config.Config) {
	if flagModel != "" {
		cfg.Model = flagModel
	}
	if flagHost != "" {
		cfg.Host = flagHost
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagAutoApprove {
		cfg.AutoApprove = true
	}
	if flagPlain {
		cfg.PlainOutput = true
	}
}

func workDir() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("cannot determine working directory: %w", err)
	}
	return dir, nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
