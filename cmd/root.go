// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/aceteam-ai/guardian/internal/config"
	"github.com/aceteam-ai/guardian/internal/logging"
)

var (
	cfgFile   string
	debugMode bool
	logMode   string
	noColor   bool
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

// loaded by PersistentPreRunE
var (
	cfg    *config.Config
	logger *logging.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "Guardian routes prompts across LLM providers and reads device sensors",
	Long: `A personal assistant backend that answers in named archetypes (Scout, Architect),
falls back across an ordered chain of completion providers, keeps per-provider usage,
and aggregates location, activity, health and device readings under one deadline.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if noColor {
			color.NoColor = true
		}

		path := cfgFile
		if path == "" {
			path = config.FindManifest()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		cfg = loaded

		mode := cfg.LogMode
		if logMode != "" {
			mode = logMode
		}
		l, err := logging.New(mode, debugMode)
		if err != nil {
			return err
		}
		logger = l

		if debugMode {
			logger.Debug("command", "args", commandLine(cmd, args), "manifest", path)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

// commandLine reconstructs the invoked command with the flags that were set.
func commandLine(cmd *cobra.Command, args []string) string {
	full := cmd.CommandPath()
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if f.Name == "debug" {
			return
		}
		if f.Value.Type() == "bool" {
			full += " --" + f.Name
		} else {
			full += " --" + f.Name + "=" + f.Value.String()
		}
	})
	if len(args) > 0 {
		full += " " + strings.Join(args, " ")
	}
	return full
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		badColor.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", fmt.Sprintf("manifest file (default is ./%s or ~/.config/guardian/%s)", config.ManifestName, config.ManifestName))
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&logMode, "log-mode", "", "Log format: production (JSON) or development (console)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable color output")
}
