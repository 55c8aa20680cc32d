// cmd/ask.go
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aceteam-ai/guardian/internal/archetype"
	"github.com/aceteam-ai/guardian/internal/router"
)

var (
	askArchetype    string
	askInstructions string
	askJSON         bool
)

var askCmd = &cobra.Command{
	Use:   "ask [prompt]",
	Short: "Ask the guardian a question in one of its archetypes",
	Long: `Composes the archetype's system prompt with your prompt and sends it to the
archetype's primary provider, falling back in order to the alternates when
the primary fails.`,
	Example: `  # Quick question with the default archetype
  guardian ask "What's a good name for a cat?"

  # Deep planning with the Architect and custom instructions
  guardian ask --archetype Architect --instructions "Use bullet points" "Plan a garden"

  # Machine readable output
  guardian ask --json "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		name := askArchetype
		if name == "" {
			name = cfg.DefaultArchetype
		}

		resp, err := a.guardian.Ask(cmd.Context(), archetype.AppRequest{
			Prompt:           strings.Join(args, " "),
			Archetype:        name,
			UserSystemPrompt: askInstructions,
		})
		if err != nil {
			if errors.Is(err, archetype.ErrArchetypeNotFound) {
				return fmt.Errorf("%w (available: %s)", err, strings.Join(a.registry.Names(), ", "))
			}
			printRouteFailure(cmd, err)
			return err
		}

		out := cmd.OutOrStdout()
		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}

		fmt.Fprintln(out, resp.Content)
		labelColor.Fprintf(cmd.ErrOrStderr(), "\n[%s via %s, %s]\n", resp.Archetype, resp.Source, resp.Model)
		return nil
	},
}

// printRouteFailure lists each source's failure cause.
func printRouteFailure(cmd *cobra.Command, err error) {
	var exhausted *router.ExhaustedError
	if !errors.As(err, &exhausted) {
		return
	}
	w := cmd.ErrOrStderr()
	headerColor.Fprintln(w, "Every source failed:")
	for _, attempt := range exhausted.Attempts {
		fmt.Fprintf(w, "  %s %s: %v\n", badColor.Sprint("✗"), labelColor.Sprint(attempt.Source), attempt.Err)
	}
}

func init() {
	askCmd.Flags().StringVarP(&askArchetype, "archetype", "a", "", "Archetype to answer in (default from manifest)")
	askCmd.Flags().StringVarP(&askInstructions, "instructions", "i", "", "Extra instructions appended to the system prompt")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the response as JSON")
	rootCmd.AddCommand(askCmd)
}
