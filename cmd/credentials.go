// cmd/credentials.go
package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/aceteam-ai/guardian/internal/credentials"
)

var credentialsCmd = &cobra.Command{
	Use:     "credentials",
	Aliases: []string{"creds"},
	Short:   "Manage provider API keys",
	Long: `Stores and removes provider API keys in the configured credential backend.
The env backend is read-only: export <PROVIDER>_API_KEY instead (e.g. GROQ_API_KEY).`,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <provider> [key]",
	Short: "Store a provider's API key (reads stdin when key is omitted)",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := ""
		if len(args) == 2 {
			secret = args[1]
		} else {
			read, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr(), args[0])
			if err != nil {
				return err
			}
			secret = read
		}
		if secret == "" {
			return errors.New("key must not be empty")
		}

		return withCredentials(func(store credentials.Store) error {
			if err := store.Put(cmd.Context(), args[0], secret); err != nil {
				return readOnlyHint(err)
			}
			goodColor.Fprintf(cmd.OutOrStdout(), "Stored key for %s\n", args[0])
			return nil
		})
	},
}

var credentialsDeleteCmd = &cobra.Command{
	Use:   "delete <provider>",
	Short: "Remove a provider's API key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(func(store credentials.Store) error {
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return readOnlyHint(err)
			}
			goodColor.Fprintf(cmd.OutOrStdout(), "Removed key for %s\n", args[0])
			return nil
		})
	},
}

var credentialsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every stored API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(func(store credentials.Store) error {
			if err := store.DeleteAll(cmd.Context()); err != nil {
				return readOnlyHint(err)
			}
			goodColor.Fprintln(cmd.OutOrStdout(), "Removed all keys")
			return nil
		})
	},
}

var credentialsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Report which providers that require a key have one",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCredentials(func(store credentials.Store) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			defer w.Flush()

			headerColor.Fprintf(w, "--- Credentials (%s backend) ---\n", cfg.Credentials)
			for _, p := range cfg.Providers {
				if !p.RequiresAuth {
					fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint(p.Name), "not required")
					continue
				}
				_, err := store.Get(cmd.Context(), p.Name)
				switch {
				case err == nil:
					fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint(p.Name), goodColor.Sprint("present"))
				case errors.Is(err, credentials.ErrNotFound):
					fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint(p.Name), warnColor.Sprint("missing"))
				default:
					fmt.Fprintf(w, "  %s:\t%s\n", labelColor.Sprint(p.Name), badColor.Sprintf("error: %v", err))
				}
			}
			return nil
		})
	},
}

// readSecret reads one key from in. A terminal gets a prompt and no echo;
// anything else (a pipe, a file) is read as a single line.
func readSecret(in io.Reader, prompt io.Writer, source string) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprintf(prompt, "API key for %s: ", source)
		key, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("failed to read key: %w", err)
		}
		return strings.TrimSpace(string(key)), nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read key from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// withCredentials opens the configured store for the duration of fn.
func withCredentials(fn func(credentials.Store) error) error {
	store, closeFn, err := cfg.CredentialStore()
	if err != nil {
		return err
	}
	defer closeFn()
	return fn(store)
}

func readOnlyHint(err error) error {
	if errors.Is(err, credentials.ErrReadOnly) {
		return fmt.Errorf("%w: the %s backend cannot store keys; set credentials: redis in the manifest or export the variable", err, cfg.Credentials)
	}
	return err
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd, credentialsDeleteCmd, credentialsClearCmd, credentialsCheckCmd)
	rootCmd.AddCommand(credentialsCmd)
}
