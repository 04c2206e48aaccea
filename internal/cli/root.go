package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd собирает корневую команду reel.
// Потоки вывода берутся из cmd.OutOrStdout/ErrOrStderr, поэтому их
// можно подменить через SetOut/SetErr.
func NewRootCmd(version string) *cobra.Command {
	var apiURL string
	var userID string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "reel",
		Short:         "Reel CLI — generation pipelines client",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("REEL_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&userID, "user", envOr("REEL_USER", ""), "User ID sent as X-User-ID")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *Client { return NewClient(apiURL, userID) }
	outputFn := func() *Output {
		return NewOutputTo(jsonOutput, rootCmd.OutOrStdout(), rootCmd.ErrOrStderr())
	}

	rootCmd.AddCommand(
		NewWorkflowCmd(clientFn, outputFn),
		NewJobCmd(clientFn, outputFn),
		NewProviderCmd(clientFn, outputFn),
	)

	return rootCmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
