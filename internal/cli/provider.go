package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Reel/internal/provider"
)

// NewProviderCmd создаёт группу команд для управления провайдерами.
func NewProviderCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Manage model provider configurations",
	}

	cmd.AddCommand(
		newProviderListCmd(clientFn, outputFn),
		newProviderImportCmd(clientFn, outputFn),
		newProviderDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newProviderListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List provider configurations",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			configs, err := client.ListProviders()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "CATEGORY", "VENDOR", "ASYNC", "HANDLER"}
			rows := make([][]string, len(configs))
			for i, c := range configs {
				rows[i] = []string{c.Name, c.Category, c.Provider, strconv.FormatBool(c.IsAsync()), c.CustomHandler}
			}

			out.Print(headers, rows, configs)
			return nil
		},
	}
}

func newProviderImportCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE.toml",
		Short: "Create or replace providers from a TOML catalog file",
		Long: `Reads [[providers]] tables from a TOML file, validates every entry
locally and uploads them one by one.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			configs, err := provider.DecodeCatalog(f)
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			// Проверяем все до первой загрузки
			for i := range configs {
				if err := provider.Validate(&configs[i]); err != nil {
					return err
				}
			}

			for i := range configs {
				if err := client.PutProvider(&configs[i]); err != nil {
					return fmt.Errorf("upload %s: %w", configs[i].Name, err)
				}
				out.Success(fmt.Sprintf("Provider saved: %s", configs[i].Name))
			}
			return nil
		},
	}
}

func newProviderDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a provider configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteProvider(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Provider deleted: %s", args[0]))
			return nil
		},
	}
}
