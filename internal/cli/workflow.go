package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewWorkflowCmd создаёт группу команд для просмотра пайплайнов.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Inspect workflows",
	}

	cmd.AddCommand(newWorkflowListCmd(clientFn, outputFn))

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows()
			if err != nil {
				return err
			}

			headers := []string{"NAME", "STEPS", "PIPELINE"}
			rows := make([][]string, len(workflows))
			for i, w := range workflows {
				types := make([]string, len(w.Steps))
				for j, s := range w.Steps {
					types[j] = s.Type
				}
				rows[i] = []string{w.Name, strconv.Itoa(len(w.Steps)), strings.Join(types, " → ")}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}
}
