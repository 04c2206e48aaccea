package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewJobCmd создаёт группу команд для управления jobs.
func NewJobCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "job",
		Short: "Manage generation jobs",
	}

	cmd.AddCommand(
		newJobListCmd(clientFn, outputFn),
		newJobStartCmd(clientFn, outputFn),
		newJobShowCmd(clientFn, outputFn),
		newJobWaitCmd(clientFn, outputFn),
		newJobResumeCmd(clientFn, outputFn),
		newJobCancelCmd(clientFn, outputFn),
		newJobConsumeCmd(clientFn, outputFn),
	)

	return cmd
}

var jobHeaders = []string{"ID", "WORKFLOW", "STATUS", "STEP", "ERROR", "CREATED"}

func jobRow(j JobResponse) []string {
	return []string{
		j.ID,
		j.WorkflowType,
		j.Status,
		fmt.Sprintf("%d/%d", j.CurrentStepIndex+1, j.TotalSteps),
		j.Error,
		j.CreatedAt,
	}
}

func newJobListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var opts ListJobsOpts

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			jobs, err := client.ListJobs(opts)
			if err != nil {
				return err
			}

			rows := make([][]string, len(jobs))
			for i, j := range jobs {
				rows[i] = jobRow(j)
			}

			out.Print(jobHeaders, rows, jobs)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Workflow, "workflow", "", "Filter by workflow")
	cmd.Flags().StringVar(&opts.Status, "status", "", "Filter by status (pending, running, completed, failed, cancelled)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newJobStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var projectID string
	var inputs []string
	var inputJSON string

	cmd := &cobra.Command{
		Use:   "start WORKFLOW",
		Short: "Start a generation job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := parseInput(inputJSON, inputs)
			if err != nil {
				return err
			}

			resp, err := client.StartJob(args[0], StartJobRequest{
				ProjectID: projectID,
				Input:     input,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job started: %s", resp.JobID))
			out.Print(taskHeaders, taskRows(resp.Tasks), resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&projectID, "project", "", "Project ID")
	cmd.Flags().StringSliceVar(&inputs, "input", nil, "Input values as KEY=VALUE (repeatable)")
	cmd.Flags().StringVar(&inputJSON, "input-json", "", "Input parameters as a JSON object")

	return cmd
}

var taskHeaders = []string{"STEP", "TYPE", "STATUS", "PROGRESS", "ERROR"}

func taskRows(tasks []TaskResponse) [][]string {
	rows := make([][]string, len(tasks))
	for i, t := range tasks {
		rows[i] = []string{
			strconv.Itoa(t.StepIndex),
			t.StepType,
			t.Status,
			strconv.Itoa(t.Progress) + "%",
			t.Error,
		}
	}
	return rows
}

func newJobShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show job status and tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetJob(args[0])
			if err != nil {
				return err
			}

			printStatus(out, status)
			return nil
		},
	}
}

func printStatus(out *Output, status *JobStatusResponse) {
	if out.jsonMode {
		out.JSON(status)
		return
	}
	out.Table(jobHeaders, [][]string{jobRow(status.Job)})
	out.Table(taskHeaders, taskRows(status.Tasks))
}

func newJobWaitCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var interval time.Duration
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "wait ID",
		Short: "Wait until a job stops running",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			deadline := time.Now().Add(timeout)
			for {
				status, err := client.GetJob(args[0])
				if err != nil {
					return err
				}

				switch status.Job.Status {
				case "completed", "failed", "cancelled":
					printStatus(out, status)
					if status.Job.Status != "completed" {
						return fmt.Errorf("job %s: %s", status.Job.Status, status.Job.Error)
					}
					return nil
				}

				if time.Now().After(deadline) {
					return fmt.Errorf("timed out after %s, job is %s", timeout, status.Job.Status)
				}

				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(interval):
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "Polling interval")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Minute, "Maximum wait time")

	return cmd
}

func newJobResumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "resume ID",
		Short: "Resume a failed job from the first unfinished step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ResumeJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job %s: %s", resp.Status, resp.JobID))
			return nil
		},
	}
}

func newJobCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			job, err := client.CancelJob(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Job cancelled: %s", job.ID))
			return nil
		},
	}
}

func newJobConsumeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "consume ID",
		Short: "Mark the result of a completed job as consumed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			resp, err := client.ConsumeJob(args[0])
			if err != nil {
				return err
			}

			if resp.Consumed {
				out.Success(fmt.Sprintf("Job consumed: %s", resp.JobID))
			} else {
				out.Success(fmt.Sprintf("Job already consumed: %s", resp.JobID))
			}
			return nil
		},
	}
}

// parseInput собирает входные параметры из JSON-объекта и пар KEY=VALUE.
// Пары перекрывают ключи JSON.
func parseInput(inputJSON string, pairs []string) (map[string]any, error) {
	input := make(map[string]any)

	if inputJSON != "" {
		if err := json.Unmarshal([]byte(inputJSON), &input); err != nil {
			return nil, fmt.Errorf("invalid --input-json: %w", err)
		}
	}

	for _, kv := range pairs {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || parts[0] == "" {
			return nil, fmt.Errorf("invalid input format %q, expected KEY=VALUE", kv)
		}
		input[parts[0]] = parts[1]
	}

	if len(input) == 0 {
		return nil, nil
	}
	return input, nil
}
