package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var jobsLimit int

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect generation jobs",
	Long: `List recent generation jobs or inspect a specific job by ID.

Examples:
  draftsmith jobs             # List recent jobs
  draftsmith jobs abc123      # Show details for job abc123
  draftsmith jobs watch abc1  # Follow a job until it finishes
  draftsmith jobs cancel abc1 # Cancel a queued or running job`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

var jobsWatchCmd = &cobra.Command{
	Use:   "watch <job-id>",
	Short: "Follow a job until it reaches a terminal state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.GetJob(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("get job: %w", err)
		}
		return RunJobProgress(apiClient, job)
	},
}

var jobsCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		job, err := apiClient.CancelJob(context.Background(), args[0])
		if err != nil {
			return fmt.Errorf("cancel job: %w", err)
		}
		fmt.Printf("Job %s canceled\n", job.ID)
		return nil
	},
}

func init() {
	jobsCmd.Flags().IntVarP(&jobsLimit, "limit", "n", 50, "max jobs to list")
	jobsCmd.AddCommand(jobsWatchCmd)
	jobsCmd.AddCommand(jobsCancelCmd)
	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}
	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	jobs, err := apiClient.ListJobs(ctx, jobsLimit)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-10s %-12s %-18s %-10s %s\n", "ID", "STATUS", "MODEL", "PROGRESS", "CREATED")
	fmt.Println("------------------------------------------------------------------------")

	for _, job := range jobs {
		model := job.Provider + "/" + job.Model
		created := job.CreatedAt.Format("15:04:05")
		fmt.Printf("%-10s %-12s %-18s %-10s %s\n", job.ID, job.Status, model,
			fmt.Sprintf("%d%%", job.Progress), created)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Provider: %s\n", job.Provider)
	fmt.Printf("  Model: %s\n", job.Model)
	fmt.Printf("  Status: %s\n", job.Status)
	fmt.Printf("  Progress: %d%%\n", job.Progress)
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		duration := job.CompletedAt.Sub(job.CreatedAt)
		fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
	}
	if job.ResultRef != "" {
		fmt.Printf("  Result: %s\n", job.ResultRef)
	}
	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	return nil
}
