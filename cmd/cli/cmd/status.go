package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docplain/pkg/api"
)

var statusCmd = &cobra.Command{
	Use:   "status [job_id]",
	Short: "Get status of a job",
	Long: `Retrieve detailed status information for a translation job, including
its current state (QUEUED, RUNNING, COMPLETED, FAILED, CANCELLED, TIMEOUT),
pipeline position, attempt count, and any terminal error.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		job, err := client.GetJob(args[0])
		if err != nil {
			cmd.Printf("Failed to get job: %v\n", err)
			return
		}
		printStatus(cmd, job)
	},
}

func printStatus(cmd *cobra.Command, job *api.JobResponse) {
	cmd.Printf("%s %sJob Details%s\n", statusIcon(job.State), colorBold, colorReset)
	cmd.Println("──────────────────────────────")

	cmd.Printf("%sID:%s          %s\n", colorDim, colorReset, job.ID)
	cmd.Printf("%sDocument:%s    %s\n", colorDim, colorReset, job.DocumentRef)
	cmd.Printf("%sState:%s       %s\n", colorDim, colorReset, colorizeState(job.State))
	cmd.Printf("%sStep index:%s  %d\n", colorDim, colorReset, job.CurrentStepIndex)
	cmd.Printf("%sAttempt:%s     %d\n", colorDim, colorReset, job.Attempt)
	if job.TargetLanguage != "" {
		cmd.Printf("%sLanguage:%s    %s\n", colorDim, colorReset, job.TargetLanguage)
	}
	if job.ErrorMessage != "" {
		cmd.Printf("%sError:%s       %s[%s] %s%s\n", colorDim, colorReset, colorRed, job.ErrorKind, job.ErrorMessage, colorReset)
	}

	cmd.Printf("%sCreated:%s     %s\n", colorDim, colorReset, formatTime(&job.CreatedAt))
	cmd.Printf("%sStarted:%s     %s\n", colorDim, colorReset, formatTime(job.StartedAt))
	if job.StartedAt != nil && job.CompletedAt != nil {
		duration := job.CompletedAt.Sub(*job.StartedAt)
		cmd.Printf("%sFinished:%s    %s %s(%s)%s\n", colorDim, colorReset,
			formatTime(job.CompletedAt), colorCyan, duration.Round(time.Millisecond), colorReset)
	} else {
		cmd.Printf("%sFinished:%s    %s\n", colorDim, colorReset, formatTime(job.CompletedAt))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

func statusIcon(state string) string {
	switch state {
	case "COMPLETED":
		return colorGreen + "✓" + colorReset
	case "FAILED", "TIMEOUT":
		return colorRed + "✗" + colorReset
	case "RUNNING":
		return colorYellow + "⏳" + colorReset
	case "QUEUED":
		return colorCyan + "◯" + colorReset
	default:
		return "•"
	}
}

func colorizeState(state string) string {
	switch state {
	case "COMPLETED":
		return colorGreen + state + colorReset
	case "FAILED", "TIMEOUT":
		return colorRed + state + colorReset
	case "RUNNING":
		return colorYellow + state + colorReset
	default:
		return state
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return fmt.Sprintf("%s %s(%s ago)%s",
		t.Local().Format(time.RFC3339), colorDim, time.Since(*t).Round(time.Second), colorReset)
}
