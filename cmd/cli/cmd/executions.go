package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var executionsCmd = &cobra.Command{
	Use:   "executions [job_id]",
	Short: "Show the step execution trail of a job",
	Long: `List the append-only audit trail of a job: one row per attempted
pipeline step, across all claim attempts, with status, model used and
duration.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		execs, err := client.ListExecutions(args[0])
		if err != nil {
			cmd.Printf("Failed to list executions: %v\n", err)
			return
		}
		if len(execs) == 0 {
			cmd.Println("No step executions recorded yet.")
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ATTEMPT\tORDER\tSTEP\tSTATUS\tMODEL\tDURATION\tERROR")
		for _, e := range execs {
			fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Attempt, e.StepOrder, e.StepName, colorizeExecStatus(e.Status),
				orDash(e.ModelUsed),
				(time.Duration(e.DurationMS) * time.Millisecond).String(),
				orDash(e.ErrorMessage))
		}
		w.Flush()
	},
}

func colorizeExecStatus(status string) string {
	switch status {
	case "SUCCESS":
		return colorGreen + status + colorReset
	case "FAILED":
		return colorRed + status + colorReset
	case "SKIPPED":
		return colorDim + status + colorReset
	default:
		return status
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	rootCmd.AddCommand(executionsCmd)
}
