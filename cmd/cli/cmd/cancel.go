package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel [job_id]",
	Short: "Cancel a job",
	Long: `Request cancellation of a job. Queued jobs are cancelled immediately;
running jobs are marked and stop at the next step boundary. Finished jobs
cannot be cancelled.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		if err := client.CancelJob(args[0]); err != nil {
			cmd.Printf("Failed to cancel job: %v\n", err)
			return
		}
		cmd.Printf("%s✓%s Cancellation requested for job %s\n", colorGreen, colorReset, args[0])
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
