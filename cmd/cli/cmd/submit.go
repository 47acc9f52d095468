package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"docplain/pkg/api"
)

var (
	submitDocument string
	submitLanguage string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Enqueue a document for translation",
	Long: `Enqueue a medical document for translation into patient-friendly
language. Returns the job id; track it with 'plainctl status <job-id>'.`,
	Run: func(cmd *cobra.Command, args []string) {
		if submitDocument == "" {
			cmd.Println("--document is required")
			return
		}

		client := NewClient(viper.GetString("url"))
		resp, err := client.EnqueueJob(api.EnqueueJobRequest{
			DocumentRef:    submitDocument,
			TargetLanguage: submitLanguage,
		})
		if err != nil {
			cmd.Printf("Failed to enqueue job: %v\n", err)
			return
		}

		cmd.Printf("%s✓%s Job enqueued\n", colorGreen, colorReset)
		cmd.Printf("%sJob ID:%s %s\n", colorDim, colorReset, resp.JobID)
	},
}

func init() {
	submitCmd.Flags().StringVarP(&submitDocument, "document", "d", "", "document reference (required)")
	submitCmd.Flags().StringVarP(&submitLanguage, "language", "l", "", "target language for the translation step")
	rootCmd.AddCommand(submitCmd)
}
