package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "List and manage pipeline steps",
	Long: `List the configured pipeline steps in execution order, or toggle a
step on or off. Disabling a step only affects jobs enqueued afterwards;
in-flight jobs keep the pipeline they started with.`,
	Run: func(cmd *cobra.Command, args []string) {
		client := NewClient(viper.GetString("url"))
		steps, err := client.ListSteps()
		if err != nil {
			cmd.Printf("Failed to list steps: %v\n", err)
			return
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ORDER\tNAME\tKIND\tENABLED\tMODEL\tOUTPUT KEY\tID")
		for _, s := range steps {
			enabled := colorGreen + "yes" + colorReset
			if !s.Enabled {
				enabled = colorDim + "no" + colorReset
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.Order, s.Name, s.Kind, enabled, orDash(s.ModelRef), s.OutputKey, s.ID)
		}
		w.Flush()
	},
}

var stepsEnableCmd = &cobra.Command{
	Use:   "enable [step_id]",
	Short: "Enable a pipeline step",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setStepEnabled(cmd, args[0], true)
	},
}

var stepsDisableCmd = &cobra.Command{
	Use:   "disable [step_id]",
	Short: "Disable a pipeline step",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		setStepEnabled(cmd, args[0], false)
	},
}

func setStepEnabled(cmd *cobra.Command, stepID string, enabled bool) {
	client := NewClient(viper.GetString("url"))
	if err := client.SetStepEnabled(stepID, enabled); err != nil {
		cmd.Printf("Failed to update step: %v\n", err)
		return
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	cmd.Printf("%s✓%s Step %s %s\n", colorGreen, colorReset, stepID, verb)
}

func init() {
	stepsCmd.AddCommand(stepsEnableCmd)
	stepsCmd.AddCommand(stepsDisableCmd)
	rootCmd.AddCommand(stepsCmd)
}
