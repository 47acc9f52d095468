package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "plainctl",
	Short: "plainctl is a command line tool for the docplain translation engine",
	Long: `plainctl is the command-line interface for docplain, the engine that
translates medical documents into patient-friendly language.

Documents are processed by a configurable pipeline of steps (OCR extraction,
PII redaction, simplification, verification, translation, formatting) defined
in the database and executed by a pool of workers.

Common workflows:

  Enqueue a document:
    plainctl submit --document s3://bucket/report.pdf --language de

  Check job status:
    plainctl status <job-id>

  Inspect the step-by-step audit trail:
    plainctl executions <job-id>

  Cancel a job:
    plainctl cancel <job-id>

  Inspect or toggle pipeline steps:
    plainctl steps
    plainctl steps enable <step-id>
    plainctl steps disable <step-id>

Configuration:
  Set the API endpoint via environment variable or config file:
    DOCPLAIN_URL    API endpoint (default: http://localhost:8080)`,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".plainctl"
		viper.AddConfigPath(home)
		viper.SetConfigName(".plainctl")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "DOCPLAIN_VARNAME"
	viper.SetEnvPrefix("DOCPLAIN")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.plainctl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "docplain controller URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))
}
