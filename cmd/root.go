package cmd

import (
	"vidyabot_backend/internal/config"

	"github.com/spf13/cobra"
)

const defaultConfigDir = "configs"

type rootOptions struct {
	configDir string
}

func (o *rootOptions) load() (*config.Config, error) {
	return config.LoadConfig(o.configDir)
}

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:           "vidyabot",
		Short:         "VidyaBot adaptive tutoring backend",
		Long:          "vidyabot serves the adaptive tutoring API, migrates its database and transcribes spoken questions from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVar(&opts.configDir, "config", defaultConfigDir, "directory containing config.yaml")

	rootCmd.AddCommand(
		newServeCmd(opts),
		newMigrateCmd(opts),
		newTranscribeCmd(opts),
	)

	return rootCmd
}
