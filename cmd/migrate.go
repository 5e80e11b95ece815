package cmd

import (
	"vidyabot_backend/pkg/database"
	"vidyabot_backend/pkg/logger"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			cfg.ForceMigrate = true
			cfg.MigrateOnly = true
			logger.InitLogger(cfg)
			defer logger.Log.Sync()

			db, err := database.InitDB(&cfg.Database, false)
			if err != nil {
				cmd.Printf("%s %v\n", color.New(color.FgRed).Sprint("FAILED"), err)
				return err
			}
			if err := database.Migrate(db); err != nil {
				cmd.Printf("%s %v\n", color.New(color.FgRed).Sprint("FAILED"), err)
				return err
			}
			cmd.Printf("%s database schema is up to date\n", color.New(color.FgGreen).Sprint("OK"))
			return nil
		},
	}
}
