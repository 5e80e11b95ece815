package cmd

import (
	"vidyabot_backend/internal/app"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, realtime gateway and background workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			// 启动时强制执行数据库迁移（即使是 release 模式）
			cfg.ForceMigrate = migrate

			application, err := app.NewApp(cfg, opts.configDir)
			if err != nil {
				return err
			}
			cmd.Printf("%s listening on :%s\n", color.New(color.FgGreen).Sprint("vidyabot"), cfg.Server.Port)
			return application.Run()
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "run database migrations before serving, even in release mode")
	return cmd
}
