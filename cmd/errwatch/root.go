package main

import (
	"io"

	"github.com/spf13/cobra"

	"github.com/Kargones/errwatch/internal/constants"
)

// newRootCmd собирает дерево команд. Без подкоманды выполняется serve.
func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   constants.AppName,
		Short: "Мониторинг ошибок и алертинг",
		Long: `errwatch принимает ошибки и метрики производительности по HTTP,
классифицирует и агрегирует их, оценивает пороги и рассылает алерты
в дашборд, webhook, Slack, Teams и email.

Конфигурация читается из YAML (--config или ERRWATCH_CONFIG), .env
и переменных окружения ERRWATCH_*. Список переменных: errwatch config --env.`,
		Version:       constants.Version + " (" + constants.PreCommitHash + ")",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, configPath)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return withExitCode(constants.ExitUsage, err)
	})

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "путь к YAML конфигурации")

	root.AddCommand(
		newServeCmd(&configPath),
		newReportCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}
