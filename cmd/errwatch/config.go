package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kargones/errwatch/internal/config"
	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/output"
)

func newConfigCmd(configPath *string) *cobra.Command {
	var format string
	var envHelp bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Показать итоговую конфигурацию",
		Long: `config загружает и проверяет конфигурацию так же, как serve, и печатает
её в YAML. Пароли, секреты и адреса webhook маскируются.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if envHelp {
				usage, err := config.Usage()
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write([]byte(usage + "\n"))
				return err
			}
			f, err := output.ParseFormat(format)
			if err != nil {
				return withExitCode(constants.ExitUsage, err)
			}
			return runConfig(cmd, *configPath, f)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "формат вывода: text (YAML) или json")
	cmd.Flags().BoolVar(&envHelp, "env", false, "вывести список переменных окружения")
	return cmd
}

func runConfig(cmd *cobra.Command, configPath, format string) error {
	start := time.Now()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	body, err := cfg.YAML()
	if err != nil {
		return apperrors.NewAppError(apperrors.ErrOutputFormat, "не удалось сериализовать конфигурацию", err)
	}

	res := output.Success("config", cfg.Masked())
	res.Text = string(body)
	res.Metadata = &output.Metadata{
		DurationMs: time.Since(start).Milliseconds(),
		APIVersion: output.APIVersion,
		Version:    constants.Version,
	}

	summary := output.NewSummaryInfo()
	summary.AddMetric("Каналов алертов", strconv.Itoa(enabledChannels(&cfg.Alerting)), "")
	for _, w := range cfg.Warnings() {
		summary.AddWarning(w)
	}
	res.Summary = summary

	if err := output.NewWriter(format).Write(cmd.OutOrStdout(), res); err != nil {
		return apperrors.NewAppError(apperrors.ErrOutputFormat, "не удалось вывести конфигурацию", err)
	}
	return nil
}

func enabledChannels(a *config.AlertingConfig) int {
	n := 0
	for _, on := range []bool{a.Dashboard.Enabled, a.Webhook.Enabled, a.Slack.Enabled, a.Teams.Enabled, a.Email.Enabled} {
		if on {
			n++
		}
	}
	return n
}
