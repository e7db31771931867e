package main

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Kargones/errwatch/internal/config"
	"github.com/Kargones/errwatch/internal/constants"
	"github.com/Kargones/errwatch/internal/di"
	"github.com/Kargones/errwatch/internal/entity/monitoring"
	"github.com/Kargones/errwatch/internal/pkg/apperrors"
	"github.com/Kargones/errwatch/internal/pkg/output"
	"github.com/Kargones/errwatch/internal/pkg/tracing"
)

// reportData — JSON-вид отчёта.
type reportData struct {
	Analytics monitoring.ErrorAnalytics `json:"analytics"`
	Trend     monitoring.TrendAnalysis  `json:"trend"`
}

func newReportCmd(configPath *string) *cobra.Command {
	var format, period string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Построить отчёт по сохранённому снапшоту",
		Long: `report восстанавливает состояние из снапшота и печатает аналитику
и текстовый отчёт. Сервис при этом может работать: снапшот только читается.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := output.ParseFormat(format)
			if err != nil {
				return withExitCode(constants.ExitUsage, err)
			}
			return runReport(cmd, *configPath, f, monitoring.Period(period))
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", output.FormatText, "формат вывода: text или json")
	cmd.Flags().StringVarP(&period, "period", "p", string(monitoring.PeriodWeek), "окно тренда: 1d, 7d или 30d")
	return cmd
}

func runReport(cmd *cobra.Command, configPath, format string, period monitoring.Period) error {
	start := time.Now()
	traceID := tracing.GenerateTraceID()
	ctx := tracing.WithTraceID(cmd.Context(), traceID)

	if _, err := period.Duration(); err != nil {
		return withExitCode(constants.ExitUsage, err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// отчёт ничего не отправляет наружу
	cfg.Sink.Type = config.SinkNop
	cfg.Feed.RedisAddr = ""
	cfg.Metrics.Enabled = false
	cfg.Tracing.Enabled = false

	app, err := di.InitializeApp(ctx, cfg)
	if err != nil {
		return withExitCode(constants.ExitInit, err)
	}
	app.Pipeline.Restore(ctx)

	analyzer := app.Pipeline.Analyzer()
	analytics := analyzer.Analytics()
	trend, err := analyzer.Analyze(period)
	if err != nil {
		return err
	}

	res := output.Success("report", reportData{Analytics: analytics, Trend: trend})
	res.Text = analyzer.Report()
	res.Metadata = &output.Metadata{
		DurationMs: time.Since(start).Milliseconds(),
		TraceID:    traceID,
		APIVersion: output.APIVersion,
		Version:    constants.Version,
	}
	res.Summary = reportSummary(app.Pipeline.Points().Size(), analytics, trend)

	if err := output.NewWriter(format).Write(cmd.OutOrStdout(), res); err != nil {
		return apperrors.NewAppError(apperrors.ErrOutputFormat, "не удалось вывести отчёт", err)
	}
	return nil
}

func reportSummary(points int, an monitoring.ErrorAnalytics, trend monitoring.TrendAnalysis) *output.SummaryInfo {
	s := output.NewSummaryInfo()
	s.AddMetric("Точек в ряду", strconv.Itoa(points), "шт")
	s.AddMetric("Ошибок за период "+string(trend.Period), strconv.FormatFloat(trend.CurrentTotal, 'f', -1, 64), "шт")
	s.AddMetric("Изменение", strconv.FormatFloat(trend.ErrorChange, 'f', -1, 64), "%")
	s.AddMetric("Частота ошибок", strconv.FormatFloat(an.ErrorRate, 'f', -1, 64), "в час")
	if points == 0 {
		s.AddWarning("снапшот пуст или не найден")
	}
	return s
}
