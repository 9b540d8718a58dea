// Command codis-fetch brings per-station CSV artifacts of hourly CODiS
// observations up to date. Runtime settings come from the environment (and an
// optional .env file); the stations and date range come from the job file
// named by JOB_FILE.
//
// Exit status: 0 when every station is done or already up to date, or when
// the operator quits at the date prompt; 1 on a configuration error; 2 when
// at least one station failed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/couchcryptid/codis-weather-etl/internal/adapter/codis"
	httpadapter "github.com/couchcryptid/codis-weather-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/codis-weather-etl/internal/adapter/kafka"
	"github.com/couchcryptid/codis-weather-etl/internal/adapter/terminal"
	"github.com/couchcryptid/codis-weather-etl/internal/config"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/couchcryptid/codis-weather-etl/internal/ledger"
	"github.com/couchcryptid/codis-weather-etl/internal/observability"
	"github.com/couchcryptid/codis-weather-etl/internal/pipeline"
)

const (
	exitOK            = 0
	exitConfiguration = 1
	exitStationFailed = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to load .env", "error", err)
		return exitConfiguration
	}
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return exitConfiguration
	}

	logger := observability.NewLogger(cfg)
	slog.SetDefault(logger)
	metrics := observability.NewMetrics()

	job, err := prepareJob(cfg.JobFile, terminal.NewPrompt(os.Stdin, os.Stdout))
	if errors.Is(err, domain.ErrAborted) {
		logger.Info("quit at date prompt")
		return exitOK
	}
	if err != nil {
		logger.Error("invalid job", "job_file", cfg.JobFile, "error", err)
		return exitConfiguration
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var sink pipeline.OutcomeSink
	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		sink = writer
		logger.Info("publishing station outcomes", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(
		codis.NewClient(cfg, metrics, logger),
		ledger.New(job.DataDirectory, logger),
		sink,
		logger,
		metrics,
	)

	if cfg.HTTPAddr != "" {
		srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("http server shutdown error", "error", err)
			}
		}()
	}

	outcomes := p.Run(ctx, job)
	printSummary(os.Stdout, outcomes)

	if cfg.MetricsTextfile != "" {
		if err := observability.WriteTextfile(cfg.MetricsTextfile, nil); err != nil {
			logger.Error("metrics textfile", "path", cfg.MetricsTextfile, "error", err)
		}
	}

	return exitCode(outcomes)
}

// prepareJob loads the job file, settles a reversed date range with the
// operator, and validates the result.
func prepareJob(path string, resolver domain.DateConflictResolver) (domain.FetchJob, error) {
	job, err := config.LoadJob(path)
	if err != nil {
		return domain.FetchJob{}, err
	}
	job, err = domain.ResolveDateOrder(job, resolver)
	if err != nil {
		return domain.FetchJob{}, err
	}
	if err := job.Validate(); err != nil {
		return domain.FetchJob{}, err
	}
	return job, nil
}

func exitCode(outcomes []domain.StationOutcome) int {
	for _, o := range outcomes {
		if o.Failed() {
			return exitStationFailed
		}
	}
	return exitOK
}

func printSummary(w io.Writer, outcomes []domain.StationOutcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nSTATION\tSTATE\tDAYS\tEMPTY\tROWS\tDETAIL")
	for _, o := range outcomes {
		detail := ""
		if o.Failed() {
			detail = o.Reason
			if o.FailedDay != nil {
				detail = fmt.Sprintf("%s: %s", o.FailedDay, o.Reason)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%d\t%d\t%s\n",
			o.Station.FileKey, o.State, o.DaysFetched, o.DaysRequested, o.DaysEmpty, o.RowsAppended, detail)
	}
	tw.Flush()
}
