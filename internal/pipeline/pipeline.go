package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/couchcryptid/codis-weather-etl/internal/observability"
)

// publishTimeout bounds delivery of one outcome, independent of the run context.
const publishTimeout = 5 * time.Second

// TableSource fetches the raw hourly table for one station and day. A day
// without observations is nil rows and a nil error.
type TableSource interface {
	FetchDay(ctx context.Context, stationID, displayName string, day domain.Date) ([]domain.RawRow, error)
}

// Ledger reads resume points from and appends rows to station artifacts.
type Ledger interface {
	ResumePoint(station domain.StationSpec) (*domain.ResumePoint, error)
	OpenForWrite(station domain.StationSpec) (domain.WriteMode, error)
	Append(station domain.StationSpec, rows []domain.ObservationRow, mode domain.WriteMode) error
}

// OutcomeSink receives each station's outcome once it is terminal.
type OutcomeSink interface {
	Publish(ctx context.Context, outcome domain.StationOutcome) error
}

// Pipeline runs a fetch job: stations in job order, days in ascending order,
// one at a time.
type Pipeline struct {
	source  TableSource
	ledger  Ledger
	sink    OutcomeSink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	mu       sync.Mutex
	finished []domain.StationOutcome
}

// New creates a Pipeline. sink may be nil.
func New(source TableSource, ledger Ledger, sink OutcomeSink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		ledger:  ledger,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once at least one station has finished.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no station has finished yet")
	}
	return nil
}

// Outcomes returns the outcomes of the stations finished so far, in job order.
func (p *Pipeline) Outcomes() []domain.StationOutcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.finished)
}

// Run processes every station of the job and returns their outcomes in job
// order. A failing station never stops the others. Once ctx is done, the
// current station merges what it has and the remaining stations are
// reported failed without being attempted.
func (p *Pipeline) Run(ctx context.Context, job domain.FetchJob) []domain.StationOutcome {
	p.logger.Info("job started",
		"data_directory", job.DataDirectory,
		"start", job.Start,
		"end", job.End,
		"stations", len(job.Stations),
	)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	outcomes := make([]domain.StationOutcome, 0, len(job.Stations))
	for _, station := range job.Stations {
		var out domain.StationOutcome
		if err := ctx.Err(); err != nil {
			// Cancellation is noticed where range resolution would begin.
			out = domain.StationOutcome{Station: station, State: domain.StateResolvingRange}
			p.fail(&out, err)
			out.Reason = "not attempted: " + out.Reason
		} else {
			out = p.RunStation(ctx, job, station)
		}
		p.finish(ctx, &out)
		outcomes = append(outcomes, out)
	}

	p.logger.Info("job finished", "stations", len(outcomes), "failed", countFailed(outcomes))
	return outcomes
}

// RunStation brings one station's artifact up to the job's end date.
func (p *Pipeline) RunStation(ctx context.Context, job domain.FetchJob, station domain.StationSpec) domain.StationOutcome {
	out := domain.StationOutcome{Station: station, State: domain.StatePending}
	log := p.logger.With("station", station.FileKey, "station_id", station.StationID)

	out.State = domain.StateResolvingRange
	resume, err := p.ledger.ResumePoint(station)
	if err != nil {
		p.fail(&out, err)
		return out
	}

	days := domain.DaysToFetch(job.Start, job.End, resume)
	if len(days) == 0 {
		out.State = domain.StateUpToDate
		log.Info("artifact already up to date")
		return out
	}
	out.DaysRequested = len(days)
	out.FirstDay, out.LastDay = &days[0], &days[len(days)-1]
	log.Info("fetching range", "first_day", days[0], "last_day", days[len(days)-1], "days", len(days))

	out.State = domain.StateFetching
	var rows []domain.ObservationRow
	var fetchErr error
	for _, day := range days {
		if err := ctx.Err(); err != nil {
			fetchErr = err
			out.FailedDay = &day
			break
		}

		dayRows, err := p.fetchDay(ctx, station, day)
		if err != nil {
			fetchErr = err
			out.FailedDay = &day
			p.metrics.FetchErrors.WithLabelValues(errorKind(err)).Inc()
			log.Error("fetch failed", "day", day, "error", err)
			break
		}

		out.DaysFetched++
		p.metrics.DaysFetched.Inc()
		if len(dayRows) == 0 {
			out.DaysEmpty++
			p.metrics.DaysEmpty.Inc()
			log.Info("no observations", "day", day)
			continue
		}
		rows = append(rows, dayRows...)
	}

	// What was fetched is written even when a later day failed.
	if fetchErr == nil {
		out.State = domain.StateMerging
	}
	if err := p.merge(station, rows); err != nil {
		out.State = domain.StateMerging
		p.fail(&out, err)
		return out
	}
	out.RowsAppended = len(rows)
	if len(rows) > 0 {
		log.Info("rows appended", "rows", len(rows))
	}

	if fetchErr != nil {
		p.fail(&out, fetchErr)
		return out
	}
	out.State = domain.StateDone
	return out
}

func (p *Pipeline) fetchDay(ctx context.Context, station domain.StationSpec, day domain.Date) ([]domain.ObservationRow, error) {
	p.logger.Info("fetching day", "station", station.FileKey, "day", day)

	start := time.Now()
	raw, err := p.source.FetchDay(ctx, station.StationID, station.DisplayName, day)
	p.metrics.DayFetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	rows, err := domain.Normalize(day, raw)
	if err != nil {
		return nil, err
	}
	// Appends must stay ascending.
	slices.SortStableFunc(rows, compareRows)
	return rows, nil
}

func (p *Pipeline) merge(station domain.StationSpec, rows []domain.ObservationRow) error {
	if len(rows) == 0 {
		return nil
	}
	mode, err := p.ledger.OpenForWrite(station)
	if err != nil {
		return err
	}
	if err := p.ledger.Append(station, rows, mode); err != nil {
		return err
	}
	p.metrics.RowsAppended.Add(float64(len(rows)))
	return nil
}

// fail moves out to failed, remembering the state the failure happened in.
func (p *Pipeline) fail(out *domain.StationOutcome, err error) {
	out.FailedIn = out.State
	out.State = domain.StateFailed
	out.Err = err
	out.Reason = err.Error()
}

func (p *Pipeline) finish(ctx context.Context, out *domain.StationOutcome) {
	out.FinishedAt = domain.Now()
	p.metrics.StationOutcomes.WithLabelValues(string(out.State)).Inc()

	p.mu.Lock()
	p.finished = append(p.finished, *out)
	p.mu.Unlock()
	p.ready.Store(true)

	attrs := []any{
		"station", out.Station.FileKey,
		"state", out.State,
		"days_requested", out.DaysRequested,
		"days_fetched", out.DaysFetched,
		"days_empty", out.DaysEmpty,
		"rows_appended", out.RowsAppended,
	}
	if out.Failed() {
		attrs = append(attrs, "failed_in", out.FailedIn, "error", out.Reason)
		if out.FailedDay != nil {
			attrs = append(attrs, "failed_day", *out.FailedDay)
		}
		p.logger.Warn("station failed", attrs...)
	} else {
		p.logger.Info("station finished", attrs...)
	}

	if p.sink == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.sink.Publish(pubCtx, *out); err != nil {
		p.logger.Warn("publish outcome failed", "station", out.Station.FileKey, "error", err)
	}
}

func compareRows(a, b domain.ObservationRow) int {
	switch {
	case a.Date.Before(b.Date):
		return -1
	case a.Date.After(b.Date):
		return 1
	}
	return a.Time.Seconds() - b.Time.Seconds()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, domain.ErrNetwork):
		return "network"
	case errors.Is(err, domain.ErrRemoteSchema):
		return "remote_schema"
	default:
		return "other"
	}
}

func countFailed(outcomes []domain.StationOutcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Failed() {
			n++
		}
	}
	return n
}
