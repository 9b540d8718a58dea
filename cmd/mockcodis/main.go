// Command mockcodis serves a local stand-in for the CODiS day-table portal so
// codis-fetch can be exercised without network access. Every station and day
// gets a deterministic synthetic table; days listed in -empty get the no-data
// page and days listed in -fail get a 500.
//
// Usage:
//
//	go run ./cmd/mockcodis -addr :8081 -empty 2020-01-02 -fail 2020-01-04
//	CODIS_BASE_URL='http://localhost:8081/DayDataController.do?command=viewMain' go run ./cmd/codis-fetch
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/couchcryptid/codis-weather-etl/internal/adapter/codis/codismock"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
)

func main() {
	if err := run(); err != nil {
		slog.Error("mockcodis failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", ":8081", "listen address")
	empty := flag.String("empty", "", "comma-separated days (YYYY-MM-DD) served as no-data pages")
	fail := flag.String("fail", "", "comma-separated days (YYYY-MM-DD) answered with HTTP 500")
	flag.Parse()

	emptyDays, err := parseDays(*empty)
	if err != nil {
		return fmt.Errorf("-empty: %w", err)
	}
	failDays, err := parseDays(*fail)
	if err != nil {
		return fmt.Errorf("-fail: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	handler := codismock.NewHandler(func(id string, day domain.Date) ([]domain.RawRow, error) {
		switch {
		case failDays[day]:
			return nil, errors.New("simulated portal failure")
		case emptyDays[day]:
			return nil, nil
		}
		return codismock.SyntheticDay(id, day), nil
	}, logger)

	srv := &http.Server{
		Addr:              *addr,
		Handler:           logRequests(handler, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("mock portal listening", "addr", *addr, "empty_days", len(emptyDays), "fail_days", len(failDays))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func parseDays(list string) (map[domain.Date]bool, error) {
	days := map[domain.Date]bool{}
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		d, err := domain.ParseDate(s)
		if err != nil {
			return nil, err
		}
		days[d] = true
	}
	return days, nil
}

func logRequests(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info("request", "station", r.URL.Query().Get("station"), "day", r.URL.Query().Get("datepicker"))
		next.ServeHTTP(w, r)
	})
}
