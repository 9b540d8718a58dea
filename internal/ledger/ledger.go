package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"github.com/jszwec/csvutil"
)

// Ledger owns the per-station artifacts in one data directory. It is the
// only writer of those files; it never truncates, rewrites or reorders them.
type Ledger struct {
	dir      string
	logger   *slog.Logger
	dirReady bool
}

// New creates a Ledger rooted at dir. The directory is created lazily on the
// first write.
func New(dir string, logger *slog.Logger) *Ledger {
	return &Ledger{dir: dir, logger: logger}
}

// ArtifactPath returns "<dir>/<file key>_<station id>.csv".
func (l *Ledger) ArtifactPath(station domain.StationSpec) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s.csv", station.FileKey, station.StationID))
}

// ResumePoint returns the key of the last row in the station's artifact, or
// nil if there is no artifact, it is empty, or it holds only the header. A
// last line without a parseable leading date fails with ErrCorruptArtifact.
func (l *Ledger) ResumePoint(station domain.StationSpec) (*domain.ResumePoint, error) {
	path := l.ArtifactPath(station)

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact %s: %w", path, err)
	}

	line, ok, err := LastLine(f, info.Size())
	if err != nil {
		return nil, fmt.Errorf("read last line of %s: %w", path, err)
	}
	if !ok || isHeader(line) {
		return nil, nil
	}

	point, err := parseResumeLine(line)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return point, nil
}

// OpenForWrite decides how the next Append for the station opens its
// artifact: append without header if it exists with content, otherwise
// create with header.
func (l *Ledger) OpenForWrite(station domain.StationSpec) (domain.WriteMode, error) {
	info, err := os.Stat(l.ArtifactPath(station))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return domain.WriteMode{Append: false, Header: true}, nil
	case err != nil:
		return domain.WriteMode{}, fmt.Errorf("stat artifact: %w", err)
	case info.Size() == 0:
		// Left behind by a crash before the header landed.
		return domain.WriteMode{Append: true, Header: true}, nil
	default:
		return domain.WriteMode{Append: true, Header: false}, nil
	}
}

// Append writes rows to the station's artifact in the given order. Zero rows
// is a no-op: no directory or file is created and an existing file is not
// touched.
func (l *Ledger) Append(station domain.StationSpec, rows []domain.ObservationRow, mode domain.WriteMode) error {
	if len(rows) == 0 {
		return nil
	}
	if err := l.ensureDir(); err != nil {
		return err
	}

	path := l.ArtifactPath(station)
	flags := os.O_RDWR | os.O_APPEND | os.O_CREATE
	if !mode.Append {
		// Never clobber a file that appeared since OpenForWrite.
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open artifact %s: %w", path, err)
	}

	if mode.Append {
		if err := terminateLastLine(f); err != nil {
			f.Close()
			return fmt.Errorf("repair artifact %s: %w", path, err)
		}
	}
	if err := encodeRows(f, rows, mode.Header); err != nil {
		f.Close()
		return fmt.Errorf("write artifact %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close artifact %s: %w", path, err)
	}

	l.logger.Debug("rows appended",
		"station", station.FileKey,
		"path", path,
		"rows", len(rows),
		"header", mode.Header,
	)
	return nil
}

func (l *Ledger) ensureDir() error {
	if l.dirReady {
		return nil
	}
	if _, err := os.Stat(l.dir); errors.Is(err, os.ErrNotExist) {
		l.logger.Info("creating data directory", "path", l.dir)
	}
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create data directory %s: %w", l.dir, err)
	}
	l.dirReady = true
	return nil
}

// terminateLastLine writes a newline if the file is not empty and does not
// end with one, so the next row starts on its own line.
func terminateLastLine(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return nil
	}
	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return err
	}
	if last[0] == '\n' {
		return nil
	}
	_, err = f.Write([]byte{'\n'})
	return err
}

func encodeRows(f *os.File, rows []domain.ObservationRow, header bool) error {
	w := csv.NewWriter(f)
	enc := csvutil.NewEncoder(w)
	enc.AutoHeader = false

	if header {
		if err := enc.EncodeHeader(domain.ObservationRow{}); err != nil {
			return err
		}
	}
	if err := enc.Encode(rows); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}

func isHeader(line string) bool {
	return strings.HasPrefix(line, domain.Columns()[0]+",")
}

// parseResumeLine reads the leading date and, when present, the time field.
func parseResumeLine(line string) (*domain.ResumePoint, error) {
	fields := strings.SplitN(line, ",", 3)

	date, err := domain.ParseDate(strings.TrimSpace(fields[0]))
	if err != nil {
		return nil, fmt.Errorf("last line %q: %w", truncate(line, 64), domain.ErrCorruptArtifact)
	}

	point := &domain.ResumePoint{Date: date}
	if len(fields) > 1 {
		var tod domain.TimeOfDay
		if err := tod.UnmarshalText([]byte(strings.TrimSpace(fields[1]))); err == nil {
			point.Time = tod
			point.HasTime = true
		}
	}
	return point, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
