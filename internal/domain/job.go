package domain

import (
	"errors"
	"fmt"
	"strings"
)

// publicationLagDays is how far behind today the portal's data is complete.
// Data for a day is published at noon the next day, so the day before
// yesterday is safe at any local hour.
const publicationLagDays = 2

// EarliestCoverage is the first day the portal serves.
var EarliestCoverage = NewDate(2010, 1, 1)

// LatestPublished returns the last day that may be requested: the day before
// yesterday at the source.
func LatestPublished() Date {
	return Today().AddDays(-publicationLagDays)
}

// StationSpec identifies one station and its output artifact.
type StationSpec struct {
	FileKey     string `json:"file_key"`
	StationID   string `json:"station_id"`
	DisplayName string `json:"display_name"`
}

// FetchJob is a resolved, validated run description. Stations are fetched in
// slice order.
type FetchJob struct {
	DataDirectory string
	Start         Date
	End           Date
	Stations      []StationSpec
}

// Validate checks everything the fetch core relies on except date order,
// which is resolved separately by ResolveDateOrder. Failures wrap
// ErrConfiguration.
func (j FetchJob) Validate() error {
	var errs []error

	if strings.TrimSpace(j.DataDirectory) == "" {
		errs = append(errs, errors.New("data directory is empty"))
	}
	if j.Start.Before(EarliestCoverage) {
		errs = append(errs, fmt.Errorf("start date %s is before %s, the earliest date the portal serves", j.Start, EarliestCoverage))
	}
	latest := LatestPublished()
	if j.End.After(latest) {
		errs = append(errs, fmt.Errorf("end date %s is after %s (the day before yesterday); the portal has not published it yet", j.End, latest))
	}
	if len(j.Stations) == 0 {
		errs = append(errs, errors.New("station list is empty"))
	}

	seen := make(map[string]bool, len(j.Stations))
	for _, s := range j.Stations {
		if err := validateFileKey(s.FileKey); err != nil {
			errs = append(errs, err)
		}
		if seen[s.FileKey] {
			errs = append(errs, fmt.Errorf("duplicate station key %q", s.FileKey))
		}
		seen[s.FileKey] = true

		if strings.TrimSpace(s.StationID) == "" {
			errs = append(errs, fmt.Errorf("station %q has no station id", s.FileKey))
		}
		if strings.TrimSpace(s.DisplayName) == "" {
			errs = append(errs, fmt.Errorf("station %q has no display name", s.FileKey))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrConfiguration, errors.Join(errs...))
	}
	return nil
}

// validateFileKey rejects keys that would escape or collide in the data
// directory.
func validateFileKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return errors.New("station key is empty")
	case key == "." || key == "..":
		return fmt.Errorf("station key %q is not a valid file name", key)
	case strings.ContainsAny(key, `/\:*?"<>|`) || strings.ContainsRune(key, 0):
		return fmt.Errorf("station key %q contains characters not allowed in file names", key)
	}
	return nil
}

// ConflictChoice is the operator's answer to a start date after the end date.
type ConflictChoice int

const (
	ChoiceAbort ConflictChoice = iota
	ChoiceSwap
)

// DateConflictResolver asks the operator how to handle start > end.
type DateConflictResolver interface {
	ResolveDateConflict(start, end Date) (ConflictChoice, error)
}

// ResolveDateOrder returns the job unchanged when Start <= End. Otherwise it
// asks the resolver and either swaps the two dates or fails with ErrAborted.
// It never proceeds with an unresolved conflict.
func ResolveDateOrder(job FetchJob, resolver DateConflictResolver) (FetchJob, error) {
	if !job.Start.After(job.End) {
		return job, nil
	}
	if resolver == nil {
		return job, fmt.Errorf("%w: start date %s is after end date %s", ErrConfiguration, job.Start, job.End)
	}

	choice, err := resolver.ResolveDateConflict(job.Start, job.End)
	if err != nil {
		return job, fmt.Errorf("resolve date conflict: %w", err)
	}
	switch choice {
	case ChoiceSwap:
		job.Start, job.End = job.End, job.Start
		return job, nil
	default:
		return job, ErrAborted
	}
}
