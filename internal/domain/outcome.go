package domain

import "time"

// StationState is a station's position in a run.
//
//	pending -> resolving_range -> up_to_date
//	                           -> fetching -> merging -> done
//
// failed is absorbing and reachable from resolving_range, fetching and merging.
// Stations skipped after cancellation fail in resolving_range.
type StationState string

const (
	StatePending        StationState = "pending"
	StateResolvingRange StationState = "resolving_range"
	StateUpToDate       StationState = "up_to_date"
	StateFetching       StationState = "fetching"
	StateMerging        StationState = "merging"
	StateDone           StationState = "done"
	StateFailed         StationState = "failed"
)

// Terminal reports whether no further transition is possible.
func (s StationState) Terminal() bool {
	switch s {
	case StateUpToDate, StateDone, StateFailed:
		return true
	default:
		return false
	}
}

// StationOutcome is the report for one station after a run.
type StationOutcome struct {
	Station StationSpec  `json:"station"`
	State   StationState `json:"state"`

	// FailedIn is the state the station was in when it failed.
	FailedIn StationState `json:"failed_in,omitempty"`
	Reason   string       `json:"reason,omitempty"`
	Err      error        `json:"-"`

	FirstDay      *Date `json:"first_day,omitempty"`
	LastDay       *Date `json:"last_day,omitempty"`
	DaysRequested int   `json:"days_requested"`
	DaysFetched   int   `json:"days_fetched"`
	DaysEmpty     int   `json:"days_empty"`
	FailedDay     *Date `json:"failed_day,omitempty"`
	RowsAppended  int   `json:"rows_appended"`

	FinishedAt time.Time `json:"finished_at"`
}

// Failed reports whether the station ended in the failed state.
func (o StationOutcome) Failed() bool { return o.State == StateFailed }
