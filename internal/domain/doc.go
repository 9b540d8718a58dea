// Package domain models hourly station observations published by the Central
// Weather Bureau Observation Data Inquire System (CODiS) and the rules for
// fetching them incrementally.
//
// # Data Source
//
// CODiS publishes one HTML page per station and day at
// https://e-service.cwb.gov.tw/HistoryDataQuery/DayDataController.do. The
// table of interest has id "MyTable": a condensed two-language heading row,
// a header row, and one row per hour. Coverage starts on 2010-01-01. A day is
// complete at noon (Taiwan time) the following day, so the newest safe day
// to request is the day before yesterday.
//
// # Hour Labels
//
// Rows are labelled with the hour offset from the start of the requested
// day, 1 through 24. Hour 24 of day D is 00:00 of day D+1:
//
//	requested 2020-01-05, hour "03"  ->  2020-01-05 03:00:00
//	requested 2020-01-05, hour "24"  ->  2020-01-06 00:00:00
//
// A complete artifact therefore always ends with a midnight row stamped the
// day after the last fetched day. [ResumePoint.LastFetchedDay] undoes this
// shift when deciding where to continue.
//
// # Sentinel Values
//
// From the CODiS readme:
//
//	"X"  instrument malfunction        -> missing
//	"V"  wind with no mean direction   -> missing
//	"/"  status unknown                -> missing
//	"T"  trace precipitation (<0.1 mm) -> 0.05
//
// Missing values are kept as empty cells, never as zero. Any other
// non-numeric cell means the page changed shape and is reported as
// [ErrRemoteSchema].
//
// # Artifacts
//
// Each station accumulates one CSV file, "<key>_<station id>.csv". Files are
// append-only: the header is written once at creation, new rows are appended
// in fetch order, and nothing is ever re-sorted or rewritten.
package domain
