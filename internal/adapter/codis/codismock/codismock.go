// Package codismock serves CODiS-shaped day pages for tests and local dry
// runs. Pages carry the same table#MyTable layout as the portal: a condensed
// heading row, a header row whose first cell is the hour column, then one row
// per hour labelled "01".."24".
package codismock

import (
	"fmt"
	"hash/fnv"
	"html/template"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
)

// HourColumn is the header of the first (hour index) column.
const HourColumn = "觀測時間(hour)ObsTime"

// NoDataMessage is the text the portal shows instead of a table for a day
// without observations.
const NoDataMessage = "本段時間區間內無觀測資料。"

var pageTemplate = template.Must(template.New("day").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Name}} {{.Day}}</title></head>
<body>
<h3>{{.StationID}} {{.Name}} {{.Day}}</h3>
{{if .Rows}}<table id="MyTable">
<tr class="first_tr">{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
<tr class="second_tr">{{range .Headers}}<th>{{.}}</th>{{end}}</tr>
{{range .Rows}}<tr>{{range .}}<td>{{.}}&nbsp;</td>{{end}}</tr>
{{end}}</table>{{else}}<label class="imp">{{.NoData}}</label>{{end}}
</body>
</html>
`))

type pageData struct {
	StationID string
	Name      string
	Day       domain.Date
	Headers   []string
	Rows      [][]string
	NoData    string
}

// Render writes a day page. headers are the measurement column headers in
// table order; zero rows renders the no-data page.
func Render(w io.Writer, stationID, name string, day domain.Date, headers []string, rows []domain.RawRow) error {
	data := pageData{
		StationID: stationID,
		Name:      name,
		Day:       day,
		Headers:   append([]string{HourColumn}, headers...),
		NoData:    NoDataMessage,
	}
	for _, r := range rows {
		cells := make([]string, 0, len(headers)+1)
		cells = append(cells, r.Hour)
		for _, h := range headers {
			cells = append(cells, r.Cells[h])
		}
		data.Rows = append(data.Rows, cells)
	}
	return pageTemplate.Execute(w, data)
}

// SyntheticDay generates a deterministic full day for a station: 24 hourly
// rows with plausible values and the portal's sentinel markers sprinkled in.
func SyntheticDay(stationID string, day domain.Date) []domain.RawRow {
	h := fnv.New32a()
	fmt.Fprintf(h, "%s/%s", stationID, day)
	seed := float64(h.Sum32()%1000) / 1000

	cols := domain.RawColumns()
	rows := make([]domain.RawRow, 0, 24)
	for hour := 1; hour <= 24; hour++ {
		phase := 2 * math.Pi * float64(hour) / 24
		temp := 18 + 6*math.Sin(phase-math.Pi/2) + 4*seed
		values := []string{
			fmt1(1008 + 3*seed),             // station pressure
			fmt1(1012 + 3*seed),             // sea level pressure
			fmt1(temp),                      // temperature
			fmt1(temp - 4),                  // dew point
			strconv.Itoa(70 + hour%20),      // relative humidity
			fmt1(1.5 + seed*2),              // wind speed
			strconv.Itoa((hour * 15) % 360), // wind direction
			fmt1(3 + seed*3),                // gust speed
			strconv.Itoa((hour * 20) % 360), // gust direction
			"0.0",                           // precipitation
			"0.0",                           // precipitation hours
			"/",                             // sunshine hours
			"X",                             // global radiation
			strconv.Itoa(10 + int(seed*20)), // visibility
		}
		switch {
		case hour%7 == 0:
			values[9], values[10] = "T", "0.1"
		case hour%11 == 0:
			values[6] = "V"
		}
		if hour > 6 && hour < 18 {
			values[11] = fmt1(0.5 + seed/2)
			values[12] = fmt1(0.8 + seed)
		}

		cells := make(map[string]string, len(cols))
		for i, c := range cols {
			cells[c] = values[i]
		}
		rows = append(rows, domain.RawRow{Hour: fmt.Sprintf("%02d", hour), Cells: cells})
	}
	return rows
}

func fmt1(v float64) string { return strconv.FormatFloat(v, 'f', 1, 64) }

// DayFunc produces the rows served for one station and day. An error makes
// the handler answer 500.
type DayFunc func(stationID string, day domain.Date) ([]domain.RawRow, error)

// Handler serves day pages for ?station=..&stname=..&datepicker=YYYY-MM-DD
// and records the requests it saw.
type Handler struct {
	days   DayFunc
	logger *slog.Logger

	mu       sync.Mutex
	requests []Request
}

// Request is one served query, with stname decoded once more on top of the
// URL decoding, mirroring the portal's double-encoded parameter.
type Request struct {
	StationID string
	Name      string
	Day       domain.Date
}

// NewHandler creates a Handler. A nil days serves SyntheticDay.
func NewHandler(days DayFunc, logger *slog.Logger) *Handler {
	if days == nil {
		days = func(id string, day domain.Date) ([]domain.RawRow, error) {
			return SyntheticDay(id, day), nil
		}
	}
	return &Handler{days: days, logger: logger}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	stationID := q.Get("station")
	name, err := url.QueryUnescape(q.Get("stname"))
	if err != nil {
		http.Error(w, "bad stname", http.StatusBadRequest)
		return
	}
	day, err := domain.ParseDate(q.Get("datepicker"))
	if err != nil || stationID == "" {
		http.Error(w, "bad query", http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	h.requests = append(h.requests, Request{StationID: stationID, Name: name, Day: day})
	h.mu.Unlock()

	rows, err := h.days(stationID, day)
	if err != nil {
		h.logger.Warn("mock day failed", "station", stationID, "day", day, "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := Render(w, stationID, name, day, domain.RawColumns(), rows); err != nil {
		h.logger.Error("render day page", "error", err)
	}
}

// Requests returns a copy of the requests served so far.
func (h *Handler) Requests() []Request {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Request(nil), h.requests...)
}
