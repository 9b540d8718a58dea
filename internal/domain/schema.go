package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// TracePrecipitation is the value recorded for the "T" (trace, below 0.1 mm)
// precipitation marker.
const TracePrecipitation = 0.05

// hoursPerDay is the largest hour label the source uses; hour 24 of day D is
// 00:00 of day D+1.
const hoursPerDay = 24

type measurementColumn struct {
	raw   string
	name  string
	trace bool
	set   func(*ObservationRow, Reading)
}

// measurementColumns lists the measurement fields in on-disk order.
var measurementColumns = []measurementColumn{
	{raw: "測站氣壓(hPa)StnPres", name: "station_pressure_hpa", set: func(r *ObservationRow, v Reading) { r.StationPressure = v }},
	{raw: "海平面氣壓(hPa)SeaPres", name: "sea_level_pressure_hpa", set: func(r *ObservationRow, v Reading) { r.SeaLevelPressure = v }},
	{raw: "氣溫(℃)Temperature", name: "temperature_c", set: func(r *ObservationRow, v Reading) { r.Temperature = v }},
	{raw: "露點溫度(℃)Td dew point", name: "dew_point_c", set: func(r *ObservationRow, v Reading) { r.DewPoint = v }},
	{raw: "相對溼度(%)RH", name: "relative_humidity_pct", set: func(r *ObservationRow, v Reading) { r.RelativeHumidity = v }},
	{raw: "風速(m/s)WS", name: "wind_speed_ms", set: func(r *ObservationRow, v Reading) { r.WindSpeed = v }},
	{raw: "風向(360degree)WD", name: "wind_direction_deg", set: func(r *ObservationRow, v Reading) { r.WindDirection = v }},
	{raw: "最大陣風(m/s)WSGust", name: "gust_speed_ms", set: func(r *ObservationRow, v Reading) { r.GustSpeed = v }},
	{raw: "最大陣風風向(360degree)WDGust", name: "gust_direction_deg", set: func(r *ObservationRow, v Reading) { r.GustDirection = v }},
	{raw: "降水量(mm)Precp", name: "precipitation_mm", trace: true, set: func(r *ObservationRow, v Reading) { r.Precipitation = v }},
	{raw: "降水時數(hr)PrecpHour", name: "precipitation_hours", set: func(r *ObservationRow, v Reading) { r.PrecipitationHours = v }},
	{raw: "日照時數(hr)SunShine", name: "sunshine_hours", set: func(r *ObservationRow, v Reading) { r.SunshineHours = v }},
	{raw: "全天空日射量(MJ/㎡)GloblRad", name: "global_radiation_mjm2", set: func(r *ObservationRow, v Reading) { r.GlobalRadiation = v }},
	{raw: "能見度(km)Visb", name: "visibility_km", set: func(r *ObservationRow, v Reading) { r.Visibility = v }},
}

var columnsByRaw = func() map[string]measurementColumn {
	m := make(map[string]measurementColumn, len(measurementColumns))
	for _, c := range measurementColumns {
		m[NormalizeHeader(c.raw)] = c
	}
	return m
}()

// Columns returns the canonical artifact columns in schema order, starting
// with observation_date and observation_time.
func Columns() []string {
	cols := make([]string, 0, len(measurementColumns)+2)
	cols = append(cols, "observation_date", "observation_time")
	for _, c := range measurementColumns {
		cols = append(cols, c.name)
	}
	return cols
}

// RawColumns returns the remote table headers the schema recognizes, in
// schema order.
func RawColumns() []string {
	cols := make([]string, len(measurementColumns))
	for i, c := range measurementColumns {
		cols[i] = c.raw
	}
	return cols
}

// NormalizeHeader collapses runs of whitespace (including non-breaking
// spaces) so header text scraped from HTML compares reliably.
func NormalizeHeader(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Normalize converts the raw rows of one fetched day into observation rows.
// Rows keep the source order. Any unknown column, unparseable cell, or hour
// label outside the requested day fails with ErrRemoteSchema.
func Normalize(day Date, raw []RawRow) ([]ObservationRow, error) {
	rows := make([]ObservationRow, 0, len(raw))
	seen := make(map[int]bool, len(raw))

	for _, r := range raw {
		hour, err := parseHour(r.Hour)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", day, err)
		}
		if seen[hour] {
			return nil, fmt.Errorf("%s: duplicate hour %d: %w", day, hour, ErrRemoteSchema)
		}
		seen[hour] = true

		row := ObservationRow{
			Date: day.AddDays(hour / hoursPerDay),
			Time: TimeOfDay{Hour: hour % hoursPerDay},
		}

		// Sorted for a deterministic first error.
		headers := make([]string, 0, len(r.Cells))
		for h := range r.Cells {
			headers = append(headers, h)
		}
		sort.Strings(headers)

		for _, h := range headers {
			col, ok := columnsByRaw[NormalizeHeader(h)]
			if !ok {
				return nil, fmt.Errorf("%s: unrecognized column %q: %w", day, h, ErrRemoteSchema)
			}
			v, err := normalizeCell(r.Cells[h], col.trace)
			if err != nil {
				return nil, fmt.Errorf("%s hour %d column %s: %w", day, hour, col.name, err)
			}
			col.set(&row, v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// parseHour validates an hour label. The source reports 1..24.
func parseHour(label string) (int, error) {
	label = strings.TrimSpace(label)
	h, err := strconv.Atoi(label)
	if err != nil {
		return 0, fmt.Errorf("hour label %q: %w", label, ErrRemoteSchema)
	}
	if h < 1 || h > hoursPerDay {
		return 0, fmt.Errorf("hour %d outside requested day: %w", h, ErrRemoteSchema)
	}
	return h, nil
}

// normalizeCell applies the sentinel rules, in order:
//   - "X" (instrument malfunction), "V" (no prevailing wind direction),
//     "/" (status unknown) and the empty cell become Missing
//   - "T" (trace) becomes TracePrecipitation, for precipitation only
//   - anything else must parse as a number
func normalizeCell(cell string, trace bool) (Reading, error) {
	cell = strings.TrimSpace(strings.ReplaceAll(cell, "\u00a0", " "))
	switch cell {
	case "", "X", "V", "/":
		return Missing, nil
	case "T":
		if trace {
			return Measured(TracePrecipitation), nil
		}
	}
	v, err := strconv.ParseFloat(cell, 64)
	if err != nil {
		return Missing, fmt.Errorf("value %q: %w", cell, ErrRemoteSchema)
	}
	return Measured(v), nil
}
