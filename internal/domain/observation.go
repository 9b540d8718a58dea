package domain

import (
	"strconv"
)

// Reading is one optional measurement. Valid is false when the instrument
// reported nothing usable for that hour.
type Reading struct {
	Value float64
	Valid bool
}

// Measured returns a valid Reading holding v.
func Measured(v float64) Reading {
	return Reading{Value: v, Valid: true}
}

// Missing is the zero Reading.
var Missing = Reading{}

func (r Reading) MarshalText() ([]byte, error) {
	if !r.Valid {
		return []byte{}, nil
	}
	return strconv.AppendFloat(nil, r.Value, 'f', -1, 64), nil
}

func (r *Reading) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*r = Missing
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*r = Measured(v)
	return nil
}

// ObservationRow is one hourly record in a station artifact. The csv tags
// define the on-disk column names and order.
type ObservationRow struct {
	Date Date      `csv:"observation_date"`
	Time TimeOfDay `csv:"observation_time"`

	StationPressure    Reading `csv:"station_pressure_hpa"`
	SeaLevelPressure   Reading `csv:"sea_level_pressure_hpa"`
	Temperature        Reading `csv:"temperature_c"`
	DewPoint           Reading `csv:"dew_point_c"`
	RelativeHumidity   Reading `csv:"relative_humidity_pct"`
	WindSpeed          Reading `csv:"wind_speed_ms"`
	WindDirection      Reading `csv:"wind_direction_deg"`
	GustSpeed          Reading `csv:"gust_speed_ms"`
	GustDirection      Reading `csv:"gust_direction_deg"`
	Precipitation      Reading `csv:"precipitation_mm"`
	PrecipitationHours Reading `csv:"precipitation_hours"`
	SunshineHours      Reading `csv:"sunshine_hours"`
	GlobalRadiation    Reading `csv:"global_radiation_mjm2"`
	Visibility         Reading `csv:"visibility_km"`
}

// RawRow is one data row of a remote day table, before normalization.
// Hour is the source's intra-day offset label ("01".."24"); Cells is keyed by
// the raw column header.
type RawRow struct {
	Hour  string
	Cells map[string]string
}

// ResumePoint is the key of the last row found in an existing artifact.
type ResumePoint struct {
	Date    Date
	Time    TimeOfDay
	HasTime bool
}

// WriteMode tells the artifact writer how to open a station's artifact.
type WriteMode struct {
	Append bool // open an existing artifact instead of creating one
	Header bool // write the header row before the data rows
}
