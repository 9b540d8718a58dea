package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/couchcryptid/codis-weather-etl/internal/domain"
	"gopkg.in/yaml.v3"
)

// DefaultDataDirectory is used when the job file names none.
const DefaultDataDirectory = "./data"

// jobFile is the on-disk job layout. JSON is accepted because it is a YAML
// subset:
//
//	{
//	  "data_directory": "./my_CODiS_data",
//	  "start_date":     "2017-07-21",
//	  "station_list": {
//	    "Alishan": { "station": "467530", "stname": "阿里山" },
//	    "Zhushan": { "station": "C0I110", "stname": "竹山" }
//	  }
//	}
type jobFile struct {
	DataDirectory string `yaml:"data_directory"`
	StartDate     string `yaml:"start_date"`
	EndDate       string `yaml:"end_date"`
	// Kept as a node so stations are fetched in file order.
	StationList yaml.Node `yaml:"station_list"`
}

type stationEntry struct {
	Station string `yaml:"station"`
	Stname  string `yaml:"stname"`
}

// LoadJob reads and parses the job file at path, filling in defaults for a
// missing data directory, start date or end date. The result is not yet
// validated; see domain.FetchJob.Validate. All failures wrap
// domain.ErrConfiguration.
func LoadJob(path string) (domain.FetchJob, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return domain.FetchJob{}, fmt.Errorf("%w: job file %s is missing", domain.ErrConfiguration, path)
	}
	if err != nil {
		return domain.FetchJob{}, fmt.Errorf("%w: read job file: %w", domain.ErrConfiguration, err)
	}

	job, err := ParseJob(raw)
	if err != nil {
		return domain.FetchJob{}, fmt.Errorf("job file %s: %w", path, err)
	}
	return job, nil
}

// ParseJob parses job file contents.
func ParseJob(raw []byte) (domain.FetchJob, error) {
	var f jobFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.FetchJob{}, fmt.Errorf("%w: job file is empty", domain.ErrConfiguration)
		}
		return domain.FetchJob{}, fmt.Errorf("%w: parse: %w", domain.ErrConfiguration, err)
	}

	job := domain.FetchJob{
		DataDirectory: f.DataDirectory,
		Start:         domain.EarliestCoverage,
		End:           domain.LatestPublished(),
	}
	if strings.TrimSpace(job.DataDirectory) == "" {
		job.DataDirectory = DefaultDataDirectory
	}

	var err error
	if f.StartDate != "" {
		if job.Start, err = parseJobDate("start_date", f.StartDate); err != nil {
			return domain.FetchJob{}, err
		}
	}
	if f.EndDate != "" {
		if job.End, err = parseJobDate("end_date", f.EndDate); err != nil {
			return domain.FetchJob{}, err
		}
	}

	job.Stations, err = parseStations(&f.StationList)
	if err != nil {
		return domain.FetchJob{}, err
	}
	return job, nil
}

func parseJobDate(field, value string) (domain.Date, error) {
	d, err := domain.ParseDate(strings.TrimSpace(value))
	if err != nil {
		return domain.Date{}, fmt.Errorf("%w: %s %q is not in YYYY-MM-DD format", domain.ErrConfiguration, field, value)
	}
	return d, nil
}

func parseStations(node *yaml.Node) ([]domain.StationSpec, error) {
	if node.Kind == 0 {
		return nil, fmt.Errorf("%w: station_list not defined; add "+
			`"station_list": {"<file key>": {"station": "<id>", "stname": "<name>"}, ...}`,
			domain.ErrConfiguration)
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: station_list (line %d) must be a mapping of file key to station", domain.ErrConfiguration, node.Line)
	}

	stations := make([]domain.StationSpec, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]

		var entry stationEntry
		if err := value.Decode(&entry); err != nil {
			return nil, fmt.Errorf("%w: station %q (line %d): %w", domain.ErrConfiguration, key.Value, value.Line, err)
		}
		stations = append(stations, domain.StationSpec{
			FileKey:     key.Value,
			StationID:   strings.TrimSpace(entry.Station),
			DisplayName: strings.TrimSpace(entry.Stname),
		})
	}
	return stations, nil
}
