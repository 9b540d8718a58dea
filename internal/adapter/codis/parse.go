package codis

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/couchcryptid/codis-weather-etl/internal/domain"
)

// tableSelector matches the day table on a portal page.
const tableSelector = "table#MyTable"

// noDataMarker is part of the notice the portal shows instead of a table
// when a station reported nothing for the day.
const noDataMarker = "無觀測資料"

// ParseDayTable extracts the raw rows of a day page. The first table row is a
// condensed heading and is skipped, the second row is the header, and the
// first column of every data row is the hour label. A no-data notice (or a
// table with no data rows) yields nil rows.
func ParseDayTable(r io.Reader) ([]domain.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	table := doc.Find(tableSelector).First()
	if table.Length() == 0 {
		if strings.Contains(doc.Text(), noDataMarker) {
			return nil, nil
		}
		return nil, fmt.Errorf("page has no %s: %w", tableSelector, domain.ErrRemoteSchema)
	}

	trs := table.Find("tr")
	if trs.Length() < 2 {
		return nil, fmt.Errorf("%s has %d rows, want a heading and a header: %w", tableSelector, trs.Length(), domain.ErrRemoteSchema)
	}

	header := cellTexts(trs.Eq(1))
	if len(header) < 2 {
		return nil, fmt.Errorf("%s header has %d columns: %w", tableSelector, len(header), domain.ErrRemoteSchema)
	}
	columns := header[1:]

	var rows []domain.RawRow
	var parseErr error
	trs.Slice(2, trs.Length()).EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := cellTexts(tr)
		if len(cells) == 0 {
			return true
		}
		if len(cells) != len(header) {
			parseErr = fmt.Errorf("data row %d has %d cells, header has %d: %w", i+1, len(cells), len(header), domain.ErrRemoteSchema)
			return false
		}

		row := domain.RawRow{Hour: cells[0], Cells: make(map[string]string, len(columns))}
		for j, col := range columns {
			row.Cells[col] = cells[j+1]
		}
		rows = append(rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

// cellTexts returns the trimmed text of each th/td in a row. Non-breaking
// spaces are folded to plain spaces.
func cellTexts(tr *goquery.Selection) []string {
	cells := tr.Find("th, td")
	texts := make([]string, 0, cells.Length())
	cells.Each(func(_ int, s *goquery.Selection) {
		t := strings.ReplaceAll(s.Text(), "\u00a0", " ")
		texts = append(texts, strings.TrimSpace(t))
	})
	return texts
}
