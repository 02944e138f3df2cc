package metadata

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/samber/lo"
)

var csvHeader = []string{"protocol_id", "year", "chamber", "number"}

// WriteCSV writes one row per record. Absent years and numbers are empty cells.
func WriteCSV(w io.Writer, records []ProtocolMetadata) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		row := []string{rec.ProtocolID, optionalInt(rec.Year), rec.Chamber.Label(), optionalInt(rec.Number)}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write %s: %w", rec.ProtocolID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func optionalInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// YearCount is the number of protocols inferred for one year.
type YearCount struct {
	Year  int `json:"year"`
	Count int `json:"count"`
}

// Summary buckets records by year and chamber. Records without a year are
// counted in Unknown only.
type Summary struct {
	Total    int            `json:"total"`
	Unknown  int            `json:"unknown_year"`
	Years    []YearCount    `json:"years"`
	Chambers map[string]int `json:"chambers"`
}

// Summarize computes a Summary. Years are sorted ascending.
func Summarize(records []ProtocolMetadata) Summary {
	dated, undated := lo.FilterReject(records, func(m ProtocolMetadata, _ int) bool {
		return m.HasYear()
	})

	byYear := lo.CountValuesBy(dated, func(m ProtocolMetadata) int { return *m.Year })
	years := lo.MapToSlice(byYear, func(year, count int) YearCount {
		return YearCount{Year: year, Count: count}
	})
	slices.SortFunc(years, func(a, b YearCount) int { return a.Year - b.Year })

	chambers := lo.CountValuesBy(records, func(m ProtocolMetadata) string { return m.Chamber.Label() })

	return Summary{
		Total:    len(records),
		Unknown:  len(undated),
		Years:    years,
		Chambers: chambers,
	}
}
