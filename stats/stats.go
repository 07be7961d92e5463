// Package stats turns batches of adverse event reports into the summary rendered by the dashboard.
package stats

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/farmavigil/farmavigil-api/openfda/entities"
)

const (
	maxTrendMonths    = 12
	placeholderMonths = 6
)

// MonthlyCount is one point of the monthly trend.
type MonthlyCount struct {
	Month  string `json:"month"`
	Events int    `json:"events"`
}

// GenderDistribution counts events per patient sex.
type GenderDistribution struct {
	Male    int `json:"male"`
	Female  int `json:"female"`
	Unknown int `json:"unknown"`
}

// Summary is the aggregate view of a batch of events.
type Summary struct {
	TotalEvents         int                `json:"totalEvents"`
	SeriousEvents       int                `json:"seriousEvents"`
	CountryDistribution map[string]int     `json:"countryDistribution"`
	MonthlyTrend        []MonthlyCount     `json:"monthlyTrend"`
	AgeGroups           map[string]int     `json:"ageGroups"`
	GenderDistribution  GenderDistribution `json:"genderDistribution"`
}

// Compute aggregates events into a Summary. It never fails: malformed fields
// fall back to "Unknown" style buckets and unparseable dates are left out of the trend.
// now anchors the placeholder trend used when no event carries a valid date.
func Compute(events []entities.Event, now time.Time) Summary {
	summary := Summary{
		TotalEvents:         len(events),
		CountryDistribution: make(map[string]int),
		AgeGroups:           make(map[string]int),
	}

	months := make(map[string]int)

	for i := range events {
		event := &events[i]

		if event.IsSerious() {
			summary.SeriousEvents++
		}

		summary.CountryDistribution[CountryName(countryCode(event))]++

		if received, ok := ParseReceiveDate(event.ReceiveDate); ok {
			months[monthKey(received)]++
		}

		ageCode := event.Patient.AgeGroup
		if ageCode == "" {
			ageCode = unknownAgeGroup
		}
		summary.AgeGroups[AgeGroupLabel(ageCode)]++

		switch event.Patient.Sex {
		case "1":
			summary.GenderDistribution.Male++
		case "2":
			summary.GenderDistribution.Female++
		default:
			summary.GenderDistribution.Unknown++
		}
	}

	if len(months) == 0 {
		summary.MonthlyTrend = placeholderTrend(now)
		return summary
	}

	keys := make([]string, 0, len(months))
	for key := range months {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	if len(keys) > maxTrendMonths {
		keys = keys[len(keys)-maxTrendMonths:]
	}

	summary.MonthlyTrend = make([]MonthlyCount, 0, len(keys))
	for _, key := range keys {
		summary.MonthlyTrend = append(summary.MonthlyTrend, MonthlyCount{Month: key, Events: months[key]})
	}

	return summary
}

func countryCode(event *entities.Event) string {
	switch {
	case event.OccurCountry != "":
		return event.OccurCountry
	case event.PrimarySource.ReporterCountry != "":
		return event.PrimarySource.ReporterCountry
	default:
		return UnknownCountry
	}
}

// genericDateLayouts are tried in order for receive dates that are not YYYYMMDD.
var genericDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseReceiveDate parses an openFDA receive date. Eight-character values are
// read as YYYYMMDD with calendar normalization (month 13 rolls into the next year);
// anything else goes through the generic layouts.
func ParseReceiveDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}

	if len(raw) == 8 {
		year, errYear := strconv.Atoi(raw[0:4])
		month, errMonth := strconv.Atoi(raw[4:6])
		day, errDay := strconv.Atoi(raw[6:8])
		if errYear != nil || errMonth != nil || errDay != nil {
			return time.Time{}, false
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}

	for _, layout := range genericDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

func monthKey(t time.Time) string {
	return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
}

func placeholderTrend(now time.Time) []MonthlyCount {
	trend := make([]MonthlyCount, 0, placeholderMonths)
	for i := placeholderMonths - 1; i >= 0; i-- {
		month := time.Date(now.Year(), now.Month()-time.Month(i), 1, 0, 0, 0, 0, now.Location())
		trend = append(trend, MonthlyCount{Month: monthKey(month), Events: 0})
	}
	return trend
}
