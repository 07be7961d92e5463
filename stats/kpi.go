package stats

import "math"

// KPIs are the headline figures shown above the charts.
type KPIs struct {
	SeriousRate       float64 `json:"seriousRate"` // percentage, one decimal
	CountriesReported int     `json:"countriesReported"`
	RegulatoryActions int     `json:"regulatoryActions"`
	AverageMonthly    int     `json:"averageMonthly"`
	PeakMonthly       int     `json:"peakMonthly"`
	MonthsAnalysed    int     `json:"monthsAnalysed"`
}

// DeriveKPIs computes the headline figures for a summary and the number of enforcement actions alongside it.
func DeriveKPIs(summary Summary, enforcementCount int) KPIs {
	kpis := KPIs{
		CountriesReported: len(summary.CountryDistribution),
		RegulatoryActions: enforcementCount,
		MonthsAnalysed:    len(summary.MonthlyTrend),
	}

	if summary.TotalEvents > 0 {
		rate := float64(summary.SeriousEvents) / float64(summary.TotalEvents) * 100
		kpis.SeriousRate = math.Round(rate*10) / 10
	}

	if len(summary.MonthlyTrend) > 0 {
		total := 0
		for _, point := range summary.MonthlyTrend {
			total += point.Events
			if point.Events > kpis.PeakMonthly {
				kpis.PeakMonthly = point.Events
			}
		}
		kpis.AverageMonthly = int(math.Round(float64(total) / float64(len(summary.MonthlyTrend))))
	}

	return kpis
}
