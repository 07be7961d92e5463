// Package entities holds the record types returned by the openFDA drug endpoints.
package entities

// Event is one adverse drug event report from /drug/event.json.
// Only the fields the dashboard reads are mapped; the rest of the payload is dropped.
type Event struct {
	SafetyReportID string        `json:"safetyreportid,omitempty"`
	ReceiveDate    string        `json:"receivedate"`
	Serious        string        `json:"serious"`
	OccurCountry   string        `json:"occurcountry,omitempty"`
	Patient        Patient       `json:"patient"`
	PrimarySource  PrimarySource `json:"primarysource"`
}

type Patient struct {
	AgeGroup string `json:"patientagegroup,omitempty"`
	Sex      string `json:"patientsex,omitempty"`
	Drugs    []Drug `json:"drug,omitempty"`
}

type Drug struct {
	MedicinalProduct string `json:"medicinalproduct,omitempty"`
	DrugIndication   string `json:"drugindication,omitempty"`
}

type PrimarySource struct {
	ReporterCountry string `json:"reportercountry,omitempty"`
}

// IsSerious reports whether the event was flagged serious by the reporter.
func (e Event) IsSerious() bool {
	return e.Serious == "1"
}
