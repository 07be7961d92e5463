package entities

// Enforcement is one recall action from /drug/enforcement.json.
type Enforcement struct {
	RecallNumber       string `json:"recall_number,omitempty"`
	RecallingFirm      string `json:"recalling_firm,omitempty"`
	InitiationDate     string `json:"recall_initiation_date"`
	Status             string `json:"status"`
	State              string `json:"state"`
	City               string `json:"city"`
	Reason             string `json:"reason_for_recall"`
	Classification     string `json:"classification"`
	ProductDescription string `json:"product_description"`
}
