package stats

import "fmt"

// UnknownCountry is the bucket for events with neither an occurrence nor a reporter country.
const UnknownCountry = "Unknown"

const unknownAgeGroup = "Unknown"

// countryNames maps ISO 3166-1 alpha-2 codes to display names.
// Codes missing from the table are shown as-is.
var countryNames = map[string]string{
	"US": "United States",
	"CA": "Canada",
	"GB": "United Kingdom",
	"DE": "Germany",
	"FR": "France",
	"IT": "Italy",
	"ES": "Spain",
	"AU": "Australia",
	"JP": "Japan",
	"BR": "Brazil",
	"MX": "Mexico",
	"IN": "India",
	"CN": "China",
	"KR": "South Korea",
	"NL": "Netherlands",
	"BE": "Belgium",
	"CH": "Switzerland",
	"AT": "Austria",
	"SE": "Sweden",
	"NO": "Norway",
	"DK": "Denmark",
	"FI": "Finland",
	"IE": "Ireland",
	"PT": "Portugal",
	"GR": "Greece",
	"PL": "Poland",
	"CZ": "Czech Republic",
	"HU": "Hungary",
	"RO": "Romania",
	"BG": "Bulgaria",
	"HR": "Croatia",
	"SI": "Slovenia",
	"SK": "Slovakia",
	"LT": "Lithuania",
	"LV": "Latvia",
	"EE": "Estonia",
	"IL": "Israel",
	"TR": "Turkey",
	"RU": "Russia",
	"UA": "Ukraine",
	"ZA": "South Africa",
	"EG": "Egypt",
	"MA": "Morocco",
	"NG": "Nigeria",
	"KE": "Kenya",
	"AR": "Argentina",
	"CL": "Chile",
	"CO": "Colombia",
	"PE": "Peru",
	"VE": "Venezuela",
	"TH": "Thailand",
	"MY": "Malaysia",
	"SG": "Singapore",
	"ID": "Indonesia",
	"PH": "Philippines",
	"VN": "Vietnam",
	"NZ": "New Zealand",
}

// ageGroupLabels maps openFDA patientagegroup codes to the labels shown in the charts.
var ageGroupLabels = map[string]string{
	"1":             "Neonatos (0-27 días)",
	"2":             "Infantes (28 días - 23 meses)",
	"3":             "Niños (2-11 años)",
	"4":             "Adolescentes (12-16 años)",
	"5":             "Adultos (17-64 años)",
	"6":             "Adultos mayores (65+ años)",
	unknownAgeGroup: "No especificado",
}

// CountryName returns the display name for a country code, or the code itself when unmapped.
func CountryName(code string) string {
	if name, ok := countryNames[code]; ok {
		return name
	}
	if code == "" {
		return UnknownCountry
	}
	return code
}

// AgeGroupLabel returns the label for an age group code. Unmapped codes render as "Código {code}".
func AgeGroupLabel(code string) string {
	if label, ok := ageGroupLabels[code]; ok {
		return label
	}
	return fmt.Sprintf("Código %s", code)
}
