package validation

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func ptr(s string) *string { return &s }

func TestNewDataValidator(t *testing.T) {
	validator := NewDataValidator()

	if validator == nil {
		t.Fatal("NewDataValidator returned nil")
	}
	if _, ok := validator.(*DataValidatorImpl); !ok {
		t.Error("NewDataValidator should return *DataValidatorImpl")
	}
}

func TestValidateSearchTerm_Valid(t *testing.T) {
	validator := NewDataValidator()

	testCases := []string{
		"aspirin",
		"ibuprofeno",
		"Paracetamol 500",
		"ácido acetilsalicílico",
		"dolor de cabeza",
		"co-trimoxazole",
		"l'eau",
		"B12",
		"amoxicillin/clavulanate",
	}

	for _, input := range testCases {
		t.Run(input, func(t *testing.T) {
			if err := validator.ValidateSearchTerm(input); err != nil {
				t.Errorf("Expected no error for '%s', got: %v", input, err)
			}
		})
	}
}

func TestValidateSearchTerm_Invalid(t *testing.T) {
	validator := NewDataValidator()

	testCases := []struct {
		name  string
		input string
	}{
		{"Empty", ""},
		{"Whitespace", "   "},
		{"Too short", "a"},
		{"Too long", strings.Repeat("ab", 51)},
		{"Too many words", "a1 b1 c1 d1 e1 f1 g1"},
		{"Script tag", "<script>alert(1)</script>"},
		{"SQL injection", "x' or 1=1"},
		{"SQL comment", "aspirin--"},
		{"Command substitution", "$(rm -rf)"},
		{"Path traversal", "../etc/passwd"},
		{"Query field syntax", "patient.drug:aspirin"},
		{"Boolean operator", "aspirin OR ibuprofen"},
		{"Quotes", `"aspirin"`},
		{"Wildcard", "aspir*"},
		{"Cyrillic", "Привет"},
		{"Emoji", "💊💊"},
		{"Null byte", "abc\x00def"},
		{"Repetition", "aaaaaaaaaaaaaaa"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validator.ValidateSearchTerm(tc.input); err == nil {
				t.Errorf("Expected error for input '%s'", tc.input)
			}
		})
	}
}

func TestValidateSearchTerm_LengthBoundaries(t *testing.T) {
	validator := NewDataValidator()

	if err := validator.ValidateSearchTerm("ab"); err != nil {
		t.Errorf("Expected 2 characters to be accepted, got: %v", err)
	}

	// Accented letters count as one character each
	if err := validator.ValidateSearchTerm("áé"); err != nil {
		t.Errorf("Expected 2 accented characters to be accepted, got: %v", err)
	}

	atMax := strings.Repeat("abcdefghij", 10)
	if err := validator.ValidateSearchTerm(atMax); err != nil {
		t.Errorf("Expected %d characters to be accepted, got: %v", MaxSearchLength, err)
	}
	if err := validator.ValidateSearchTerm(atMax + "k"); err == nil {
		t.Errorf("Expected error for %d characters", MaxSearchLength+1)
	}
}

func TestValidateDashboard(t *testing.T) {
	validator := NewDataValidator()

	testCases := []struct {
		name        string
		dashName    *string
		description *string
		config      json.RawMessage
		wantErr     bool
	}{
		{"Valid", ptr("Overview"), ptr("Main view"), json.RawMessage(`{"widgets":["trend"]}`), false},
		{"No changes", nil, nil, nil, false},
		{"Empty name", ptr("  "), nil, nil, true},
		{"Long name", ptr(strings.Repeat("n", MaxNameLength+1)), nil, nil, true},
		{"Long description", ptr("ok"), ptr(strings.Repeat("d", MaxDescriptionLength+1)), nil, true},
		{"Array config", ptr("ok"), nil, json.RawMessage(`[1,2]`), true},
		{"Null config", ptr("ok"), nil, json.RawMessage(`null`), true},
		{"Broken config", ptr("ok"), nil, json.RawMessage(`{"a":`), true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ValidateDashboard(tc.dashName, tc.description, tc.config)
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateNotification(t *testing.T) {
	validator := NewDataValidator()

	testCases := []struct {
		name    string
		title   string
		message string
		kind    string
		wantErr bool
	}{
		{"Valid", "Recall", "New class I recall", "warning", false},
		{"Default type", "Recall", "New class I recall", "", false},
		{"Missing title", "", "body", "info", true},
		{"Missing message", "title", " ", "info", true},
		{"Unknown type", "title", "body", "urgent", true},
		{"Long title", strings.Repeat("t", MaxTitleLength+1), "body", "info", true},
		{"Long message", "title", strings.Repeat("m", MaxMessageLength+1), "info", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := validator.ValidateNotification(tc.title, tc.message, tc.kind)
			if tc.wantErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestValidateID(t *testing.T) {
	validator := NewDataValidator()
	want := uuid.New()

	got, err := validator.ValidateID(want.String())
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if got != want {
		t.Errorf("Expected %s, got %s", want, got)
	}

	for _, input := range []string{"", "123", "not-a-uuid"} {
		if _, err := validator.ValidateID(input); err == nil {
			t.Errorf("Expected error for '%s'", input)
		}
	}
}

func TestValidateIDs(t *testing.T) {
	validator := NewDataValidator()

	ids, err := validator.ValidateIDs([]string{uuid.NewString(), uuid.NewString()})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(ids) != 2 {
		t.Errorf("Expected 2 ids, got %d", len(ids))
	}

	if _, err := validator.ValidateIDs(nil); err == nil {
		t.Error("Expected error for empty list")
	}
	if _, err := validator.ValidateIDs([]string{uuid.NewString(), "bad"}); err == nil {
		t.Error("Expected error when one id is invalid")
	}

	tooMany := make([]string, MaxBulkIDs+1)
	for i := range tooMany {
		tooMany[i] = uuid.NewString()
	}
	if _, err := validator.ValidateIDs(tooMany); err == nil {
		t.Error("Expected error for too many ids")
	}
}

func TestHasExcessiveRepetition(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{"aspirin", false},
		{"aaaaaaaaaa", false},  // 10 identical
		{"aaaaaaaaaaa", true},  // 11 identical
		{"ééééééééééé", true},  // multi-byte runes
		{"abababababababab", false},
	}

	for _, tc := range testCases {
		if got := hasExcessiveRepetition(tc.input); got != tc.expected {
			t.Errorf("hasExcessiveRepetition(%q) = %v, expected %v", tc.input, got, tc.expected)
		}
	}
}
