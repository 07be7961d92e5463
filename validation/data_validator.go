// Package validation provides input validation for the dashboard API.
package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/farmavigil/farmavigil-api/interfaces"
	"github.com/farmavigil/farmavigil-api/store/models"
	"github.com/google/uuid"
)

// Limits applied to user supplied values.
const (
	MinSearchLength      = 2
	MaxSearchLength      = 100
	MaxSearchWords       = 6
	MaxNameLength        = 120
	MaxDescriptionLength = 1000
	MaxTitleLength       = 200
	MaxMessageLength     = 2000
	MaxBulkIDs           = 100
)

var (
	// Search terms: letters and digits (including Spanish and common Latin accents) plus safe punctuation
	searchRegex = regexp.MustCompile(`^[a-zA-Z0-9\s\-\.\+'/áéíóúüñÁÉÍÓÚÜÑàâäèêëïîôöùûÿç]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// openFDA query syntax that would change the search expression
		" and ", " or ", " not ", ":", "\"", "[", "]", "(", ")",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateSearchTerm validates a free-text drug or indication search
func (v *DataValidatorImpl) ValidateSearchTerm(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("search term cannot be empty")
	}

	length := utf8.RuneCountInString(trimmed)
	if length < MinSearchLength {
		return fmt.Errorf("search term too short: minimum %d characters", MinSearchLength)
	}
	if length > MaxSearchLength {
		return fmt.Errorf("search term too long: maximum %d characters", MaxSearchLength)
	}

	// Word count validation to prevent queries with many short words
	if len(strings.Fields(trimmed)) > MaxSearchWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", MaxSearchWords)
	}

	lowerInput := " " + strings.ToLower(trimmed) + " "
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("search term contains potentially dangerous content")
		}
	}

	if !searchRegex.MatchString(trimmed) {
		return fmt.Errorf("search term contains invalid characters. Only letters, numbers, spaces, hyphens, apostrophes, periods, slashes and plus sign are allowed")
	}

	if hasExcessiveRepetition(trimmed) {
		return fmt.Errorf("search term contains excessive character repetition")
	}

	return nil
}

// ValidateDashboard checks the fields of a dashboard before it is created or updated.
// A nil pointer means the field is not being changed.
func (v *DataValidatorImpl) ValidateDashboard(name, description *string, config json.RawMessage) error {
	if name != nil {
		trimmed := strings.TrimSpace(*name)
		if trimmed == "" {
			return fmt.Errorf("name cannot be empty")
		}
		if utf8.RuneCountInString(trimmed) > MaxNameLength {
			return fmt.Errorf("name too long: maximum %d characters", MaxNameLength)
		}
	}

	if description != nil && utf8.RuneCountInString(*description) > MaxDescriptionLength {
		return fmt.Errorf("description too long: maximum %d characters", MaxDescriptionLength)
	}

	if len(config) > 0 {
		var object map[string]any
		if err := json.Unmarshal(config, &object); err != nil || object == nil {
			return fmt.Errorf("config must be a JSON object")
		}
	}

	return nil
}

// ValidateNotification checks a notification before it is stored. An empty type is
// accepted and later defaults to info.
func (v *DataValidatorImpl) ValidateNotification(title, message, notificationType string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title too long: maximum %d characters", MaxTitleLength)
	}
	if strings.TrimSpace(message) == "" {
		return fmt.Errorf("message cannot be empty")
	}
	if utf8.RuneCountInString(message) > MaxMessageLength {
		return fmt.Errorf("message too long: maximum %d characters", MaxMessageLength)
	}
	if notificationType != "" && !slices.Contains(models.NotificationTypes, notificationType) {
		return fmt.Errorf("invalid notification type %q: expected one of %s",
			notificationType, strings.Join(models.NotificationTypes, ", "))
	}
	return nil
}

// ValidateID parses a resource identifier
func (v *DataValidatorImpl) ValidateID(input string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return uuid.Nil, fmt.Errorf("id cannot be empty")
	}
	id, err := uuid.Parse(trimmed)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid id %q", input)
	}
	return id, nil
}

// ValidateIDs parses a bulk list of identifiers, rejecting empty and oversized lists
func (v *DataValidatorImpl) ValidateIDs(inputs []string) ([]uuid.UUID, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("ids cannot be empty")
	}
	if len(inputs) > MaxBulkIDs {
		return nil, fmt.Errorf("too many ids: maximum %d allowed", MaxBulkIDs)
	}

	ids := make([]uuid.UUID, 0, len(inputs))
	for _, input := range inputs {
		id, err := v.ValidateID(input)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func hasExcessiveRepetition(input string) bool {
	run := 0
	var previous rune
	for i, r := range input {
		if i > 0 && r == previous {
			run++
			if run >= 10 {
				return true
			}
		} else {
			run = 0
		}
		previous = r
	}
	return false
}
