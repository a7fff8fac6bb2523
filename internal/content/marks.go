package content

import (
	"encoding/json"

	"sgcsc-backend/internal/apperrors"

	"gorm.io/datatypes"
)

// Mark is one line of a result's marks sheet.
type Mark struct {
	Subject  string  `json:"subject"`
	MaxMarks float64 `json:"max_marks"`
	Obtained float64 `json:"obtained"`
}

// checkMarks accepts an empty sheet or a JSON array of Mark.
func checkMarks(raw datatypes.JSON) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var marks []Mark
	if err := json.Unmarshal(raw, &marks); err != nil {
		return apperrors.Invalid("marks must be a list of {subject, max_marks, obtained}")
	}
	for _, m := range marks {
		if m.Subject == "" {
			return apperrors.Invalid("marks: subject is required")
		}
		if m.Obtained < 0 || m.Obtained > m.MaxMarks {
			return apperrors.Invalid("marks: %s obtained must be between 0 and %g", m.Subject, m.MaxMarks)
		}
	}
	return nil
}
