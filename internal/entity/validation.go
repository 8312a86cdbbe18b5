package entity

// CheckStatus is the severity of one validation check, and of the rollup
// across all checks on an item.
type CheckStatus string

const (
	CheckPass    CheckStatus = "pass"
	CheckWarning CheckStatus = "warning"
	CheckError   CheckStatus = "error"
)

var checkSeverity = map[CheckStatus]int{
	CheckPass:    0,
	CheckWarning: 1,
	CheckError:   2,
}

// Worse returns the more severe of the two statuses.
func (s CheckStatus) Worse(other CheckStatus) CheckStatus {
	if checkSeverity[s] >= checkSeverity[other] {
		return s
	}
	return other
}

// ValidationCheck is one named data-quality check result. Stateless,
// produced fresh each run.
type ValidationCheck struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
}

// ValidationResult is the per-item rollup, index-aligned with the job's
// structured data.
type ValidationResult struct {
	ItemIndex int               `json:"itemIndex"`
	ItemName  string            `json:"itemName"`
	Status    CheckStatus       `json:"status"`
	Checks    []ValidationCheck `json:"checks"`
}
