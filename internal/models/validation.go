package models

// Severity of a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue codes reported by the chemical validity checks.
const (
	CodeEmptyRecipe    = "EMPTY_RECIPE"
	CodeMassImbalance  = "MASS_IMBALANCE"
	CodeNegativeAmount = "NEGATIVE_AMOUNT"
	CodePVCTooHigh     = "PVC_TOO_HIGH"
	CodePVCTooLow      = "PVC_TOO_LOW"
	CodeLimitExceeded  = "MATERIAL_LIMIT_EXCEEDED"
	CodeBelowMin       = "MATERIAL_BELOW_MIN"
	CodePHUnstable     = "PH_UNSTABLE"
	CodeHansenIncompat = "HANSEN_INCOMPATIBLE"
)

// ValidationIssue is a single finding about a recipe.
type ValidationIssue struct {
	Code      string   `json:"code" yaml:"code"`
	Message   string   `json:"message" yaml:"message"`
	Severity  Severity `json:"severity" yaml:"severity"`
	Component string   `json:"component_ref,omitempty" yaml:"component_ref,omitempty"`
}

// ValidationResult is the outcome of one validation call. It is built once
// and not modified after it is returned.
type ValidationResult struct {
	IsValid      bool              `json:"is_valid" yaml:"is_valid"`
	Errors       []ValidationIssue `json:"errors" yaml:"errors"`
	Warnings     []ValidationIssue `json:"warnings" yaml:"warnings"`
	PenaltyScore float64           `json:"penalty_score" yaml:"penalty_score"`
}

// HasIssue reports whether an error or warning with the given code exists.
func (r ValidationResult) HasIssue(code string) bool {
	for _, e := range r.Errors {
		if e.Code == code {
			return true
		}
	}
	for _, w := range r.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}
