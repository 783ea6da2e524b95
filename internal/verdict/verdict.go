// Package verdict turns free-form evaluator responses into structured
// compliance verdicts. Evaluator output is unreliable: the expected JSON may
// arrive wrapped in prose, with broken quoting, or not at all, so parsing is
// layered from strict to increasingly forgiving.
package verdict

// Compliance is the outcome of evaluating one guideline.
type Compliance string

const (
	// Compliant means the document satisfies the guideline.
	Compliant Compliance = "Compliant"
	// NonCompliant means the document violates the guideline.
	NonCompliant Compliance = "NonCompliant"
	// Unknown means the evaluator answered but the answer could not be
	// mapped to a yes or no.
	Unknown Compliance = "Unknown"
	// Error means the evaluation itself failed after all retries.
	Error Compliance = "Error"
)

// Verdict is the parsed result for one guideline. Explanation is never empty.
type Verdict struct {
	Compliance  Compliance `json:"compliance"`
	Explanation string     `json:"explanation"`

	// Optional fields passed through when the evaluator supplies them.
	Status       string `json:"status,omitempty"`
	StatusDetail string `json:"status_detail,omitempty"`
	Category     string `json:"category,omitempty"`
	IssueNumber  string `json:"issue_number,omitempty"`
	Severity     string `json:"severity,omitempty"`
}
