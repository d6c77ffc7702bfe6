package domain

// Verdict is the outcome of a semantic relevance check.
type Verdict string

// Possible verdicts.
const (
	VerdictYes           Verdict = "YES"
	VerdictNo            Verdict = "NO"
	VerdictIndeterminate Verdict = "INDETERMINATE"
)

// String returns the string representation.
func (v Verdict) String() string {
	return string(v)
}
