package qa

// Result is the per-question output record.
type Result struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

const maxExplanationLen = 200

// ResultRecord extracts the output record from a completed run.
func ResultRecord(id string, run *RunState) Result {
	return Result{
		ID:          id,
		FinalAnswer: run.FinalAnswer,
		SQL:         run.CurrentQuery,
		Confidence:  run.Confidence,
		Explanation: truncate(run.Reasoning, maxExplanationLen),
		Citations:   run.Citations,
	}
}

// FailureRecord converts a run failure into a null-answer record so batch
// processing can continue past it.
func FailureRecord(id string, err error) Result {
	return Result{
		ID:          id,
		FinalAnswer: nil,
		SQL:         "",
		Confidence:  0.0,
		Explanation: truncate("Error: "+err.Error(), maxExplanationLen),
		Citations:   []string{},
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
