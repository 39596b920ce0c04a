// Package verifier re-verifies sealed execution traces from their stored
// documents alone. It has no dependency on the agent, the chain client or
// the model client: a third party holding only the document can run it.
package verifier

import (
	"github.com/verifiable-ai/onchainqa/internal/trace"
)

// StepMismatch describes one step whose recomputed hash disagrees with
// the hash stored in the document.
type StepMismatch struct {
	Index    int    `json:"index"`
	Action   string `json:"action"`
	Computed string `json:"computed"`
	Stored   string `json:"stored"`
}

// Report is the full outcome of a verification run.
type Report struct {
	Valid              bool           `json:"valid"`
	StepMismatches     []StepMismatch `json:"step_mismatches,omitempty"`
	StoredCommitment   string         `json:"stored_commitment"`
	ComputedCommitment string         `json:"computed_commitment"`
	Steps              int            `json:"steps"`
}

// Verify recomputes every step hash and the commitment from the raw
// document contents. All discrepancies are accumulated rather than
// failing fast: the verifier's job is to enumerate every mismatch, not
// just the first. The trace is valid iff no step mismatches exist and
// the recomputed commitment equals the stored one.
func Verify(doc *trace.Document) Report {
	report := Report{
		StoredCommitment: doc.CommitmentHash,
		Steps:            len(doc.Steps),
	}

	computed := make([]string, len(doc.Steps))
	for i := range doc.Steps {
		step := &doc.Steps[i]
		computed[i] = step.Hash()
		if computed[i] != step.StepHash {
			report.StepMismatches = append(report.StepMismatches, StepMismatch{
				Index:    i,
				Action:   step.Action,
				Computed: computed[i],
				Stored:   step.StepHash,
			})
		}
	}

	report.ComputedCommitment = trace.CommitmentHash(computed)
	report.Valid = len(report.StepMismatches) == 0 &&
		report.ComputedCommitment == report.StoredCommitment
	return report
}
