package trace

import (
	"bytes"
	"encoding/json"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

// Document is the wire-compatible JSON form of a sealed trace. This is
// the artifact handed to the trace store and the only thing the verifier
// needs: no chain access, no model access.
type Document struct {
	TraceID        string         `json:"trace_id"`
	AgentID        string         `json:"agent_id"`
	StartTime      string         `json:"start_time"`
	EndTime        string         `json:"end_time,omitempty"`
	Steps          []StepDocument `json:"steps"`
	CommitmentHash string         `json:"commitment_hash,omitempty"`
	IPFSHash       string         `json:"ipfs_hash,omitempty"`
}

// StepDocument is one step in wire form, including its stored hash.
type StepDocument struct {
	StepID    string         `json:"step_id"`
	Action    string         `json:"action"`
	Timestamp string         `json:"timestamp"`
	Inputs    map[string]any `json:"inputs"`
	Outputs   map[string]any `json:"outputs"`
	Metadata  map[string]any `json:"metadata"`
	StepHash  string         `json:"step_hash"`
}

// Hash recomputes the step hash from the document's stored content,
// independent of the StepHash field.
func (s *StepDocument) Hash() string {
	return StepHash(s.Action, s.Inputs, s.Outputs, s.Metadata)
}

// MarshalDocument encodes doc as indented JSON.
func MarshalDocument(doc *Document) ([]byte, error) {
	buf, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "encode trace document", err)
	}
	return buf, nil
}

// ParseDocument decodes a trace document. Numbers are decoded as
// json.Number so integral on-chain values keep their exact literal text
// through re-hashing.
func ParseDocument(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, qaerr.Wrap(qaerr.CodeMalformed, "parse trace document", err)
	}
	return &doc, nil
}
