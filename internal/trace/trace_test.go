package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"math/big"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time {
		base = base.Add(time.Second)
		return base
	}
}

func TestStepHashIgnoresIDAndTimestamp(t *testing.T) {
	inputs := map[string]any{"question": "What is the total supply of USDC?"}
	outputs := map[string]any{"answer": "1,000,000.00"}

	a := Step{
		StepID:    "step-a",
		Timestamp: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Action:    ActionFormatAnswer,
		Inputs:    inputs,
		Outputs:   outputs,
	}
	b := Step{
		StepID:    "step-b",
		Timestamp: time.Date(2030, 12, 31, 23, 59, 59, 0, time.UTC),
		Action:    ActionFormatAnswer,
		Inputs:    inputs,
		Outputs:   outputs,
	}

	if a.Hash() != b.Hash() {
		t.Fatalf("hashes differ for identical content: %s vs %s", a.Hash(), b.Hash())
	}
}

func TestStepHashChangesWithContent(t *testing.T) {
	base := StepHash(ActionExecuteQuery, map[string]any{"q": 1}, map[string]any{"r": 2}, nil)
	changed := StepHash(ActionExecuteQuery, map[string]any{"q": 1}, map[string]any{"r": 3}, nil)
	if base == changed {
		t.Fatal("expected different hashes for different outputs")
	}
}

func TestEmptyTraceCommitment(t *testing.T) {
	sum := sha256.Sum256([]byte(""))
	want := hex.EncodeToString(sum[:])

	tr := New("agent", WithClock(fixedClock()))
	got, err := tr.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	if got != want {
		t.Fatalf("empty trace commitment = %s, want SHA256(\"\") = %s", got, want)
	}
}

func TestCommitmentIsConcatenationOfStepHashes(t *testing.T) {
	tr := New("agent", WithClock(fixedClock()))
	s1 := tr.LogStep(ActionParseQuestion, map[string]any{"question": "q"}, nil, nil)
	s2 := tr.LogStep(ActionExecuteQuery, nil, map[string]any{"result": 1}, nil)

	commitment, err := tr.Finalize()
	if err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
	sum := sha256.Sum256([]byte(s1.Hash() + s2.Hash()))
	if want := hex.EncodeToString(sum[:]); commitment != want {
		t.Fatalf("commitment = %s, want %s", commitment, want)
	}
}

func TestFinalizeTwiceFails(t *testing.T) {
	tr := New("agent", WithClock(fixedClock()))
	if _, err := tr.Finalize(); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	if _, err := tr.Finalize(); err == nil {
		t.Fatal("second Finalize should fail")
	}
}

func TestRecorderAutoStartsTrace(t *testing.T) {
	rec := NewRecorder("agent", WithClock(fixedClock()))
	if rec.Current() != nil {
		t.Fatal("recorder should have no trace before the first step")
	}
	rec.LogStep(ActionParseQuestion, map[string]any{"question": "q"}, nil, nil)
	if rec.Current() == nil {
		t.Fatal("first LogStep should start a trace")
	}
	if _, err := rec.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}
}

func TestRecorderFinalizeWithoutTraceFails(t *testing.T) {
	rec := NewRecorder("agent")
	if _, err := rec.Finalize(); err == nil {
		t.Fatal("Finalize without an active trace should fail")
	}
}

func TestDocumentRoundTripPreservesHashes(t *testing.T) {
	supply, ok := new(big.Int).SetString("123456789012345678901234567890", 10)
	if !ok {
		t.Fatal("SetString failed")
	}

	tr := New("agent", WithClock(fixedClock()))
	tr.LogStep(ActionParseQuestion,
		map[string]any{"question": "What is the total supply of USDC?"},
		map[string]any{"parsed_query": map[string]any{
			"contract_address": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			"function":         "totalSupply",
			"args":             []any{},
			"abi_type":         "ERC20",
		}},
		nil)
	tr.LogStep(ActionExecuteQuery,
		nil,
		map[string]any{"result": supply, "adjusted": "1.500000", "decimals": 6},
		nil)
	if _, err := tr.Finalize(); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	doc := tr.Document()
	payload, err := MarshalDocument(doc)
	if err != nil {
		t.Fatalf("MarshalDocument failed: %v", err)
	}
	parsed, err := ParseDocument(payload)
	if err != nil {
		t.Fatalf("ParseDocument failed: %v", err)
	}

	if len(parsed.Steps) != len(doc.Steps) {
		t.Fatalf("step count changed: %d vs %d", len(parsed.Steps), len(doc.Steps))
	}
	for i := range parsed.Steps {
		if got, want := parsed.Steps[i].Hash(), doc.Steps[i].StepHash; got != want {
			t.Fatalf("step %d re-hash = %s, want %s", i, got, want)
		}
	}
}

func TestParseDocumentRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseDocument([]byte("{not json")); err == nil {
		t.Fatal("expected error for malformed document")
	}
}
