package resolver

import (
	"strings"
	"testing"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "What is the total supply of USDC?", "What is the total supply of USDC?"},
		{"collapses whitespace", "  what \t is\n\nthe   supply  ", "what is the supply"},
		{"strips script block", "supply of USDC <script>alert('x')</script> please", "supply of USDC please"},
		{"strips html tags", "supply of <b>USDC</b>", "supply of USDC"},
		{"drops control chars", "supply\x00 of\x07 USDC", "supply of USDC"},
		{"keeps case and punctuation", "Balance of 0xAbC?", "Balance of 0xAbC?"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Sanitize(tc.input)
			if err != nil {
				t.Fatalf("Sanitize(%q) failed: %v", tc.input, err)
			}
			if got != tc.want {
				t.Fatalf("Sanitize(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestSanitizeRejectsTooLong(t *testing.T) {
	_, err := Sanitize(strings.Repeat("a", MaxQuestionLength+1))
	if qaerr.CodeOf(err) != qaerr.CodeInput {
		t.Fatalf("code = %v, want input validation", qaerr.CodeOf(err))
	}
}

func TestSanitizeRejectsEmptyAfterStripping(t *testing.T) {
	for _, input := range []string{"", "   ", "<script>only()</script>", "<br><hr>"} {
		if _, err := Sanitize(input); qaerr.CodeOf(err) != qaerr.CodeInput {
			t.Fatalf("Sanitize(%q): code = %v, want input validation", input, qaerr.CodeOf(err))
		}
	}
}
