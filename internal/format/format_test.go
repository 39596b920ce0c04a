package format

import (
	"math/big"
	"testing"
)

func TestAnswer(t *testing.T) {
	adjusted := new(big.Rat).SetFrac(big.NewInt(1000000000000), big.NewInt(1000000))
	fractional := new(big.Rat).SetFrac(big.NewInt(150), big.NewInt(100))

	tests := []struct {
		name       string
		returnType string
		value      any
		adjusted   *big.Rat
		want       string
	}{
		{"adjusted uint256", "uint256", big.NewInt(1000000000000), adjusted, "1,000,000.00"},
		{"adjusted fraction", "uint256", big.NewInt(150), fractional, "1.50"},
		{"raw uint256", "uint256", big.NewInt(1234567), nil, "1,234,567"},
		{"string", "string", "USD Coin", nil, "USD Coin"},
		{"uint8", "uint8", uint8(6), nil, "6"},
		{"unexpected type degrades", "uint256", "not-a-number", nil, "not-a-number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Answer(tc.returnType, tc.value, tc.adjusted); got != tc.want {
				t.Fatalf("Answer = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAnswerDoesNotMutateRawValue(t *testing.T) {
	raw := big.NewInt(1234567)
	_ = Answer("uint256", raw, nil)
	if raw.String() != "1234567" {
		t.Fatalf("raw value mutated to %s", raw)
	}
}
