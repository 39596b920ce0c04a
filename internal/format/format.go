// Package format renders raw chain results into locale-stable,
// human-readable answers.
package format

import (
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"
)

// Answer renders a raw result per its declared return type. Formatting
// never fails: anything unexpected degrades to plain stringification so
// a successful read is never reported as an error.
//
//   - uint256 with decimals adjustment: thousands separators and exactly
//     two fraction digits, e.g. "1,000,000.00"
//   - uint256 without adjustment: thousands separators, no fraction
//   - string, uint8, anything else: direct conversion
func Answer(returnType string, value any, adjusted *big.Rat) string {
	if returnType == "uint256" {
		if adjusted != nil {
			f, _ := adjusted.Float64()
			return humanize.FormatFloat("#,###.##", f)
		}
		if raw, ok := value.(*big.Int); ok {
			return humanize.BigComma(new(big.Int).Set(raw))
		}
	}

	switch v := value.(type) {
	case string:
		return v
	case uint8:
		return fmt.Sprintf("%d", v)
	case *big.Int:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
