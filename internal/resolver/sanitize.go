package resolver

import (
	"regexp"
	"strings"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

// MaxQuestionLength bounds the free-text input accepted by the resolver.
const MaxQuestionLength = 500

var (
	scriptBlockRe = regexp.MustCompile(`(?is)<script.*?</script>`)
	htmlTagRe     = regexp.MustCompile(`<[^>]*>`)
)

// Sanitize normalizes free-text input before any parsing: HTML and
// script content is stripped, control characters other than \n\r\t are
// dropped, runs of whitespace collapse to a single space, and the
// length bound is enforced.
func Sanitize(input string) (string, error) {
	if len(input) > MaxQuestionLength {
		return "", qaerr.Newf(qaerr.CodeInput,
			"question is too long: %d characters (max %d)", len(input), MaxQuestionLength)
	}

	clean := scriptBlockRe.ReplaceAllString(input, " ")
	clean = htmlTagRe.ReplaceAllString(clean, " ")
	clean = stripControl(clean)
	clean = strings.Join(strings.Fields(clean), " ")

	if clean == "" {
		return "", qaerr.New(qaerr.CodeInput, "question is empty after sanitization")
	}
	if len(clean) > MaxQuestionLength {
		return "", qaerr.Newf(qaerr.CodeInput,
			"question is too long: %d characters (max %d)", len(clean), MaxQuestionLength)
	}
	return clean, nil
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
