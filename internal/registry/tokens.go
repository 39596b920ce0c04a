package registry

import "strings"

// tokenAddresses maps lowercase token names and aliases to their
// contract addresses on Base.
var tokenAddresses = map[string]string{
	"usdc":          "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	"usd coin":      "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
	"weth":          "0x4200000000000000000000000000000000000006",
	"wrapped eth":   "0x4200000000000000000000000000000000000006",
	"wrapped ether": "0x4200000000000000000000000000000000000006",
}

// ResolveToken resolves a token name or alias to its contract address.
// Matching is case-insensitive and exact.
func ResolveToken(name string) (string, bool) {
	addr, ok := tokenAddresses[strings.ToLower(strings.TrimSpace(name))]
	return addr, ok
}

// FindToken scans free text for a known token. Exact word matches win;
// when none hits, a substring match is accepted as a fallback. Longer
// names are tried first so "usd coin" beats "usdc" inside the same text.
func FindToken(text string) (name, address string, ok bool) {
	lowered := strings.ToLower(text)
	fields := strings.FieldsFunc(lowered, func(r rune) bool {
		return !isTokenRune(r)
	})

	for _, candidate := range tokenNamesByLength() {
		for _, field := range fields {
			if field == candidate {
				return candidate, tokenAddresses[candidate], true
			}
		}
	}
	for _, candidate := range tokenNamesByLength() {
		if strings.Contains(lowered, candidate) {
			return candidate, tokenAddresses[candidate], true
		}
	}
	return "", "", false
}

// TokenDescriptions renders the registry for the system prompt, sorted
// for prompt stability.
func TokenDescriptions() []string {
	names := tokenNamesByLength()
	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, "- "+name+": "+tokenAddresses[name])
	}
	return lines
}

func tokenNamesByLength() []string {
	names := make([]string, 0, len(tokenAddresses))
	for name := range tokenAddresses {
		names = append(names, name)
	}
	// Longest first, then lexicographic for determinism.
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if len(names[j]) > len(names[i]) ||
				(len(names[j]) == len(names[i]) && names[j] < names[i]) {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	return names
}

func isTokenRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	default:
		return false
	}
}
