package trace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the wire format for every timestamp in a trace document:
// ISO-8601 UTC, microsecond precision, Z suffix.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in the canonical wire format.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Microsecond).Format(TimeLayout)
}

// canonicalValue renders v as a stable string. The same rules are applied
// on the agent side (hashing native Go values) and on the verifier side
// (hashing values decoded from a JSON document with json.Number), so a
// stored document re-hashes to the same digests it was sealed with.
//
// Rules: object keys sorted lexicographically at every nesting level,
// strings JSON-escaped, integers in base 10, floats with fixed 6-decimal
// precision, timestamps ISO-8601 UTC microseconds, nil as null, lists
// element-wise in original order.
func canonicalValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return quoteString(t)
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return canonicalNumber(t)
	case int:
		return strconv.FormatInt(int64(t), 10)
	case int8:
		return strconv.FormatInt(int64(t), 10)
	case int16:
		return strconv.FormatInt(int64(t), 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint8:
		return strconv.FormatUint(uint64(t), 10)
	case uint16:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', 6, 64)
	case float64:
		return strconv.FormatFloat(t, 'f', 6, 64)
	case *big.Int:
		if t == nil {
			return "null"
		}
		return t.String()
	case time.Time:
		return quoteString(FormatTime(t))
	case map[string]any:
		return canonicalObject(t)
	case []any:
		return canonicalList(t)
	default:
		// Last resort for types the trace payloads should not carry;
		// stringification keeps the hash total rather than failing it.
		return quoteString(fmt.Sprint(t))
	}
}

// canonicalNumber keeps integral literals verbatim so arbitrarily large
// on-chain integers survive a JSON round trip; fractional values are
// pinned to 6-decimal precision like native floats.
func canonicalNumber(n json.Number) string {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		return s
	}
	f, err := n.Float64()
	if err != nil {
		return quoteString(s)
	}
	return strconv.FormatFloat(f, 'f', 6, 64)
}

func canonicalObject(m map[string]any) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteString(k))
		b.WriteByte(':')
		b.WriteString(canonicalValue(m[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func canonicalList(items []any) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(canonicalValue(item))
	}
	b.WriteByte(']')
	return b.String()
}

func quoteString(s string) string {
	buf, err := json.Marshal(s)
	if err != nil {
		return strconv.Quote(s)
	}
	return string(buf)
}

// StepHash computes the SHA-256 digest of a step's hashable content.
// step_id and timestamp are deliberately excluded: both are
// non-deterministic and would break independent re-verification.
func StepHash(action string, inputs, outputs, metadata map[string]any) string {
	payload := map[string]any{
		"action":   action,
		"inputs":   normalizeMap(inputs),
		"outputs":  normalizeMap(outputs),
		"metadata": normalizeMap(metadata),
	}
	sum := sha256.Sum256([]byte(canonicalObject(payload)))
	return hex.EncodeToString(sum[:])
}

// CommitmentHash summarizes an ordered list of step hashes. The hex
// strings are concatenated as text, not byte-decoded, and an empty trace
// commits to SHA256("").
func CommitmentHash(stepHashes []string) string {
	sum := sha256.Sum256([]byte(strings.Join(stepHashes, "")))
	return hex.EncodeToString(sum[:])
}

func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
