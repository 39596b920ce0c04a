package errors

// String returns the stable label used in trace step metadata and logs.
func (c Code) String() string {
	switch c {
	case CodeSuccess:
		return "success"
	case CodeInternal:
		return "internal"
	case CodeUsage:
		return "usage"
	case CodeInput:
		return "input_validation"
	case CodeSecurity:
		return "security"
	case CodeTransient:
		return "transient_chain"
	case CodeReverted:
		return "reverted"
	case CodeGas:
		return "insufficient_gas"
	case CodeContract:
		return "contract_call"
	case CodeIntegrity:
		return "trace_integrity"
	case CodeNotFound:
		return "not_found"
	case CodeConfig:
		return "configuration"
	case CodeMalformed:
		return "malformed_document"
	case CodeUnavailable:
		return "unavailable"
	case CodeAuth:
		return "auth"
	case CodeRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// UserMessage translates err into a short, actionable message safe to
// show a user. Expected failure kinds carry their own non-leaking
// messages; anything unexpected maps to a single generic message while
// the original stays in logs and trace metadata.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	switch CodeOf(err) {
	case CodeInput, CodeSecurity, CodeConfig, CodeNotFound, CodeMalformed, CodeUsage:
		if typed, ok := As(err); ok {
			return typed.Message
		}
	case CodeReverted:
		return "the contract rejected the call (execution reverted); the token may not support this query"
	case CodeGas:
		return "the call ran out of gas; please try again later"
	case CodeTransient, CodeUnavailable, CodeRateLimited:
		return "a temporary network problem prevented the query; please try again"
	case CodeContract:
		return "the contract call failed; check that the address is an ERC-20 token"
	case CodeAuth:
		return "an upstream service rejected the configured credentials"
	}
	return "something went wrong while answering your question; please try again"
}
