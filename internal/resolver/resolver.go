// Package resolver turns free-text questions into validated on-chain
// queries. Address resolution is strictly deterministic: the model picks
// the function and its arguments, never the contract address.
package resolver

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/llm"
	"github.com/verifiable-ai/onchainqa/internal/registry"
)

// maxModelResponseLength bounds the completion the resolver will accept.
const maxModelResponseLength = 1000

var (
	addressScanRe   = regexp.MustCompile(`0x[0-9a-fA-F]{40}`)
	strictAddressRe = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	functionNameRe  = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]*$`)
)

// Query is a validated request to the chain.
type Query struct {
	ContractAddress string `json:"contract_address"`
	Function        string `json:"function"`
	Args            []any  `json:"args"`
	ABIType         string `json:"abi_type"`
}

// Resolver resolves sanitized questions via deterministic extraction and
// model-assisted structured parsing.
type Resolver struct {
	completer llm.Completer
	log       *logrus.Logger
}

func New(completer llm.Completer, log *logrus.Logger) *Resolver {
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{completer: completer, log: log}
}

// Resolve runs the full pipeline: sanitize, deterministic address
// resolution, model parse, response validation, address override and
// semantic validation against the function registry.
func (r *Resolver) Resolve(ctx context.Context, question string) (*Query, error) {
	clean, err := Sanitize(question)
	if err != nil {
		return nil, err
	}

	// Token-name resolution takes priority over a literal address so a
	// registry token mentioned alongside an unrelated address still
	// resolves to the registry entry.
	resolvedAddress := ""
	if name, addr, ok := registry.FindToken(clean); ok {
		resolvedAddress = addr
		r.log.WithFields(logrus.Fields{"token": name, "address": addr}).
			Debug("resolved token name from registry")
	} else if match := addressScanRe.FindString(clean); match != "" {
		resolvedAddress = match
	}
	if resolvedAddress == "" {
		return nil, qaerr.New(qaerr.CodeInput,
			"could not identify a known token or a contract address in the question; mention a supported token (e.g. USDC) or include a full 0x address")
	}
	checksummed, err := checksumAddress(resolvedAddress)
	if err != nil {
		return nil, err
	}

	raw, err := r.completer.Complete(ctx, registry.SystemPrompt(), clean)
	if err != nil {
		return nil, err
	}

	query, err := parseModelResponse(raw)
	if err != nil {
		return nil, err
	}

	// The model is trusted only for function and arguments. Whatever
	// address it returned is replaced with the deterministic one.
	query.ContractAddress = checksummed

	if err := validateSemantics(query); err != nil {
		return nil, err
	}
	return query, nil
}

// parseModelResponse applies the defense-in-depth checks on the raw
// completion. Failure messages are user-actionable and never echo the
// model output.
func parseModelResponse(raw string) (*Query, error) {
	if len(raw) > maxModelResponseLength {
		return nil, qaerr.New(qaerr.CodeSecurity,
			"could not parse the question: the parser response exceeded its size limit; please rephrase")
	}
	body := strings.TrimSpace(stripCodeFence(raw))

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, qaerr.New(qaerr.CodeSecurity,
			"could not parse the question into a structured query; please rephrase it more directly")
	}
	for _, key := range []string{"contract_address", "function", "args", "abi_type"} {
		if _, ok := fields[key]; !ok {
			return nil, qaerr.Newf(qaerr.CodeSecurity,
				"could not parse the question: the structured query is missing %q; please rephrase", key)
		}
	}

	var query Query
	if err := json.Unmarshal([]byte(body), &query); err != nil {
		return nil, qaerr.New(qaerr.CodeSecurity,
			"could not parse the question into a structured query; please rephrase it more directly")
	}

	if !strictAddressRe.MatchString(query.ContractAddress) {
		return nil, qaerr.New(qaerr.CodeSecurity,
			"the structured query did not contain a valid contract address; include a full 0x address or a known token name")
	}
	checksummed, err := checksumAddress(query.ContractAddress)
	if err != nil {
		return nil, err
	}
	query.ContractAddress = checksummed

	if len(query.Function) > 64 || !functionNameRe.MatchString(query.Function) {
		return nil, qaerr.New(qaerr.CodeSecurity,
			"the structured query did not name a valid function; ask about totalSupply, balanceOf, allowance, name, symbol or decimals")
	}
	if query.Args == nil {
		query.Args = []any{}
	}
	if !registry.SupportedABITypes[query.ABIType] {
		return nil, qaerr.Newf(qaerr.CodeSecurity,
			"unsupported contract type %q; only ERC20 queries are supported", query.ABIType)
	}
	return &query, nil
}

// validateSemantics checks the query against the static function
// registry: the function must exist, the argument count must match
// exactly, and address-typed arguments must be well-formed addresses.
func validateSemantics(query *Query) error {
	meta, ok := registry.LookupFunction(query.Function)
	if !ok {
		return qaerr.Newf(qaerr.CodeInput,
			"function %q is not supported; supported functions: %s",
			query.Function, strings.Join(registry.FunctionNames(), ", "))
	}
	if len(query.Args) != len(meta.Args) {
		return qaerr.Newf(qaerr.CodeInput,
			"%s expects %d argument(s), got %d", meta.Name, len(meta.Args), len(query.Args))
	}
	for i, declared := range meta.Args {
		if declared.Type != "address" {
			continue
		}
		value, ok := query.Args[i].(string)
		if !ok || !strictAddressRe.MatchString(value) {
			return qaerr.Newf(qaerr.CodeInput,
				"argument %q of %s must be a valid 0x address", declared.Name, meta.Name)
		}
		checksummed, err := checksumAddress(value)
		if err != nil {
			return err
		}
		query.Args[i] = checksummed
	}
	return nil
}

func checksumAddress(addr string) (string, error) {
	if !common.IsHexAddress(addr) {
		return "", qaerr.Newf(qaerr.CodeInput, "invalid contract address: %s", addr)
	}
	return common.HexToAddress(addr).Hex(), nil
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
