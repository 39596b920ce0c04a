// Package agent orchestrates the question pipeline and owns the
// execution trace for each invocation: resolve, execute, format, seal,
// store. Even failed invocations leave a sealed, stored audit record.
package agent

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/sirupsen/logrus"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/executor"
	"github.com/verifiable-ai/onchainqa/internal/format"
	"github.com/verifiable-ai/onchainqa/internal/resolver"
	"github.com/verifiable-ai/onchainqa/internal/trace"
	"github.com/verifiable-ai/onchainqa/internal/tracestore"
)

// Result is the answer to one question plus everything a third party
// needs to audit how it was produced.
type Result struct {
	Answer         string          `json:"answer"`
	TraceID        string          `json:"trace_id"`
	IPFSHash       string          `json:"ipfs_hash,omitempty"`
	CommitmentHash string          `json:"commitment_hash"`
	Trace          *trace.Document `json:"trace_metadata"`
}

// Agent answers natural-language questions about ERC-20 token state.
// One Agent serves many invocations; each invocation gets its own trace.
type Agent struct {
	agentID  string
	resolver *resolver.Resolver
	executor *executor.Executor
	store    tracestore.Store
	log      *logrus.Logger

	traceOpts []trace.Option
}

// Option configures an Agent.
type Option func(*Agent)

// WithTraceOptions forwards options (e.g. a fixed clock) to every trace.
func WithTraceOptions(opts ...trace.Option) Option {
	return func(a *Agent) { a.traceOpts = opts }
}

func New(agentID string, res *resolver.Resolver, exec *executor.Executor, store tracestore.Store, log *logrus.Logger, opts ...Option) *Agent {
	if log == nil {
		log = logrus.New()
	}
	a := &Agent{
		agentID:  agentID,
		resolver: res,
		executor: exec,
		store:    store,
		log:      log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Execute answers one question, recording each pipeline stage as a trace
// step, sealing the trace and handing it to the store. Validation and
// chain failures still produce a sealed error trace before the error is
// returned.
func (a *Agent) Execute(ctx context.Context, question string) (*Result, error) {
	rec := trace.NewRecorder(a.agentID, a.traceOpts...)

	query, err := a.resolver.Resolve(ctx, question)
	if err != nil {
		return nil, a.fail(ctx, rec, question, err)
	}
	rec.LogStep(trace.ActionParseQuestion,
		map[string]any{"question": question},
		map[string]any{"parsed_query": queryPayload(query)},
		nil)

	result, err := a.executor.Execute(ctx, query)
	if err != nil {
		return nil, a.fail(ctx, rec, question, err)
	}
	rec.LogStep(trace.ActionExecuteQuery,
		map[string]any{"parsed_query": queryPayload(query)},
		resultPayload(result),
		nil)

	answer := format.Answer(result.ReturnType, result.Value, result.Adjusted)
	rec.LogStep(trace.ActionFormatAnswer,
		resultPayload(result),
		map[string]any{"answer": answer},
		nil)

	commitment, err := rec.Finalize()
	if err != nil {
		return nil, err
	}

	tr := rec.Current()
	doc := tr.Document()
	address := ""
	if a.store != nil {
		address, err = a.store.Put(ctx, doc)
		if err != nil {
			return nil, err
		}
		tr.IPFSHash = address
		doc.IPFSHash = address
	}

	return &Result{
		Answer:         answer,
		TraceID:        tr.TraceID,
		IPFSHash:       address,
		CommitmentHash: commitment,
		Trace:          doc,
	}, nil
}

// SubmitCommitment simulates anchoring the commitment on-chain. Real
// anchoring is an external concern; the simulated transaction hash keeps
// the call surface in place.
func (a *Agent) SubmitCommitment(commitmentHash, ipfsHash string) (string, error) {
	if commitmentHash == "" {
		return "", qaerr.New(qaerr.CodeInternal, "no commitment hash available")
	}
	sum := sha256.Sum256([]byte(commitmentHash + ipfsHash))
	return "0x" + hex.EncodeToString(sum[:])[:40], nil
}

// fail records the failure as a trace step, seals and stores the trace
// best-effort, and returns the original error. A storage outage here is
// logged and swallowed so it never masks the real failure.
func (a *Agent) fail(ctx context.Context, rec *trace.Recorder, question string, cause error) error {
	action := trace.ActionError
	if qaerr.IsValidation(cause) {
		action = trace.ActionSecurityError
	}
	rec.LogStep(action,
		map[string]any{"question": question},
		map[string]any{"error": qaerr.UserMessage(cause)},
		map[string]any{
			"error_type":    qaerr.CodeOf(cause).String(),
			"error_message": cause.Error(),
		})

	if _, err := rec.Finalize(); err != nil {
		a.log.WithField("error", err.Error()).Warn("could not finalize error trace")
		return cause
	}
	if a.store != nil {
		if _, err := a.store.Put(ctx, rec.Current().Document()); err != nil {
			a.log.WithField("error", err.Error()).Warn("could not store error trace")
		}
	}
	return cause
}

func queryPayload(query *resolver.Query) map[string]any {
	args := query.Args
	if args == nil {
		args = []any{}
	}
	return map[string]any{
		"contract_address": query.ContractAddress,
		"function":         query.Function,
		"args":             args,
		"abi_type":         query.ABIType,
	}
}

// resultPayload renders the raw result for trace storage. Large integers
// stay *big.Int (serialized as exact JSON numbers) and the adjusted
// value is recorded as a fixed-precision string, so the stored document
// re-hashes identically after a JSON round trip.
func resultPayload(result *executor.Result) map[string]any {
	payload := map[string]any{
		"result": result.Value,
	}
	if result.Adjusted != nil {
		payload["adjusted"] = result.Adjusted.FloatString(6)
		payload["decimals"] = int(result.Decimals)
	}
	return payload
}
