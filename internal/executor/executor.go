// Package executor runs validated queries against the chain with bounded
// retries and decimals normalization.
package executor

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/verifiable-ai/onchainqa/internal/chain"
	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/registry"
	"github.com/verifiable-ai/onchainqa/internal/resolver"
)

// RetryPolicy bounds retries around a chain read. The predicate runs on
// an already-classified error, so deterministic outcomes (reverts, gas
// exhaustion) never burn another attempt.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Retryable   func(error) bool
}

// DefaultRetryPolicy retries transient connection failures and generic
// contract-logic errors up to 3 attempts with a fixed delay.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Delay:       500 * time.Millisecond,
		Retryable:   defaultRetryable,
	}
}

func defaultRetryable(err error) bool {
	return qaerr.IsTransient(err) || qaerr.CodeOf(err) == qaerr.CodeContract
}

// Result is the raw outcome of a chain read, plus decimals normalization
// when the function's metadata asks for it.
type Result struct {
	Value              any
	ReturnType         string
	DecimalsAdjustment bool
	Decimals           uint8
	Adjusted           *big.Rat
}

// Executor executes validated queries through the shared call cache.
type Executor struct {
	cache  *chain.CallCache
	policy RetryPolicy
	log    *logrus.Logger
	sleep  func(context.Context, time.Duration) error
}

// Option configures an Executor.
type Option func(*Executor)

// WithPolicy overrides the retry policy.
func WithPolicy(policy RetryPolicy) Option {
	return func(e *Executor) { e.policy = policy }
}

// WithSleeper replaces the inter-attempt delay, used by tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

func New(cache *chain.CallCache, log *logrus.Logger, opts ...Option) *Executor {
	if log == nil {
		log = logrus.New()
	}
	e := &Executor{
		cache:  cache,
		policy: DefaultRetryPolicy(),
		log:    log,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the query with bounded retries and applies decimals
// adjustment when the function metadata requires it. A failed decimals
// lookup falls back to the raw un-adjusted value rather than failing a
// successful read.
func (e *Executor) Execute(ctx context.Context, query *resolver.Query) (*Result, error) {
	meta, ok := registry.LookupFunction(query.Function)
	if !ok {
		return nil, qaerr.Newf(qaerr.CodeInternal, "query reached executor with unknown function %q", query.Function)
	}

	addr := common.HexToAddress(query.ContractAddress)
	binding, err := e.cache.Binding(addr)
	if err != nil {
		return nil, err
	}

	args, err := convertArgs(meta, query.Args)
	if err != nil {
		return nil, err
	}

	values, err := e.callWithRetry(ctx, binding, meta.Name, args)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, qaerr.Newf(qaerr.CodeContract, "%s returned no values", meta.Name)
	}

	result := &Result{
		Value:              values[0],
		ReturnType:         meta.ReturnType,
		DecimalsAdjustment: meta.DecimalsAdjustment,
	}
	if meta.DecimalsAdjustment {
		e.adjustDecimals(ctx, addr, result)
	}
	return result, nil
}

func (e *Executor) callWithRetry(ctx context.Context, binding *chain.Binding, function string, args []any) ([]any, error) {
	var lastErr error
	for attempt := 1; attempt <= e.policy.MaxAttempts; attempt++ {
		values, err := binding.Call(ctx, function, args...)
		if err == nil {
			if attempt > 1 {
				e.log.WithFields(logrus.Fields{"function": function, "attempt": attempt}).
					Debug("call succeeded after retry")
			}
			return values, nil
		}
		lastErr = err
		if !e.policy.Retryable(err) {
			return nil, err
		}
		if attempt == e.policy.MaxAttempts {
			break
		}
		e.log.WithFields(logrus.Fields{
			"function": function,
			"attempt":  attempt,
			"error":    err.Error(),
		}).Warn("transient call failure, retrying")
		if err := e.sleep(ctx, e.policy.Delay); err != nil {
			return nil, qaerr.Wrap(qaerr.CodeTransient, "retry cancelled", err)
		}
	}
	return nil, lastErr
}

// adjustDecimals divides the integer result by 10^decimals. A decimals
// lookup failure is logged and swallowed: the raw value stands.
func (e *Executor) adjustDecimals(ctx context.Context, addr common.Address, result *Result) {
	raw, ok := result.Value.(*big.Int)
	if !ok {
		return
	}
	decimals, err := e.cache.Decimals(ctx, addr)
	if err != nil {
		e.log.WithFields(logrus.Fields{
			"contract": addr.Hex(),
			"error":    err.Error(),
		}).Warn("decimals lookup failed, reporting raw value")
		return
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	result.Decimals = decimals
	result.Adjusted = new(big.Rat).SetFrac(raw, scale)
}

func convertArgs(meta registry.FunctionMetadata, args []any) ([]any, error) {
	converted := make([]any, len(args))
	for i, declared := range meta.Args {
		switch declared.Type {
		case "address":
			value, ok := args[i].(string)
			if !ok {
				return nil, qaerr.Newf(qaerr.CodeInput, "argument %q must be an address string", declared.Name)
			}
			converted[i] = common.HexToAddress(value)
		case "uint256":
			switch v := args[i].(type) {
			case string:
				n, ok := new(big.Int).SetString(v, 10)
				if !ok {
					return nil, qaerr.Newf(qaerr.CodeInput, "argument %q must be a decimal integer", declared.Name)
				}
				converted[i] = n
			case float64:
				converted[i] = new(big.Int).SetInt64(int64(v))
			default:
				return nil, qaerr.Newf(qaerr.CodeInput, "argument %q must be an integer", declared.Name)
			}
		default:
			converted[i] = args[i]
		}
	}
	return converted, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
