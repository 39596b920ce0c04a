package chain

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

// DefaultTTL is how long cached bindings and decimals stay fresh.
const DefaultTTL = 5 * time.Minute

// DefaultDecimals is assumed when a contract reverts on decimals();
// most ERC-20s that omit it use 18.
const DefaultDecimals = 18

// CallCache caches contract bindings keyed by address and decimals()
// results keyed by contract. Expired entries are treated as absent.
//
// The mutex is never held across an RPC call: concurrent lookups for the
// same cold key may each do the underlying call once and overwrite the
// entry. That duplicate work is accepted since entries are pure
// functions of immutable on-chain ABI data.
type CallCache struct {
	caller Caller
	ttl    time.Duration
	now    func() time.Time
	log    *logrus.Logger

	// construct is replaceable in tests to count binding constructions.
	construct func(common.Address, Caller) (*Binding, error)

	mu       sync.Mutex
	bindings map[common.Address]bindingEntry
	decimals map[common.Address]decimalsEntry
}

type bindingEntry struct {
	binding *Binding
	created time.Time
}

type decimalsEntry struct {
	value   uint8
	created time.Time
}

// CacheOption configures a CallCache.
type CacheOption func(*CallCache)

// WithTTL overrides the entry time-to-live.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *CallCache) { c.ttl = ttl }
}

// WithClock injects a clock for expiry tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CallCache) { c.now = now }
}

// WithConstructor overrides binding construction.
func WithConstructor(fn func(common.Address, Caller) (*Binding, error)) CacheOption {
	return func(c *CallCache) { c.construct = fn }
}

func NewCallCache(caller Caller, log *logrus.Logger, opts ...CacheOption) *CallCache {
	if log == nil {
		log = logrus.New()
	}
	c := &CallCache{
		caller:    caller,
		ttl:       DefaultTTL,
		now:       time.Now,
		log:       log,
		construct: NewERC20Binding,
		bindings:  make(map[common.Address]bindingEntry),
		decimals:  make(map[common.Address]decimalsEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Binding returns a cached contract handle or constructs and caches one.
func (c *CallCache) Binding(addr common.Address) (*Binding, error) {
	c.mu.Lock()
	if entry, ok := c.bindings[addr]; ok && !c.expired(entry.created) {
		c.mu.Unlock()
		return entry.binding, nil
	}
	c.mu.Unlock()

	binding, err := c.construct(addr, c.caller)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.bindings[addr] = bindingEntry{binding: binding, created: c.now()}
	c.mu.Unlock()
	return binding, nil
}

// Decimals returns the cached decimals() value for a contract, issuing
// the read call on a miss. A contract-level revert is never propagated:
// the value defaults to 18 with a warning, since most ERC-20s that omit
// decimals() use 18. Transient failures do propagate so the caller can
// decide whether to retry or fall back.
func (c *CallCache) Decimals(ctx context.Context, addr common.Address) (uint8, error) {
	c.mu.Lock()
	if entry, ok := c.decimals[addr]; ok && !c.expired(entry.created) {
		c.mu.Unlock()
		return entry.value, nil
	}
	c.mu.Unlock()

	binding, err := c.Binding(addr)
	if err != nil {
		return 0, err
	}

	value, err := c.readDecimals(ctx, binding)
	if err != nil {
		if qaerr.CodeOf(err) == qaerr.CodeReverted || qaerr.CodeOf(err) == qaerr.CodeContract {
			c.log.WithFields(logrus.Fields{
				"contract": addr.Hex(),
				"error":    err.Error(),
			}).Warn("decimals() lookup failed, defaulting to 18")
			value = DefaultDecimals
		} else {
			return 0, err
		}
	}

	c.mu.Lock()
	c.decimals[addr] = decimalsEntry{value: value, created: c.now()}
	c.mu.Unlock()
	return value, nil
}

func (c *CallCache) readDecimals(ctx context.Context, binding *Binding) (uint8, error) {
	values, err := binding.Call(ctx, "decimals")
	if err != nil {
		return 0, err
	}
	if len(values) == 0 {
		return 0, qaerr.New(qaerr.CodeContract, "decimals call returned no values")
	}
	switch v := values[0].(type) {
	case uint8:
		return v, nil
	case *big.Int:
		return uint8(v.Uint64()), nil
	default:
		return 0, qaerr.New(qaerr.CodeContract, "decimals call returned an unexpected type")
	}
}

func (c *CallCache) expired(created time.Time) bool {
	return c.now().Sub(created) >= c.ttl
}
