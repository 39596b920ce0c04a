package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
)

type scriptedCall struct {
	out []byte
	err error
}

// scriptedCaller returns its queued responses in order and then repeats
// the last one.
type scriptedCaller struct {
	queue []scriptedCall
	calls int
}

func (s *scriptedCaller) CallContract(_ context.Context, _ ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls++
	i := s.calls - 1
	if i >= len(s.queue) {
		i = len(s.queue) - 1
	}
	return s.queue[i].out, s.queue[i].err
}

func uint256Word(v *big.Int) []byte {
	out := make([]byte, 32)
	v.FillBytes(out)
	return out
}

func TestClassifyCallError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want qaerr.Code
	}{
		{"revert", errors.New("execution reverted"), qaerr.CodeReverted},
		{"revert with reason", errors.New("execution reverted: ERC20: zero address"), qaerr.CodeReverted},
		{"out of gas", errors.New("out of gas"), qaerr.CodeGas},
		{"intrinsic gas", errors.New("intrinsic gas too low"), qaerr.CodeGas},
		{"connection refused", errors.New("dial tcp: connection refused"), qaerr.CodeTransient},
		{"timeout", errors.New("i/o timeout"), qaerr.CodeTransient},
		{"eof", errors.New("unexpected EOF"), qaerr.CodeTransient},
		{"generic", errors.New("abi: improperly formatted output"), qaerr.CodeContract},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ClassifyCallError("totalSupply", tc.err)
			if qaerr.CodeOf(got) != tc.want {
				t.Fatalf("code = %v, want %v", qaerr.CodeOf(got), tc.want)
			}
		})
	}
	if ClassifyCallError("totalSupply", nil) != nil {
		t.Fatal("nil error should classify to nil")
	}
}

func TestClassifyKeepsTypedErrors(t *testing.T) {
	typed := qaerr.New(qaerr.CodeTransient, "already classified")
	if got := ClassifyCallError("decimals", typed); got != typed {
		t.Fatalf("typed error should pass through unchanged, got %v", got)
	}
}

func TestBindingCallUnpacksResult(t *testing.T) {
	caller := &scriptedCaller{queue: []scriptedCall{{out: uint256Word(big.NewInt(1000000000000))}}}
	binding, err := NewERC20Binding(common.HexToAddress("0x1"), caller)
	if err != nil {
		t.Fatalf("NewERC20Binding failed: %v", err)
	}

	values, err := binding.Call(context.Background(), "totalSupply")
	if err != nil {
		t.Fatalf("Call failed: %v", err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		t.Fatalf("expected *big.Int, got %T", values[0])
	}
	if raw.String() != "1000000000000" {
		t.Fatalf("value = %s, want 1000000000000", raw)
	}
}

func TestCallCacheReusesBinding(t *testing.T) {
	constructions := 0
	cache := NewCallCache(&scriptedCaller{queue: []scriptedCall{{}}}, nil,
		WithConstructor(func(addr common.Address, caller Caller) (*Binding, error) {
			constructions++
			return NewERC20Binding(addr, caller)
		}))

	addr := common.HexToAddress("0x2")
	for i := 0; i < 3; i++ {
		if _, err := cache.Binding(addr); err != nil {
			t.Fatalf("Binding failed: %v", err)
		}
	}
	if constructions != 1 {
		t.Fatalf("constructed %d times, want 1", constructions)
	}
}

func TestCallCacheExpiresBinding(t *testing.T) {
	now := time.Unix(0, 0)
	constructions := 0
	cache := NewCallCache(&scriptedCaller{queue: []scriptedCall{{}}}, nil,
		WithTTL(time.Minute),
		WithClock(func() time.Time { return now }),
		WithConstructor(func(addr common.Address, caller Caller) (*Binding, error) {
			constructions++
			return NewERC20Binding(addr, caller)
		}))

	addr := common.HexToAddress("0x3")
	if _, err := cache.Binding(addr); err != nil {
		t.Fatalf("Binding failed: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := cache.Binding(addr); err != nil {
		t.Fatalf("Binding after expiry failed: %v", err)
	}
	if constructions != 2 {
		t.Fatalf("constructed %d times, want 2 after expiry", constructions)
	}
}

func TestDecimalsCachedAfterFirstRead(t *testing.T) {
	caller := &scriptedCaller{queue: []scriptedCall{{out: uint256Word(big.NewInt(6))}}}
	cache := NewCallCache(caller, nil)
	addr := common.HexToAddress("0x4")

	for i := 0; i < 3; i++ {
		decimals, err := cache.Decimals(context.Background(), addr)
		if err != nil {
			t.Fatalf("Decimals failed: %v", err)
		}
		if decimals != 6 {
			t.Fatalf("decimals = %d, want 6", decimals)
		}
	}
	if caller.calls != 1 {
		t.Fatalf("decimals read %d times, want 1", caller.calls)
	}
}

func TestDecimalsRevertDefaultsTo18(t *testing.T) {
	caller := &scriptedCaller{queue: []scriptedCall{{err: errors.New("execution reverted")}}}
	cache := NewCallCache(caller, nil)

	decimals, err := cache.Decimals(context.Background(), common.HexToAddress("0x5"))
	if err != nil {
		t.Fatalf("revert on decimals() must not propagate, got %v", err)
	}
	if decimals != DefaultDecimals {
		t.Fatalf("decimals = %d, want default %d", decimals, DefaultDecimals)
	}
}

func TestDecimalsTransientErrorPropagates(t *testing.T) {
	caller := &scriptedCaller{queue: []scriptedCall{{err: errors.New("connection refused")}}}
	cache := NewCallCache(caller, nil)

	_, err := cache.Decimals(context.Background(), common.HexToAddress("0x6"))
	if qaerr.CodeOf(err) != qaerr.CodeTransient {
		t.Fatalf("code = %v, want transient", qaerr.CodeOf(err))
	}
}
