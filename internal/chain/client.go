// Package chain wraps contract reads over an ethclient connection and
// caches contract bindings and decimals lookups.
package chain

import (
	"context"
	"math/big"
	"net"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/registry"
)

// Caller abstracts eth_call. *ethclient.Client satisfies it; tests use
// scripted fakes.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeUnavailable, "connect rpc", err)
	}
	return client, nil
}

// Binding is a contract handle: an address attached to a parsed ABI.
type Binding struct {
	Address common.Address
	abi     abi.ABI
	caller  Caller
}

// NewERC20Binding attaches the minimal ERC-20 read ABI to an address.
func NewERC20Binding(addr common.Address, caller Caller) (*Binding, error) {
	parsed, err := abi.JSON(strings.NewReader(registry.ERC20ReadABI))
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "parse erc20 abi", err)
	}
	return &Binding{Address: addr, abi: parsed, caller: caller}, nil
}

// Call packs and executes a read call, returning the unpacked outputs.
// Errors come back classified into the failure taxonomy.
func (b *Binding) Call(ctx context.Context, function string, args ...any) ([]any, error) {
	data, err := b.abi.Pack(function, args...)
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeContract, "pack call data for "+function, err)
	}
	msg := ethereum.CallMsg{To: &b.Address, Data: data}
	out, err := b.caller.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, ClassifyCallError(function, err)
	}
	values, err := b.abi.Unpack(function, out)
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeContract, "decode result of "+function, err)
	}
	return values, nil
}

// ClassifyCallError maps a raw RPC/contract error onto the failure
// taxonomy. Classification happens here, before any retry decision:
// reverts and gas exhaustion are deterministic and must not be retried,
// connection failures are transient, and everything else is a generic
// contract call failure.
func ClassifyCallError(function string, err error) error {
	if err == nil {
		return nil
	}
	if typed, ok := qaerr.As(err); ok {
		return typed
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "execution reverted") || strings.Contains(msg, "revert"):
		return qaerr.Wrap(qaerr.CodeReverted, function+" call failed: execution reverted", err)
	case strings.Contains(msg, "out of gas") ||
		strings.Contains(msg, "intrinsic gas") ||
		strings.Contains(msg, "gas required exceeds"):
		return qaerr.Wrap(qaerr.CodeGas, function+" call failed: insufficient gas", err)
	case isConnectionError(msg, err):
		return qaerr.Wrap(qaerr.CodeTransient, function+" call failed: rpc connection error", err)
	default:
		return qaerr.Wrap(qaerr.CodeContract, function+" call failed", err)
	}
}

func isConnectionError(msg string, err error) bool {
	if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
		return true
	}
	for _, needle := range []string{
		"connection refused",
		"connection reset",
		"timeout",
		"i/o timeout",
		"no such host",
		"network is unreachable",
		"broken pipe",
		"eof",
	} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
