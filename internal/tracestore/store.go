// Package tracestore persists sealed trace documents behind a
// content-addressed interface: the same content always resolves to the
// same address.
package tracestore

import (
	"context"

	"github.com/verifiable-ai/onchainqa/internal/trace"
)

// Store is the content-addressed persistence boundary. Put uploads a
// document and returns its content address; Get retrieves the raw
// document bytes for an address.
type Store interface {
	Put(ctx context.Context, doc *trace.Document) (string, error)
	Get(ctx context.Context, address string) ([]byte, error)
}
