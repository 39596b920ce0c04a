package verifier

import (
	"context"
	"errors"
	"os"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/trace"
)

// Fetcher retrieves a stored document by content address. The trace
// store satisfies it; tests use an in-memory map.
type Fetcher interface {
	Get(ctx context.Context, address string) ([]byte, error)
}

// Load reads a trace document from exactly one source: a content address
// resolved through fetcher, or a local file path.
func Load(ctx context.Context, fetcher Fetcher, contentAddress, filePath string) (*trace.Document, error) {
	switch {
	case contentAddress != "" && filePath != "":
		return nil, qaerr.New(qaerr.CodeConfig, "specify either a content address or a file path, not both")
	case contentAddress == "" && filePath == "":
		return nil, qaerr.New(qaerr.CodeConfig, "a content address or a file path is required")
	}

	var (
		data []byte
		err  error
	)
	if contentAddress != "" {
		if fetcher == nil {
			return nil, qaerr.New(qaerr.CodeConfig, "no trace store configured for content-address lookup")
		}
		data, err = fetcher.Get(ctx, contentAddress)
		if err != nil {
			return nil, err
		}
	} else {
		data, err = os.ReadFile(filePath)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, qaerr.Newf(qaerr.CodeNotFound, "trace file not found: %s", filePath)
			}
			return nil, qaerr.Wrap(qaerr.CodeInternal, "read trace file", err)
		}
	}

	return trace.ParseDocument(data)
}
