package verifier

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/trace"
)

type mapFetcher map[string][]byte

func (m mapFetcher) Get(_ context.Context, address string) ([]byte, error) {
	data, ok := m[address]
	if !ok {
		return nil, qaerr.Newf(qaerr.CodeNotFound, "no trace at %s", address)
	}
	return data, nil
}

func TestLoadRequiresExactlyOneSource(t *testing.T) {
	ctx := context.Background()
	if _, err := Load(ctx, nil, "", ""); qaerr.CodeOf(err) != qaerr.CodeConfig {
		t.Fatalf("no source: code = %v, want config error", qaerr.CodeOf(err))
	}
	if _, err := Load(ctx, nil, "Qm123", "/tmp/trace.json"); qaerr.CodeOf(err) != qaerr.CodeConfig {
		t.Fatalf("both sources: code = %v, want config error", qaerr.CodeOf(err))
	}
}

func TestLoadFromFetcher(t *testing.T) {
	doc := sealedDocument(t)
	payload, err := trace.MarshalDocument(doc)
	if err != nil {
		t.Fatalf("MarshalDocument failed: %v", err)
	}
	fetcher := mapFetcher{"Qm123": payload}

	loaded, err := Load(context.Background(), fetcher, "Qm123", "")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.TraceID != doc.TraceID {
		t.Fatalf("trace id = %s, want %s", loaded.TraceID, doc.TraceID)
	}
	if report := Verify(loaded); !report.Valid {
		t.Fatalf("loaded document should verify, got %+v", report)
	}
}

func TestLoadFromFile(t *testing.T) {
	doc := sealedDocument(t)
	payload, err := trace.MarshalDocument(doc)
	if err != nil {
		t.Fatalf("MarshalDocument failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := Load(context.Background(), nil, "", path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if report := Verify(loaded); !report.Valid {
		t.Fatalf("loaded document should verify, got %+v", report)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(context.Background(), nil, "", filepath.Join(t.TempDir(), "absent.json"))
	if qaerr.CodeOf(err) != qaerr.CodeNotFound {
		t.Fatalf("code = %v, want not-found", qaerr.CodeOf(err))
	}
}

func TestLoadMalformedDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	_, err := Load(context.Background(), nil, "", path)
	if qaerr.CodeOf(err) != qaerr.CodeMalformed {
		t.Fatalf("code = %v, want malformed-document", qaerr.CodeOf(err))
	}
}
