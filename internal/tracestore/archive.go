package tracestore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/trace"
)

// Archive is a local, content-addressed trace store backed by sqlite.
// The address of a document is "sha256:" + hex digest of its JSON bytes,
// so identical content always resolves to the same address. It serves as
// an offline stand-in for the IPFS store and as the agent's local copy.
type Archive struct {
	db   *sql.DB
	lock *flock.Flock
}

func OpenArchive(path, lockPath string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "create archive directory", err)
	}
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "create lock directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "open trace archive", err)
	}

	queries := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"CREATE TABLE IF NOT EXISTS traces (address TEXT PRIMARY KEY, trace_id TEXT NOT NULL, document BLOB NOT NULL, created_at INTEGER NOT NULL);",
	}
	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			_ = db.Close()
			return nil, qaerr.Wrap(qaerr.CodeInternal, "init archive schema", err)
		}
	}

	return &Archive{db: db, lock: flock.New(lockPath)}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// ContentAddress computes the archive address of raw document bytes.
func ContentAddress(payload []byte) string {
	sum := sha256.Sum256(payload)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Put stores the document under its content address. Storing the same
// content twice is a no-op that returns the same address.
func (a *Archive) Put(ctx context.Context, doc *trace.Document) (string, error) {
	payload, err := trace.MarshalDocument(doc)
	if err != nil {
		return "", err
	}
	address := ContentAddress(payload)

	locked, err := a.lock.TryLockContext(ctx, 5*time.Second)
	if err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "lock archive", err)
	}
	if !locked {
		return "", qaerr.New(qaerr.CodeInternal, "lock archive: timeout acquiring lock")
	}
	defer func() { _ = a.lock.Unlock() }()

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO traces (address, trace_id, document, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(address) DO NOTHING
	`, address, doc.TraceID, payload, time.Now().UTC().Unix())
	if err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "archive write", err)
	}
	return address, nil
}

// Get retrieves the raw document bytes for a content address.
func (a *Archive) Get(ctx context.Context, address string) ([]byte, error) {
	var payload []byte
	err := a.db.QueryRowContext(ctx,
		"SELECT document FROM traces WHERE address = ?", address).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, qaerr.Newf(qaerr.CodeNotFound, "no archived trace at %s", address)
		}
		return nil, qaerr.Wrap(qaerr.CodeInternal, "archive read", err)
	}
	return payload, nil
}
