package tracestore

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	qaerr "github.com/verifiable-ai/onchainqa/internal/errors"
	"github.com/verifiable-ai/onchainqa/internal/httpx"
	"github.com/verifiable-ai/onchainqa/internal/trace"
)

// IPFSStore stores trace documents on an IPFS node through its HTTP API
// (kubo-style /api/v0/add and /api/v0/cat).
type IPFSStore struct {
	apiURL string
	client *httpx.Client
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func NewIPFSStore(apiURL string, timeout time.Duration, retries int) *IPFSStore {
	return &IPFSStore{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: httpx.New(timeout, retries),
	}
}

// Put uploads the document and returns its CID.
func (s *IPFSStore) Put(ctx context.Context, doc *trace.Document) (string, error) {
	payload, err := trace.MarshalDocument(doc)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "trace.json")
	if err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "build upload form", err)
	}
	if _, err := part.Write(payload); err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "write upload form", err)
	}
	if err := writer.Close(); err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "close upload form", err)
	}

	raw := body.Bytes()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/api/v0/add", bytes.NewReader(raw))
	if err != nil {
		return "", qaerr.Wrap(qaerr.CodeInternal, "build upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}

	var decoded addResponse
	if err := s.client.DoJSON(ctx, req, &decoded); err != nil {
		return "", qaerr.Wrap(qaerr.CodeUnavailable, "store trace on ipfs", err)
	}
	if decoded.Hash == "" {
		return "", qaerr.New(qaerr.CodeUnavailable, "ipfs add returned no hash")
	}
	return decoded.Hash, nil
}

// Get fetches the raw document bytes for a CID.
func (s *IPFSStore) Get(ctx context.Context, address string) ([]byte, error) {
	endpoint := s.apiURL + "/api/v0/cat?arg=" + url.QueryEscape(address)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, qaerr.Wrap(qaerr.CodeInternal, "build fetch request", err)
	}
	buf, err := s.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	return buf, nil
}
