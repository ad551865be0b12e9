package twilio

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/service"
)

// MediaFetcher downloads message attachments with the account credentials.
type MediaFetcher struct {
	httpClient *http.Client
	cfg        Config
	maxBytes   int64
}

// NewMediaFetcher creates a MediaFetcher. Credentials are required.
func NewMediaFetcher(cfg Config) (*MediaFetcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	maxBytes := cfg.MaxMediaBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxMediaBytes
	}
	return &MediaFetcher{
		cfg:        cfg,
		maxBytes:   maxBytes,
		httpClient: newHTTPClient(cfg.MediaTimeout, defaultMediaTimeout),
	}, nil
}

// Fetch downloads the attachment at mediaURL. Bodies larger than the cap
// yield common.ErrMediaTooBig; anything else that goes wrong wraps
// common.ErrMediaFetch.
func (f *MediaFetcher) Fetch(ctx context.Context, mediaURL string) (*service.Media, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMediaFetch, err)
	}
	req.SetBasicAuth(f.cfg.AccountSID, f.cfg.AuthToken)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrMediaFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", common.ErrMediaFetch, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: %d bytes", common.ErrMediaTooBig, resp.ContentLength)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", common.ErrMediaFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", common.ErrMediaTooBig, f.maxBytes)
	}

	return &service.Media{
		MimeType: contentType(resp.Header.Get("Content-Type")),
		Data:     data,
	}, nil
}

// contentType strips parameters from a Content-Type header.
func contentType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(header)
	}
	return mediaType
}
