package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
)

// ErrTooLarge is returned when a response body exceeds the configured cap.
var ErrTooLarge = errors.New("attachment exceeds size limit")

// StatusError reports a non-2xx download response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Result is a downloaded attachment. FileName and ContentType are what the
// server declared, possibly empty.
type Result struct {
	URL         string
	Body        []byte
	FileName    string
	ContentType string
}

// Fetcher downloads attachments. It holds no state besides the injected
// client and is safe for concurrent use.
type Fetcher struct {
	client   *http.Client
	maxBytes int64
	logger   *slog.Logger
}

// New returns a Fetcher using client. A maxBytes of zero or less disables
// the size cap.
func New(client *http.Client, maxBytes int64, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, maxBytes: maxBytes, logger: logger}
}

// Fetch performs exactly one GET for rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		if resp.ContentLength > f.maxBytes {
			return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrTooLarge)
		}
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, ErrTooLarge)
	}

	res := &Result{
		URL:         rawURL,
		Body:        data,
		FileName:    dispositionFilename(resp.Header.Get("Content-Disposition")),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}
	f.logger.Debug("attachment_fetched",
		"url", rawURL,
		"bytes", len(data),
		"content_type", res.ContentType,
		"file_name", res.FileName,
	)
	return res, nil
}

func dispositionFilename(header string) string {
	if header == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(params["filename"])
}

func mediaType(header string) string {
	if header == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return ""
	}
	return mt
}

// ResolveFilename picks the HTTP filename, then the declared name, then the
// URL path basename.
func ResolveFilename(httpName, declared, rawURL string) string {
	for _, candidate := range []string{httpName, declared} {
		if name := strings.TrimSpace(candidate); name != "" {
			return path.Base(strings.ReplaceAll(name, "\\", "/"))
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && base != "" {
			return base
		}
	}
	return "attachment"
}

// ResolveContentType picks the declared type, then the HTTP type, then the
// type implied by the filename extension. Generic binary types do not count.
func ResolveContentType(declared, httpType, filename string) string {
	for _, candidate := range []string{declared, httpType} {
		mt := mediaType(candidate)
		if mt != "" && !isGeneric(mt) {
			return mt
		}
	}
	if ct, ok := typeByExtension[strings.ToLower(path.Ext(filename))]; ok {
		return ct
	}
	return "application/octet-stream"
}

func isGeneric(mt string) bool {
	return mt == "application/octet-stream" || mt == "binary/octet-stream"
}
