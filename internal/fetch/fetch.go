package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/listing-verifier/internal/common"
)

// Kind classifies a reference string.
type Kind int

const (
	KindUnknown Kind = iota
	KindHTTP
	KindFile
	KindData
)

// Cache stores remote bodies. Implemented by repository.FetchCacheRepository.
type Cache interface {
	Get(ctx context.Context, url string, maxAge time.Duration) ([]byte, bool, error)
	Put(ctx context.Context, url string, body []byte) error
}

// Fetcher resolves image and document references to bytes.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
	cache     Cache
	cacheTTL  time.Duration
	logger    *slog.Logger
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option { return func(f *Fetcher) { f.client = c } }
func WithTimeout(d time.Duration) Option   { return func(f *Fetcher) { f.timeout = d } }
func WithMaxBytes(n int64) Option          { return func(f *Fetcher) { f.maxBytes = n } }
func WithUserAgent(ua string) Option       { return func(f *Fetcher) { f.userAgent = ua } }
func WithLogger(l *slog.Logger) Option     { return func(f *Fetcher) { f.logger = l } }

// WithCache enables the remote body cache; ttl of zero keeps entries forever.
func WithCache(c Cache, ttl time.Duration) Option {
	return func(f *Fetcher) {
		f.cache = c
		f.cacheTTL = ttl
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   &http.Client{},
		timeout:  15 * time.Second,
		maxBytes: 20 << 20,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Classify reports how ref would be resolved.
func Classify(ref string) Kind {
	ref = strings.TrimSpace(ref)
	lower := strings.ToLower(ref)
	switch {
	case ref == "":
		return KindUnknown
	case strings.HasPrefix(lower, "data:"):
		return KindData
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return KindHTTP
	default:
		return KindFile
	}
}

// Fetch returns the bytes behind ref: an http(s) URL, a file:// URL, a local
// path or a base64 data: URI.
func (f *Fetcher) Fetch(ctx context.Context, ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	switch Classify(ref) {
	case KindData:
		return f.fetchData(ref)
	case KindHTTP:
		return f.fetchHTTP(ctx, ref)
	case KindFile:
		return f.fetchFile(ref)
	default:
		return nil, common.InvalidInputError("empty reference")
	}
}

func (f *Fetcher) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	if f.cache != nil {
		body, ok, err := f.cache.Get(ctx, ref, f.cacheTTL)
		if err != nil {
			f.logger.Warn("fetch.cache.get_failed", "url", ref, "error", err)
		} else if ok {
			f.logger.Debug("fetch.cache.hit", "url", ref, "bytes", len(body))
			return body, nil
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, common.NewAppError("FETCH_ERROR", "build request", errors.Join(common.ErrInvalidInput, err))
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, common.NewAppError("FETCH_ERROR", "download failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, common.NewAppError("FETCH_ERROR", fmt.Sprintf("status %d", resp.StatusCode), common.ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, common.NewAppError("FETCH_ERROR", fmt.Sprintf("status %d", resp.StatusCode), nil)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, tooLarge(resp.ContentLength, f.maxBytes)
	}

	body, err := readCapped(resp.Body, f.maxBytes)
	if err != nil {
		return nil, err
	}
	f.logger.Debug("fetch.http.done", "url", ref, "bytes", len(body), "elapsed_ms", time.Since(start).Milliseconds())

	if f.cache != nil && len(body) > 0 {
		if err := f.cache.Put(ctx, ref, body); err != nil {
			f.logger.Warn("fetch.cache.put_failed", "url", ref, "error", err)
		}
	}
	return body, nil
}

func (f *Fetcher) fetchFile(ref string) ([]byte, error) {
	path := ref
	if strings.HasPrefix(strings.ToLower(ref), "file://") {
		u, err := url.Parse(ref)
		if err != nil {
			return nil, common.NewAppError("FETCH_ERROR", "bad file url", errors.Join(common.ErrInvalidInput, err))
		}
		path = u.Path
	}

	fh, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, common.NewAppError("FETCH_ERROR", "file not found", common.ErrNotFound)
		}
		return nil, common.NewAppError("FETCH_ERROR", "open file", err)
	}
	defer func() { _ = fh.Close() }()

	if st, err := fh.Stat(); err == nil {
		if st.IsDir() {
			return nil, common.NewAppError("FETCH_ERROR", "path is a directory", common.ErrInvalidInput)
		}
		if st.Size() > f.maxBytes {
			return nil, tooLarge(st.Size(), f.maxBytes)
		}
	}
	return readCapped(fh, f.maxBytes)
}

func (f *Fetcher) fetchData(ref string) ([]byte, error) {
	b, _, err := DecodeDataURI(ref)
	if err != nil {
		return nil, common.NewAppError("FETCH_ERROR", "bad data uri", errors.Join(common.ErrInvalidInput, err))
	}
	if int64(len(b)) > f.maxBytes {
		return nil, tooLarge(int64(len(b)), f.maxBytes)
	}
	return b, nil
}

// DecodeDataURI decodes data:<mime>;base64,<payload>. Plain base64 without the
// prefix is accepted as well. Standard then URL-safe alphabets are tried.
func DecodeDataURI(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var mime string
	if strings.HasPrefix(strings.ToLower(s), "data:") {
		idx := strings.IndexByte(s, ',')
		if idx < 0 {
			return nil, "", errors.New("data uri without payload")
		}
		meta := s[len("data:"):idx]
		if semi := strings.IndexByte(meta, ';'); semi >= 0 {
			mime = meta[:semi]
		} else {
			mime = meta
		}
		s = s[idx+1:]
	}
	if b, err := base64.StdEncoding.DecodeString(s); err == nil {
		return b, mime, nil
	}
	b, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	return b, mime, nil
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, common.NewAppError("FETCH_ERROR", "read body", err)
	}
	if int64(len(b)) > maxBytes {
		return nil, tooLarge(int64(len(b)), maxBytes)
	}
	return b, nil
}

func tooLarge(n, limit int64) error {
	return common.NewAppError("FETCH_ERROR", fmt.Sprintf("payload of %d bytes exceeds %d", n, limit), common.ErrTooLarge)
}
