package sites

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes   = 512 * 1024
	defaultUA      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	perHostSpacing = 2 * time.Second
)

// Page is a fetched listing page. Non-2xx responses still carry a body:
// anti-bot pages often contain partial markup worth parsing.
type Page struct {
	URL        string
	Body       []byte
	StatusCode int
	Blocked    bool
	BlockType  BlockType
}

// Fetcher is the shared tolerant HTTP client used by all site adapters.
// It enforces per-host rate limits and decodes non-UTF8 pages.
type Fetcher struct {
	client *http.Client
	ua     string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	spacing  time.Duration
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchClient sets a custom HTTP client.
func WithFetchClient(hc *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = hc
	}
}

// WithHostSpacing overrides the per-host minimum request spacing.
func WithHostSpacing(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.spacing = d
	}
}

// WithFetchTimeout overrides the per-request timeout.
func WithFetchTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent overrides the browser User-Agent sent with every request.
func WithUserAgent(ua string) FetcherOption {
	return func(f *Fetcher) {
		if ua != "" {
			f.ua = ua
		}
	}
}

// NewFetcher creates a Fetcher with sensible defaults.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 20 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		ua:       defaultUA,
		limiters: make(map[string]*rate.Limiter),
		spacing:  perHostSpacing,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Every(f.spacing), 1)
		f.limiters[host] = l
	}
	return l
}

// Get fetches a URL. Errors are returned only for request construction and
// transport failures; any response with a body comes back as a Page.
func (f *Fetcher) Get(ctx context.Context, targetURL string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sites: create request")
	}
	req.Header.Set("User-Agent", f.ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	if err := f.limiter(req.URL.Host).Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "sites: rate limit")
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "sites: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "sites: read body")
	}

	body = decodeCharset(body, resp.Header.Get("Content-Type"))

	blocked, blockType := DetectBlock(resp, body)
	if blocked {
		zap.L().Warn("anti-bot block detected",
			zap.String("url", targetURL),
			zap.String("block_type", string(blockType)),
			zap.Int("status", resp.StatusCode),
		)
	}

	return &Page{
		URL:        targetURL,
		Body:       body,
		StatusCode: resp.StatusCode,
		Blocked:    blocked,
		BlockType:  blockType,
	}, nil
}

// decodeCharset converts the body to UTF-8 based on the Content-Type
// charset parameter. Unknown or missing charsets pass through unchanged.
func decodeCharset(body []byte, contentType string) []byte {
	const marker = "charset="
	idx := strings.Index(strings.ToLower(contentType), marker)
	if idx < 0 {
		return body
	}
	name := contentType[idx+len(marker):]
	if semi := strings.IndexByte(name, ';'); semi >= 0 {
		name = name[:semi]
	}
	name = strings.Trim(strings.TrimSpace(name), `"`)
	if name == "" || strings.EqualFold(name, "utf-8") {
		return body
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return body
	}
	decoded, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body
	}
	return decoded
}
