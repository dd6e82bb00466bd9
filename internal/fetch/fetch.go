// Package fetch implements the HTTP Fetcher: a small wrapper around
// net/http that applies a browser-like User-Agent, handles Cloudflare
// interstitials through a pluggable bypass strategy, and returns the final
// (post-redirect) URL alongside the body so callers can resolve relative
// links against it.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/arimura/mangawatch/internal/parseerr"
)

const timeout = 5 * time.Second

// userAgents is a small fixed pool of modern desktop-browser strings. A
// fresh one is picked on every call, not on every retry, so a single
// fingerprint is never hammered across thousands of requests.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:126.0) Gecko/20100101 Firefox/126.0",
}

// Challenge is the (cookie, user-agent) pair that passes a Cloudflare
// interstitial.
type Challenge struct {
	Cookie    string
	UserAgent string
}

// ChallengeSolver is a pluggable Cloudflare-bypass strategy (§9 design
// note). No native bypass library is available in the Go ecosystem
// reference material this module was built from, so NullSolver is the only
// shipped implementation: it fails fast and lets the fetcher surface
// CloudflareChallenge immediately.
type ChallengeSolver interface {
	Solve(ctx context.Context, target *url.URL) (Challenge, error)
}

// NullSolver always fails, matching the "no bypass available" case.
type NullSolver struct{}

func (NullSolver) Solve(ctx context.Context, target *url.URL) (Challenge, error) {
	return Challenge{}, parseerr.ErrCloudflareChallenge
}

const maxChallengeAttempts = 10

// Result is the outcome of a fetch: the response body and the final URL
// after redirects (needed downstream for absolute-URL resolution).
type Result struct {
	Body     string
	FinalURL *url.URL
}

type Fetcher struct {
	client *http.Client
	solver ChallengeSolver
	ua     func() string
}

func New() *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		solver: NullSolver{},
		ua:     randomUserAgent,
	}
}

// WithChallengeSolver swaps in a concrete Cloudflare bypass strategy.
func (f *Fetcher) WithChallengeSolver(solver ChallengeSolver) *Fetcher {
	f.solver = solver
	return f
}

// WithClient overrides the underlying http.Client, primarily for tests.
func (f *Fetcher) WithClient(client *http.Client) *Fetcher {
	f.client = client
	return f
}

// Get issues a GET request to rawURL with an optional cookie string.
func (f *Fetcher) Get(ctx context.Context, rawURL string, cookie string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Result{}, parseerr.Transport(err)
	}
	return f.do(ctx, req, cookie)
}

// Post issues a POST with a pre-built body (form-encoded or JSON; the
// caller sets contentType) and an optional cookie string.
func (f *Fetcher) Post(ctx context.Context, rawURL, contentType string, body []byte, cookie string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(body))
	if err != nil {
		return Result{}, parseerr.Transport(err)
	}
	req.Header.Set("Content-Type", contentType)
	return f.do(ctx, req, cookie)
}

// Do issues a caller-built *http.Request (for exotic cases the Get/Post
// helpers don't cover), applying the same header/bypass treatment.
func (f *Fetcher) Do(ctx context.Context, req *http.Request, cookie string) (Result, error) {
	return f.do(ctx, req, cookie)
}

func (f *Fetcher) do(ctx context.Context, req *http.Request, cookie string) (Result, error) {
	f.applyHeaders(req, cookie)

	res, err := f.client.Do(req)
	if err != nil {
		return Result{}, parseerr.Transport(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusForbidden {
		return f.retryAfterChallenge(ctx, req, res)
	}

	return readResult(res)
}

func (f *Fetcher) retryAfterChallenge(ctx context.Context, req *http.Request, blocked *http.Response) (Result, error) {
	io.Copy(io.Discard, blocked.Body)

	var lastErr error
	for attempt := 0; attempt < maxChallengeAttempts; attempt++ {
		challenge, err := f.solver.Solve(ctx, req.URL)
		if err == nil {
			retry := req.Clone(ctx)
			retry.Header.Set("User-Agent", challenge.UserAgent)
			retry.Header.Set("Cookie", challenge.Cookie)

			res, doErr := f.client.Do(retry)
			if doErr != nil {
				lastErr = parseerr.Transport(doErr)
				continue
			}
			defer res.Body.Close()
			if res.StatusCode != http.StatusForbidden {
				return readResult(res)
			}
			lastErr = parseerr.Network(res.StatusCode)
			continue
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = parseerr.ErrCloudflareChallenge
	}
	return Result{}, fmt.Errorf("%w: %v", parseerr.ErrCloudflareChallenge, lastErr)
}

func (f *Fetcher) applyHeaders(req *http.Request, cookie string) {
	req.Header.Set("User-Agent", f.ua())
	req.Header.Set("Referer", req.URL.String())
	req.Header.Set("Accept", "*/*")
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
}

func readResult(res *http.Response) (Result, error) {
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		io.Copy(io.Discard, res.Body)
		return Result{}, parseerr.Network(res.StatusCode)
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return Result{}, parseerr.Transport(err)
	}

	return Result{Body: string(raw), FinalURL: res.Request.URL}, nil
}

func randomUserAgent() string {
	return userAgents[time.Now().UnixNano()%int64(len(userAgents))]
}
