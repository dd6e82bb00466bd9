package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/arimura/mangawatch/internal/parseerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcherGetSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		assert.Equal(t, "*/*", r.Header.Get("Accept"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("hello"))
	}))
	defer server.Close()

	f := New()
	result, err := f.Get(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "hello", result.Body)
}

func TestFetcherNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	f := New()
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, parseerr.ErrNetwork)
}

func TestFetcherCloudflareChallengeExhausted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := New()
	_, err := f.Get(context.Background(), server.URL, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, parseerr.ErrCloudflareChallenge)
}

func TestFetcherChallengeSolverRecovers(t *testing.T) {
	first := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if first {
			first = false
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "clearance=ok", r.Header.Get("Cookie"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("unlocked"))
	}))
	defer server.Close()

	f := New().WithChallengeSolver(stubSolver{challenge: Challenge{Cookie: "clearance=ok", UserAgent: "stub-agent"}})
	result, err := f.Get(context.Background(), server.URL, "")
	require.NoError(t, err)
	assert.Equal(t, "unlocked", result.Body)
}

type stubSolver struct {
	challenge Challenge
}

func (s stubSolver) Solve(ctx context.Context, target *url.URL) (Challenge, error) {
	return s.challenge, nil
}
