package googlebooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"
	"time"

	bherrors "github.com/lepinkainen/bookhaven/internal/errors"
	"github.com/lepinkainen/bookhaven/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catcherVolume = `{
	"kind": "books#volume",
	"id": "PCDengEACAAJ",
	"volumeInfo": {
		"title": "The Catcher in the Rye",
		"authors": ["J.D. Salinger"],
		"publisher": "Little, Brown Books for Young Readers",
		"publishedDate": "1991-05",
		"description": "The hero-narrator of The Catcher in the Rye...",
		"industryIdentifiers": [
			{"type": "ISBN_10", "identifier": "0316769487"},
			{"type": "ISBN_13", "identifier": "9780316769488"}
		],
		"pageCount": 277,
		"categories": ["Fiction", "Classics"],
		"language": "en",
		"imageLinks": {
			"thumbnail": "http://books.google.com/books/content?id=PCDengEACAAJ&printsec=frontcover&img=1&zoom=1"
		}
	}
}`

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	server := testutil.NewIPv4TestServer(t, handler)
	base := []Option{WithBaseURL(server.URL), WithHTTPClient(server.Client()), WithRateLimiter(nil)}
	return NewClient(append(base, opts...)...)
}

func TestFetchByKeySuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/PCDengEACAAJ", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(catcherVolume))
	})

	client := newTestClient(t, mux, WithAPIKey("test-key"))

	volume, err := client.FetchByKey(context.Background(), "PCDengEACAAJ")
	require.NoError(t, err)
	require.NotNil(t, volume.VolumeInfo)
	assert.Equal(t, "PCDengEACAAJ", volume.ID)
	assert.Equal(t, "The Catcher in the Rye", *volume.VolumeInfo.Title)
	assert.Equal(t, []string{"J.D. Salinger"}, volume.VolumeInfo.Authors)
	assert.Equal(t, 277, *volume.VolumeInfo.PageCount)
	assert.Len(t, volume.VolumeInfo.IndustryIdentifiers, 2)
	assert.Contains(t, volume.VolumeInfo.ImageLinks.Thumbnail, "books.google.com")
}

func TestFetchByKeyOmitsKeyParamWithoutAPIKey(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/abc", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"id":"abc","volumeInfo":{}}`))
	})

	client := newTestClient(t, mux)

	_, err := client.FetchByKey(context.Background(), "abc")
	require.NoError(t, err)
}

func TestFetchByKeyNotFound(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/missing", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":404}}`, http.StatusNotFound)
	})

	client := newTestClient(t, mux)

	volume, err := client.FetchByKey(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, volume)
	assert.False(t, bherrors.IsTransient(err))
}

func TestFetchByKeyEmptyKey(t *testing.T) {
	client := NewClient(WithRateLimiter(nil))

	_, err := client.FetchByKey(context.Background(), "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFetchByKeyServerErrorIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/abc", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend error", http.StatusServiceUnavailable)
	})

	client := newTestClient(t, mux)

	_, err := client.FetchByKey(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, bherrors.IsTransient(err))

	var tErr *bherrors.TransientError
	require.True(t, errors.As(err, &tErr))
	assert.Equal(t, http.StatusServiceUnavailable, tErr.StatusCode)
	assert.Equal(t, "googlebooks.fetch", tErr.Op)
	assert.Contains(t, err.Error(), "backend error")
}

func TestFetchByKeyMalformedJSONIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/abc", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{invalid json`))
	})

	client := newTestClient(t, mux)

	_, err := client.FetchByKey(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, bherrors.IsTransient(err))
	assert.Contains(t, err.Error(), "decoding response")
}

func TestFetchByKeyRateLimited(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes/abc", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	client := newTestClient(t, mux)

	_, err := client.FetchByKey(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, bherrors.IsTransient(err))
	require.True(t, bherrors.IsRateLimitError(err))

	var rlErr *bherrors.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, 30*time.Second, rlErr.RetryAfter)
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

type countingDoer struct {
	calls int
	err   error
	body  string
}

func (d *countingDoer) Do(req *http.Request) (*http.Response, error) {
	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader(d.body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}, nil
}

func TestFetchByKeyTimeoutIsNotRetried(t *testing.T) {
	doer := &countingDoer{err: &url.Error{Op: "Get", URL: "http://example.test", Err: timeoutError{}}}
	client := NewClient(WithHTTPClient(doer), WithRateLimiter(nil))

	_, err := client.FetchByKey(context.Background(), "abc")
	require.Error(t, err)
	assert.True(t, bherrors.IsTransient(err))
	assert.Equal(t, 1, doer.calls)
}

func TestSearchForwardsPaging(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "subject:Fiction", q.Get("q"))
		assert.Equal(t, "20", q.Get("startIndex"))
		assert.Equal(t, "5", q.Get("maxResults"))
		_, _ = w.Write([]byte(`{
			"totalItems": 2,
			"items": [
				{"id": "second-ranked-first", "volumeInfo": {"title": "B"}},
				{"id": "first-ranked-second", "volumeInfo": {"title": "A"}}
			]
		}`))
	})

	client := newTestClient(t, mux)

	volumes, err := client.Search(context.Background(), "subject:Fiction", 20, 5)
	require.NoError(t, err)
	require.Len(t, volumes, 2)
	assert.Equal(t, "second-ranked-first", volumes[0].ID)
	assert.Equal(t, "first-ranked-second", volumes[1].ID)
}

func TestSearchWithoutItems(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"kind": "books#volumes", "totalItems": 0}`))
	})

	client := newTestClient(t, mux)

	volumes, err := client.Search(context.Background(), "nothing matches", 0, 10)
	require.NoError(t, err)
	assert.NotNil(t, volumes)
	assert.Empty(t, volumes)
}

func TestSearchHTTPErrorIsTransient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/volumes", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "internal server error", http.StatusInternalServerError)
	})

	client := newTestClient(t, mux)

	volumes, err := client.Search(context.Background(), "go", 0, 10)
	require.Error(t, err)
	assert.Nil(t, volumes)
	assert.True(t, bherrors.IsTransient(err))
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestWithBaseURLTrimsTrailingSlash(t *testing.T) {
	client := NewClient(WithBaseURL("http://example.test/books/v1/"))
	assert.Equal(t, "http://example.test/books/v1", client.baseURL)

	client = NewClient(WithBaseURL(""))
	assert.Equal(t, defaultBaseURL, client.baseURL)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, 5*time.Second, parseRetryAfter("5"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
	assert.Equal(t, time.Duration(0), parseRetryAfter("-3"))
}
