package gcs_test

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/ozemskikh/SearchEngine/internal/storage/gcs"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newClient(t *testing.T, rt roundTripperFunc) *storage.Client {
	t.Helper()
	client, err := storage.NewClient(
		context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{Transport: rt}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestNewValidates(t *testing.T) {
	_, err := gcs.New(nil, gcs.Config{Bucket: "b"})
	assert.Error(t, err)

	client := newClient(t, func(*http.Request) (*http.Response, error) { return nil, io.EOF })
	_, err = gcs.New(client, gcs.Config{})
	assert.Error(t, err)
}

func TestPutObjectUploads(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
		body  string
	)
	client := newClient(t, func(r *http.Request) (*http.Response, error) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		paths = append(paths, r.URL.Path)
		body = string(data)
		mu.Unlock()
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"bucket":"snapshots","name":"pages/site.test/x.html"}`)),
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Request:    r,
		}, nil
	})
	store, err := gcs.New(client, gcs.Config{Bucket: "snapshots"})
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(), "pages/site.test/x.html", "text/html", strings.NewReader("<html>cpi</html>"))
	require.NoError(t, err)
	assert.Equal(t, "gs://snapshots/pages/site.test/x.html", uri)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, paths)
	assert.Contains(t, paths[0], "/b/snapshots/o")
	assert.Contains(t, body, "<html>cpi</html>")
	require.NoError(t, store.Close())
}

func TestPutObjectEmptyPath(t *testing.T) {
	client := newClient(t, func(*http.Request) (*http.Response, error) { return nil, io.EOF })
	store, err := gcs.New(client, gcs.Config{Bucket: "snapshots"})
	require.NoError(t, err)
	_, err = store.PutObject(context.Background(), " ", "text/html", strings.NewReader("x"))
	assert.Error(t, err)
}
