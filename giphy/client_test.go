package giphy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const searchBody = `{
  "data": [{
    "id": "g1",
    "url": "https://giphy.com/gifs/g1",
    "title": "happy cat",
    "images": {
      "fixed_height": {"url": "https://media.giphy.com/g1/200.gif", "width": "356", "height": "200"},
      "fixed_width": {"url": "https://media.giphy.com/g1/200w.gif", "width": "200", "height": "112"},
      "original": {"url": "https://media.giphy.com/g1/giphy.gif", "width": "480", "height": "270"}
    }
  }],
  "pagination": {"total_count": 100, "count": 1, "offset": 5}
}`

func TestSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/gifs/search", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "key", q.Get("api_key"))
		assert.Equal(t, "happy cat", q.Get("q"))
		assert.Equal(t, "10", q.Get("limit"))
		assert.Equal(t, "5", q.Get("offset"))
		_, _ = w.Write([]byte(searchBody))
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL+"/v1/gifs/", time.Second)
	page, err := c.Search(context.Background(), "happy cat", 10, 5)
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "https://media.giphy.com/g1/200.gif", page.Data[0].MessageURL())
	assert.Equal(t, 100, page.Pagination.TotalCount)
}

func TestTrendingAndRandom(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/trending":
			assert.Equal(t, "20", r.URL.Query().Get("limit"))
			_, _ = w.Write([]byte(searchBody))
		case "/random":
			assert.Equal(t, "dog", r.URL.Query().Get("tag"))
			_, _ = w.Write([]byte(`{"data": {"id": "r1", "title": "dog"}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewClient("key", srv.URL, time.Second)
	page, err := c.Trending(context.Background(), 0, -1)
	require.NoError(t, err)
	assert.Len(t, page.Data, 1)

	gif, err := c.Random(context.Background(), "dog")
	require.NoError(t, err)
	assert.Equal(t, "r1", gif.ID)
}

func TestErrors(t *testing.T) {
	_, err := NewClient("", "http://unused", time.Second).Trending(context.Background(), 1, 0)
	assert.ErrorIs(t, err, ErrNoAPIKey)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()
	_, err = NewClient("key", srv.URL, time.Second).Search(context.Background(), "x", 1, 0)
	assert.Error(t, err)
}

func TestPopularTerms(t *testing.T) {
	assert.Len(t, PopularTerms("ar"), 20)
	assert.Equal(t, "happy", PopularTerms("en")[0])
	terms := PopularTerms("en")
	terms[0] = "changed"
	assert.Equal(t, "happy", PopularTerms("en")[0])
}
