package microblog_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"epilogue/internal/domain"
	"epilogue/internal/microblog"
)

func newClient(t *testing.T, h http.HandlerFunc) *microblog.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return microblog.New(srv.URL+"/", 5*time.Second, zaptest.NewLogger(t))
}

func TestListBookshelves(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/books/bookshelves", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"items":[
			{"id":1,"title":"Currently reading","_microblog":{"books_count":1}},
			{"id":"2","title":"Want to read","_microblog":{"books_count":3}},
			{"id":3,"title":"Finished"}
		]}`))
	})

	shelves, err := c.ListBookshelves(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, []domain.Bookshelf{
		{ID: "1", Title: "Currently reading", BooksCount: 1, BookCountLabel: "1 book"},
		{ID: "2", Title: "Want to read", BooksCount: 3, BookCountLabel: "3 books"},
		{ID: "3", Title: "Finished", BooksCount: 0, BookCountLabel: "0 books"},
	}, shelves)
}

func TestListBooks(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/books/bookshelves/7", r.URL.Path)
		_, _ = w.Write([]byte(`{"items":[
			{"id":11,"title":"Dune","image":"http://covers.example/dune.jpg",
			 "authors":[{"name":"Frank Herbert"},{"name":"Someone Else"}],
			 "_microblog":{"isbn":"9780441013593"}},
			{"id":12,"title":"Anonymous","image":"https://covers.example/a.jpg","authors":[]}
		]}`))
	})

	books, err := c.ListBooks(context.Background(), "tok", "7")
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, domain.Book{
		ID: "11", ISBN: "9780441013593", Title: "Dune",
		ImageURL: "https://covers.example/dune.jpg", Author: "Frank Herbert",
	}, books[0])
	assert.Equal(t, "", books[1].Author)
	assert.Equal(t, "", books[1].ISBN)
}

func TestListBooks_EmptyShelfSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	books, err := c.ListBooks(context.Background(), "tok", "")
	require.NoError(t, err)
	assert.Nil(t, books)
	assert.Zero(t, calls.Load())
}

func TestListBooks_StatusError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	})

	_, err := c.ListBooks(context.Background(), "tok", "7")
	require.Error(t, err)
	var apiErr *microblog.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "nope", apiErr.Body)
}

func TestListBookshelves_BadJSON(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":`))
	})
	_, err := c.ListBookshelves(context.Background(), "tok")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse json")
}

func TestAddBook(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/books", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "9780441013593", r.FormValue("isbn"))
		assert.Equal(t, "Dune", r.FormValue("title"))
		assert.Equal(t, "Frank Herbert", r.FormValue("author"))
		assert.Equal(t, "https://covers.example/dune.jpg", r.FormValue("cover_url"))
		assert.Equal(t, "2", r.FormValue("bookshelf_id"))
		_, _ = w.Write([]byte(`not even json`))
	})

	err := c.AddBook(context.Background(), "tok", domain.Book{
		ISBN: "9780441013593", Title: "Dune", Author: "Frank Herbert",
		ImageURL: "https://covers.example/dune.jpg",
	}, "2")
	require.NoError(t, err)
}

func TestAddBook_ServerError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	err := c.AddBook(context.Background(), "tok", domain.Book{Title: "Dune"}, "2")
	var apiErr *microblog.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestVerifyToken(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account/verify", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "abc123", r.FormValue("token"))
		_, _ = w.Write([]byte(`{"username":"manton","token":"app-token","default_site":"manton.org"}`))
	})

	v, err := c.VerifyToken(context.Background(), "abc123")
	require.NoError(t, err)
	assert.Equal(t, microblog.Verification{Username: "manton", Token: "app-token", DefaultSite: "manton.org"}, v)
}

func TestVerifyToken_Rejected(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Token has expired."}`))
	})

	_, err := c.VerifyToken(context.Background(), "abc123")
	var verr *microblog.VerifyError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Token has expired.", verr.Reason)
}

func TestVerifyToken_StatusWithoutReason(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.VerifyToken(context.Background(), "abc123")
	var apiErr *microblog.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
}

func TestListDestinations(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/micropub", r.URL.Path)
		assert.Equal(t, "config", r.URL.Query().Get("q"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"destination":[
			{"uid":"https://side.example/","name":"Side"},
			{"uid":"https://manton.org/","name":"Manton","microblog-default":true}
		]}`))
	})

	blogs, err := c.ListDestinations(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, blogs, 2)

	def, ok := microblog.DefaultBlog(blogs)
	require.True(t, ok)
	assert.Equal(t, domain.Blog{UID: "https://manton.org/", Name: "Manton", Default: true}, def)

	_, ok = microblog.DefaultBlog(blogs[:1])
	assert.False(t, ok)
}

func TestCancelledContext(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items":[]}`))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListBookshelves(ctx, "tok")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
