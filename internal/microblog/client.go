package microblog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"epilogue/internal/domain"
)

// ── Catalog API client ──────────────────────────────────────
// Talks to the micro.blog bookshelves endpoints and the account calls
// used during sign-in.

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// Verification is the account returned for a valid sign-in token.
type Verification struct {
	Username    string
	Token       string
	DefaultSite string
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("microblog"),
	}
}

func (c *Client) ListBookshelves(ctx context.Context, token string) ([]domain.Bookshelf, error) {
	var resp feed[shelfItem]
	if err := c.getJSON(ctx, token, "/books/bookshelves", &resp); err != nil {
		return nil, fmt.Errorf("list bookshelves: %w", err)
	}
	shelves := make([]domain.Bookshelf, 0, len(resp.Items))
	for _, item := range resp.Items {
		shelves = append(shelves, item.toDomain())
	}
	return shelves, nil
}

// ListBooks returns the books on a shelf. An empty shelfID yields no books and no request.
func (c *Client) ListBooks(ctx context.Context, token, shelfID string) ([]domain.Book, error) {
	if shelfID == "" {
		return nil, nil
	}
	var resp feed[bookItem]
	if err := c.getJSON(ctx, token, "/books/bookshelves/"+url.PathEscape(shelfID), &resp); err != nil {
		return nil, fmt.Errorf("list books on shelf %s: %w", shelfID, err)
	}
	books := make([]domain.Book, 0, len(resp.Items))
	for _, item := range resp.Items {
		books = append(books, item.toDomain())
	}
	return books, nil
}

// AddBook puts book on shelfID. The response body is not inspected.
func (c *Client) AddBook(ctx context.Context, token string, book domain.Book, shelfID string) error {
	resp, err := c.postForm(ctx, token, "/books", map[string]string{
		"isbn":         book.ISBN,
		"title":        book.Title,
		"author":       book.Author,
		"cover_url":    book.ImageURL,
		"bookshelf_id": shelfID,
	})
	if err != nil {
		return fmt.Errorf("add book: %w", err)
	}
	defer resp.Body.Close()
	if err := checkStatus(resp); err != nil {
		return fmt.Errorf("add book: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// VerifyToken exchanges a sign-in token for the account it belongs to.
// A rejection carrying an "error" field is reported as *VerifyError whatever the status.
func (c *Client) VerifyToken(ctx context.Context, token string) (Verification, error) {
	resp, err := c.postForm(ctx, "", "/account/verify", map[string]string{"token": token})
	if err != nil {
		return Verification{}, fmt.Errorf("verify token: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Verification{}, fmt.Errorf("verify token: read body: %w", err)
	}

	var v verifyResponse
	decodeErr := json.Unmarshal(data, &v)
	if decodeErr == nil && v.Error != "" {
		return Verification{}, &VerifyError{Reason: v.Error}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Verification{}, fmt.Errorf("verify token: %w", &APIError{StatusCode: resp.StatusCode, Body: truncate(data)})
	}
	if decodeErr != nil {
		return Verification{}, fmt.Errorf("verify token: parse json: %w", decodeErr)
	}
	return Verification{Username: v.Username, Token: v.Token, DefaultSite: v.DefaultSite}, nil
}

// ListDestinations returns the blogs the account can post to.
func (c *Client) ListDestinations(ctx context.Context, token string) ([]domain.Blog, error) {
	var resp micropubConfig
	if err := c.getJSON(ctx, token, "/micropub?q=config", &resp); err != nil {
		return nil, fmt.Errorf("list destinations: %w", err)
	}
	blogs := make([]domain.Blog, 0, len(resp.Destination))
	for _, d := range resp.Destination {
		blogs = append(blogs, domain.Blog{UID: d.UID, Name: d.Name, Default: d.Default})
	}
	return blogs, nil
}

// DefaultBlog picks the destination flagged as default.
func DefaultBlog(blogs []domain.Blog) (domain.Blog, bool) {
	for _, b := range blogs {
		if b.Default {
			return b, true
		}
	}
	return domain.Blog{}, false
}

// ── HTTP helpers ────────────────────────────────────────────

func (c *Client) getJSON(ctx context.Context, token, path string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	setAuth(req, token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("parse json: %w", err)
	}
	return nil
}

func (c *Client) postForm(ctx context.Context, token, path string, fields map[string]string) (*http.Response, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	setAuth(req, token)
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("request failed",
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.Error(err))
		}
		return nil, fmt.Errorf("http request: %w", err)
	}
	c.logger.Debug("request",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))
	return resp, nil
}

func setAuth(req *http.Request, token string) {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

func truncate(data []byte) string {
	if len(data) > 1024 {
		data = data[:1024]
	}
	return strings.TrimSpace(string(data))
}
