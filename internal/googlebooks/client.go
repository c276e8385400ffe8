package googlebooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"

	"epilogue/internal/domain"
)

// ── Google Books search ─────────────────────────────────────

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google books: http %d: %s", e.StatusCode, e.Body)
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

func New(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("googlebooks"),
	}
}

type volumesResponse struct {
	Items []volume `json:"items"`
}

type volume struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title               string   `json:"title"`
		Authors             []string `json:"authors"`
		IndustryIdentifiers []struct {
			Type       string `json:"type"`
			Identifier string `json:"identifier"`
		} `json:"industryIdentifiers"`
		ImageLinks struct {
			SmallThumbnail string `json:"smallThumbnail"`
		} `json:"imageLinks"`
	} `json:"volumeInfo"`
}

// Search returns the first page of volumes matching query that carry both an ISBN and a cover.
func (c *Client) Search(ctx context.Context, query string) ([]domain.Book, error) {
	query = norm.NFC.String(strings.TrimSpace(query))
	if query == "" {
		return []domain.Book{}, nil
	}

	// Spaces go out as %20, not '+'.
	endpoint := c.baseURL + "/volumes?q=" + strings.ReplaceAll(url.QueryEscape(query), "+", "%20")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("search: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			c.logger.Warn("search request failed", zap.String("query", query), zap.Error(err))
		}
		return nil, fmt.Errorf("search: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("search: %w", &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	var data volumesResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("search: parse json: %w", err)
	}

	books := make([]domain.Book, 0, len(data.Items))
	for _, v := range data.Items {
		b := v.toDomain()
		if b.ISBN == "" || b.ImageURL == "" {
			continue
		}
		books = append(books, b)
	}
	c.logger.Debug("search", zap.String("query", query), zap.Int("volumes", len(data.Items)), zap.Int("kept", len(books)))
	return books, nil
}

func (v volume) toDomain() domain.Book {
	info := v.VolumeInfo
	author := ""
	if len(info.Authors) > 0 {
		author = info.Authors[0]
	}
	return domain.Book{
		ID:       v.ID,
		ISBN:     pickISBN(v),
		Title:    info.Title,
		ImageURL: domain.SecureURL(info.ImageLinks.SmallThumbnail),
		Author:   author,
	}
}

// pickISBN prefers the first ISBN_13 and otherwise falls back to the last ISBN_10.
func pickISBN(v volume) string {
	isbn := ""
	for _, id := range v.VolumeInfo.IndustryIdentifiers {
		switch id.Type {
		case "ISBN_13":
			return id.Identifier
		case "ISBN_10":
			isbn = id.Identifier
		}
	}
	return isbn
}
