package microblog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"epilogue/internal/domain"
)

// flexID accepts ids sent as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*f = flexID(strconv.FormatInt(i, 10))
		return nil
	}
	*f = flexID(n.String())
	return nil
}

// ── Wire shapes ─────────────────────────────────────────────

type feed[T any] struct {
	Items []T `json:"items"`
}

type shelfItem struct {
	ID        flexID `json:"id"`
	Title     string `json:"title"`
	Microblog struct {
		BooksCount int `json:"books_count"`
	} `json:"_microblog"`
}

type bookItem struct {
	ID      flexID `json:"id"`
	Title   string `json:"title"`
	Image   string `json:"image"`
	Authors []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Microblog struct {
		ISBN string `json:"isbn"`
	} `json:"_microblog"`
}

type verifyResponse struct {
	Username    string `json:"username"`
	Token       string `json:"token"`
	DefaultSite string `json:"default_site"`
	Error       string `json:"error"`
}

type micropubConfig struct {
	Destination []struct {
		UID     string `json:"uid"`
		Name    string `json:"name"`
		Default bool   `json:"microblog-default"`
	} `json:"destination"`
}

func (s shelfItem) toDomain() domain.Bookshelf {
	return domain.NewBookshelf(string(s.ID), s.Title, s.Microblog.BooksCount)
}

func (b bookItem) toDomain() domain.Book {
	author := ""
	if len(b.Authors) > 0 {
		author = b.Authors[0].Name
	}
	return domain.Book{
		ID:       string(b.ID),
		ISBN:     b.Microblog.ISBN,
		Title:    b.Title,
		ImageURL: domain.SecureURL(b.Image),
		Author:   author,
	}
}
