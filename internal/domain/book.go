package domain

import (
	"strconv"
	"strings"
)

type Book struct {
	ID       string `json:"id"`
	ISBN     string `json:"isbn"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl"`
	Author   string `json:"author"`
}

type Bookshelf struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	BooksCount     int    `json:"booksCount"`
	BookCountLabel string `json:"bookCountLabel"`
}

// NewBookshelf builds a shelf record with its display label filled in.
func NewBookshelf(id, title string, booksCount int) Bookshelf {
	return Bookshelf{
		ID:             id,
		Title:          title,
		BooksCount:     booksCount,
		BookCountLabel: BookCountLabel(booksCount),
	}
}

// BookCountLabel returns "1 book" for a count of one and "<n> books" otherwise.
func BookCountLabel(n int) string {
	if n == 1 {
		return "1 book"
	}
	return strconv.Itoa(n) + " books"
}

// SecureURL rewrites an http:// URL to https://. Other values are returned unchanged.
func SecureURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// FindShelf returns the shelf with the given id from shelves.
func FindShelf(shelves []Bookshelf, id string) (Bookshelf, bool) {
	for _, s := range shelves {
		if s.ID == id {
			return s, true
		}
	}
	return Bookshelf{}, false
}
