// Package cursor implements the keyset-pagination token used by every
// list operation in the key and credential repositories: base64(STANDARD)
// of an RFC3339 timestamp, optionally joined with additional fields by "__"
// for multi-column keys.
package cursor

import (
	"encoding/base64"
	"strings"
	"time"

	apperrors "github.com/coregate/gateway/internal/errors"
)

// Encode returns the pagination token for t.
func Encode(t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(t.UTC().Format(time.RFC3339Nano)))
}

// EncodeFields returns a token joining multiple components with "__" before
// encoding, for list operations keyed by more than created_at alone.
func EncodeFields(fields ...string) string {
	return base64.StdEncoding.EncodeToString([]byte(strings.Join(fields, "__")))
}

// Decode reverses Encode. A malformed token yields ErrInvalidCursor.
func Decode(token string) (time.Time, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, apperrors.ErrInvalidCursor
	}

	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		t, err = time.Parse(time.RFC3339, string(raw))
		if err != nil {
			return time.Time{}, apperrors.ErrInvalidCursor
		}
	}

	return t, nil
}

// DecodeFields reverses EncodeFields.
func DecodeFields(token string) ([]string, error) {
	raw, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.ErrInvalidCursor
	}
	return strings.Split(string(raw), "__"), nil
}

// Page describes a single page of a cursor-paginated list.
type Page struct {
	// PageSize is the maximum number of items requested.
	PageSize int
	// After is the decoded cursor, or the zero time for the first page.
	After time.Time
}

// ParsePage decodes a page-size/cursor query pair. An empty token requests
// the first page. PageSize is clamped to [1, 100], defaulting to 50.
func ParsePage(token string, pageSize int) (Page, error) {
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 100 {
		pageSize = 100
	}

	if token == "" {
		return Page{PageSize: pageSize}, nil
	}

	after, err := Decode(token)
	if err != nil {
		return Page{}, err
	}

	return Page{PageSize: pageSize, After: after}, nil
}

// NextToken implements the "fetch page_size+1, let the extra row decide"
// rule: given the rows fetched (already limited to
// pageSize+1 by the caller's query) and the createdAt accessor, it returns
// the trimmed slice and the continuation token (empty if this was
// the last page).
func NextToken[T any](rows []T, pageSize int, createdAt func(T) time.Time) (page []T, next string) {
	if len(rows) > pageSize {
		page = rows[:pageSize]
		next = Encode(createdAt(page[len(page)-1]))
		return page, next
	}
	return rows, ""
}
