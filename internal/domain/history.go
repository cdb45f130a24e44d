package domain

import (
	"fmt"
	"strings"
	"time"
)

// HistoryEntry records one stock change. Entries are never updated.
type HistoryEntry struct {
	ID        int64     `db:"id"`
	ProductID int64     `db:"product_id"`
	ChangedBy string    `db:"changed_by"`
	OldStock  int64     `db:"old_stock"`
	NewStock  int64     `db:"new_stock"`
	Timestamp time.Time `db:"created_at"`
}

type SortOrder int

const (
	NewestFirst SortOrder = iota
	OldestFirst
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return NewestFirst, nil
	case "asc":
		return OldestFirst, nil
	default:
		return NewestFirst, fmt.Errorf("%w: order must be asc or desc", ErrInvalidInput)
	}
}
