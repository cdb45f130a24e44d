package domain

import (
	"fmt"
	"strconv"
	"strings"
)

type ImportMode string

const (
	// ImportModeSkip reports duplicates and leaves the catalog untouched.
	ImportModeSkip ImportMode = "skip"
	// ImportModeMerge adds a duplicate's stock to the matching product.
	ImportModeMerge ImportMode = "merge"
)

func ParseImportMode(s string) (ImportMode, error) {
	switch ImportMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ImportModeSkip:
		return ImportModeSkip, nil
	case ImportModeMerge:
		return ImportModeMerge, nil
	default:
		return ImportModeSkip, fmt.Errorf("%w: mode must be skip or merge", ErrInvalidInput)
	}
}

type ImportOptions struct {
	// ID correlates the run's log lines, event and response header.
	ID    string
	Mode  ImportMode
	Actor string
}

// RawProductRecord is one data row of an import file, cells as written.
type RawProductRecord struct {
	Line     int
	Name     string
	Category string
	Brand    string
	Unit     string
	Stock    string
	Image    string
}

// Parse validates the row. Errors wrap ErrInvalidInput and make the row a skip.
func (r *RawProductRecord) Parse() (ImportRecord, error) {
	rec := ImportRecord{
		Line:     r.Line,
		Name:     strings.TrimSpace(r.Name),
		Category: strings.TrimSpace(r.Category),
		Brand:    strings.TrimSpace(r.Brand),
		Unit:     strings.TrimSpace(r.Unit),
		Image:    strings.TrimSpace(r.Image),
	}

	if rec.Name == "" {
		return rec, fmt.Errorf("%w: line %d: name is required", ErrInvalidInput, r.Line)
	}

	if rec.Unit == "" {
		rec.Unit = DefaultUnit
	}

	if raw := strings.TrimSpace(r.Stock); raw != "" {
		stock, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return rec, fmt.Errorf("%w: line %d: stock %q is not an integer", ErrInvalidInput, r.Line, raw)
		}
		if stock < 0 {
			return rec, fmt.Errorf("%w: line %d: stock must not be negative", ErrInvalidInput, r.Line)
		}
		rec.Stock = stock
	}

	return rec, nil
}

type ImportRecord struct {
	Line     int    `json:"line"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Brand    string `json:"brand"`
	Unit     string `json:"unit"`
	Stock    int64  `json:"stock"`
	Image    string `json:"image"`
}

func (r *ImportRecord) IdentityKey() string {
	return IdentityKeyOf(r.Name, r.Brand)
}

func (r *ImportRecord) Fields() ProductFields {
	return ProductFields{
		Name:     r.Name,
		Category: r.Category,
		Brand:    r.Brand,
		Unit:     r.Unit,
		Stock:    r.Stock,
		Image:    r.Image,
	}
}

type DuplicateReason string

const (
	// DuplicateExists matched a product that was in the catalog before the run.
	DuplicateExists DuplicateReason = "exists"
	// DuplicateRepeated matched an earlier row of the same file.
	DuplicateRepeated DuplicateReason = "repeated"
	// DuplicateMerged was folded into the matching product (merge mode).
	DuplicateMerged DuplicateReason = "merged"
)

type DuplicateRecord struct {
	ImportRecord
	Reason    DuplicateReason `json:"reason"`
	ProductID int64           `json:"productId,omitempty"`
}

type ImportSummary struct {
	Added      int               `json:"added"`
	Skipped    int               `json:"skipped"`
	Duplicates []DuplicateRecord `json:"duplicates"`
	Merged     int               `json:"merged,omitempty"`
}

func NewImportSummary() *ImportSummary {
	return &ImportSummary{Duplicates: []DuplicateRecord{}}
}
