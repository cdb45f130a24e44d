package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultUnit = "pcs"

	StatusInStock    = "In Stock"
	StatusOutOfStock = "Out of Stock"
)

type Product struct {
	ID        int64     `db:"id"`
	Name      string    `db:"name"`
	Category  string    `db:"category"`
	Brand     string    `db:"brand"`
	Unit      string    `db:"unit"`
	Stock     int64     `db:"stock"`
	Image     string    `db:"image"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Status is derived from Stock on every call and never stored.
func (p *Product) Status() string {
	if p.Stock > 0 {
		return StatusInStock
	}

	return StatusOutOfStock
}

func (p *Product) IdentityKey() string {
	return IdentityKeyOf(p.Name, p.Brand)
}

// IdentityKeyOf decides whether two records name the same product:
// case-insensitive (name, brand), surrounding whitespace ignored.
func IdentityKeyOf(name, brand string) string {
	return strings.ToLower(strings.TrimSpace(name)) + "\x00" + strings.ToLower(strings.TrimSpace(brand))
}

// ProductFields is the input of a create.
type ProductFields struct {
	Name     string
	Category string
	Brand    string
	Unit     string
	Stock    int64
	Image    string
}

// Normalize trims text fields and applies the unit default.
func (f *ProductFields) Normalize() {
	f.Name = strings.TrimSpace(f.Name)
	f.Category = strings.TrimSpace(f.Category)
	f.Brand = strings.TrimSpace(f.Brand)
	f.Unit = strings.TrimSpace(f.Unit)
	f.Image = strings.TrimSpace(f.Image)

	if f.Unit == "" {
		f.Unit = DefaultUnit
	}
}

func (f *ProductFields) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidInput)
	}

	if f.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}

	return nil
}

func (f *ProductFields) Product() *Product {
	return &Product{
		Name:     f.Name,
		Category: f.Category,
		Brand:    f.Brand,
		Unit:     f.Unit,
		Stock:    f.Stock,
		Image:    f.Image,
	}
}

// UpdateProductInput carries a partial update; nil fields are left untouched.
type UpdateProductInput struct {
	Name     *string
	Category *string
	Brand    *string
	Unit     *string
	Stock    *int64
	Image    *string
}

func (in *UpdateProductInput) Normalize() {
	for _, field := range []*string{in.Name, in.Category, in.Brand, in.Unit, in.Image} {
		if field != nil {
			*field = strings.TrimSpace(*field)
		}
	}

	if in.Unit != nil && *in.Unit == "" {
		unit := DefaultUnit
		in.Unit = &unit
	}
}

func (in *UpdateProductInput) Validate() error {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return fmt.Errorf("%w: name must not be empty", ErrInvalidInput)
	}

	if in.Stock != nil && *in.Stock < 0 {
		return fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}

	return nil
}

func (in *UpdateProductInput) IsEmpty() bool {
	return in.Name == nil && in.Category == nil && in.Brand == nil &&
		in.Unit == nil && in.Stock == nil && in.Image == nil
}

// ApplyTo writes the supplied fields onto p.
func (in *UpdateProductInput) ApplyTo(p *Product) {
	if in.Name != nil {
		p.Name = *in.Name
	}
	if in.Category != nil {
		p.Category = *in.Category
	}
	if in.Brand != nil {
		p.Brand = *in.Brand
	}
	if in.Unit != nil {
		p.Unit = *in.Unit
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
}

type ProductFilter struct {
	// Name matches as a case-insensitive substring.
	Name string
	// Category matches exactly, case included.
	Category string
	Limit    int
	Offset   int
}

// DistinctCategories returns the sorted, non-empty categories of products.
func DistinctCategories(products []Product) []string {
	seen := make(map[string]struct{})
	res := make([]string, 0)

	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		res = append(res, p.Category)
	}

	sort.Strings(res)
	return res
}
