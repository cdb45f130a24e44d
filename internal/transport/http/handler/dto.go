package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakashimaa/inventory-audit/internal/domain"
)

type ProductResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Brand     string    `json:"brand"`
	Unit      string    `json:"unit"`
	Stock     int64     `json:"stock"`
	Image     string    `json:"image"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:        p.ID,
		Name:      p.Name,
		Category:  p.Category,
		Brand:     p.Brand,
		Unit:      p.Unit,
		Stock:     p.Stock,
		Image:     p.Image,
		Status:    p.Status(),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toProductResponses(products []domain.Product) []ProductResponse {
	res := make([]ProductResponse, 0, len(products))
	for i := range products {
		res = append(res, toProductResponse(&products[i]))
	}
	return res
}

type HistoryResponse struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"productId"`
	ChangedBy string    `json:"changedBy"`
	OldStock  int64     `json:"oldStock"`
	NewStock  int64     `json:"newStock"`
	Timestamp time.Time `json:"timestamp"`
}

func toHistoryResponses(entries []domain.HistoryEntry) []HistoryResponse {
	res := make([]HistoryResponse, 0, len(entries))
	for _, e := range entries {
		res = append(res, HistoryResponse{
			ID:        e.ID,
			ProductID: e.ProductID,
			ChangedBy: e.ChangedBy,
			OldStock:  e.OldStock,
			NewStock:  e.NewStock,
			Timestamp: e.Timestamp,
		})
	}
	return res
}

// StockValue accepts a JSON number or a numeric string. null and "" leave it
// unset.
type StockValue struct {
	Value int64
	Set   bool
}

func (s *StockValue) UnmarshalJSON(data []byte) error {
	raw := string(bytes.TrimSpace(data))
	if raw == "null" {
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		raw = strings.TrimSpace(str)
		if raw == "" {
			return nil
		}
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("stock %q is not an integer", raw)
	}

	s.Value = v
	s.Set = true
	return nil
}

type CreateProductRequest struct {
	Name     string     `json:"name" validate:"required,max=255"`
	Category string     `json:"category" validate:"max=255"`
	Brand    string     `json:"brand" validate:"max=255"`
	Unit     string     `json:"unit" validate:"max=32"`
	Stock    StockValue `json:"stock"`
	Image    string     `json:"image" validate:"max=2048"`
}

func (r *CreateProductRequest) Fields() domain.ProductFields {
	return domain.ProductFields{
		Name:     r.Name,
		Category: r.Category,
		Brand:    r.Brand,
		Unit:     r.Unit,
		Stock:    r.Stock.Value,
		Image:    r.Image,
	}
}

// UpdateProductRequest is a partial update. Absent fields keep their value;
// id, status and timestamps in the body are ignored.
type UpdateProductRequest struct {
	Name      *string    `json:"name" validate:"omitempty,max=255"`
	Category  *string    `json:"category" validate:"omitempty,max=255"`
	Brand     *string    `json:"brand" validate:"omitempty,max=255"`
	Unit      *string    `json:"unit" validate:"omitempty,max=32"`
	Stock     StockValue `json:"stock"`
	Image     *string    `json:"image" validate:"omitempty,max=2048"`
	ChangedBy string     `json:"changedBy" validate:"max=255"`
}

func (r *UpdateProductRequest) Input() domain.UpdateProductInput {
	input := domain.UpdateProductInput{
		Name:     r.Name,
		Category: r.Category,
		Brand:    r.Brand,
		Unit:     r.Unit,
		Image:    r.Image,
	}

	if r.Stock.Set {
		stock := r.Stock.Value
		input.Stock = &stock
	}

	return input
}
