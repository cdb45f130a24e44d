package memory

import (
	"context"
	"sort"
	"strings"

	"github.com/sakashimaa/inventory-audit/internal/domain"
	"github.com/sakashimaa/inventory-audit/internal/repository"
)

var _ repository.ProductRepository = (*ProductRepository)(nil)

type ProductRepository struct {
	store *Store
}

func (r *ProductRepository) Create(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	unlock, record := s.write(ctx)
	defer unlock()

	s.nextProductID++
	created := *product
	created.ID = s.nextProductID
	created.CreatedAt = s.now()
	created.UpdatedAt = created.CreatedAt

	s.products[created.ID] = created
	record(func() { delete(s.products, created.ID) })

	return &created, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.store.read(ctx)
	defer unlock()

	p, ok := r.store.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	return &p, nil
}

// GetForUpdate is GetByID: inside WithinTx the store is already held exclusively.
func (r *ProductRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Product, error) {
	return r.GetByID(ctx, id)
}

func (r *ProductRepository) Update(ctx context.Context, id int64, input *domain.UpdateProductInput) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	unlock, record := s.write(ctx)
	defer unlock()

	prev, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	if input.IsEmpty() {
		return &prev, nil
	}

	next := prev
	input.ApplyTo(&next)
	next.UpdatedAt = s.now()

	s.products[id] = next
	record(func() { s.products[id] = prev })

	return &next, nil
}

func (r *ProductRepository) DeleteByID(ctx context.Context, id int64) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.store
	unlock, record := s.write(ctx)
	defer unlock()

	prev, ok := s.products[id]
	if !ok {
		return nil, repository.ErrProductNotFound
	}

	entries, hadHistory := s.history[id]

	delete(s.products, id)
	delete(s.history, id)
	record(func() {
		s.products[id] = prev
		if hadHistory {
			s.history[id] = entries
		}
	})

	return &prev, nil
}

func (r *ProductRepository) List(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.store.read(ctx)
	defer unlock()

	pattern := strings.ToLower(filter.Name)

	products := make([]domain.Product, 0, len(r.store.products))
	for _, p := range r.store.products {
		if pattern != "" && !strings.Contains(strings.ToLower(p.Name), pattern) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		products = append(products, p)
	}

	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	return paginate(products, filter.Limit, filter.Offset), nil
}

func paginate(products []domain.Product, limit, offset int) []domain.Product {
	if offset > 0 {
		if offset >= len(products) {
			return []domain.Product{}
		}
		products = products[offset:]
	}

	if limit > 0 && limit < len(products) {
		products = products[:limit]
	}

	return products
}

func (r *ProductRepository) FindByIdentity(ctx context.Context, name, brand string) (*domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.store.read(ctx)
	defer unlock()

	key := domain.IdentityKeyOf(name, brand)

	var found *domain.Product
	for _, p := range r.store.products {
		if p.IdentityKey() != key {
			continue
		}
		if found == nil || p.ID < found.ID {
			match := p
			found = &match
		}
	}

	if found == nil {
		return nil, repository.ErrProductNotFound
	}

	return found, nil
}

func (r *ProductRepository) Categories(ctx context.Context) ([]string, error) {
	products, err := r.List(ctx, domain.ProductFilter{})
	if err != nil {
		return nil, err
	}

	return domain.DistinctCategories(products), nil
}
