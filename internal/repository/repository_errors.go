package repository

import (
	"fmt"

	"github.com/sakashimaa/inventory-audit/internal/domain"
)

const foreignKeyViolation = "23503"

var ErrProductNotFound = fmt.Errorf("product %w", domain.ErrNotFound)
