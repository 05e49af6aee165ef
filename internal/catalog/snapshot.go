package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sokomart-dev/sokomart-backend/pkg/db/models"
	pkgerrors "github.com/sokomart-dev/sokomart-backend/pkg/errors"
)

// Snapshot resolves the authoritative product rows an order must freeze at
// checkout. Client-submitted names and prices are never trusted.
type Snapshot struct{}

func NewSnapshot() *Snapshot {
	return &Snapshot{}
}

// Load fetches the requested products inside the caller's transaction and
// returns them keyed by ID. Missing or inactive products fail the whole
// lookup; an order can never be built on a product the buyer cannot buy.
func (s *Snapshot) Load(ctx context.Context, tx *gorm.DB, productIDs []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	if len(productIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no products requested")
	}

	unique := make([]uuid.UUID, 0, len(productIDs))
	seen := make(map[uuid.UUID]struct{}, len(productIDs))
	for _, id := range productIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}

	var rows []models.Product
	if err := tx.WithContext(ctx).Where("id IN ?", unique).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading products")
	}

	byID := make(map[uuid.UUID]models.Product, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}

	for _, id := range unique {
		product, ok := byID[id]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found").
				WithDetails(map[string]any{"product_id": id.String()})
		}
		if !product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product is not purchasable").
				WithDetails(map[string]any{"product_id": id.String()})
		}
	}

	return byID, nil
}
