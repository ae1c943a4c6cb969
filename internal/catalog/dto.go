package catalog

import (
	"strings"

	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// CreateStoreInput holds the validated payload to create a store.
type CreateStoreInput struct {
	Name        string
	Description string
	Category    string
}

// UpdateStoreInput holds optional store mutations. Ownership is not mutable.
type UpdateStoreInput struct {
	Name        *string
	Description *string
	Category    *string
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Price       types.Money
	Size        string
	Color       string
	Description string
	Stock       int
	Image       string
}

// UpdateProductInput holds optional product mutations; nil fields stay untouched.
type UpdateProductInput struct {
	Name        *string
	Price       *types.Money
	Size        *string
	Color       *string
	Description *string
	Stock       *int
	Image       *string
}

func (in CreateStoreInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "store name is required")
	}
	return nil
}

func (in UpdateStoreInput) fields() (map[string]any, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "store name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Category != nil {
		fields["category"] = *in.Category
	}
	return fields, nil
}

func (in CreateProductInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if in.Price.LessThan(decimal.Zero) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
	}
	if in.Stock < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
	}
	return nil
}

func (in UpdateProductInput) fields() (map[string]any, error) {
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name cannot be empty")
		}
		fields["name"] = name
	}
	if in.Price != nil {
		if in.Price.LessThan(decimal.Zero) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be non-negative")
		}
		fields["price"] = *in.Price
	}
	if in.Size != nil {
		fields["size"] = *in.Size
	}
	if in.Color != nil {
		fields["color"] = *in.Color
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Stock != nil {
		if *in.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must be non-negative")
		}
		fields["stock"] = *in.Stock
	}
	if in.Image != nil {
		fields["image"] = *in.Image
	}
	return fields, nil
}

func (p *Product) apply(in UpdateProductInput) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Size != nil {
		p.Size = *in.Size
	}
	if in.Color != nil {
		p.Color = *in.Color
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Image != nil {
		p.Image = *in.Image
	}
}

func (s *Store) apply(in UpdateStoreInput) {
	if in.Name != nil {
		s.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		s.Description = *in.Description
	}
	if in.Category != nil {
		s.Category = *in.Category
	}
}
