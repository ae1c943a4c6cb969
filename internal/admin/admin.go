package admin

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"

	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/qrcatalog-backend/pkg/errors"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/qr"
)

// codesPerStore caps list-codes output per store.
const codesPerStore = 3

// ResetRoots are the top-level collections removed by Reset.
var ResetRoots = []string{"users", "stores", "orders", "requests"}

type catalogStore interface {
	ListStores(ctx context.Context) ([]catalog.Store, error)
	ListProducts(ctx context.Context, storeID string) ([]catalog.Product, error)
	SetQRCode(ctx context.Context, storeID, productID, code string) error
	DeleteStore(ctx context.Context, storeID string) error
}

type productCodeEncoder interface {
	EncodeProductURL(storeID, productID string) (string, error)
}

type rootDeleter interface {
	Delete(ctx context.Context, path string) error
}

// Tool runs the operator maintenance commands against the document store.
type Tool struct {
	catalog catalogStore
	codec   productCodeEncoder
	docs    rootDeleter
	out     io.Writer
	logg    *logger.Logger
}

func NewTool(repo catalogStore, codec productCodeEncoder, docs rootDeleter, out io.Writer, logg *logger.Logger) (*Tool, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if codec == nil {
		return nil, fmt.Errorf("qr codec required")
	}
	if docs == nil {
		return nil, fmt.Errorf("document store required")
	}
	if out == nil {
		out = io.Discard
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Tool{catalog: repo, codec: codec, docs: docs, out: out, logg: logg}, nil
}

// ConvertQRCodes rewrites every product qr_code that is not already a data URI into the
// static product URL code. Per-product failures are collected and do not stop the run.
func (t *Tool) ConvertQRCodes(ctx context.Context) (int, error) {
	stores, err := t.catalog.ListStores(ctx)
	if err != nil {
		return 0, err
	}
	var (
		converted int
		errs      error
	)
	for _, store := range stores {
		products, err := t.catalog.ListProducts(ctx, store.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", store.ID, err))
			continue
		}
		for _, product := range products {
			if qr.IsDataURI(product.QRCode) {
				continue
			}
			code, err := t.codec.EncodeProductURL(store.ID, product.ID)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("product %s/%s: %w", store.ID, product.ID, err))
				continue
			}
			if err := t.catalog.SetQRCode(ctx, store.ID, product.ID, code); err != nil {
				errs = multierr.Append(errs, fmt.Errorf("product %s/%s: %w", store.ID, product.ID, err))
				continue
			}
			converted++
			fmt.Fprintf(t.out, "converted %s/%s (%s)\n", store.ID, product.ID, product.Name)
		}
	}
	t.logg.Info(t.logg.WithField(ctx, "converted", converted), "qr codes converted")
	return converted, errs
}

// ListCodes prints the manual entry code of the first products of every store.
func (t *Tool) ListCodes(ctx context.Context) error {
	stores, err := t.catalog.ListStores(ctx)
	if err != nil {
		return err
	}
	var errs error
	for _, store := range stores {
		products, err := t.catalog.ListProducts(ctx, store.ID)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", store.ID, err))
			continue
		}
		fmt.Fprintf(t.out, "%s (%s)\n", store.Name, store.ID)
		if len(products) > codesPerStore {
			products = products[:codesPerStore]
		}
		for _, product := range products {
			fmt.Fprintf(t.out, "  %s  %s\n", ManualCode(store.ID, product.ID), product.Name)
		}
	}
	return errs
}

// PruneStores deletes every store after the first keep, in creation order.
func (t *Tool) PruneStores(ctx context.Context, keep int) (int, error) {
	if keep < 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "keep must be zero or more")
	}
	stores, err := t.catalog.ListStores(ctx)
	if err != nil {
		return 0, err
	}
	if len(stores) <= keep {
		return 0, nil
	}
	var (
		deleted int
		errs    error
	)
	for _, store := range stores[keep:] {
		if err := t.catalog.DeleteStore(ctx, store.ID); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("store %s: %w", store.ID, err))
			continue
		}
		deleted++
		fmt.Fprintf(t.out, "deleted %s (%s)\n", store.Name, store.ID)
	}
	t.logg.Info(t.logg.WithField(ctx, "deleted", deleted), "stores pruned")
	return deleted, errs
}

// Reset removes every application root. force must be set.
func (t *Tool) Reset(ctx context.Context, force bool) error {
	if !force {
		return pkgerrors.New(pkgerrors.CodeValidation, "reset requires -force")
	}
	var errs error
	for _, root := range ResetRoots {
		if err := t.docs.Delete(ctx, root); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("delete %s: %w", root, err))
			continue
		}
		fmt.Fprintf(t.out, "deleted /%s\n", root)
	}
	t.logg.Warn(ctx, "document store reset")
	return errs
}

// ManualCode is the text a buyer can type instead of scanning.
func ManualCode(storeID, productID string) string {
	return "/" + docstore.Join("store", storeID, "product", productID)
}
