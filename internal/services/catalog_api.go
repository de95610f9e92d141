package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/karatcart/internal/models"
)

// CatalogAPI reads jewelry, collections and services from the marketplace.
type CatalogAPI struct {
	client *Marketplace
}

// NewCatalogAPI constructs CatalogAPI.
func NewCatalogAPI(client *Marketplace) *CatalogAPI {
	return &CatalogAPI{client: client}
}

func (a *CatalogAPI) Jewelry(ctx context.Context, id string) (*models.Jewelry, error) {
	var j models.Jewelry
	if err := a.get(ctx, "/jewelry/"+url.PathEscape(id), &j); err != nil {
		return nil, fmt.Errorf("load jewelry %s: %w", id, err)
	}
	if j.ID == "" {
		j.ID = id
	}
	return &j, nil
}

func (a *CatalogAPI) Collection(ctx context.Context, id string) (*models.Collection, error) {
	var c models.Collection
	if err := a.get(ctx, "/collections/"+url.PathEscape(id), &c); err != nil {
		return nil, fmt.Errorf("load collection %s: %w", id, err)
	}
	if c.ID == "" {
		c.ID = id
	}
	return &c, nil
}

func (a *CatalogAPI) Service(ctx context.Context, id string) (*models.Service, error) {
	var s models.Service
	if err := a.get(ctx, "/services/"+url.PathEscape(id), &s); err != nil {
		return nil, fmt.Errorf("load service %s: %w", id, err)
	}
	if s.ID == "" {
		s.ID = id
	}
	return &s, nil
}

func (a *CatalogAPI) get(ctx context.Context, path string, out any) error {
	_, err := a.client.do(ctx, requestOpts{Method: http.MethodGet, Path: path}, out)
	return err
}
