package ordering

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/karatcart/internal/logging"
	"github.com/example/karatcart/internal/models"
	"github.com/example/karatcart/internal/pricing"
)

// Config tunes a Reconciler.
type Config struct {
	Totals       pricing.TotalsPolicy
	EditDebounce time.Duration
	WaitTimeout  time.Duration
	WaitPoll     time.Duration
	// LoadConcurrency bounds catalog reads while re-pricing a cart.
	LoadConcurrency int
}

// Reconciler holds the collaborators shared by every customer session.
type Reconciler struct {
	orders   OrderAPI
	catalog  Catalog
	rates    RateSource
	notifier Notifier
	cfg      Config
	log      *zap.Logger
}

// NewReconciler wires a Reconciler. notifier may be nil.
func NewReconciler(orders OrderAPI, catalog Catalog, rates RateSource, notifier Notifier, cfg Config, log *zap.Logger) *Reconciler {
	if cfg.Totals == (pricing.TotalsPolicy{}) {
		cfg.Totals = pricing.DefaultTotalsPolicy()
	}
	if cfg.EditDebounce <= 0 {
		cfg.EditDebounce = 2 * time.Second
	}
	if cfg.LoadConcurrency <= 0 {
		cfg.LoadConcurrency = 4
	}
	return &Reconciler{
		orders:   orders,
		catalog:  catalog,
		rates:    rates,
		notifier: notifier,
		cfg:      cfg,
		log:      logging.OrNop(log).Named("ordering"),
	}
}

// Rates returns the current metal rate table.
func (r *Reconciler) Rates(ctx context.Context) models.MetalRateTable {
	return r.rates.FetchMetalRates(ctx)
}

// QuoteJewelry prices a single piece at current rates.
func (r *Reconciler) QuoteJewelry(ctx context.Context, id string) (*models.Jewelry, float64, error) {
	j, err := r.catalog.Jewelry(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch jewelry %s: %w", id, err)
	}
	return j, pricing.JewelryPrice(*j, r.rates.FetchMetalRates(ctx)), nil
}

// QuoteCollection prices a collection at current rates.
func (r *Reconciler) QuoteCollection(ctx context.Context, id string) (*models.Collection, float64, error) {
	c, err := r.catalog.Collection(ctx, id)
	if err != nil {
		return nil, 0, fmt.Errorf("fetch collection %s: %w", id, err)
	}
	price, ok := pricing.CollectionPrice(c, r.rates.FetchMetalRates(ctx))
	if !ok {
		return c, 0, fmt.Errorf("collection %s: %w", id, ErrUnpriceable)
	}
	return c, price, nil
}

func (r *Reconciler) jewelryAddition(ctx context.Context, req JewelryRequest) (addition, error) {
	qty := req.Quantity
	if qty == 0 {
		qty = 1
	}
	if qty < 1 {
		return addition{}, ErrInvalidQuantity
	}

	j, unit, err := r.QuoteJewelry(ctx, req.ID)
	if err != nil {
		return addition{}, err
	}
	return addition{
		shop: j.Shop,
		line: models.ProductItem(models.ProductLine{
			Item:       models.Ref(firstNonEmpty(j.ID, req.ID)),
			ItemModel:  models.ItemModelJewelry,
			Quantity:   qty,
			TotalPrice: pricing.Round2(unit * float64(qty)),
			Size:       strings.TrimSpace(req.Size),
		}),
	}, nil
}

func (r *Reconciler) collectionAddition(ctx context.Context, id string) (addition, error) {
	c, price, err := r.QuoteCollection(ctx, id)
	if err != nil {
		return addition{}, err
	}
	return addition{
		shop: c.Shop,
		line: models.ProductItem(models.ProductLine{
			Item:       models.Ref(firstNonEmpty(c.ID, id)),
			ItemModel:  models.ItemModelCollection,
			Quantity:   1,
			TotalPrice: pricing.Round2(price),
		}),
	}, nil
}

func (r *Reconciler) serviceAddition(ctx context.Context, req ServiceRequest) (addition, error) {
	s, err := r.catalog.Service(ctx, req.ID)
	if err != nil {
		return addition{}, fmt.Errorf("fetch service %s: %w", req.ID, err)
	}
	return addition{
		shop: s.Shop,
		line: models.ServiceItem(models.ServiceLine{
			Service:    models.Ref(firstNonEmpty(s.ID, req.ID)),
			Jewelry:    append([]models.ServiceJewelry{}, req.Jewelry...),
			TotalPrice: pricing.Round2(pricing.ServicePrice(*s, len(req.Jewelry))),
		}),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
