// Package app wires the promotion simulator: it loads a basket snapshot,
// resolves the active offers and vouchers from PostgreSQL, runs one
// application pass, and prints the settlement.
package app

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/promo-engine/internal/domain/basket"
	"github.com/xenking/promo-engine/internal/domain/offer"
	"github.com/xenking/promo-engine/internal/domain/voucher"
	"github.com/xenking/promo-engine/internal/repository"
)

type basketInput struct {
	ShippingCharge decimal.Decimal `json:"shipping_charge"`
	Vouchers       []string        `json:"vouchers,omitempty"`
	Lines          []lineInput     `json:"lines"`
}

type lineInput struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`

	// OutOfStock marks a line without a stock record; such lines never
	// satisfy conditions or receive discounts.
	OutOfStock bool `json:"out_of_stock,omitempty"`
}

type settlementOutput struct {
	Total            decimal.Decimal     `json:"total"`
	TotalDiscount    decimal.Decimal     `json:"total_discount"`
	ShippingDiscount decimal.Decimal     `json:"shipping_discount"`
	Applications     []applicationOutput `json:"applications,omitempty"`
	Lines            []lineOutput        `json:"lines,omitempty"`
	PostOrderActions []string            `json:"post_order_actions,omitempty"`
	Upsells          []string            `json:"upsells,omitempty"`
}

type applicationOutput struct {
	OfferID   int64           `json:"offer_id"`
	Offer     string          `json:"offer"`
	Voucher   string          `json:"voucher,omitempty"`
	Frequency int             `json:"frequency"`
	Discount  decimal.Decimal `json:"discount"`
}

type lineOutput struct {
	ProductID     int64           `json:"product_id"`
	Quantity      int             `json:"quantity"`
	DiscountedQty int             `json:"discounted_qty"`
	Discount      decimal.Decimal `json:"discount"`
}

// Run executes one simulator invocation end to end.
func Run(ctx context.Context, lg *zap.Logger, cfg *Config) error {
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if cfg.Seed {
		if err := Seed(ctx, lg, pool); err != nil {
			return errors.Wrap(err, "seed demo data")
		}
	}

	input, err := readBasketInput(cfg.BasketFile)
	if err != nil {
		return errors.Wrap(err, "read basket")
	}

	b, err := buildBasket(ctx, repository.NewProductRepository(pool), input)
	if err != nil {
		return errors.Wrap(err, "build basket")
	}

	offerRepo := repository.NewOfferRepository(pool)
	voucherRepo := repository.NewVoucherRepository(pool, offerRepo)
	now := time.Now()

	siteOffers, err := offerRepo.ActiveSiteOffers(ctx, now)
	if err != nil {
		return errors.Wrap(err, "load site offers")
	}
	lg.Info("Loaded site offers", zap.Int("count", len(siteOffers)))

	// Voucher lookup keeps the resolved vouchers so --record can write
	// redemptions after the pass.
	resolved := make(map[string]*voucher.Voucher)
	lookup := func(code string) (*voucher.Voucher, voucher.Redemptions, error) {
		v, red, err := voucherRepo.FindByCode(ctx, code, cfg.UserID)
		if err == nil {
			resolved[v.Code] = v
		}
		return v, red, err
	}
	voucherOffers, err := voucher.BasketOffers(b, now, lookup)
	if err != nil {
		return errors.Wrap(err, "resolve vouchers")
	}

	var u *offer.User
	if cfg.UserID != "" {
		apps, err := repository.NewUsageRepository(pool).UserApplications(ctx, cfg.UserID)
		if err != nil {
			return errors.Wrap(err, "load user applications")
		}
		u = &offer.User{ID: cfg.UserID, OfferApplications: apps}
	}

	candidates := offer.Offers{Basket: voucherOffers, Site: siteOffers}
	settlement := offer.NewApplicator(lg).Apply(b, u, candidates)

	if cfg.Record {
		if err := recordUsage(ctx, lg, offerRepo, voucherRepo, settlement, resolved, cfg.UserID); err != nil {
			return errors.Wrap(err, "record usage")
		}
	}

	out := renderSettlement(b, settlement, candidates)
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(out), "encode settlement")
}

func readBasketInput(path string) (basketInput, error) {
	var in basketInput

	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return in, errors.Wrap(err, "open")
		}
		defer func() { _ = f.Close() }()
		r = f
	}

	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return in, errors.Wrap(err, "decode")
	}
	if len(in.Lines) == 0 {
		return in, errors.New("basket has no lines")
	}
	return in, nil
}

func buildBasket(ctx context.Context, products *repository.ProductRepository, in basketInput) (*basket.Basket, error) {
	b := &basket.Basket{
		ShippingCharge: in.ShippingCharge,
		VoucherCodes:   in.Vouchers,
	}
	for i, li := range in.Lines {
		if li.Quantity <= 0 {
			return nil, errors.Errorf("line %d: quantity must be positive", i)
		}
		p, err := products.GetByID(ctx, li.ProductID)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i)
		}
		product := p.Product
		b.Lines = append(b.Lines, &basket.Line{
			ID:             int64(i + 1),
			Product:        &product,
			UnitPrice:      p.Price,
			Quantity:       li.Quantity,
			HasStockRecord: !li.OutOfStock,
		})
	}
	return b, nil
}

func recordUsage(
	ctx context.Context,
	lg *zap.Logger,
	offers *repository.OfferRepository,
	vouchers *repository.VoucherRepository,
	s *offer.Settlement,
	resolved map[string]*voucher.Voucher,
	userID string,
) error {
	orderRef := uuid.NewString()

	redeemed := make(map[string]struct{})
	for _, app := range s.Applications {
		if err := offers.RecordUsage(ctx, app, userID); err != nil {
			return err
		}
		lg.Info("Recorded offer usage",
			zap.Int64("offer_id", app.Offer.ID),
			zap.Int("frequency", app.Frequency))

		code := app.Offer.VoucherCode()
		if code == "" {
			continue
		}
		if _, done := redeemed[code]; done {
			continue
		}
		redeemed[code] = struct{}{}

		v, ok := resolved[code]
		if !ok {
			continue
		}
		if err := vouchers.RecordRedemption(ctx, v.ID, userID, orderRef); err != nil {
			return err
		}
		lg.Info("Recorded voucher redemption",
			zap.String("code", code),
			zap.String("order_ref", orderRef))
	}
	return nil
}

func renderSettlement(b *basket.Basket, s *offer.Settlement, candidates offer.Offers) settlementOutput {
	out := settlementOutput{
		Total:            b.Total(),
		TotalDiscount:    s.TotalDiscount,
		ShippingDiscount: s.ShippingDiscount,
		PostOrderActions: s.PostOrderActions,
	}
	for _, app := range s.Applications {
		out.Applications = append(out.Applications, applicationOutput{
			OfferID:   app.Offer.ID,
			Offer:     app.Offer.Name,
			Voucher:   app.Offer.VoucherCode(),
			Frequency: app.Frequency,
			Discount:  app.Discount,
		})
	}
	for _, ld := range s.LineDiscounts {
		out.Lines = append(out.Lines, lineOutput{
			ProductID:     ld.Line.Product.ID,
			Quantity:      ld.Line.Quantity,
			DiscountedQty: ld.Quantity,
			Discount:      ld.Amount,
		})
	}

	// Upsell hints for offers that nearly applied.
	applied := make(map[int64]struct{}, len(s.Applications))
	for _, app := range s.Applications {
		applied[app.Offer.ID] = struct{}{}
	}
	for _, o := range candidates.Sorted() {
		if _, ok := applied[o.ID]; ok {
			continue
		}
		if !o.IsConditionPartiallySatisfied(b) {
			continue
		}
		if msg := o.UpsellMessage(b); msg != "" {
			out.Upsells = append(out.Upsells, msg)
		}
	}
	return out
}
