/*
normalize.go - Validation boundary between stored records and the engines

PURPOSE:
  The engines are total: they never return errors and never see a
  malformed record. Everything that arrives from storage or from the API
  passes through a Normalizer first.

POLICY:
  REJECT (typed *ValidationError, unwraps ErrValidation):
    - missing id, date, supermarket, type
    - non-positive quantity on a sale, non-positive unit price
    - negative quantity on added/removed movements
    - payments that are non-positive or sum past the sale total
  DEFAULT (explicit, documented):
    - absent price tier: resolved from the unit price via TierResolver;
      left empty when the price matches no tier (zero margin), unless
      RejectUnknownTier is set
    - absent payment type: "direct"
    - absent payments: none (sale is open for its full value)
  REJECT when a tier is given:
    - the tier id is not in the table
    - the unit price is another tier's price (an off-table price keeps
      the given tier)
  RECOMPUTE (stored values are ignored):
    - Cartons, TotalValue, RemainingAmount, IsPaid, PaymentDate
*/
package ledger

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RAW RECORDS - As stored or as received
// =============================================================================

type PaymentRecord struct {
	ID     string          `json:"id" validate:"required"`
	Date   time.Time       `json:"date" validate:"required"`
	Amount decimal.Decimal `json:"amount" validate:"-"`
	Note   string          `json:"note,omitempty"`
	Type   string          `json:"type,omitempty" validate:"omitempty,oneof=direct virement"`
}

type SaleRecord struct {
	ID                  string          `json:"id" validate:"required"`
	Date                time.Time       `json:"date" validate:"required"`
	SupermarketID       string          `json:"supermarket_id" validate:"required"`
	Quantity            int             `json:"quantity" validate:"gt=0"`
	PricePerUnit        decimal.Decimal `json:"price_per_unit" validate:"-"`
	PriceTier           string          `json:"price_tier,omitempty"`
	Payments            []PaymentRecord `json:"payments" validate:"dive"`
	ExpectedPaymentDate *time.Time      `json:"expected_payment_date,omitempty"`
}

type MovementRecord struct {
	ID                    string         `json:"id" validate:"required"`
	Date                  time.Time      `json:"date" validate:"required"`
	Quantity              int            `json:"quantity"`
	Type                  string         `json:"type" validate:"required,oneof=added removed adjusted"`
	Reason                string         `json:"reason"`
	FragranceDistribution map[string]int `json:"fragrance_distribution,omitempty" validate:"omitempty,dive,keys,required,endkeys"`
}

// TierResolver maps a unit price to a known price tier.
// profitability.TierTable implements it.
type TierResolver interface {
	TierForPrice(price decimal.Decimal) (PriceTier, bool)
	HasTier(tier PriceTier) bool
}

// =============================================================================
// NORMALIZER
// =============================================================================

type Normalizer struct {
	Tiers             TierResolver
	RejectUnknownTier bool

	validate *validator.Validate
}

func NewNormalizer(tiers TierResolver) *Normalizer {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Normalizer{Tiers: tiers, validate: v}
}

// Sale validates rec and rebuilds every derived field from its payments.
func (n *Normalizer) Sale(rec SaleRecord) (Sale, error) {
	if err := n.validate.Struct(rec); err != nil {
		return Sale{}, toValidationError("sale", err)
	}
	if !rec.PricePerUnit.IsPositive() {
		return Sale{}, &ValidationError{Record: "sale", Field: "price_per_unit", Reason: "must be positive"}
	}

	tier, err := n.ResolveTier(PriceTier(rec.PriceTier), rec.PricePerUnit)
	if err != nil {
		return Sale{}, err
	}

	sale, err := NewSale(NewSaleInput{
		ID:                  SaleID(rec.ID),
		Date:                rec.Date,
		SupermarketID:       SupermarketID(rec.SupermarketID),
		Quantity:            rec.Quantity,
		PricePerUnit:        rec.PricePerUnit,
		PriceTier:           tier,
		ExpectedPaymentDate: rec.ExpectedPaymentDate,
	})
	if err != nil {
		return Sale{}, err
	}

	for _, p := range rec.Payments {
		sale, err = AppendPayment(sale, Payment{
			ID:     PaymentID(p.ID),
			Date:   p.Date,
			Amount: p.Amount,
			Note:   p.Note,
			Type:   PaymentType(p.Type),
		})
		if err != nil {
			return Sale{}, fmt.Errorf("sale %s: %w", rec.ID, err)
		}
	}
	return sale, nil
}

// ResolveTier checks tier against price. An empty tier is resolved from
// the price; a given tier must exist and must not contradict a price that
// belongs to another tier. Without a resolver the tier is returned as is.
func (n *Normalizer) ResolveTier(tier PriceTier, price decimal.Decimal) (PriceTier, error) {
	if n.Tiers == nil {
		return tier, nil
	}

	byPrice, priced := n.Tiers.TierForPrice(price)
	if tier == "" {
		if !priced && n.RejectUnknownTier {
			return "", &ValidationError{Record: "sale", Field: "price_per_unit",
				Reason: fmt.Sprintf("%s matches no price tier", price)}
		}
		return byPrice, nil
	}

	if !n.Tiers.HasTier(tier) {
		return "", &ValidationError{Record: "sale", Field: "price_tier", Reason: "unknown tier " + string(tier)}
	}
	if priced && byPrice != tier {
		return "", &ValidationError{Record: "sale", Field: "price_tier",
			Reason: fmt.Sprintf("price %s belongs to tier %s, not %s", price, byPrice, tier)}
	}
	return tier, nil
}

// Movement validates rec and converts it to a StockMovement.
func (n *Normalizer) Movement(rec MovementRecord) (StockMovement, error) {
	if err := n.validate.Struct(rec); err != nil {
		return StockMovement{}, toValidationError("movement", err)
	}

	typ := MovementType(rec.Type)
	signed := typ == MovementAdjusted
	if !signed && rec.Quantity < 0 {
		return StockMovement{}, &ValidationError{Record: "movement", Field: "quantity",
			Reason: "must not be negative for " + rec.Type}
	}

	var dist map[FragranceID]int
	if len(rec.FragranceDistribution) > 0 {
		dist = make(map[FragranceID]int, len(rec.FragranceDistribution))
		for id, qty := range rec.FragranceDistribution {
			if !signed && qty < 0 {
				return StockMovement{}, &ValidationError{Record: "movement",
					Field: "fragrance_distribution." + id, Reason: "must not be negative for " + rec.Type}
			}
			dist[FragranceID(id)] = qty
		}
	}

	return StockMovement{
		ID:                    MovementID(rec.ID),
		Date:                  rec.Date,
		Quantity:              rec.Quantity,
		Type:                  typ,
		Reason:                rec.Reason,
		FragranceDistribution: dist,
	}, nil
}

// Sales normalizes a batch, stopping at the first rejected record.
func (n *Normalizer) Sales(recs []SaleRecord) ([]Sale, error) {
	out := make([]Sale, 0, len(recs))
	for _, r := range recs {
		s, err := n.Sale(r)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// Movements normalizes a batch, stopping at the first rejected record.
func (n *Normalizer) Movements(recs []MovementRecord) ([]StockMovement, error) {
	out := make([]StockMovement, 0, len(recs))
	for _, r := range recs {
		m, err := n.Movement(r)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// =============================================================================
// RECORD CONVERSION - Back to the stored shape
// =============================================================================

func ToSaleRecord(s Sale) SaleRecord {
	rec := SaleRecord{
		ID:                  string(s.ID),
		Date:                s.Date,
		SupermarketID:       string(s.SupermarketID),
		Quantity:            s.Quantity,
		PricePerUnit:        s.PricePerUnit,
		PriceTier:           string(s.PriceTier),
		Payments:            make([]PaymentRecord, 0, len(s.Payments)),
		ExpectedPaymentDate: s.ExpectedPaymentDate,
	}
	for _, p := range s.Payments {
		rec.Payments = append(rec.Payments, PaymentRecord{
			ID:     string(p.ID),
			Date:   p.Date,
			Amount: p.Amount,
			Note:   p.Note,
			Type:   string(p.Type),
		})
	}
	return rec
}

func ToMovementRecord(m StockMovement) MovementRecord {
	rec := MovementRecord{
		ID:       string(m.ID),
		Date:     m.Date,
		Quantity: m.Quantity,
		Type:     string(m.Type),
		Reason:   m.Reason,
	}
	if len(m.FragranceDistribution) > 0 {
		rec.FragranceDistribution = make(map[string]int, len(m.FragranceDistribution))
		for k, v := range m.FragranceDistribution {
			rec.FragranceDistribution[string(k)] = v
		}
	}
	return rec
}

func toValidationError(record string, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &ValidationError{
			Record: record,
			Field:  fe.Field(),
			Reason: "failed " + fe.Tag(),
		}
	}
	return fmt.Errorf("%s: %v: %w", record, err, ErrValidation)
}
