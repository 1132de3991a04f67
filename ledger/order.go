package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CanTransition reports whether an order may move from one status to another.
// Only pending orders move; delivered and cancelled are terminal.
func CanTransition(from, to OrderStatus) bool {
	if from != OrderPending {
		return false
	}
	return to == OrderDelivered || to == OrderCancelled
}

// Delivery is a sale together with the stock it takes out of the warehouse.
// Movement is nil when the sale is smaller than one carton and carries no
// fragrance distribution.
type Delivery struct {
	Sale     Sale
	Movement *StockMovement
}

// NewDelivery builds the sale and its "removed" movement. The movement
// quantity is the sale's carton count.
func NewDelivery(in NewSaleInput, dist map[FragranceID]int, reason string) (Delivery, error) {
	sale, err := NewSale(in)
	if err != nil {
		return Delivery{}, err
	}
	if sale.Cartons == 0 && len(dist) == 0 {
		return Delivery{Sale: sale}, nil
	}

	var copied map[FragranceID]int
	if len(dist) > 0 {
		copied = make(map[FragranceID]int, len(dist))
		for k, v := range dist {
			if v < 0 {
				return Delivery{}, &ValidationError{Record: "movement",
					Field: "fragrance_distribution." + string(k), Reason: "must not be negative"}
			}
			copied[k] = v
		}
	}

	return Delivery{
		Sale: sale,
		Movement: &StockMovement{
			ID:                    MovementID(uuid.NewString()),
			Date:                  sale.Date,
			Quantity:              sale.Cartons,
			Type:                  MovementRemoved,
			Reason:                reason,
			FragranceDistribution: copied,
		},
	}, nil
}

// ConvertOrder turns a pending order into a delivery dated at. The caller
// persists it and deletes the order (Store.CommitConversion).
func ConvertOrder(o Order, at time.Time, paidImmediately bool) (Delivery, error) {
	if o.Status != OrderPending {
		return Delivery{}, fmt.Errorf("order %s is %s: %w", o.ID, o.Status, ErrOrderNotPending)
	}

	return NewDelivery(NewSaleInput{
		Date:            at,
		SupermarketID:   o.SupermarketID,
		Quantity:        o.Quantity,
		PricePerUnit:    o.PricePerUnit,
		PriceTier:       o.PriceTier,
		PaidImmediately: paidImmediately,
	}, o.FragranceDistribution, fmt.Sprintf("Livraison commande %s", o.ID))
}
