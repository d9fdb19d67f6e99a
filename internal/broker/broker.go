package broker

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrRejected is returned when a gateway refuses an order.
var ErrRejected = errors.New("broker: order rejected")

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Status is the lifecycle state of an order. Orders are immutable
// records; the status is set once when the order is created.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusFilled    Status = "FILLED"
	StatusCancelled Status = "CANCELLED"
)

// Order is an immutable record of an attempted trade.
type Order struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"side"`
	Quantity  float64   `json:"quantity"`
	Price     float64   `json:"price"`
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Gateway submits orders for execution.
type Gateway interface {
	// Submit places an order. On rejection it returns the cancelled
	// order record together with ErrRejected.
	Submit(ctx context.Context, symbol string, side Side, quantity, price float64) (*Order, error)
}

// SimulatedGateway fills every well-formed order immediately at the
// requested price.
type SimulatedGateway struct {
	logger zerolog.Logger
}

// NewSimulatedGateway creates a paper-trading gateway.
func NewSimulatedGateway(logger zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{
		logger: logger.With().Str("component", "broker").Logger(),
	}
}

// Submit fills the order at price, or rejects it when quantity or
// price is not positive.
func (g *SimulatedGateway) Submit(ctx context.Context, symbol string, side Side, quantity, price float64) (*Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	order := &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now(),
	}

	if quantity <= 0 || price <= 0 {
		order.Status = StatusCancelled
		g.logger.Warn().
			Str("symbol", symbol).
			Str("side", string(side)).
			Float64("quantity", quantity).
			Float64("price", price).
			Msg("order rejected")
		return order, ErrRejected
	}

	order.Status = StatusFilled
	g.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Float64("quantity", quantity).
		Float64("price", price).
		Msg("order filled")
	return order, nil
}
