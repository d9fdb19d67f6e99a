package broker

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestSimulatedGatewayFills(t *testing.T) {
	g := NewSimulatedGateway(zerolog.Nop())

	order, err := g.Submit(context.Background(), "AAPL", SideBuy, 5, 100)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if order.Status != StatusFilled {
		t.Errorf("Status = %v, want FILLED", order.Status)
	}
	if order.ID == "" {
		t.Error("expected a generated order id")
	}
	if order.Symbol != "AAPL" || order.Side != SideBuy || order.Quantity != 5 || order.Price != 100 {
		t.Errorf("order fields = %+v", order)
	}
}

func TestSimulatedGatewayRejects(t *testing.T) {
	g := NewSimulatedGateway(zerolog.Nop())

	cases := []struct {
		name            string
		quantity, price float64
	}{
		{"zero quantity", 0, 100},
		{"negative quantity", -1, 100},
		{"zero price", 5, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := g.Submit(context.Background(), "AAPL", SideSell, tc.quantity, tc.price)
			if !errors.Is(err, ErrRejected) {
				t.Fatalf("Submit = %v, want ErrRejected", err)
			}
			if order == nil || order.Status != StatusCancelled {
				t.Errorf("rejected order = %+v, want CANCELLED record", order)
			}
		})
	}
}

func TestSimulatedGatewayHonorsContext(t *testing.T) {
	g := NewSimulatedGateway(zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Submit(ctx, "AAPL", SideBuy, 5, 100); !errors.Is(err, context.Canceled) {
		t.Errorf("Submit = %v, want context.Canceled", err)
	}
}
