package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventTradeOpened     EventType = "TRADE_OPENED"
	EventTradeClosed     EventType = "TRADE_CLOSED"
	EventSignalGenerated EventType = "SIGNAL_GENERATED"
	EventPositionUpdate  EventType = "POSITION_UPDATE"
	EventRiskHalt        EventType = "RISK_HALT"
	EventEngineStarted   EventType = "ENGINE_STARTED"
	EventEngineStopped   EventType = "ENGINE_STOPPED"
	EventError           EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(symbol string, entryPrice, quantity, stopLoss, takeProfit float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"entry_price": entryPrice,
			"quantity":    quantity,
			"stop_loss":   stopLoss,
			"take_profit": takeProfit,
		},
	})
}

// PublishTradeClosed publishes a trade closed event
func (eb *EventBus) PublishTradeClosed(symbol, reason string, entryPrice, exitPrice, quantity, pnl float64) {
	eb.Publish(Event{
		Type: EventTradeClosed,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"reason":      reason,
			"entry_price": entryPrice,
			"exit_price":  exitPrice,
			"quantity":    quantity,
			"pnl":         pnl,
		},
	})
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(strategyName, symbol, signalType string, price float64) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"strategy":    strategyName,
			"symbol":      symbol,
			"signal_type": signalType,
			"price":       price,
		},
	})
}

// PublishPositionUpdate publishes a position update event
func (eb *EventBus) PublishPositionUpdate(symbol string, entryPrice, currentPrice, quantity, pnl float64) {
	eb.Publish(Event{
		Type: EventPositionUpdate,
		Data: map[string]interface{}{
			"symbol":        symbol,
			"entry_price":   entryPrice,
			"current_price": currentPrice,
			"quantity":      quantity,
			"pnl":           pnl,
		},
	})
}

// PublishRiskHalt publishes a risk halt event
func (eb *EventBus) PublishRiskHalt(reason string, equity, drawdown float64) {
	eb.Publish(Event{
		Type: EventRiskHalt,
		Data: map[string]interface{}{
			"reason":   reason,
			"equity":   equity,
			"drawdown": drawdown,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
