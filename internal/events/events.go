package events

import (
	"context"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
)

type OrderEventType string

const (
	OrderCreated OrderEventType = "order.created"
	OrderUpdated OrderEventType = "order.updated"
	OrderDeleted OrderEventType = "order.deleted"
)

type OrderEvent struct {
	EventID    string             `json:"event_id"`
	Type       OrderEventType     `json:"type"`
	OrderID    string             `json:"order_id"`
	CustomerID int64              `json:"customer_id"`
	CarIDs     []int64            `json:"car_ids"`
	Status     domain.OrderStatus `json:"status"`
	TotalCost  float64            `json:"total_cost"`
	Timestamp  time.Time          `json:"timestamp"`
	RequestID  string             `json:"request_id"`
}

// CompensationEvent records a saga step that undid a car status change.
type CompensationEvent struct {
	EventID   string           `json:"event_id"`
	OrderID   string           `json:"order_id"`
	CarIDs    []int64          `json:"car_ids"`
	CarStatus domain.CarStatus `json:"car_status"`
	Reason    string           `json:"reason"`
	Succeeded bool             `json:"succeeded"`
	Timestamp time.Time        `json:"timestamp"`
	RequestID string           `json:"request_id"`
}

// NopPublisher drops every event. Used when no Kafka brokers are configured.
type NopPublisher struct{}

func (NopPublisher) PublishOrderEvent(context.Context, OrderEvent) error { return nil }

func (NopPublisher) PublishCompensation(context.Context, CompensationEvent) error { return nil }
