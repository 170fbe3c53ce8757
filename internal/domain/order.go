package domain

import (
	"fmt"
	"time"
)

type OrderStatus string

const (
	OrderStatusOrdered    OrderStatus = "ordered"
	OrderStatusInProgress OrderStatus = "in_progress"
	OrderStatusFinished   OrderStatus = "finished"
	OrderStatusCanceled   OrderStatus = "canceled"
)

// CarStatus returns the car status an order in this status implies.
// ok is false for values outside the enum.
func (s OrderStatus) CarStatus() (status CarStatus, ok bool) {
	switch s {
	case OrderStatusOrdered, OrderStatusInProgress:
		return CarStatusOrdered, true
	case OrderStatusFinished, OrderStatusCanceled:
		return CarStatusFree, true
	}
	return "", false
}

// HoldsCars reports whether an order in this status keeps its cars ordered.
func (s OrderStatus) HoldsCars() bool {
	status, ok := s.CarStatus()
	return ok && status == CarStatusOrdered
}

func (s OrderStatus) Valid() bool {
	_, ok := s.CarStatus()
	return ok
}

type Order struct {
	ID              string      `json:"id" dynamodbav:"order_id"`
	RentalDateStart time.Time   `json:"rental_date_start" dynamodbav:"rental_date_start"`
	RentalDateEnd   time.Time   `json:"rental_date_end" dynamodbav:"rental_date_end"`
	Status          OrderStatus `json:"status" dynamodbav:"status"`
	CustomerID      int64       `json:"customer_id" dynamodbav:"customer_id"`
	CarIDs          []int64     `json:"car_ids" dynamodbav:"car_ids"`
	RentalTime      int64       `json:"rental_time" dynamodbav:"rental_time"`
	TotalCost       float64     `json:"total_cost" dynamodbav:"total_cost"`
	CreatedAt       time.Time   `json:"created_at" dynamodbav:"created_at"`
}

// OrderRequest is the body of order creation and update requests.
type OrderRequest struct {
	RentalDateStart time.Time   `json:"rental_date_start" binding:"required"`
	RentalDateEnd   time.Time   `json:"rental_date_end" binding:"required"`
	Status          OrderStatus `json:"status" binding:"required,oneof=ordered in_progress finished canceled"`
	CustomerID      int64       `json:"customer_id" binding:"required"`
	CarIDs          []int64     `json:"car_ids" binding:"required,min=1"`
}

// Validate checks the rental window against now and the car id list.
func (r OrderRequest) Validate(now time.Time) error {
	if !r.Status.Valid() {
		return fmt.Errorf("unknown order status %q", r.Status)
	}
	for _, d := range []time.Time{r.RentalDateStart, r.RentalDateEnd} {
		if d.Before(now) {
			return fmt.Errorf("date %s cannot be in the past", d.Format(time.RFC3339))
		}
	}
	if !r.RentalDateEnd.After(r.RentalDateStart) {
		return fmt.Errorf("end date (%s) must be greater than start date (%s) for the rental period",
			r.RentalDateEnd.Format(time.RFC3339), r.RentalDateStart.Format(time.RFC3339))
	}
	if len(r.CarIDs) == 0 {
		return fmt.Errorf("car_ids must not be empty")
	}
	seen := make(map[int64]struct{}, len(r.CarIDs))
	for _, id := range r.CarIDs {
		if id <= 0 {
			return fmt.Errorf("car id %d must be positive", id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("car id %d is listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
