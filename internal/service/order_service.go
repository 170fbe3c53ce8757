package service

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/events"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const compensationTimeout = 10 * time.Second

// CarDirectory is the car service as seen by the order workflow.
type CarDirectory interface {
	GetCarsByIDs(ctx context.Context, carIDs []int64) ([]domain.Car, error)
	UpdateCarsStatus(ctx context.Context, carIDs []int64, status domain.CarStatus) ([]domain.Car, error)
	ReserveCars(ctx context.Context, carIDs []int64) ([]domain.Car, error)
}

type OrderStore interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id string) (*domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error)
	Update(ctx context.Context, order *domain.Order) error
	Delete(ctx context.Context, id string) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event events.OrderEvent) error
}

type CompensationPublisher interface {
	PublishCompensation(ctx context.Context, event events.CompensationEvent) error
}

// OrderService runs the order lifecycle against the order store and the car
// service. It keeps no state between calls.
type OrderService struct {
	orderRepo    OrderStore
	cars         CarDirectory
	producer     EventPublisher
	compensation CompensationPublisher
	logger       *zap.Logger
}

func NewOrderService(orderRepo OrderStore, cars CarDirectory, producer EventPublisher, compensation CompensationPublisher, logger *zap.Logger) *OrderService {
	return &OrderService{
		orderRepo:    orderRepo,
		cars:         cars,
		producer:     producer,
		compensation: compensation,
		logger:       logger,
	}
}

func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orderRepo.Get(ctx, orderID)
	if err != nil {
		return nil, lookupError(domain.ErrOrderGetting, orderID, err)
	}
	return order, nil
}

// ListOrders returns every order, or only the customer's when customerID is set.
func (s *OrderService) ListOrders(ctx context.Context, customerID *int64) ([]domain.Order, error) {
	var (
		orders []domain.Order
		err    error
	)
	if customerID != nil {
		orders, err = s.orderRepo.ListByCustomer(ctx, *customerID)
	} else {
		orders, err = s.orderRepo.List(ctx)
	}
	if err != nil {
		return nil, storageError(domain.ErrOrderGetting, "Cannot list orders", err)
	}
	return orders, nil
}

// CreateOrder reserves every requested car and stores the order. Either all
// cars are reserved or none are touched.
func (s *OrderService) CreateOrder(ctx context.Context, req domain.OrderRequest, requestID string) (*domain.Order, error) {
	cars, err := s.cars.GetCarsByIDs(ctx, req.CarIDs)
	if err != nil {
		return nil, domain.Rewrap(domain.ErrOrderCreation, err)
	}
	rates, err := ratesFor(domain.ErrOrderCreation, req.CarIDs, cars)
	if err != nil {
		return nil, err
	}
	if busy := notFree(cars); len(busy) > 0 {
		return nil, domain.NewError(domain.ErrOrderCreation, http.StatusConflict,
			"Not all cars %v are free, busy: %v", req.CarIDs, busy)
	}
	totalCost, err := ComputeCost(req.RentalDateStart, req.RentalDateEnd, rates)
	if err != nil {
		return nil, domain.NewError(domain.ErrOrderCreation, http.StatusUnprocessableEntity, "%v", err)
	}

	if _, err := s.cars.ReserveCars(ctx, req.CarIDs); err != nil {
		return nil, domain.Rewrap(domain.ErrOrderCreation, err)
	}

	order := &domain.Order{
		RentalDateStart: req.RentalDateStart,
		RentalDateEnd:   req.RentalDateEnd,
		Status:          req.Status,
		CustomerID:      req.CustomerID,
		CarIDs:          req.CarIDs,
		RentalTime:      RentalHours(req.RentalDateStart, req.RentalDateEnd),
		TotalCost:       totalCost,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("Failed to save order",
			zap.Int64s("car_ids", req.CarIDs),
			zap.String("request_id", requestID),
			zap.Error(err))
		s.compensate(ctx, "", req.CarIDs, domain.CarStatusFree, "order persistence failed: "+err.Error(), requestID)
		return nil, storageError(domain.ErrOrderCreation, "Cannot create order", err)
	}

	s.publish(ctx, events.OrderCreated, order, requestID)

	s.logger.Info("Order created successfully",
		zap.String("order_id", order.ID),
		zap.Int64("customer_id", order.CustomerID),
		zap.Int64s("car_ids", order.CarIDs),
		zap.Float64("total_cost", order.TotalCost))

	return order, nil
}

// UpdateOrder replaces the order's mutable fields, moves its cars to the
// status the new order status implies and recomputes the cost from current
// car prices.
func (s *OrderService) UpdateOrder(ctx context.Context, orderID string, req domain.OrderRequest, requestID string) (*domain.Order, error) {
	existing, err := s.orderRepo.Get(ctx, orderID)
	if err != nil {
		return nil, lookupError(domain.ErrOrderUpdate, orderID, err)
	}
	carStatus, ok := req.Status.CarStatus()
	if !ok {
		return nil, domain.NewError(domain.ErrOrderUpdate, http.StatusUnprocessableEntity,
			"Unknown order status %q", req.Status)
	}

	cars, err := s.cars.GetCarsByIDs(ctx, req.CarIDs)
	if err != nil {
		return nil, domain.Rewrap(domain.ErrOrderUpdate, err)
	}
	rates, err := ratesFor(domain.ErrOrderUpdate, req.CarIDs, cars)
	if err != nil {
		return nil, err
	}
	totalCost, err := ComputeCost(req.RentalDateStart, req.RentalDateEnd, rates)
	if err != nil {
		return nil, domain.NewError(domain.ErrOrderUpdate, http.StatusUnprocessableEntity, "%v", err)
	}

	// Cars the order does not hold yet must be free, whatever the new status.
	held := existing.Status.HoldsCars()
	var claimed []domain.Car
	for _, car := range cars {
		if !held || !slices.Contains(existing.CarIDs, car.ID) {
			claimed = append(claimed, car)
		}
	}
	if busy := notFree(claimed); len(busy) > 0 {
		return nil, domain.NewError(domain.ErrOrderUpdate, http.StatusConflict,
			"Cars %v are held by other orders", busy)
	}

	if _, err := s.cars.UpdateCarsStatus(ctx, req.CarIDs, carStatus); err != nil {
		return nil, domain.Rewrap(domain.ErrOrderUpdate, err)
	}
	var released []int64
	if held {
		released = without(existing.CarIDs, req.CarIDs)
	}
	if len(released) > 0 {
		if _, err := s.cars.UpdateCarsStatus(ctx, released, domain.CarStatusFree); err != nil {
			s.restoreCars(ctx, orderID, cars, nil, "releasing dropped cars failed: "+err.Error(), requestID)
			return nil, domain.Rewrap(domain.ErrOrderUpdate, err)
		}
	}

	order := &domain.Order{
		ID:              existing.ID,
		RentalDateStart: req.RentalDateStart,
		RentalDateEnd:   req.RentalDateEnd,
		Status:          req.Status,
		CustomerID:      req.CustomerID,
		CarIDs:          req.CarIDs,
		RentalTime:      RentalHours(req.RentalDateStart, req.RentalDateEnd),
		TotalCost:       totalCost,
		CreatedAt:       existing.CreatedAt,
	}
	if err := s.orderRepo.Update(ctx, order); err != nil {
		s.logger.Error("Failed to update order",
			zap.String("order_id", orderID),
			zap.String("request_id", requestID),
			zap.Error(err))
		s.restoreCars(ctx, orderID, cars, released, "order update failed: "+err.Error(), requestID)
		return nil, storageError(domain.ErrOrderUpdate, "Cannot update order", err)
	}

	s.publish(ctx, events.OrderUpdated, order, requestID)

	s.logger.Info("Order updated",
		zap.String("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Float64("total_cost", order.TotalCost))

	return order, nil
}

// DeleteOrder frees the order's cars and removes the order.
func (s *OrderService) DeleteOrder(ctx context.Context, orderID string, requestID string) error {
	order, err := s.orderRepo.Get(ctx, orderID)
	if err != nil {
		return lookupError(domain.ErrOrderDeleting, orderID, err)
	}

	if _, err := s.cars.UpdateCarsStatus(ctx, order.CarIDs, domain.CarStatusFree); err != nil {
		return domain.Rewrap(domain.ErrOrderDeleting, err)
	}

	if err := s.orderRepo.Delete(ctx, order.ID); err != nil {
		s.logger.Error("Failed to delete order",
			zap.String("order_id", orderID),
			zap.String("request_id", requestID),
			zap.Error(err))
		if !errors.Is(err, repository.ErrOrderNotFound) {
			if restore, ok := order.Status.CarStatus(); ok && restore != domain.CarStatusFree {
				s.compensate(ctx, order.ID, order.CarIDs, restore, "order deletion failed: "+err.Error(), requestID)
			}
		}
		return storageError(domain.ErrOrderDeleting, "Cannot delete order", err)
	}

	s.publish(ctx, events.OrderDeleted, order, requestID)

	s.logger.Info("Order deleted",
		zap.String("order_id", order.ID),
		zap.Int64s("released_car_ids", order.CarIDs))

	return nil
}

// compensate moves carIDs back to status after a later step failed. It runs
// even if the request was cancelled.
func (s *OrderService) compensate(ctx context.Context, orderID string, carIDs []int64, status domain.CarStatus, reason, requestID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	_, err := s.cars.UpdateCarsStatus(ctx, carIDs, status)
	if err != nil {
		s.logger.Error("Compensation failed, car statuses need manual repair",
			zap.String("order_id", orderID),
			zap.Int64s("car_ids", carIDs),
			zap.String("car_status", string(status)),
			zap.Error(err))
	} else {
		s.logger.Warn("Compensation applied",
			zap.String("order_id", orderID),
			zap.Int64s("car_ids", carIDs),
			zap.String("car_status", string(status)),
			zap.String("reason", reason))
	}

	event := events.CompensationEvent{
		EventID:   uuid.NewString(),
		OrderID:   orderID,
		CarIDs:    carIDs,
		CarStatus: status,
		Reason:    reason,
		Succeeded: err == nil,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
	if err := s.compensation.PublishCompensation(ctx, event); err != nil {
		s.logger.Error("Failed to publish compensation event",
			zap.String("event_id", event.EventID),
			zap.Error(err))
	}
}

// restoreCars undoes the status changes of an update: every car goes back to
// the status it was fetched with and released cars are held again.
func (s *OrderService) restoreCars(ctx context.Context, orderID string, before []domain.Car, released []int64, reason, requestID string) {
	byStatus := make(map[domain.CarStatus][]int64)
	for _, car := range before {
		byStatus[car.Status] = append(byStatus[car.Status], car.ID)
	}
	byStatus[domain.CarStatusOrdered] = append(byStatus[domain.CarStatusOrdered], released...)

	for _, status := range []domain.CarStatus{domain.CarStatusFree, domain.CarStatusOrdered, domain.CarStatusRepaired} {
		if ids := byStatus[status]; len(ids) > 0 {
			s.compensate(ctx, orderID, ids, status, reason, requestID)
		}
	}
}

func (s *OrderService) publish(ctx context.Context, eventType events.OrderEventType, order *domain.Order, requestID string) {
	event := events.OrderEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		CustomerID: order.CustomerID,
		CarIDs:     order.CarIDs,
		Status:     order.Status,
		TotalCost:  order.TotalCost,
		Timestamp:  time.Now().UTC(),
		RequestID:  requestID,
	}
	if err := s.producer.PublishOrderEvent(ctx, event); err != nil {
		s.logger.Error("Failed to publish event",
			zap.String("order_id", order.ID),
			zap.String("type", string(eventType)),
			zap.Error(err))
	}
}

// ratesFor returns the per-hour cost of each requested car, in request order.
func ratesFor(kind error, carIDs []int64, cars []domain.Car) ([]float64, error) {
	byID := make(map[int64]domain.Car, len(cars))
	for _, car := range cars {
		byID[car.ID] = car
	}

	rates := make([]float64, 0, len(carIDs))
	var missing []int64
	for _, id := range carIDs {
		car, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		rates = append(rates, car.CostPerHour)
	}
	if len(missing) > 0 {
		return nil, domain.NewError(kind, http.StatusNotFound, "Cars with ids %v do not exist", missing)
	}
	return rates, nil
}

func notFree(cars []domain.Car) []int64 {
	var busy []int64
	for _, car := range cars {
		if car.Status != domain.CarStatusFree {
			busy = append(busy, car.ID)
		}
	}
	return busy
}

// without returns the ids of from that are not in ids.
func without(from, ids []int64) []int64 {
	var out []int64
	for _, id := range from {
		if !slices.Contains(ids, id) {
			out = append(out, id)
		}
	}
	return out
}

func lookupError(kind error, orderID string, err error) *domain.ServiceError {
	if errors.Is(err, repository.ErrOrderNotFound) {
		return domain.NewError(kind, http.StatusNotFound, "Order with id %s does not exist", orderID)
	}
	se := domain.NewError(kind, http.StatusServiceUnavailable, "Cannot load order %s, err=%v", orderID, err)
	se.Err = err
	return se
}

func storageError(kind error, action string, err error) *domain.ServiceError {
	status := http.StatusServiceUnavailable
	switch {
	case errors.Is(err, repository.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, repository.ErrOrderConflict):
		status = http.StatusConflict
	}
	se := domain.NewError(kind, status, "%s, err=%v", action, err)
	se.Err = err
	return se
}
