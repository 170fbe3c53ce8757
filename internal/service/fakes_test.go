package service_test

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/events"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
)

// journal records calls to every fake in the order they happen.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return slices.Clone(j.entries)
}

type carCall struct {
	op     string
	ids    []int64
	status domain.CarStatus
}

type fakeCars struct {
	mu      sync.Mutex
	journal *journal
	cars    map[int64]domain.Car
	calls   []carCall

	getErr     error
	updateErr  error
	reserveErr error
}

func newFakeCars(j *journal, cars ...domain.Car) *fakeCars {
	f := &fakeCars{journal: j, cars: map[int64]domain.Car{}}
	for _, c := range cars {
		f.cars[c.ID] = c
	}
	return f
}

func (f *fakeCars) record(op string, ids []int64, status domain.CarStatus) {
	f.calls = append(f.calls, carCall{op: op, ids: slices.Clone(ids), status: status})
	f.journal.add("cars.%s %v %s", op, ids, status)
}

func (f *fakeCars) GetCarsByIDs(_ context.Context, ids []int64) ([]domain.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("get", ids, "")
	if f.getErr != nil {
		return nil, f.getErr
	}
	var out []domain.Car
	for _, id := range ids {
		if c, ok := f.cars[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeCars) UpdateCarsStatus(_ context.Context, ids []int64, status domain.CarStatus) ([]domain.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("update", ids, status)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.setStatus(ids, status), nil
}

func (f *fakeCars) ReserveCars(_ context.Context, ids []int64) ([]domain.Car, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("reserve", ids, domain.CarStatusOrdered)
	if f.reserveErr != nil {
		return nil, f.reserveErr
	}
	for _, id := range ids {
		if f.cars[id].Status != domain.CarStatusFree {
			return nil, domain.NewError(domain.ErrInternalRequest, http.StatusConflict,
				"Car service responded 409: cars [%d] are not free", id)
		}
	}
	return f.setStatus(ids, domain.CarStatusOrdered), nil
}

func (f *fakeCars) setStatus(ids []int64, status domain.CarStatus) []domain.Car {
	var out []domain.Car
	for _, id := range ids {
		c, ok := f.cars[id]
		if !ok {
			continue
		}
		c.Status = status
		f.cars[id] = c
		out = append(out, c)
	}
	return out
}

func (f *fakeCars) status(id int64) domain.CarStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cars[id].Status
}

func (f *fakeCars) setCost(id int64, cost float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := f.cars[id]
	c.CostPerHour = cost
	f.cars[id] = c
}

// mutations returns the calls that change car state.
func (f *fakeCars) mutations() []carCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []carCall
	for _, c := range f.calls {
		if c.op != "get" {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeCars) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeStore struct {
	mu      sync.Mutex
	journal *journal
	orders  map[string]domain.Order
	seq     int

	createErr error
	updateErr error
	deleteErr error
}

func newFakeStore(j *journal) *fakeStore {
	return &fakeStore{journal: j, orders: map[string]domain.Order{}}
}

func (s *fakeStore) Create(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.add("store.create")
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	order.ID = fmt.Sprintf("order-%d", s.seq)
	order.CreatedAt = time.Now().UTC()
	s.orders[order.ID] = *order
	return nil
}

func (s *fakeStore) Get(_ context.Context, id string) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.add("store.get %s", id)
	o, ok := s.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	return &o, nil
}

func (s *fakeStore) List(_ context.Context) ([]domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []domain.Order{}
	for _, o := range s.orders {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) ListByCustomer(ctx context.Context, customerID int64) ([]domain.Order, error) {
	all, _ := s.List(ctx)
	out := []domain.Order{}
	for _, o := range all {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *fakeStore) Update(_ context.Context, order *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.add("store.update %s", order.ID)
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.orders[order.ID]; !ok {
		return repository.ErrOrderNotFound
	}
	s.orders[order.ID] = *order
	return nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journal.add("store.delete %s", id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	if _, ok := s.orders[id]; !ok {
		return repository.ErrOrderNotFound
	}
	delete(s.orders, id)
	return nil
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

type recordingPublisher struct {
	mu            sync.Mutex
	orderEvents   []events.OrderEvent
	compensations []events.CompensationEvent
	err           error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, e events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orderEvents = append(p.orderEvents, e)
	return p.err
}

func (p *recordingPublisher) PublishCompensation(_ context.Context, e events.CompensationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.compensations = append(p.compensations, e)
	return p.err
}
