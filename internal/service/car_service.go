package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/repository"
	"github.com/SvetlanaSumets11/CarRental/internal/storage"
	"go.uber.org/zap"
)

type CarStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Car, error)
	List(ctx context.Context) ([]domain.Car, error)
	GetByIDs(ctx context.Context, ids []int64) ([]domain.Car, error)
	Create(ctx context.Context, req domain.CarRequest, image string) (*domain.Car, error)
	Update(ctx context.Context, id int64, req domain.CarRequest, image string) (*domain.Car, error)
	Delete(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, ids []int64, status, expected domain.CarStatus) ([]domain.Car, error)
}

// ImageStore holds car photos. Cars store the object key; responses carry a
// presigned URL instead.
type ImageStore interface {
	Upload(ctx context.Context, key string, image domain.ImageUpload) error
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string) (string, error)
}

// CarService owns the car catalogue and the car status transitions requested
// by the order service.
type CarService struct {
	carRepo CarStore
	images  ImageStore
	logger  *zap.Logger
	now     func() time.Time
}

func NewCarService(carRepo CarStore, images ImageStore, logger *zap.Logger) *CarService {
	return &CarService{carRepo: carRepo, images: images, logger: logger, now: time.Now}
}

func (s *CarService) GetCar(ctx context.Context, id int64) (*domain.Car, error) {
	car, err := s.carRepo.GetByID(ctx, id)
	if err != nil {
		return nil, carError(domain.ErrCarGetting, id, err)
	}
	s.presign(ctx, car)
	return car, nil
}

func (s *CarService) ListCars(ctx context.Context) ([]domain.Car, error) {
	cars, err := s.carRepo.List(ctx)
	if err != nil {
		return nil, carError(domain.ErrCarGetting, 0, err)
	}
	return s.presignAll(ctx, cars), nil
}

// GetCarsByIDs returns the cars that exist among ids, ordered by id.
func (s *CarService) GetCarsByIDs(ctx context.Context, ids []int64) ([]domain.Car, error) {
	cars, err := s.carRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, carError(domain.ErrCarGetting, 0, err)
	}
	return s.presignAll(ctx, cars), nil
}

// CreateCar uploads the image, then stores the car. The image is removed
// again if the car cannot be stored.
func (s *CarService) CreateCar(ctx context.Context, req domain.CarRequest, image *domain.ImageUpload) (*domain.Car, error) {
	if image == nil {
		return nil, domain.NewError(domain.ErrCarCreation, http.StatusBadRequest, "No image provided")
	}

	key := storage.ImageKey(req.Number, image.Filename)
	if err := s.images.Upload(ctx, key, *image); err != nil {
		return nil, imageError(domain.ErrCarCreation, "Cannot upload car image", err)
	}

	car, err := s.carRepo.Create(ctx, req, key)
	if err != nil {
		s.dropImage(ctx, key)
		return nil, carError(domain.ErrCarCreation, 0, err)
	}
	s.logger.Info("Car created", zap.Int64("car_id", car.ID), zap.String("number", car.Number))
	s.presign(ctx, car)
	return car, nil
}

// UpdateCar replaces every field of the car. A non-nil image replaces the
// stored one; the old object is removed only once the car points at the new.
func (s *CarService) UpdateCar(ctx context.Context, id int64, req domain.CarRequest, image *domain.ImageUpload) (*domain.Car, error) {
	current, err := s.carRepo.GetByID(ctx, id)
	if err != nil {
		return nil, carError(domain.ErrCarUpdate, id, err)
	}
	return s.update(ctx, current, req, image)
}

// PatchCar applies the non-nil fields of patch and validates the result as a
// full car.
func (s *CarService) PatchCar(ctx context.Context, id int64, patch domain.CarPatchRequest, image *domain.ImageUpload) (*domain.Car, error) {
	current, err := s.carRepo.GetByID(ctx, id)
	if err != nil {
		return nil, carError(domain.ErrCarUpdate, id, err)
	}

	req := patch.Merge(*current)
	if err := req.Validate(s.now()); err != nil {
		return nil, domain.NewError(domain.ErrCarUpdate, http.StatusBadRequest, "%v", err)
	}
	return s.update(ctx, current, req, image)
}

func (s *CarService) update(ctx context.Context, current *domain.Car, req domain.CarRequest, image *domain.ImageUpload) (*domain.Car, error) {
	key := current.Image
	if image != nil {
		key = storage.ImageKey(req.Number, image.Filename)
		if err := s.images.Upload(ctx, key, *image); err != nil {
			return nil, imageError(domain.ErrCarUpdate, "Cannot upload car image", err)
		}
	}

	car, err := s.carRepo.Update(ctx, current.ID, req, key)
	if err != nil {
		if key != current.Image {
			s.dropImage(ctx, key)
		}
		return nil, carError(domain.ErrCarUpdate, current.ID, err)
	}
	if key != current.Image {
		s.dropImage(ctx, current.Image)
	}
	s.presign(ctx, car)
	return car, nil
}

func (s *CarService) DeleteCar(ctx context.Context, id int64) error {
	car, err := s.carRepo.GetByID(ctx, id)
	if err != nil {
		return carError(domain.ErrCarDeleting, id, err)
	}
	if err := s.images.Delete(ctx, car.Image); err != nil {
		return imageError(domain.ErrCarDeleting, "Cannot delete car image", err)
	}
	if err := s.carRepo.Delete(ctx, id); err != nil {
		return carError(domain.ErrCarDeleting, id, err)
	}
	s.logger.Info("Car deleted", zap.Int64("car_id", id))
	return nil
}

// UpdateCarsStatus sets req.Status on every car in req.CarIDs. A set
// ExpectedStatus makes the update all-or-nothing; a mismatch yields 409.
func (s *CarService) UpdateCarsStatus(ctx context.Context, req domain.StatusUpdateRequest) ([]domain.Car, error) {
	cars, err := s.carRepo.UpdateStatus(ctx, req.CarIDs, req.Status, req.ExpectedStatus)
	if err != nil {
		var conflict *repository.StatusConflictError
		if errors.As(err, &conflict) {
			return nil, domain.NewError(domain.ErrCarUpdate, http.StatusConflict,
				"Not all cars %v are %s, conflicting: %v", req.CarIDs, conflict.Expected, conflict.CarIDs)
		}
		return nil, carError(domain.ErrCarUpdate, 0, err)
	}

	s.logger.Info("Cars status updated",
		zap.Int64s("car_ids", req.CarIDs),
		zap.String("status", string(req.Status)),
		zap.String("expected_status", string(req.ExpectedStatus)),
	)
	return s.presignAll(ctx, cars), nil
}

// presign swaps the stored image key for a presigned URL. A car whose URL
// cannot be signed is returned without one.
func (s *CarService) presign(ctx context.Context, car *domain.Car) {
	url, err := s.images.PresignedURL(ctx, car.Image)
	if err != nil {
		s.logger.Warn("Cannot presign car image", zap.Int64("car_id", car.ID), zap.Error(err))
		url = ""
	}
	car.Image = url
}

func (s *CarService) presignAll(ctx context.Context, cars []domain.Car) []domain.Car {
	for i := range cars {
		s.presign(ctx, &cars[i])
	}
	return cars
}

// dropImage removes an object no car references; failures only leave an
// orphan in the bucket.
func (s *CarService) dropImage(ctx context.Context, key string) {
	if err := s.images.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Error("Cannot remove orphaned car image", zap.String("key", key), zap.Error(err))
	}
}

func carError(kind error, id int64, err error) *domain.ServiceError {
	var se *domain.ServiceError
	switch {
	case errors.Is(err, repository.ErrCarNotFound):
		se = domain.NewError(kind, http.StatusNotFound, "Car with id %d does not exist", id)
	case errors.Is(err, repository.ErrCarConflict):
		se = domain.NewError(kind, http.StatusConflict, "Car conflicts with an existing one, err=%v", err)
	default:
		se = domain.NewError(kind, http.StatusServiceUnavailable, "Car storage unavailable, err=%v", err)
	}
	se.Err = err
	return se
}

func imageError(kind error, msg string, err error) *domain.ServiceError {
	se := domain.NewError(kind, http.StatusBadGateway, "%s, err=%v", msg, err)
	se.Err = err
	return se
}
