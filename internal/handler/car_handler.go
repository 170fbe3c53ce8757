package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/SvetlanaSumets11/CarRental/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"go.uber.org/zap"
)

// Car writes accept either a JSON body or a multipart form whose carFormField
// holds the JSON document and imageFormField the photo.
const (
	carFormField   = "car"
	imageFormField = "image"
)

type CarHandler struct {
	carService *service.CarService
	logger     *zap.Logger
	now        func() time.Time
}

func NewCarHandler(carService *service.CarService, logger *zap.Logger) *CarHandler {
	return &CarHandler{
		carService: carService,
		logger:     logger,
		now:        time.Now,
	}
}

func (h *CarHandler) Register(r gin.IRouter) {
	r.GET("/cars", h.ListCars)
	r.POST("/cars", h.CreateCar)
	r.GET("/cars/:id", h.GetCar)
	r.PUT("/cars/:id", h.UpdateCar)
	r.PATCH("/cars/:id", h.PatchCar)
	r.DELETE("/cars/:id", h.DeleteCar)

	r.GET("/batch-cars", h.GetCarsByIDs)
	r.POST("/update-cars-status", h.UpdateCarsStatus)
}

func (h *CarHandler) ListCars(c *gin.Context) {
	cars, err := h.carService.ListCars(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "Failed to list cars", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(cars))
}

func (h *CarHandler) CreateCar(c *gin.Context) {
	req, image, ok := h.bindCar(c)
	if !ok {
		return
	}
	defer closeImage(image)

	car, err := h.carService.CreateCar(c.Request.Context(), req, image)
	if err != nil {
		writeError(c, h.logger, "Failed to create car", err)
		return
	}
	c.JSON(http.StatusCreated, car)
}

func (h *CarHandler) GetCar(c *gin.Context) {
	id, ok := carID(c)
	if !ok {
		return
	}

	car, err := h.carService.GetCar(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, "Failed to get car", err)
		return
	}
	c.JSON(http.StatusOK, car)
}

func (h *CarHandler) UpdateCar(c *gin.Context) {
	id, ok := carID(c)
	if !ok {
		return
	}
	req, image, ok := h.bindCar(c)
	if !ok {
		return
	}
	defer closeImage(image)

	car, err := h.carService.UpdateCar(c.Request.Context(), id, req, image)
	if err != nil {
		writeError(c, h.logger, "Failed to update car", err)
		return
	}
	c.JSON(http.StatusOK, car)
}

func (h *CarHandler) PatchCar(c *gin.Context) {
	id, ok := carID(c)
	if !ok {
		return
	}
	var patch domain.CarPatchRequest
	image, err := bindCarForm(c, &patch)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}
	defer closeImage(image)

	car, err := h.carService.PatchCar(c.Request.Context(), id, patch, image)
	if err != nil {
		writeError(c, h.logger, "Failed to update car", err)
		return
	}
	c.JSON(http.StatusOK, car)
}

func (h *CarHandler) DeleteCar(c *gin.Context) {
	id, ok := carID(c)
	if !ok {
		return
	}

	if err := h.carService.DeleteCar(c.Request.Context(), id); err != nil {
		writeError(c, h.logger, "Failed to delete car", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetCarsByIDs serves GET /batch-cars?car_ids=1&car_ids=2.
func (h *CarHandler) GetCarsByIDs(c *gin.Context) {
	raw := c.QueryArray("car_ids")
	if len(raw) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "car_ids is required"})
		return
	}
	ids := make([]int64, 0, len(raw))
	for _, v := range raw {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id " + strconv.Quote(v)})
			return
		}
		ids = append(ids, id)
	}

	cars, err := h.carService.GetCarsByIDs(c.Request.Context(), ids)
	if err != nil {
		writeError(c, h.logger, "Failed to get cars", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(cars))
}

func (h *CarHandler) UpdateCarsStatus(c *gin.Context) {
	var req domain.StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	cars, err := h.carService.UpdateCarsStatus(c.Request.Context(), req)
	if err != nil {
		writeError(c, h.logger, "Failed to update cars status", err)
		return
	}
	c.JSON(http.StatusOK, nonNil(cars))
}

func (h *CarHandler) bindCar(c *gin.Context) (domain.CarRequest, *domain.ImageUpload, bool) {
	var req domain.CarRequest
	image, err := bindCarForm(c, &req)
	if err != nil {
		h.logger.Warn("Invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return req, nil, false
	}
	if err := req.Validate(h.now()); err != nil {
		closeImage(image)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid car", "details": err.Error()})
		return req, nil, false
	}
	return req, image, true
}

// bindCarForm decodes the car document into dst and opens the attached
// image, if any. The caller closes the returned image.
func bindCarForm(c *gin.Context, dst any) (*domain.ImageUpload, error) {
	if c.ContentType() != binding.MIMEMultipartPOSTForm {
		return nil, c.ShouldBindJSON(dst)
	}

	doc, ok := c.GetPostForm(carFormField)
	if !ok {
		return nil, errors.New("multipart form has no car field")
	}
	if err := json.Unmarshal([]byte(doc), dst); err != nil {
		return nil, err
	}
	if err := binding.Validator.ValidateStruct(dst); err != nil {
		return nil, err
	}

	header, err := c.FormFile(imageFormField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &domain.ImageUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, nil
}

func closeImage(image *domain.ImageUpload) {
	if image == nil {
		return
	}
	if closer, ok := image.Body.(io.Closer); ok {
		_ = closer.Close()
	}
}

func carID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid car id"})
		return 0, false
	}
	return id, true
}

func nonNil(cars []domain.Car) []domain.Car {
	if cars == nil {
		return []domain.Car{}
	}
	return cars
}
