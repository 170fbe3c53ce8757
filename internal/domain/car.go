package domain

import (
	"fmt"
	"io"
	"time"
)

type CarStatus string

const (
	CarStatusFree     CarStatus = "free"
	CarStatusOrdered  CarStatus = "ordered"
	CarStatusRepaired CarStatus = "repaired"
)

func (s CarStatus) Valid() bool {
	switch s {
	case CarStatusFree, CarStatusOrdered, CarStatusRepaired:
		return true
	}
	return false
}

type Car struct {
	ID             int64     `json:"id"`
	Number         string    `json:"number"`
	Brand          string    `json:"brand"`
	Year           int       `json:"year"`
	Status         CarStatus `json:"status"`
	Description    *string   `json:"description"`
	Transmission   string    `json:"transmission"`
	FuelType       string    `json:"fuel_type"`
	Color          string    `json:"color"`
	Category       string    `json:"category"`
	EngineCapacity float64   `json:"engine_capacity"`
	StationID      int64     `json:"station_id"`
	CostPerHour    float64   `json:"cost_per_hour"`
	Image          string    `json:"image"`
	CreatedAt      time.Time `json:"created_at"`
}

// ImageUpload is a car photo sent along with a create or update request.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var (
	Brands = set("Toyota", "Honda", "Ford", "BMW", "Mercedes-Benz", "Volkswagen", "Nissan",
		"Hyundai", "Audi", "Subaru", "Kia", "Tesla", "Mazda")
	Transmissions = set("Manual", "Automatic", "Automated Manual", "Hydrostatic")
	FuelTypes     = set("Gasoline", "Diesel", "Electric", "Hybrid", "Natural Gas", "Ethanol")
	Colors        = set("White", "Black", "Silver", "Gray", "Blue", "Brown", "Gold", "Bronze")
	Categories    = set("Economy", "Compact", "SUV", "Crossover", "Luxury", "Sports", "Convertible",
		"Minivan", "Pickup Truck")
)

func set(values ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(values))
	for _, v := range values {
		m[v] = struct{}{}
	}
	return m
}

// CarRequest is the body of car creation and full update requests.
type CarRequest struct {
	Number         string    `json:"number" binding:"required,max=16"`
	Brand          string    `json:"brand" binding:"required"`
	Year           int       `json:"year" binding:"required"`
	Status         CarStatus `json:"status" binding:"required"`
	Description    *string   `json:"description" binding:"omitempty,max=256"`
	Transmission   string    `json:"transmission" binding:"required"`
	FuelType       string    `json:"fuel_type" binding:"required"`
	Color          string    `json:"color" binding:"required"`
	Category       string    `json:"category" binding:"required"`
	EngineCapacity float64   `json:"engine_capacity" binding:"required,gt=0"`
	StationID      int64     `json:"station_id" binding:"required"`
	CostPerHour    float64   `json:"cost_per_hour" binding:"required,gt=0"`
}

func (r CarRequest) Validate(now time.Time) error {
	if r.Year < 1900 || r.Year > now.Year() {
		return fmt.Errorf("year must be between 1900 and %d", now.Year())
	}
	if !r.Status.Valid() {
		return fmt.Errorf("unknown car status %q", r.Status)
	}
	for _, f := range []struct {
		name, value string
		allowed     map[string]struct{}
	}{
		{"brand", r.Brand, Brands},
		{"transmission", r.Transmission, Transmissions},
		{"fuel_type", r.FuelType, FuelTypes},
		{"color", r.Color, Colors},
		{"category", r.Category, Categories},
	} {
		if _, ok := f.allowed[f.value]; !ok {
			return fmt.Errorf("unknown %s %q", f.name, f.value)
		}
	}
	if r.EngineCapacity <= 0 || r.CostPerHour <= 0 {
		return fmt.Errorf("engine_capacity and cost_per_hour must be positive")
	}
	return nil
}

// CarPatchRequest carries a partial car update; nil fields are left untouched.
type CarPatchRequest struct {
	Number         *string    `json:"number"`
	Brand          *string    `json:"brand"`
	Year           *int       `json:"year"`
	Status         *CarStatus `json:"status"`
	Description    *string    `json:"description"`
	Transmission   *string    `json:"transmission"`
	FuelType       *string    `json:"fuel_type"`
	Color          *string    `json:"color"`
	Category       *string    `json:"category"`
	EngineCapacity *float64   `json:"engine_capacity"`
	StationID      *int64     `json:"station_id"`
	CostPerHour    *float64   `json:"cost_per_hour"`
}

// Merge returns the full request obtained by laying the patch over car.
func (p CarPatchRequest) Merge(car Car) CarRequest {
	r := CarRequest{
		Number:         car.Number,
		Brand:          car.Brand,
		Year:           car.Year,
		Status:         car.Status,
		Description:    car.Description,
		Transmission:   car.Transmission,
		FuelType:       car.FuelType,
		Color:          car.Color,
		Category:       car.Category,
		EngineCapacity: car.EngineCapacity,
		StationID:      car.StationID,
		CostPerHour:    car.CostPerHour,
	}
	if p.Number != nil {
		r.Number = *p.Number
	}
	if p.Brand != nil {
		r.Brand = *p.Brand
	}
	if p.Year != nil {
		r.Year = *p.Year
	}
	if p.Status != nil {
		r.Status = *p.Status
	}
	if p.Description != nil {
		r.Description = p.Description
	}
	if p.Transmission != nil {
		r.Transmission = *p.Transmission
	}
	if p.FuelType != nil {
		r.FuelType = *p.FuelType
	}
	if p.Color != nil {
		r.Color = *p.Color
	}
	if p.Category != nil {
		r.Category = *p.Category
	}
	if p.EngineCapacity != nil {
		r.EngineCapacity = *p.EngineCapacity
	}
	if p.StationID != nil {
		r.StationID = *p.StationID
	}
	if p.CostPerHour != nil {
		r.CostPerHour = *p.CostPerHour
	}
	return r
}

// StatusUpdateRequest is the body of the batch status endpoint. When
// ExpectedStatus is set, the update only applies if every car currently has it.
type StatusUpdateRequest struct {
	CarIDs         []int64   `json:"car_ids" binding:"required,min=1"`
	Status         CarStatus `json:"status" binding:"required,oneof=free ordered repaired"`
	ExpectedStatus CarStatus `json:"expected_status,omitempty" binding:"omitempty,oneof=free ordered repaired"`
}
