package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/SvetlanaSumets11/CarRental/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrCarNotFound = errors.New("car not found")
	ErrCarConflict = errors.New("car write conflict")
)

// StatusConflictError lists the cars that were missing or not in the
// expected status during a conditional status update.
type StatusConflictError struct {
	Expected domain.CarStatus
	CarIDs   []int64
}

func (e *StatusConflictError) Error() string {
	return fmt.Sprintf("cars %v are not %s", e.CarIDs, e.Expected)
}

const carColumns = `id, number, brand, year, status, description, transmission, fuel_type,
	color, category, engine_capacity, station_id, cost_per_hour, image, created_at`

const schema = `
CREATE TABLE IF NOT EXISTS cars (
	id SERIAL PRIMARY KEY,
	number VARCHAR(16) NOT NULL UNIQUE,
	brand VARCHAR(32) NOT NULL,
	year INTEGER NOT NULL CHECK (year >= 1900 AND year <= EXTRACT(YEAR FROM NOW())),
	status VARCHAR(16) NOT NULL DEFAULT 'free' CHECK (status IN ('free', 'ordered', 'repaired')),
	description VARCHAR(256),
	transmission VARCHAR(32) NOT NULL,
	fuel_type VARCHAR(32) NOT NULL,
	color VARCHAR(32) NOT NULL,
	category VARCHAR(32) NOT NULL,
	engine_capacity DOUBLE PRECISION NOT NULL CHECK (engine_capacity > 0),
	station_id BIGINT NOT NULL,
	cost_per_hour DOUBLE PRECISION NOT NULL CHECK (cost_per_hour > 0),
	image VARCHAR(256) NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE cars ADD COLUMN IF NOT EXISTS image VARCHAR(256) NOT NULL DEFAULT '';`

// PgxPool is the part of *pgxpool.Pool the repository needs.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type CarRepository struct {
	pool PgxPool
}

// NewPostgresPool connects and pings the database.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewCarRepository(pool PgxPool) *CarRepository {
	return &CarRepository{pool: pool}
}

func (r *CarRepository) Migrate(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func scanCar(row pgx.Row) (domain.Car, error) {
	var c domain.Car
	err := row.Scan(&c.ID, &c.Number, &c.Brand, &c.Year, &c.Status, &c.Description, &c.Transmission,
		&c.FuelType, &c.Color, &c.Category, &c.EngineCapacity, &c.StationID, &c.CostPerHour, &c.Image, &c.CreatedAt)
	return c, err
}

func collectCars(rows pgx.Rows) ([]domain.Car, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Car, error) {
		return scanCar(row)
	})
}

func (r *CarRepository) GetByID(ctx context.Context, id int64) (*domain.Car, error) {
	car, err := scanCar(r.pool.QueryRow(ctx, `SELECT `+carColumns+` FROM cars WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		return nil, fmt.Errorf("get car error: %w", err)
	}
	return &car, nil
}

func (r *CarRepository) List(ctx context.Context) ([]domain.Car, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+carColumns+` FROM cars ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list cars error: %w", err)
	}
	return collectCars(rows)
}

// GetByIDs returns the existing cars among ids; unknown ids are skipped.
func (r *CarRepository) GetByIDs(ctx context.Context, ids []int64) ([]domain.Car, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+carColumns+` FROM cars WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get cars error: %w", err)
	}
	return collectCars(rows)
}

// Create inserts a car; image is the object key of its photo.
func (r *CarRepository) Create(ctx context.Context, req domain.CarRequest, image string) (*domain.Car, error) {
	query := `INSERT INTO cars (number, brand, year, status, description, transmission, fuel_type,
		color, category, engine_capacity, station_id, cost_per_hour, image)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	RETURNING ` + carColumns

	car, err := scanCar(r.pool.QueryRow(ctx, query, req.Number, req.Brand, req.Year, req.Status, req.Description,
		req.Transmission, req.FuelType, req.Color, req.Category, req.EngineCapacity, req.StationID, req.CostPerHour, image))
	if err != nil {
		if isIntegrityViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrCarConflict, err)
		}
		return nil, fmt.Errorf("create car error: %w", err)
	}
	return &car, nil
}

func (r *CarRepository) Update(ctx context.Context, id int64, req domain.CarRequest, image string) (*domain.Car, error) {
	query := `UPDATE cars SET number = $2, brand = $3, year = $4, status = $5, description = $6,
		transmission = $7, fuel_type = $8, color = $9, category = $10, engine_capacity = $11,
		station_id = $12, cost_per_hour = $13, image = $14
	WHERE id = $1
	RETURNING ` + carColumns

	car, err := scanCar(r.pool.QueryRow(ctx, query, id, req.Number, req.Brand, req.Year, req.Status, req.Description,
		req.Transmission, req.FuelType, req.Color, req.Category, req.EngineCapacity, req.StationID, req.CostPerHour, image))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCarNotFound
		}
		if isIntegrityViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrCarConflict, err)
		}
		return nil, fmt.Errorf("update car error: %w", err)
	}
	return &car, nil
}

func (r *CarRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete car error: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCarNotFound
	}
	return nil
}

// UpdateStatus sets status on every car in ids within one transaction. With a
// non-empty expected status the rows are locked first and the whole update is
// rejected with *StatusConflictError unless every car exists and has it.
func (r *CarRepository) UpdateStatus(ctx context.Context, ids []int64, status, expected domain.CarStatus) ([]domain.Car, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if expected != "" {
		rows, err := tx.Query(ctx, `SELECT id, status FROM cars WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
		if err != nil {
			return nil, fmt.Errorf("lock cars error: %w", err)
		}
		current := make(map[int64]domain.CarStatus, len(ids))
		var (
			id int64
			st domain.CarStatus
		)
		_, err = pgx.ForEachRow(rows, []any{&id, &st}, func() error {
			current[id] = st
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("lock cars error: %w", err)
		}

		var mismatched []int64
		for _, id := range ids {
			if s, ok := current[id]; !ok || s != expected {
				mismatched = append(mismatched, id)
			}
		}
		if len(mismatched) > 0 {
			return nil, &StatusConflictError{Expected: expected, CarIDs: mismatched}
		}
	}

	rows, err := tx.Query(ctx, `UPDATE cars SET status = $2 WHERE id = ANY($1) RETURNING `+carColumns, ids, status)
	var cars []domain.Car
	if err == nil {
		cars, err = collectCars(rows)
	}
	if err != nil {
		if isIntegrityViolation(err) {
			return nil, fmt.Errorf("%w: %v", ErrCarConflict, err)
		}
		return nil, fmt.Errorf("update status error: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cars, nil
}

// isIntegrityViolation reports unique (23505) and check (23514) violations.
func isIntegrityViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" || pgErr.Code == "23514"
	}
	return false
}
