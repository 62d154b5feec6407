package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mvidal/flight-emissions-back/internal/domain"
)

// NewPostgresPool opens and verifies a pgx connection pool shared by the
// postgres-backed repositories.
func NewPostgresPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pg pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping pg: %w", err)
	}
	return pool, nil
}

type PostgresCalculationsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresCalculationsRepository(pool *pgxpool.Pool) *PostgresCalculationsRepository {
	return &PostgresCalculationsRepository{pool: pool}
}

func (r *PostgresCalculationsRepository) BeginBatch(ctx context.Context) (CalculationBatch, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin calculation batch: %w", err)
	}
	return &postgresCalculationBatch{pool: r.pool, tx: tx}, nil
}

func (r *PostgresCalculationsRepository) GetCalculation(ctx context.Context, id int64) (*domain.Calculation, error) {
	var (
		calculation   domain.Calculation
		departureID   *int64
		destinationID *int64
		cabinClass    string
		createdAt     time.Time
	)

	err := r.pool.QueryRow(ctx, `
		SELECT id, departure_airport_id, destination_airport_id, passengers, round_trip, cabin_class,
			distance_km, distance_miles, fuel_burn_kg, total_co2_kg, co2_per_passenger_kg, co2_tonnes,
			calculation_method, flight_info, created_at
		FROM flight_calculations
		WHERE id = $1
	`, id).Scan(
		&calculation.ID,
		&departureID,
		&destinationID,
		&calculation.Passengers,
		&calculation.RoundTrip,
		&cabinClass,
		&calculation.DistanceKM,
		&calculation.DistanceMiles,
		&calculation.FuelBurnKG,
		&calculation.TotalCO2KG,
		&calculation.CO2PerPassengerKG,
		&calculation.CO2Tonnes,
		&calculation.CalculationMethod,
		&calculation.FlightInfo,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query calculation: %w", err)
	}

	if departureID != nil {
		calculation.DepartureAirportID = *departureID
	}
	if destinationID != nil {
		calculation.DestinationAirportID = *destinationID
	}
	calculation.CabinClass = domain.CabinClass(cabinClass)
	calculation.CreatedAt = createdAt
	return &calculation, nil
}

// postgresCalculationBatch keeps one open transaction at a time; Commit and
// Rollback end the current transaction and the next Insert opens a fresh one.
type postgresCalculationBatch struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

func (b *postgresCalculationBatch) ensureTx(ctx context.Context) error {
	if b.tx != nil {
		return nil
	}
	tx, err := b.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin calculation batch: %w", err)
	}
	b.tx = tx
	return nil
}

func (b *postgresCalculationBatch) Insert(ctx context.Context, calculation *domain.Calculation) error {
	if err := b.ensureTx(ctx); err != nil {
		return err
	}

	err := b.tx.QueryRow(ctx, `
		INSERT INTO flight_calculations (
			departure_airport_id,
			destination_airport_id,
			passengers,
			round_trip,
			cabin_class,
			distance_km,
			distance_miles,
			fuel_burn_kg,
			total_co2_kg,
			co2_per_passenger_kg,
			co2_tonnes,
			calculation_method,
			flight_info
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING id, created_at
	`,
		nullableID(calculation.DepartureAirportID),
		nullableID(calculation.DestinationAirportID),
		calculation.Passengers,
		calculation.RoundTrip,
		string(calculation.CabinClass),
		calculation.DistanceKM,
		calculation.DistanceMiles,
		calculation.FuelBurnKG,
		calculation.TotalCO2KG,
		calculation.CO2PerPassengerKG,
		calculation.CO2Tonnes,
		calculation.CalculationMethod,
		calculation.FlightInfo,
	).Scan(&calculation.ID, &calculation.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert calculation: %w", err)
	}
	return nil
}

func (b *postgresCalculationBatch) Commit(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Commit(ctx)
	b.tx = nil
	if err != nil {
		return fmt.Errorf("commit calculation batch: %w", err)
	}
	return nil
}

func (b *postgresCalculationBatch) Rollback(ctx context.Context) error {
	if b.tx == nil {
		return nil
	}
	err := b.tx.Rollback(ctx)
	b.tx = nil
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback calculation batch: %w", err)
	}
	return nil
}

func (b *postgresCalculationBatch) Close(ctx context.Context) {
	if b.tx == nil {
		return
	}
	_ = b.tx.Rollback(ctx)
	b.tx = nil
}

func nullableID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

type PostgresAirportsRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAirportsRepository(pool *pgxpool.Pool) *PostgresAirportsRepository {
	return &PostgresAirportsRepository{pool: pool}
}

func (r *PostgresAirportsRepository) LookupID(ctx context.Context, code string) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `SELECT id FROM airports WHERE iata_code = $1`, code).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("query airport: %w", err)
	}
	return id, nil
}
