package store

import (
	"context"
	"embed"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/vehicle-scraper/internal/db"
	"github.com/sells-group/vehicle-scraper/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// uniqueViolation is the SQLSTATE Postgres reports for a duplicate key.
const uniqueViolation = "23505"

const (
	insertVehicleSQL = `INSERT INTO vehicles (vin, make, model, version, year)
		VALUES ($1, $2, $3, $4, $5)`

	insertListingSQL = `INSERT INTO vehicle_listings
		(created_on, vin, source, owner, zip, remote, mileage, price, title)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateVehicleSQL = `UPDATE vehicles SET
		model = COALESCE(NULLIF($2, ''), model),
		drivetrain = $3,
		color = $4,
		estimated_value = $5,
		owner = $6,
		distance = $7,
		year = COALESCE(NULLIF($8, 0), year),
		model_validated_on = now()
		WHERE vin = $1`

	activeVehiclesSQL = `SELECT v.vin, v.make, v.model, v.year,
			array_agg(DISTINCT l.source ORDER BY l.source) AS active_sources
		FROM vehicles v
		JOIN vehicle_listings l ON l.vin = v.vin
		GROUP BY v.vin, v.make, v.model, v.year
		HAVING cardinality($1::text[]) = 0 OR array_agg(DISTINCT l.source) && $1::text[]
		ORDER BY v.vin
		LIMIT NULLIF($2, 0)`
)

// PostgresStore implements Store on a caller-owned connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgresStore wraps pool. The caller keeps ownership and closes it.
func NewPostgresStore(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded schema migrations on one pooled connection.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: acquire migration connection")
	}
	defer conn.Release()

	return eris.Wrap(db.Migrate(ctx, conn, migrationsFS, "migrations"), "postgres: migrate")
}

// InsertVehicle inserts a vehicle row. An existing VIN yields ErrDuplicate.
func (s *PostgresStore) InsertVehicle(ctx context.Context, v model.Vehicle) error {
	_, err := s.pool.Exec(ctx, insertVehicleSQL, v.VIN, v.Make, v.Model, nullString(v.Version), v.Year)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "vehicle %s", v.VIN)
		}
		return eris.Wrapf(err, "postgres: insert vehicle %s", v.VIN)
	}
	return nil
}

// InsertListing inserts a listing row. A listing already recorded for the
// same vin, source, and scrape time yields ErrDuplicate.
func (s *PostgresStore) InsertListing(ctx context.Context, l model.Listing) error {
	_, err := s.pool.Exec(ctx, insertListingSQL,
		l.ScrapedAt, l.VIN, l.Source.String(),
		nullString(l.Owner), nullString(l.Zip), l.Remote,
		l.Mileage, l.Price,
		nullString(l.Title),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return eris.Wrapf(ErrDuplicate, "listing %s/%s", l.VIN, l.Source)
		}
		return eris.Wrapf(err, "postgres: insert listing %s", l.VIN)
	}
	return nil
}

// UpdateVehicle applies augmentation fields and stamps model_validated_on.
// An empty model or zero year leaves the stored value unchanged.
func (s *PostgresStore) UpdateVehicle(ctx context.Context, vin string, u model.VehicleUpdate) error {
	tag, err := s.pool.Exec(ctx, updateVehicleSQL,
		vin, u.Model,
		nullString(u.Drivetrain), nullString(u.Color),
		u.EstimatedValue, nullString(u.Owner), u.Distance,
		u.Year,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update vehicle %s", vin)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrVehicleNotFound, "vin %s", vin)
	}
	return nil
}

// ActiveVehicles lists stored vehicles with the distinct sources they have
// been listed on.
func (s *PostgresStore) ActiveVehicles(ctx context.Context, filter VehicleFilter) ([]model.VehicleRef, error) {
	sources := make([]string, len(filter.Sources))
	for i, src := range filter.Sources {
		sources[i] = src.String()
	}

	rows, err := s.pool.Query(ctx, activeVehiclesSQL, sources, filter.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query active vehicles")
	}
	defer rows.Close()

	var out []model.VehicleRef
	for rows.Next() {
		var ref model.VehicleRef
		var active []string
		if err := rows.Scan(&ref.VIN, &ref.Make, &ref.Model, &ref.Year, &active); err != nil {
			return nil, eris.Wrap(err, "postgres: scan active vehicle")
		}
		for _, a := range active {
			ref.ActiveSources = append(ref.ActiveSources, model.Source(a))
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate active vehicles")
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
