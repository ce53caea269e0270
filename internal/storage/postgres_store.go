package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/example/ecoride/internal/apperr"
	"github.com/example/ecoride/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromDB wraps an already opened handle.
func NewPostgresStoreFromDB(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) Close() error { return p.db.Close() }

func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

// Migrate applies the schema and seeds the location directory.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	for _, l := range SeedLocations {
		if _, err := p.db.ExecContext(ctx,
			`INSERT INTO locations (id, name, lat, lng, kind) VALUES ($1, $2, $3, $4, $5) ON CONFLICT (id) DO NOTHING`,
			l.ID, l.Name, l.Lat, l.Lng, string(l.Kind)); err != nil {
			return fmt.Errorf("seed location %q: %w", l.Name, err)
		}
	}
	if _, err := p.db.ExecContext(ctx,
		`SELECT setval(pg_get_serial_sequence('locations', 'id'), (SELECT MAX(id) FROM locations))`); err != nil {
		return fmt.Errorf("advance location sequence: %w", err)
	}
	return nil
}

// storageErr converts driver errors into the shared kinds.
func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, op, err)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return apperr.Wrap(apperr.KindConflict, op, err)
		case foreignKeyViolation:
			return &apperr.Error{Kind: apperr.KindInvalidInput, Op: op, Msg: "references an unknown record", Err: err}
		}
	}
	return apperr.Wrap(apperr.KindStorageFailure, op, err)
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withinTx runs fn in a transaction, rolling back on error or panic.
func (p *PostgresStore) withinTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op+".begin", err)
	}
	defer func() {
		if rec := recover(); rec != nil {
			_ = tx.Rollback()
			panic(rec)
		}
	}()
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op+".commit", err)
	}
	return nil
}

// --- locations ---

const locationCols = `id, name, lat, lng, kind`

func scanLocation(row interface{ Scan(...any) error }) (models.Location, error) {
	var l models.Location
	var kind string
	if err := row.Scan(&l.ID, &l.Name, &l.Lat, &l.Lng, &kind); err != nil {
		return l, err
	}
	l.Kind = models.LocationKind(kind)
	return l, nil
}

func (p *PostgresStore) ListLocations(ctx context.Context) ([]models.Location, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+locationCols+` FROM locations ORDER BY id`)
	if err != nil {
		return nil, storageErr("locations.list", err)
	}
	defer rows.Close()
	out := make([]models.Location, 0)
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, storageErr("locations.list", err)
		}
		out = append(out, l)
	}
	return out, storageErr("locations.list", rows.Err())
}

func (p *PostgresStore) GetLocation(ctx context.Context, id int64) (models.Location, error) {
	l, err := scanLocation(p.db.QueryRowContext(ctx, `SELECT `+locationCols+` FROM locations WHERE id = $1`, id))
	return l, storageErr("locations.get", err)
}

func (p *PostgresStore) DemoLocation(ctx context.Context) (models.Location, error) {
	l, err := scanLocation(p.db.QueryRowContext(ctx,
		`SELECT `+locationCols+` FROM locations WHERE kind = 'demo' ORDER BY id LIMIT 1`))
	return l, storageErr("locations.demo", err)
}

// --- sensors ---

const readingCols = `id, location_id, aqi, vehicle_count, recorded_at`

func scanReadings(rows *sql.Rows) ([]models.SensorReading, error) {
	defer rows.Close()
	out := make([]models.SensorReading, 0)
	for rows.Next() {
		var r models.SensorReading
		if err := rows.Scan(&r.ID, &r.LocationID, &r.AQI, &r.VehicleCount, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (p *PostgresStore) AppendReading(ctx context.Context, r *models.SensorReading) error {
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO sensor_readings (location_id, aqi, vehicle_count, recorded_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		r.LocationID, r.AQI, r.VehicleCount, r.Timestamp).Scan(&r.ID)
	return storageErr("sensors.append", err)
}

func (p *PostgresStore) LatestReading(ctx context.Context, locationID int64) (models.SensorReading, error) {
	var r models.SensorReading
	err := p.db.QueryRowContext(ctx,
		`SELECT `+readingCols+` FROM sensor_readings WHERE location_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT 1`,
		locationID).Scan(&r.ID, &r.LocationID, &r.AQI, &r.VehicleCount, &r.Timestamp)
	return r, storageErr("sensors.latest", err)
}

func (p *PostgresStore) RecentReadings(ctx context.Context, locationID int64, limit int) ([]models.SensorReading, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if locationID == 0 {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+readingCols+` FROM sensor_readings ORDER BY recorded_at DESC, id DESC LIMIT $1`, limit)
	} else {
		rows, err = p.db.QueryContext(ctx,
			`SELECT `+readingCols+` FROM sensor_readings WHERE location_id = $1 ORDER BY recorded_at DESC, id DESC LIMIT $2`,
			locationID, limit)
	}
	if err != nil {
		return nil, storageErr("sensors.recent", err)
	}
	out, err := scanReadings(rows)
	return out, storageErr("sensors.recent", err)
}

func (p *PostgresStore) ReadingsBetween(ctx context.Context, locationID int64, from, to time.Time) ([]models.SensorReading, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+readingCols+` FROM sensor_readings
		 WHERE location_id = $1 AND recorded_at BETWEEN $2 AND $3
		 ORDER BY recorded_at DESC, id DESC`, locationID, from, to)
	if err != nil {
		return nil, storageErr("sensors.window", err)
	}
	out, err := scanReadings(rows)
	return out, storageErr("sensors.window", err)
}

// --- rides ---

const rideCols = `id, owner, src_id, dst_id, capacity, departure_time, status`

func scanRide(row interface{ Scan(...any) error }, extra ...any) (models.Ride, error) {
	var r models.Ride
	var status string
	dest := append([]any{&r.ID, &r.Owner, &r.SrcID, &r.DstID, &r.Capacity, &r.DepartureTime, &status}, extra...)
	if err := row.Scan(dest...); err != nil {
		return r, err
	}
	r.Status = models.RideStatus(status)
	return r, nil
}

func (p *PostgresStore) CreateRide(ctx context.Context, r *models.Ride) error {
	if r.Status == "" {
		r.Status = models.RideActive
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO rides (owner, src_id, dst_id, capacity, departure_time, status) VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		r.Owner, r.SrcID, r.DstID, r.Capacity, r.DepartureTime, string(r.Status)).Scan(&r.ID)
	return storageErr("rides.create", err)
}

func (p *PostgresStore) GetRide(ctx context.Context, id int64) (models.Ride, error) {
	return getRide(ctx, p.db, id)
}

func getRide(ctx context.Context, q queryer, id int64) (models.Ride, error) {
	r, err := scanRide(q.QueryRowContext(ctx, `SELECT `+rideCols+` FROM rides WHERE id = $1`, id))
	return r, storageErr("rides.get", err)
}

func (p *PostgresStore) ListOpenRides(ctx context.Context, srcID, dstID int64) ([]models.RideListing, error) {
	var (
		where = []string{"r.status = 'active'", "r.capacity > 0"}
		args  []any
	)
	if srcID != 0 {
		args = append(args, srcID)
		where = append(where, fmt.Sprintf("r.src_id = $%d", len(args)))
	}
	if dstID != 0 {
		args = append(args, dstID)
		where = append(where, fmt.Sprintf("r.dst_id = $%d", len(args)))
	}
	query := `SELECT r.id, r.owner, r.src_id, r.dst_id, r.capacity, r.departure_time, r.status, l1.name, l2.name
		FROM rides r
		JOIN locations l1 ON r.src_id = l1.id
		JOIN locations l2 ON r.dst_id = l2.id
		WHERE ` + strings.Join(where, " AND ") + ` ORDER BY r.id`
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("rides.list_open", err)
	}
	defer rows.Close()
	out := make([]models.RideListing, 0)
	for rows.Next() {
		var l models.RideListing
		r, err := scanRide(rows, &l.SrcName, &l.DstName)
		if err != nil {
			return nil, storageErr("rides.list_open", err)
		}
		l.Ride = r
		out = append(out, l)
	}
	return out, storageErr("rides.list_open", rows.Err())
}

func (p *PostgresStore) ListBookings(ctx context.Context, rideID int64) ([]models.Booking, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, ride_id, user_id, created_at FROM bookings WHERE ride_id = $1 ORDER BY id`, rideID)
	if err != nil {
		return nil, storageErr("bookings.list", err)
	}
	defer rows.Close()
	out := make([]models.Booking, 0)
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.ID, &b.RideID, &b.UserID, &b.Timestamp); err != nil {
			return nil, storageErr("bookings.list", err)
		}
		out = append(out, b)
	}
	return out, storageErr("bookings.list", rows.Err())
}

// WithinRide runs fn in one transaction. TakeSeat's conditional UPDATE takes
// the ride's row lock, so a concurrent scope on the same ride waits for this
// one to commit and then re-evaluates the seat condition.
func (p *PostgresStore) WithinRide(ctx context.Context, rideID int64, fn func(tx RideTx) error) error {
	return p.withinTx(ctx, "rides.tx", func(tx *sql.Tx) error {
		return fn(&pgRideTx{tx: tx})
	})
}

type pgRideTx struct {
	tx *sql.Tx
}

func (t *pgRideTx) BookingExists(ctx context.Context, rideID, userID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE ride_id = $1 AND user_id = $2)`, rideID, userID).Scan(&exists)
	return exists, storageErr("bookings.exists", err)
}

func (t *pgRideTx) GetRide(ctx context.Context, rideID int64) (models.Ride, error) {
	return getRide(ctx, t.tx, rideID)
}

func (t *pgRideTx) TakeSeat(ctx context.Context, rideID int64) (models.Ride, bool, error) {
	r, err := scanRide(t.tx.QueryRowContext(ctx,
		`UPDATE rides
		 SET capacity = capacity - 1,
		     status = CASE WHEN capacity - 1 = 0 THEN 'full' ELSE status END
		 WHERE id = $1 AND capacity > 0 AND status = 'active'
		 RETURNING `+rideCols, rideID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Ride{}, false, nil
	}
	if err != nil {
		return models.Ride{}, false, storageErr("rides.take_seat", err)
	}
	return r, true, nil
}

func (t *pgRideTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	if b.Timestamp.IsZero() {
		b.Timestamp = time.Now().UTC()
	}
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO bookings (ride_id, user_id, created_at) VALUES ($1, $2, $3) RETURNING id`,
		b.RideID, b.UserID, b.Timestamp).Scan(&b.ID)
	return storageErr("bookings.insert", err)
}

// --- violations ---

const violationCols = `id, vehicle_id, reason, amount, status, created_at`

func scanViolation(row interface{ Scan(...any) error }) (models.Violation, error) {
	var v models.Violation
	var status string
	if err := row.Scan(&v.ID, &v.VehicleID, &v.Reason, &v.Amount, &status, &v.Timestamp); err != nil {
		return v, err
	}
	v.Status = models.ViolationStatus(status)
	return v, nil
}

func (p *PostgresStore) ListViolations(ctx context.Context, vehicleID string) ([]models.Violation, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+violationCols+` FROM violations WHERE vehicle_id = $1 ORDER BY id`, vehicleID)
	if err != nil {
		return nil, storageErr("violations.list", err)
	}
	defer rows.Close()
	out := make([]models.Violation, 0)
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, storageErr("violations.list", err)
		}
		out = append(out, v)
	}
	return out, storageErr("violations.list", rows.Err())
}

func (p *PostgresStore) GetViolation(ctx context.Context, id int64) (models.Violation, error) {
	v, err := scanViolation(p.db.QueryRowContext(ctx, `SELECT `+violationCols+` FROM violations WHERE id = $1`, id))
	return v, storageErr("violations.get", err)
}

// WithinVehicle takes a transaction-scoped advisory lock on the vehicle id,
// so count-then-insert sequences for one vehicle run one at a time.
func (p *PostgresStore) WithinVehicle(ctx context.Context, vehicleID string, fn func(tx ViolationTx) error) error {
	return p.withinTx(ctx, "violations.tx", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, vehicleID); err != nil {
			return storageErr("violations.lock", err)
		}
		return fn(&pgViolationTx{tx: tx})
	})
}

type pgViolationTx struct {
	tx *sql.Tx
}

func (t *pgViolationTx) CountViolations(ctx context.Context, vehicleID string) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM violations WHERE vehicle_id = $1`, vehicleID).Scan(&n)
	return n, storageErr("violations.count", err)
}

func (t *pgViolationTx) InsertViolation(ctx context.Context, v *models.Violation) error {
	if v.Timestamp.IsZero() {
		v.Timestamp = time.Now().UTC()
	}
	if v.Status == "" {
		v.Status = models.ViolationPending
	}
	err := t.tx.QueryRowContext(ctx,
		`INSERT INTO violations (vehicle_id, reason, amount, status, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		v.VehicleID, v.Reason, v.Amount, string(v.Status), v.Timestamp).Scan(&v.ID)
	return storageErr("violations.insert", err)
}

// --- users ---

func (p *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.Role == "" {
		u.Role = "user"
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password_hash, role, has_car) VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Username, u.PasswordHash, u.Role, u.HasCar).Scan(&u.ID)
	return storageErr("users.create", err)
}

func (p *PostgresStore) UserByUsername(ctx context.Context, username string) (models.User, error) {
	return p.getUser(ctx, "users.by_username", `WHERE lower(username) = lower($1)`, username)
}

func (p *PostgresStore) GetUser(ctx context.Context, id int64) (models.User, error) {
	return p.getUser(ctx, "users.get", `WHERE id = $1`, id)
}

func (p *PostgresStore) getUser(ctx context.Context, op, where string, arg any) (models.User, error) {
	var u models.User
	err := p.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, has_car FROM users `+where, arg).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.HasCar)
	return u, storageErr(op, err)
}

// --- messages ---

func (p *PostgresStore) AppendMessage(ctx context.Context, m *models.Message) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO messages (ride_id, user_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		m.RideID, m.UserID, m.Content, m.Timestamp).Scan(&m.ID)
	return storageErr("messages.append", err)
}

func (p *PostgresStore) ListMessages(ctx context.Context, rideID int64) ([]models.Message, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT m.id, m.ride_id, m.user_id, COALESCE(u.username, ''), m.content, m.created_at
		 FROM messages m LEFT JOIN users u ON m.user_id = u.id
		 WHERE m.ride_id = $1 ORDER BY m.created_at ASC, m.id ASC`, rideID)
	if err != nil {
		return nil, storageErr("messages.list", err)
	}
	defer rows.Close()
	out := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.RideID, &m.UserID, &m.Username, &m.Content, &m.Timestamp); err != nil {
			return nil, storageErr("messages.list", err)
		}
		out = append(out, m)
	}
	return out, storageErr("messages.list", rows.Err())
}

// --- safety alerts ---

func (p *PostgresStore) AppendAlert(ctx context.Context, a *models.SafetyAlert) error {
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = "triggered"
	}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO safety_alerts (ride_id, user_id, latitude, longitude, keywords_detected, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		a.RideID, a.UserID, a.Latitude, a.Longitude, a.KeywordsDetected, a.Status, a.Timestamp).Scan(&a.ID)
	return storageErr("alerts.append", err)
}

func (p *PostgresStore) ListAlerts(ctx context.Context, rideID, userID int64, limit int) ([]models.SafetyAlert, error) {
	var (
		where = []string{"1=1"}
		args  []any
	)
	if rideID != 0 {
		args = append(args, rideID)
		where = append(where, fmt.Sprintf("sa.ride_id = $%d", len(args)))
	}
	if userID != 0 {
		args = append(args, userID)
		where = append(where, fmt.Sprintf("sa.user_id = $%d", len(args)))
	}
	args = append(args, limit)
	query := `SELECT sa.id, COALESCE(sa.ride_id, 0), sa.user_id, COALESCE(u.username, ''), sa.latitude, sa.longitude,
		sa.keywords_detected, sa.status, sa.created_at
		FROM safety_alerts sa LEFT JOIN users u ON sa.user_id = u.id
		WHERE ` + strings.Join(where, " AND ") + fmt.Sprintf(` ORDER BY sa.created_at DESC, sa.id DESC LIMIT $%d`, len(args))
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("alerts.list", err)
	}
	defer rows.Close()
	out := make([]models.SafetyAlert, 0)
	for rows.Next() {
		var a models.SafetyAlert
		if err := rows.Scan(&a.ID, &a.RideID, &a.UserID, &a.Username, &a.Latitude, &a.Longitude,
			&a.KeywordsDetected, &a.Status, &a.Timestamp); err != nil {
			return nil, storageErr("alerts.list", err)
		}
		out = append(out, a)
	}
	return out, storageErr("alerts.list", rows.Err())
}
