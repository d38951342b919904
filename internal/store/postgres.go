package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/web3-frozen/kpi-dashboard/internal/kpi"
)

// ErrUserExists is returned when registering a taken username.
var ErrUserExists = errors.New("user already exists")

// ErrUserNotFound is returned when no user has the given username.
var ErrUserNotFound = errors.New("user not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{pool: pool}, nil
}

func (s *Store) Close() { s.pool.Close() }

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// --- Users ---

type User struct {
	ID           int64     `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash) VALUES ($1, $2)
		ON CONFLICT (username) DO NOTHING
		RETURNING id, username, password_hash, created_at`, username, passwordHash).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserExists
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, created_at FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// --- KPIs ---

const kpiColumns = `id, title, value, change, category, data, created_at, updated_at`

func scanKPI(row pgx.Row) (kpi.KPI, error) {
	var (
		k         kpi.KPI
		id        int64
		value     string
		category  string
		data      []byte
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &k.Title, &value, &k.Change, &category, &data, &createdAt, &updatedAt); err != nil {
		return kpi.KPI{}, err
	}
	k.ID = strconv.FormatInt(id, 10)
	k.Value = kpi.Value(value)
	k.Category = kpi.Category(category)
	k.CreatedAt = &createdAt
	k.UpdatedAt = &updatedAt
	if len(data) > 0 {
		if err := json.Unmarshal(data, &k.Data); err != nil {
			return kpi.KPI{}, fmt.Errorf("decode kpi %d data: %w", id, err)
		}
	}
	return k, nil
}

// parseID maps an identifier to its primary key. Non-numeric identifiers can
// never match a row, so they are reported as not found.
func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: %q", kpi.ErrNotFound, id)
	}
	return n, nil
}

func encodeData(points []kpi.DataPoint) ([]byte, error) {
	if points == nil {
		points = []kpi.DataPoint{}
	}
	return json.Marshal(points)
}

func (s *Store) ListKPIs(ctx context.Context) ([]kpi.KPI, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+kpiColumns+` FROM kpis ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpis []kpi.KPI
	for rows.Next() {
		k, err := scanKPI(rows)
		if err != nil {
			return nil, err
		}
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

func (s *Store) GetKPI(ctx context.Context, id string) (*kpi.KPI, error) {
	pk, err := parseID(id)
	if err != nil {
		return nil, err
	}
	k, err := scanKPI(s.pool.QueryRow(ctx, `SELECT `+kpiColumns+` FROM kpis WHERE id = $1`, pk))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", kpi.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) CreateKPI(ctx context.Context, d kpi.Draft) (*kpi.KPI, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	data, err := encodeData(d.Data)
	if err != nil {
		return nil, fmt.Errorf("encode data: %w", err)
	}
	k, err := scanKPI(s.pool.QueryRow(ctx, `
		INSERT INTO kpis (title, value, change, category, data)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING `+kpiColumns,
		d.Title, string(d.Value), *d.Change, string(d.Category), string(data)))
	if err != nil {
		return nil, mapConstraint(err)
	}
	return &k, nil
}

// UpdateKPI applies the non-nil fields of p and bumps updated_at.
func (s *Store) UpdateKPI(ctx context.Context, id string, p kpi.Patch) (*kpi.KPI, error) {
	pk, err := parseID(id)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	var (
		value, category, data *string
	)
	if p.Value != nil {
		v := string(*p.Value)
		value = &v
	}
	if p.Category != nil {
		c := string(*p.Category)
		category = &c
	}
	if p.Data != nil {
		b, err := encodeData(*p.Data)
		if err != nil {
			return nil, fmt.Errorf("encode data: %w", err)
		}
		d := string(b)
		data = &d
	}

	k, err := scanKPI(s.pool.QueryRow(ctx, `
		UPDATE kpis SET
			title = COALESCE($2, title),
			value = COALESCE($3, value),
			change = COALESCE($4, change),
			category = COALESCE($5, category),
			data = COALESCE($6::jsonb, data),
			updated_at = now()
		WHERE id = $1
		RETURNING `+kpiColumns,
		pk, p.Title, value, p.Change, category, data))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", kpi.ErrNotFound, id)
	}
	if err != nil {
		return nil, mapConstraint(err)
	}
	return &k, nil
}

func (s *Store) DeleteKPI(ctx context.Context, id string) error {
	pk, err := parseID(id)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM kpis WHERE id = $1`, pk)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", kpi.ErrNotFound, id)
	}
	return nil
}

// mapConstraint turns check/not-null violations into validation errors.
func mapConstraint(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23514", "23502": // check_violation, not_null_violation
			return fmt.Errorf("%w: %s", kpi.ErrValidation, pgErr.Message)
		}
	}
	return err
}
