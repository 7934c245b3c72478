package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/membermap/membermap/internal/core/domain"
)

// MemberRepo implements ports.MemberRepository with pgx.
type MemberRepo struct {
	db *DB
}

// NewMemberRepo creates a new MemberRepo.
func NewMemberRepo(db *DB) *MemberRepo {
	return &MemberRepo{db: db}
}

// seq is assigned on first insert and never rewritten, so List returns
// members in the order they were first imported, even within one batch.
const (
	listMembersSQL = `
		SELECT id, name, description, city, lat, lon, created_at
		FROM members
		ORDER BY seq
	`
	upsertMemberSQL = `
		INSERT INTO members (id, name, description, city, lat, lon)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, description = EXCLUDED.description,
		    city = EXCLUDED.city, lat = EXCLUDED.lat, lon = EXCLUDED.lon
	`
)

// List returns all members in import order.
func (r *MemberRepo) List(ctx context.Context) ([]domain.Member, error) {
	rows, err := r.db.Pool.Query(ctx, listMembersSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []domain.Member
	for rows.Next() {
		var m domain.Member
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Description, &m.City,
			&m.Location.Lat, &m.Location.Lon, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// GetByID returns a member by id.
func (r *MemberRepo) GetByID(ctx context.Context, id string) (*domain.Member, error) {
	var m domain.Member
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, name, description, city, lat, lon, created_at
		FROM members WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Name, &m.Description, &m.City,
		&m.Location.Lat, &m.Location.Lon, &m.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("member %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertBatch inserts many members using pgx.Batch. Statements run in
// slice order; a member already present keeps its original position.
func (r *MemberRepo) UpsertBatch(ctx context.Context, members []domain.Member) error {
	batch := &pgx.Batch{}
	for _, m := range members {
		batch.Queue(upsertMemberSQL, m.ID, m.Name, m.Description, m.City, m.Location.Lat, m.Location.Lon)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range members {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}
