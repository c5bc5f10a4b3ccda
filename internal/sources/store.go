package sources

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/pkg/query"
	"github.com/JaimeStill/curator/pkg/repository"
)

// Store persists sources. Find returns ErrNotFound for a missing id; Save
// and Delete return ErrNotFound when no row matched.
type Store interface {
	List(ctx context.Context, filters Filters) ([]Source, error)
	Find(ctx context.Context, id uuid.UUID) (*Source, error)
	Insert(ctx context.Context, s *Source) (*Source, error)
	Save(ctx context.Context, s *Source) (*Source, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// AppendUpload atomically appends u to the source's upload log.
	AppendUpload(ctx context.Context, id uuid.UUID, u Upload) error
}

type pgStore struct {
	db *sql.DB
}

// NewStore creates a PostgreSQL-backed Store.
func NewStore(db *sql.DB) Store {
	return &pgStore{db: db}
}

func (p *pgStore) List(ctx context.Context, filters Filters) ([]Source, error) {
	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	q, args := qb.Build()
	srcs, err := repository.QueryMany(ctx, p.db, q, args, scanSource)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	return srcs, nil
}

func (p *pgStore) Find(ctx context.Context, id uuid.UUID) (*Source, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	s, err := repository.QueryOne(ctx, p.db, q, args, scanSource)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &s, nil
}

func (p *pgStore) Insert(ctx context.Context, s *Source) (*Source, error) {
	args, err := sourceArgs(s)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO sources(id, name, origin, format, automation, notification_recipients, date_filter, uploads)
		VALUES ($1, $2, $3::jsonb, $4, $5::jsonb, $6::jsonb, $7::jsonb, $8::jsonb)
		RETURNING ` + returning

	saved, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Source, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSource)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &saved, nil
}

func (p *pgStore) Save(ctx context.Context, s *Source) (*Source, error) {
	args, err := sourceArgs(s)
	if err != nil {
		return nil, err
	}

	q := `
		UPDATE sources SET
			name = $2,
			origin = $3::jsonb,
			format = $4,
			automation = $5::jsonb,
			notification_recipients = $6::jsonb,
			date_filter = $7::jsonb,
			uploads = $8::jsonb,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + returning

	saved, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (Source, error) {
		return repository.QueryOne(ctx, tx, q, args, scanSource)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &saved, nil
}

func (p *pgStore) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM sources WHERE id = $1", id)
	})
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}

func (p *pgStore) AppendUpload(ctx context.Context, id uuid.UUID, u Upload) error {
	raw, err := json.Marshal([]Upload{u})
	if err != nil {
		return fmt.Errorf("encode upload: %w", err)
	}

	_, err = repository.WithTx(ctx, p.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(
			ctx, tx,
			"UPDATE sources SET uploads = uploads || $2::jsonb, updated_at = NOW() WHERE id = $1",
			id, string(raw),
		)
	})
	return repository.MapError(err, ErrNotFound, ErrDuplicate)
}
