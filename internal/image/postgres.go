package image

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/openquiz/internal/errors"
)

// PostgresBlobs keeps images in the images table.
type PostgresBlobs struct {
	db *pgxpool.Pool
}

func NewPostgresBlobs(db *pgxpool.Pool) *PostgresBlobs {
	return &PostgresBlobs{db: db}
}

// Migrate creates the images table when it does not exist yet.
func (b *PostgresBlobs) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS images (
	image_key    TEXT PRIMARY KEY,
	content_type TEXT NOT NULL DEFAULT '',
	data         BYTEA NOT NULL,
	create_time  TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := b.db.Exec(ctx, stmt); err != nil {
		return fmt.Errorf("migrate images: %w", err)
	}
	return nil
}

func (b *PostgresBlobs) Put(ctx context.Context, img Image) error {
	const stmt = `INSERT INTO images (image_key, content_type, data) VALUES ($1, $2, $3);`

	_, err := b.db.Exec(ctx, stmt, img.Key, img.ContentType, img.Data)

	var pgErr *pgconn.PgError
	const codeUniqueViolation = "23505"
	if stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
		return errors.New(errors.CodeAlreadyExists,
			errors.WithMessagef("image already exists: key=%s", img.Key),
			errors.WithCause(err))
	}

	if err != nil {
		return errors.Unavailable(fmt.Errorf("insert image %s: %w", img.Key, err))
	}

	return nil
}

func (b *PostgresBlobs) Get(ctx context.Context, key string) (*Image, error) {
	const stmt = `SELECT content_type, data FROM images WHERE image_key = $1;`

	img := Image{Key: key}
	err := b.db.QueryRow(ctx, stmt, key).Scan(&img.ContentType, &img.Data)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, errors.NotFoundf("image not found: key=%s", key)
	}
	if err != nil {
		return nil, errors.Unavailable(fmt.Errorf("select image %s: %w", key, err))
	}

	return &img, nil
}
