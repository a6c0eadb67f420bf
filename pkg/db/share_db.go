package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

const (
	CREATE_SHARE_TABLE = `CREATE TABLE IF NOT EXISTS shares(
		token VARCHAR(64) PRIMARY KEY,
		object_key VARCHAR(255) NOT NULL,
		url VARCHAR(1024) NOT NULL,
		content_type VARCHAR(64) NOT NULL,
		size BIGINT NOT NULL,
		status VARCHAR(32) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	);`
)

type ShareDatabase interface {
	CreateShare(ctx context.Context, rec *models.ShareRecord) error
	GetShare(ctx context.Context, token string) (*models.ShareRecord, error)
	MarkAnnounced(ctx context.Context, token string) error
}

type ShareDatabaseImpl struct {
	db *sqlx.DB
}

func NewShareDatabase(autoCreate bool, db *sqlx.DB) (*ShareDatabaseImpl, error) {
	if autoCreate {
		if _, err := db.Exec(CREATE_SHARE_TABLE); err != nil {
			return nil, fmt.Errorf("failed to create shares table: %w", err)
		}
	}
	return &ShareDatabaseImpl{db: db}, nil
}

func (r *ShareDatabaseImpl) CreateShare(ctx context.Context, rec *models.ShareRecord) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO shares(token, object_key, url, content_type, size, status, created_at)
		VALUES(:token, :object_key, :url, :content_type, :size, :status, :created_at)`, rec)
	if err != nil {
		return fmt.Errorf("failed to insert share %s: %w", rec.Token, err)
	}
	return nil
}

// GetShare returns share.ErrNotFound for an unknown token.
func (r *ShareDatabaseImpl) GetShare(ctx context.Context, token string) (*models.ShareRecord, error) {
	rec := &models.ShareRecord{}
	err := r.db.GetContext(ctx, rec,
		"SELECT token, object_key, url, content_type, size, status, created_at FROM shares WHERE token=$1", token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, share.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get share %s: %w", token, err)
	}
	return rec, nil
}

func (r *ShareDatabaseImpl) MarkAnnounced(ctx context.Context, token string) error {
	res, err := r.db.ExecContext(ctx, "UPDATE shares SET status=$1 WHERE token=$2", models.ShareAnnounced, token)
	if err != nil {
		return fmt.Errorf("failed to update share %s: %w", token, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return share.ErrNotFound
	}
	return nil
}
