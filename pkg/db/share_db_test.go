package db

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nedaZarei/CrystalBallFortunes/pkg/models"
	"github.com/nedaZarei/CrystalBallFortunes/pkg/share"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })
	return sqlx.NewDb(raw, "postgres"), mock
}

func TestNewShareDatabase_AutoCreate(t *testing.T) {
	dB, mock := newMock(t)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS shares")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := NewShareDatabase(true, dB)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewShareDatabase_NoAutoCreate(t *testing.T) {
	dB, mock := newMock(t)
	_, err := NewShareDatabase(false, dB)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateShare(t *testing.T) {
	dB, mock := newMock(t)
	store, err := NewShareDatabase(false, dB)
	require.NoError(t, err)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rec := &models.ShareRecord{
		Token:       "tok",
		ObjectKey:   "tok.jpg",
		URL:         "https://minio/fortunes/tok.jpg",
		ContentType: "image/jpeg",
		Size:        42,
		Status:      models.SharePublished,
		CreatedAt:   created,
	}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shares")).
		WithArgs("tok", "tok.jpg", "https://minio/fortunes/tok.jpg", "image/jpeg", int64(42), models.SharePublished, created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.CreateShare(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetShare(t *testing.T) {
	dB, mock := newMock(t)
	store, _ := NewShareDatabase(false, dB)

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"token", "object_key", "url", "content_type", "size", "status", "created_at"}).
		AddRow("tok", "tok.png", "https://minio/fortunes/tok.png", "image/png", 7, "published", created)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT token, object_key")).WithArgs("tok").WillReturnRows(rows)

	rec, err := store.GetShare(context.Background(), "tok")
	require.NoError(t, err)
	assert.Equal(t, "tok.png", rec.ObjectKey)
	assert.Equal(t, int64(7), rec.Size)
	assert.Equal(t, models.SharePublished, rec.Status)
	assert.True(t, created.Equal(rec.CreatedAt))
}

func TestGetShare_Unknown(t *testing.T) {
	dB, mock := newMock(t)
	store, _ := NewShareDatabase(false, dB)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT token, object_key")).WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"token"}))

	_, err := store.GetShare(context.Background(), "missing")
	assert.ErrorIs(t, err, share.ErrNotFound)
}

func TestMarkAnnounced(t *testing.T) {
	dB, mock := newMock(t)
	store, _ := NewShareDatabase(false, dB)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE shares SET status=$1 WHERE token=$2")).
		WithArgs(models.ShareAnnounced, "tok").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shares SET status=$1 WHERE token=$2")).
		WithArgs(models.ShareAnnounced, "gone").WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, store.MarkAnnounced(context.Background(), "tok"))
	assert.ErrorIs(t, store.MarkAnnounced(context.Background(), "gone"), share.ErrNotFound)
}
