package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/donmikel/formproxy/applications/server/domain"
	"github.com/donmikel/formproxy/applications/server/interfaces"
)

const createPicturesTable = `
CREATE TABLE IF NOT EXISTS pictures (
	guid TEXT PRIMARY KEY,
	data TEXT NOT NULL,
	ts INTEGER NOT NULL,
	form_url TEXT NOT NULL,
	transferred INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_pictures_ts ON pictures(ts);
`

type pictureStore struct {
	db     *sql.DB
	logger log.Logger
}

// NewPictureStore opens the sqlite database at dsn and creates the pictures
// table if needed.
func NewPictureStore(ctx context.Context, dsn string, logger log.Logger) (interfaces.PictureStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("can't open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err = db.ExecContext(ctx, createPicturesTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("can't create pictures table: %w", err)
	}

	return &pictureStore{db: db, logger: logger}, nil
}

func (s *pictureStore) Create(ctx context.Context, picture domain.Picture) (domain.PictureRecord, error) {
	record := domain.PictureRecord{
		GUID:   uuid.NewString(),
		Type:   domain.PictureType,
		Fields: picture,
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pictures (guid, data, ts, form_url, transferred) VALUES (?, ?, ?, ?, ?)`,
		record.GUID, picture.Data, picture.Ts, picture.FormURL, picture.Transferred,
	)
	if err != nil {
		return domain.PictureRecord{}, fmt.Errorf("can't insert picture: %w", err)
	}

	level.Info(s.logger).Log("msg", "picture stored",
		"guid", record.GUID,
		"size", humanize.Bytes(uint64(len(picture.Data))),
	)

	return record, nil
}

func (s *pictureStore) List(ctx context.Context) (domain.PictureList, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT guid, data, ts, form_url, transferred FROM pictures ORDER BY ts, rowid`)
	if err != nil {
		return domain.PictureList{}, fmt.Errorf("can't list pictures: %w", err)
	}
	defer rows.Close()

	records := []domain.PictureRecord{}
	for rows.Next() {
		record := domain.PictureRecord{Type: domain.PictureType}
		if err = rows.Scan(
			&record.GUID,
			&record.Fields.Data,
			&record.Fields.Ts,
			&record.Fields.FormURL,
			&record.Fields.Transferred,
		); err != nil {
			return domain.PictureList{}, fmt.Errorf("can't scan picture: %w", err)
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return domain.PictureList{}, fmt.Errorf("can't iterate pictures: %w", err)
	}

	return domain.PictureList{Count: len(records), List: records}, nil
}

func (s *pictureStore) Delete(ctx context.Context, guid string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pictures WHERE guid = ?`, guid)
	if err != nil {
		return fmt.Errorf("can't delete picture %s: %w", guid, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't delete picture %s: %w", guid, err)
	}
	if n == 0 {
		return fmt.Errorf("picture with guid = %s not found", guid)
	}

	return nil
}

func (s *pictureStore) Close() error {
	return s.db.Close()
}
