package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"

	"github.com/donmikel/formproxy/applications/server/domain"
	"github.com/donmikel/formproxy/applications/server/interfaces"
)

const picturesTable = domain.PictureType

type pictureRow struct {
	GUID    string
	Picture domain.Picture
}

type pictureStore struct {
	db     *memdb.MemDB
	logger log.Logger
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			picturesTable: {
				Name: picturesTable,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "GUID"},
					},
				},
			},
		},
	}
}

func NewPictureStore(logger log.Logger) (interfaces.PictureStore, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("can't create memdb: %w", err)
	}

	return &pictureStore{
		db:     db,
		logger: logger,
	}, nil
}

func (s *pictureStore) Create(ctx context.Context, picture domain.Picture) (domain.PictureRecord, error) {
	row := &pictureRow{
		GUID:    uuid.NewString(),
		Picture: picture,
	}

	txn := s.db.Txn(true)
	defer txn.Abort()

	if err := txn.Insert(picturesTable, row); err != nil {
		return domain.PictureRecord{}, fmt.Errorf("can't insert picture: %w", err)
	}
	txn.Commit()

	level.Info(s.logger).Log("msg", "picture stored",
		"guid", row.GUID,
		"size", humanize.Bytes(uint64(len(picture.Data))),
	)

	return row.record(), nil
}

func (s *pictureStore) List(ctx context.Context) (domain.PictureList, error) {
	txn := s.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(picturesTable, "id")
	if err != nil {
		return domain.PictureList{}, fmt.Errorf("can't list pictures: %w", err)
	}

	records := []domain.PictureRecord{}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		records = append(records, obj.(*pictureRow).record())
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Fields.Ts < records[j].Fields.Ts
	})

	return domain.PictureList{Count: len(records), List: records}, nil
}

func (s *pictureStore) Delete(ctx context.Context, guid string) error {
	txn := s.db.Txn(true)
	defer txn.Abort()

	obj, err := txn.First(picturesTable, "id", guid)
	if err != nil {
		return fmt.Errorf("can't find picture %s: %w", guid, err)
	}
	if obj == nil {
		return fmt.Errorf("picture with guid = %s not found", guid)
	}

	if err = txn.Delete(picturesTable, obj); err != nil {
		return fmt.Errorf("can't delete picture %s: %w", guid, err)
	}
	txn.Commit()

	return nil
}

func (s *pictureStore) Close() error {
	return nil
}

func (r *pictureRow) record() domain.PictureRecord {
	return domain.PictureRecord{
		GUID:   r.GUID,
		Type:   domain.PictureType,
		Fields: r.Picture,
	}
}
