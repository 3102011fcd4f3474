package interfaces

import (
	"context"

	"github.com/donmikel/formproxy/applications/server/domain"
)

type PictureStore interface {
	Create(ctx context.Context, picture domain.Picture) (domain.PictureRecord, error)
	List(ctx context.Context) (domain.PictureList, error)
	Delete(ctx context.Context, guid string) error
	Close() error
}
