package server

import (
	"context"

	"github.com/donmikel/formproxy/applications/server/domain"
)

// FormService is the set of operations exposed to cloud callers. Every
// operation returns a success-shaped payload; the error reports what went
// wrong underneath and is meant for logging.
type FormService interface {
	GetForm(ctx context.Context, formHash string) (domain.FormHTML, error)
	GetForms(ctx context.Context) (domain.FormList, error)
	SubmitForm(ctx context.Context, fields []domain.FormField, submissionURL string) (domain.FormHTML, error)
	PostPicture(ctx context.Context, picture domain.Picture) (domain.Status, error)
	GetList(ctx context.Context) (domain.PictureListing, error)
	DeletePictures(ctx context.Context) (domain.Status, error)
	// Wait blocks until background picture deletions have finished.
	Wait()
}
