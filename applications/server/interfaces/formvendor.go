package interfaces

import (
	"context"
	"encoding/json"

	"github.com/donmikel/formproxy/applications/server/domain"
)

type FormVendor interface {
	// Configured reports whether the vendor domain and credentials are known.
	Configured() bool
	FormHTML(ctx context.Context, formHash string) (string, error)
	Forms(ctx context.Context) (json.RawMessage, error)
	Submit(ctx context.Context, submissionURL string, parts []domain.MultipartPart) (string, error)
}
