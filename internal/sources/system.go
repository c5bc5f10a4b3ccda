package sources

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/pkg/functions"
)

// System defines the public contract for source domain operations.
//
// Create, Update, and Delete may return a non-nil source together with a
// *NotificationSendError when the notification failure policy persists the
// change anyway; the error still reports the failed notification.
type System interface {
	Handler(maxUploadSize int64) *Handler

	List(ctx context.Context, filters Filters) ([]Source, error)
	Find(ctx context.Context, id uuid.UUID) (*Source, error)
	Create(ctx context.Context, input *Source) (*Source, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (*Source, error)
	Delete(ctx context.Context, id uuid.UUID) error

	Retrieve(ctx context.Context, id uuid.UUID) (*RetrievalResult, error)
	Parsers(ctx context.Context) ([]functions.Function, error)

	CreateUpload(ctx context.Context, id uuid.UUID, cmd CreateUploadCommand) (*Upload, error)
	UpdateUpload(ctx context.Context, id, uploadID uuid.UUID, cmd UpdateUploadCommand) (*Upload, error)
	UploadPayload(ctx context.Context, id, uploadID uuid.UUID) (*PayloadDownload, error)
}

// Config holds the source system's automation settings.
type Config struct {
	// RetrievalFunctionARN is the function scheduled rules invoke and
	// Retrieve calls on demand.
	RetrievalFunctionARN string
	// ParserPrefix filters the functions listed by Parsers.
	ParserPrefix string
	// PersistOnNotificationFailure saves (or deletes) a source whose
	// schedule mutation succeeded even though its notification failed.
	PersistOnNotificationFailure bool
}
