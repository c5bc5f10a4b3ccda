package sources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/JaimeStill/curator/pkg/functions"
	"github.com/JaimeStill/curator/pkg/storage"
)

const blobCleanupLimit = 4

type repo struct {
	store      Store
	reconciler *Reconciler
	blobs      storage.System
	functions  functions.System
	cfg        Config
	logger     *slog.Logger
}

// New creates the source system. Every mutation runs validate, then
// reconcile, then persist.
func New(
	store Store,
	reconciler *Reconciler,
	blobs storage.System,
	fns functions.System,
	cfg Config,
	logger *slog.Logger,
) System {
	return &repo{
		store:      store,
		reconciler: reconciler,
		blobs:      blobs,
		functions:  fns,
		cfg:        cfg,
		logger:     logger.With("system", "sources"),
	}
}

func (r *repo) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, maxUploadSize)
}

func (r *repo) List(ctx context.Context, filters Filters) ([]Source, error) {
	return r.store.List(ctx, filters)
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Source, error) {
	return r.store.Find(ctx, id)
}

func (r *repo) Create(ctx context.Context, input *Source) (*Source, error) {
	src := input.Clone()
	src.ID = uuid.New()
	src.Uploads = nil
	if sch := src.schedule(); sch != nil {
		sch.AWSRuleARN = ""
	}
	src.normalize()

	if err := Validate(src); err != nil {
		return nil, err
	}

	if err := r.reconciler.OnCreate(ctx, src); err != nil {
		if !r.persistDespite(err) {
			return nil, err
		}
		saved, serr := r.store.Insert(ctx, src)
		if serr != nil {
			return nil, errors.Join(err, serr)
		}
		return saved, err
	}

	saved, err := r.store.Insert(ctx, src)
	if err != nil {
		return nil, err
	}

	r.logger.Info("source created", "id", saved.ID, "name", saved.Name, "scheduled", saved.RuleARN() != "")
	return saved, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Source, error) {
	prev, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	next := prev.Clone()
	if err := patch.Apply(next); err != nil {
		return nil, err
	}
	next.dropEmptySchedule()
	next.normalize()

	if err := Validate(next); err != nil {
		return nil, err
	}

	changes := Diff(prev, next)
	r.logger.Debug("source diff", "id", id, "paths", changes.Paths(), "automation", changes.Automation)

	if err := r.reconciler.OnUpdate(ctx, prev, next, changes); err != nil {
		if !r.persistDespite(err) {
			return nil, err
		}
		saved, serr := r.store.Save(ctx, next)
		if serr != nil {
			return nil, errors.Join(err, serr)
		}
		return saved, err
	}

	saved, err := r.store.Save(ctx, next)
	if err != nil {
		return nil, err
	}

	r.logger.Info("source updated", "id", id, "paths", changes.Paths())
	return saved, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	src, err := r.store.Find(ctx, id)
	if err != nil {
		return err
	}

	notifyErr := r.reconciler.OnDelete(ctx, src)
	if notifyErr != nil && !r.persistDespite(notifyErr) {
		return notifyErr
	}

	if err := r.store.Delete(ctx, id); err != nil {
		return errors.Join(notifyErr, err)
	}

	r.removePayloads(ctx, src)

	r.logger.Info("source deleted", "id", id)
	return notifyErr
}

func (r *repo) Retrieve(ctx context.Context, id uuid.UUID) (*RetrievalResult, error) {
	if r.cfg.RetrievalFunctionARN == "" {
		return nil, ErrRetrievalUnavailable
	}

	src, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := r.functions.Invoke(ctx, r.cfg.RetrievalFunctionARN, map[string]string{
		"sourceId": src.ID.String(),
	})
	if err != nil {
		return nil, err
	}

	result := &RetrievalResult{SourceID: src.ID}
	if json.Valid(out) {
		result.Response = json.RawMessage(out)
	} else {
		result.Response = string(out)
	}

	r.logger.Info("retrieval invoked", "id", id)
	return result, nil
}

func (r *repo) Parsers(ctx context.Context) ([]functions.Function, error) {
	return r.functions.List(ctx, r.cfg.ParserPrefix)
}

func (r *repo) CreateUpload(ctx context.Context, id uuid.UUID, cmd CreateUploadCommand) (*Upload, error) {
	if cmd.Status == "" {
		cmd.Status = UploadInProgress
	}
	if !cmd.Status.Valid() {
		return nil, invalidStatus(cmd.Status)
	}

	src, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	upload := Upload{
		ID:      uuid.New(),
		Status:  cmd.Status,
		Summary: cmd.Summary,
		Created: time.Now().UTC(),
	}

	if p := cmd.Payload; p != nil {
		key := payloadKey(src.ID, upload.ID, p.Filename)
		if err := r.blobs.Upload(ctx, key, p.Body, p.ContentType); err != nil {
			return nil, fmt.Errorf("upload payload blob: %w", err)
		}
		upload.PayloadKey = key
	}

	if err := r.store.AppendUpload(ctx, src.ID, upload); err != nil {
		if upload.PayloadKey != "" {
			if delErr := r.blobs.Delete(ctx, upload.PayloadKey); delErr != nil {
				r.logger.Warn("compensating blob delete failed", "key", upload.PayloadKey, "error", delErr)
			}
		}
		return nil, err
	}

	r.logger.Info("upload recorded", "id", id, "upload", upload.ID, "status", upload.Status)
	return &upload, nil
}

func (r *repo) UpdateUpload(ctx context.Context, id, uploadID uuid.UUID, cmd UpdateUploadCommand) (*Upload, error) {
	if cmd.Status != nil && !cmd.Status.Valid() {
		return nil, invalidStatus(*cmd.Status)
	}

	src, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	upload := src.findUpload(uploadID)
	if upload == nil {
		return nil, ErrUploadNotFound
	}
	if cmd.Status != nil {
		upload.Status = *cmd.Status
	}
	if cmd.Summary != nil {
		upload.Summary = cmd.Summary
	}

	saved, err := r.store.Save(ctx, src)
	if err != nil {
		return nil, err
	}

	result := saved.findUpload(uploadID)
	if result == nil {
		return nil, ErrUploadNotFound
	}

	r.logger.Info("upload updated", "id", id, "upload", uploadID, "status", result.Status)
	return result, nil
}

func (r *repo) UploadPayload(ctx context.Context, id, uploadID uuid.UUID) (*PayloadDownload, error) {
	src, err := r.store.Find(ctx, id)
	if err != nil {
		return nil, err
	}

	upload := src.findUpload(uploadID)
	if upload == nil {
		return nil, ErrUploadNotFound
	}
	if upload.PayloadKey == "" {
		return nil, ErrPayloadNotFound
	}

	blob, err := r.blobs.Download(ctx, upload.PayloadKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrPayloadNotFound
		}
		return nil, err
	}

	name, err := url.PathUnescape(path.Base(upload.PayloadKey))
	if err != nil {
		name = path.Base(upload.PayloadKey)
	}
	return &PayloadDownload{BlobResult: blob, Filename: name}, nil
}

// persistDespite reports whether a reconciliation error still allows the
// change to be persisted under the configured notification policy.
func (r *repo) persistDespite(err error) bool {
	var nerr *NotificationSendError
	return r.cfg.PersistOnNotificationFailure && errors.As(err, &nerr)
}

// removePayloads deletes the payload blobs of a deleted source. Failures are
// logged and never fail the delete.
func (r *repo) removePayloads(ctx context.Context, src *Source) {
	g, gctx := errgroup.WithContext(context.WithoutCancel(ctx))
	g.SetLimit(blobCleanupLimit)

	for _, u := range src.Uploads {
		if u.PayloadKey == "" {
			continue
		}
		key := u.PayloadKey
		g.Go(func() error {
			if err := r.blobs.Delete(gctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
				r.logger.Warn("payload blob delete failed", "id", src.ID, "key", key, "error", err)
			}
			return nil
		})
	}

	g.Wait()
}

func invalidStatus(s UploadStatus) error {
	return &ValidationError{Errors: []FieldError{{
		Field:   "status",
		Message: fmt.Sprintf("must be one of SUCCESS, ERROR, IN_PROGRESS; got %q", s),
	}}}
}

func payloadKey(sourceID, uploadID uuid.UUID, filename string) string {
	return fmt.Sprintf("uploads/%s/%s/%s", sourceID, uploadID, sanitizeFilename(filename))
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	if name == "." || name == "/" || name == "" {
		name = "payload"
	}
	return url.PathEscape(name)
}
