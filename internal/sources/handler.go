package sources

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/pkg/formatting"
	"github.com/JaimeStill/curator/pkg/handlers"
	"github.com/JaimeStill/curator/pkg/routes"
)

// Handler provides HTTP endpoints for source operations.
type Handler struct {
	sys           System
	logger        *slog.Logger
	maxUploadSize int64
}

// NewHandler creates a Handler with the given system, logger, and upload size limit.
func NewHandler(sys System, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		sys:           sys,
		logger:        logger.With("handler", "sources"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for source endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sources",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/parsers", Handler: h.Parsers},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "PUT", Pattern: "/{id}", Handler: h.Update},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "POST", Pattern: "/{id}/retrieve", Handler: h.Retrieve},
		},
		Children: []routes.Group{
			{
				Prefix: "/{id}/uploads",
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.CreateUpload},
					{Method: "PUT", Pattern: "/{uploadID}", Handler: h.UpdateUpload},
					{Method: "GET", Pattern: "/{uploadID}/payload", Handler: h.Payload},
				},
			},
		},
	}
}

// List returns all sources matching the url, name, and search query parameters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	srcs, err := h.sys.List(r.Context(), FiltersFromQuery(r.URL.Query()))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, srcs)
}

// Find returns a single source by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	src, err := h.sys.Find(r.Context(), id)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, src)
}

// Create validates a source, puts its rule when scheduled, and stores it.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var input Source
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", ErrInvalidBody, err), nil)
		return
	}

	src, err := h.sys.Create(r.Context(), &input)
	if err != nil {
		h.fail(w, err, src)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, src)
}

// Update applies a partial update and reconciles the source's rule.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var patch Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", ErrInvalidBody, err), nil)
		return
	}

	src, err := h.sys.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, err, src)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, src)
}

// Delete removes a source's rule and then the source.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sys.Delete(r.Context(), id); err != nil {
		h.fail(w, err, nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Retrieve invokes the retrieval function for a source immediately.
func (h *Handler) Retrieve(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	result, err := h.sys.Retrieve(r.Context(), id)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Parsers lists the parser functions a source may reference.
func (h *Handler) Parsers(w http.ResponseWriter, r *http.Request) {
	fns, err := h.sys.Parsers(r.Context())
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, fns)
}

// CreateUpload appends an upload entry. A multipart body may carry the
// payload as a "file" part alongside "status" and a JSON "summary" field;
// a JSON body records the entry without a payload.
func (h *Handler) CreateUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadSize {
		h.fail(w, h.tooLarge(), nil)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)

	var cmd CreateUploadCommand
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType == "multipart/form-data" {
		if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
			h.fail(w, h.uploadBodyError(err), nil)
			return
		}

		cmd.Status = UploadStatus(r.FormValue("status"))
		if s := r.FormValue("summary"); s != "" {
			cmd.Summary = &UploadSummary{}
			if err := json.Unmarshal([]byte(s), cmd.Summary); err != nil {
				h.fail(w, fmt.Errorf("%w: summary: %v", ErrInvalidBody, err), nil)
				return
			}
		}

		file, header, err := r.FormFile("file")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			h.fail(w, fmt.Errorf("%w: file: %v", ErrInvalidBody, err), nil)
			return
		default:
			defer file.Close()
			cmd.Payload = &Payload{
				Filename:    header.Filename,
				ContentType: payloadContentType(header.Header.Get("Content-Type")),
				Size:        header.Size,
				Body:        file,
			}
		}
	} else if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.fail(w, h.uploadBodyError(err), nil)
		return
	}

	upload, err := h.sys.CreateUpload(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	handlers.RespondJSON(w, http.StatusCreated, upload)
}

// UpdateUpload changes the status or summary of an upload entry in place.
func (h *Handler) UpdateUpload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	uploadID, ok := h.pathID(w, r, "uploadID")
	if !ok {
		return
	}

	var cmd UpdateUploadCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		h.fail(w, fmt.Errorf("%w: %v", ErrInvalidBody, err), nil)
		return
	}

	upload, err := h.sys.UpdateUpload(r.Context(), id, uploadID, cmd)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, upload)
}

// Payload streams the stored payload of an upload.
func (h *Handler) Payload(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	uploadID, ok := h.pathID(w, r, "uploadID")
	if !ok {
		return
	}

	blob, err := h.sys.UploadPayload(r.Context(), id, uploadID)
	if err != nil {
		h.fail(w, err, nil)
		return
	}
	defer blob.Body.Close()

	w.Header().Set("Content-Type", blob.ContentType)
	if blob.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(blob.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", blob.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, blob.Body); err != nil {
		h.logger.Error("payload stream failed", "id", id, "upload", uploadID, "error", err)
	}
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		h.fail(w, fmt.Errorf("%w: %s", ErrInvalidID, name), nil)
		return uuid.Nil, false
	}
	return id, true
}

// fail writes the error response for err. Validation failures carry their
// field errors; a resource persisted despite the failure is echoed back.
func (h *Handler) fail(w http.ResponseWriter, err error, resource *Source) {
	body := handlers.ErrorBody{
		Message: err.Error(),
		Kind:    ErrorKind(err),
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		body.Message = "validation failed"
		body.Errors = verr.Errors
	}
	if resource != nil {
		body.Resource = resource
	}

	handlers.RespondProblem(w, h.logger, MapHTTPStatus(err), body)
}

func (h *Handler) uploadBodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) || errors.Is(err, multipart.ErrMessageTooLarge) {
		return h.tooLarge()
	}
	return fmt.Errorf("%w: %v", ErrInvalidBody, err)
}

func (h *Handler) tooLarge() error {
	return fmt.Errorf("%w (limit %s)", ErrFileTooLarge, formatting.FormatBytes(h.maxUploadSize, 1))
}

func payloadContentType(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return "application/octet-stream"
	}
	return header
}
