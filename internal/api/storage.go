package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/pkg/handlers"
	"github.com/JaimeStill/curator/pkg/routes"
	"github.com/JaimeStill/curator/pkg/storage"
)

// payloadRoot is the blob prefix upload payloads are stored under.
const payloadRoot = "uploads/"

// storageHandler exposes read-only browsing of stored upload payloads.
// Keys in requests and responses are relative to payloadRoot.
type storageHandler struct {
	store       storage.System
	logger      *slog.Logger
	maxListSize int32
}

func newStorageHandler(store storage.System, logger *slog.Logger, maxListSize int32) *storageHandler {
	return &storageHandler{
		store:       store,
		logger:      logger.With("handler", "payloads"),
		maxListSize: maxListSize,
	}
}

func (h *storageHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/payloads",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/download/{key...}", Handler: h.download},
			{Method: "GET", Pattern: "/{key...}", Handler: h.find},
		},
	}
}

// list pages through payload blobs. The optional source query parameter
// narrows the listing to one source.
func (h *storageHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	maxResults, err := storage.ParseMaxResults(q.Get("max_results"), h.maxListSize)
	if err != nil {
		h.fail(w, err)
		return
	}

	prefix := payloadRoot
	if src := q.Get("source"); src != "" {
		id, err := uuid.Parse(src)
		if err != nil {
			handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid source: %w", err))
			return
		}
		prefix += id.String() + "/"
	}

	result, err := h.store.List(r.Context(), prefix, q.Get("marker"), maxResults)
	if err != nil {
		h.fail(w, err)
		return
	}

	for i := range result.Blobs {
		result.Blobs[i].Key = strings.TrimPrefix(result.Blobs[i].Key, payloadRoot)
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *storageHandler) find(w http.ResponseWriter, r *http.Request) {
	meta, err := h.store.Find(r.Context(), payloadRoot+r.PathValue("key"))
	if err != nil {
		h.fail(w, err)
		return
	}

	meta.Key = strings.TrimPrefix(meta.Key, payloadRoot)
	handlers.RespondJSON(w, http.StatusOK, meta)
}

func (h *storageHandler) download(w http.ResponseWriter, r *http.Request) {
	key := payloadRoot + r.PathValue("key")

	result, err := h.store.Download(r.Context(), key)
	if err != nil {
		h.fail(w, err)
		return
	}
	defer result.Body.Close()

	w.Header().Set("Content-Type", result.ContentType)
	if result.ContentLength > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(result.ContentLength, 10))
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", path.Base(key)))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, result.Body); err != nil {
		h.logger.Error("payload stream failed", "key", key, "error", err)
	}
}

func (h *storageHandler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, storage.MapHTTPStatus(err), err)
}
