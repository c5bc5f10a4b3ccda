package sources_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/internal/sources"
	"github.com/JaimeStill/curator/pkg/functions"
	"github.com/JaimeStill/curator/pkg/routes"
	"github.com/JaimeStill/curator/pkg/schedule"
	"github.com/JaimeStill/curator/pkg/storage"
)

type mockSystem struct {
	listFn          func(ctx context.Context, filters sources.Filters) ([]sources.Source, error)
	findFn          func(ctx context.Context, id uuid.UUID) (*sources.Source, error)
	createFn        func(ctx context.Context, input *sources.Source) (*sources.Source, error)
	updateFn        func(ctx context.Context, id uuid.UUID, patch sources.Patch) (*sources.Source, error)
	deleteFn        func(ctx context.Context, id uuid.UUID) error
	retrieveFn      func(ctx context.Context, id uuid.UUID) (*sources.RetrievalResult, error)
	parsersFn       func(ctx context.Context) ([]functions.Function, error)
	createUploadFn  func(ctx context.Context, id uuid.UUID, cmd sources.CreateUploadCommand) (*sources.Upload, error)
	updateUploadFn  func(ctx context.Context, id, uploadID uuid.UUID, cmd sources.UpdateUploadCommand) (*sources.Upload, error)
	uploadPayloadFn func(ctx context.Context, id, uploadID uuid.UUID) (*sources.PayloadDownload, error)
}

func (m *mockSystem) Handler(maxUploadSize int64) *sources.Handler {
	return sources.NewHandler(m, discard(), maxUploadSize)
}

func (m *mockSystem) List(ctx context.Context, filters sources.Filters) ([]sources.Source, error) {
	return m.listFn(ctx, filters)
}

func (m *mockSystem) Find(ctx context.Context, id uuid.UUID) (*sources.Source, error) {
	return m.findFn(ctx, id)
}

func (m *mockSystem) Create(ctx context.Context, input *sources.Source) (*sources.Source, error) {
	return m.createFn(ctx, input)
}

func (m *mockSystem) Update(ctx context.Context, id uuid.UUID, patch sources.Patch) (*sources.Source, error) {
	return m.updateFn(ctx, id, patch)
}

func (m *mockSystem) Delete(ctx context.Context, id uuid.UUID) error {
	return m.deleteFn(ctx, id)
}

func (m *mockSystem) Retrieve(ctx context.Context, id uuid.UUID) (*sources.RetrievalResult, error) {
	return m.retrieveFn(ctx, id)
}

func (m *mockSystem) Parsers(ctx context.Context) ([]functions.Function, error) {
	return m.parsersFn(ctx)
}

func (m *mockSystem) CreateUpload(ctx context.Context, id uuid.UUID, cmd sources.CreateUploadCommand) (*sources.Upload, error) {
	return m.createUploadFn(ctx, id, cmd)
}

func (m *mockSystem) UpdateUpload(ctx context.Context, id, uploadID uuid.UUID, cmd sources.UpdateUploadCommand) (*sources.Upload, error) {
	return m.updateUploadFn(ctx, id, uploadID, cmd)
}

func (m *mockSystem) UploadPayload(ctx context.Context, id, uploadID uuid.UUID) (*sources.PayloadDownload, error) {
	return m.uploadPayloadFn(ctx, id, uploadID)
}

func setupMux(sys *mockSystem, maxUploadSize int64) *http.ServeMux {
	mux := http.NewServeMux()
	routes.Register(mux, sys.Handler(maxUploadSize).Routes())
	return mux
}

func serve(mux *http.ServeMux, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

type errorResponse struct {
	Message  string               `json:"message"`
	Kind     string               `json:"kind"`
	Errors   []sources.FieldError `json:"errors"`
	Resource *sources.Source      `json:"resource"`
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body
}

func TestHandlerList(t *testing.T) {
	var captured sources.Filters
	sys := &mockSystem{
		listFn: func(_ context.Context, f sources.Filters) ([]sources.Source, error) {
			captured = f
			return []sources.Source{*scheduledSource()}, nil
		},
	}

	rec := serve(setupMux(sys, 1024), httptest.NewRequest("GET", "/sources?url=http://a&search=court", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if captured.URL == nil || *captured.URL != "http://a" || captured.Search == nil || captured.Name != nil {
		t.Errorf("filters = %+v", captured)
	}

	var result []sources.Source
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if len(result) != 1 || result[0].Name != "County Court" {
		t.Errorf("result = %+v", result)
	}
}

func TestHandlerCreate(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		partial    bool
		wantStatus int
		wantKind   string
	}{
		{name: "created", body: `{"name":"A","origin":{"url":"http://x"}}`, wantStatus: http.StatusCreated},
		{name: "malformed body", body: `{`, wantStatus: http.StatusBadRequest},
		{
			name:       "validation",
			body:       `{}`,
			err:        &sources.ValidationError{Errors: []sources.FieldError{{Field: "name", Message: "required"}}},
			wantStatus: http.StatusUnprocessableEntity,
			wantKind:   sources.KindValidation,
		},
		{
			name:       "gateway",
			body:       `{}`,
			err:        &schedule.GatewayError{Op: "put", Rule: "r", Step: "put targets", Err: errors.New("x")},
			wantStatus: http.StatusInternalServerError,
			wantKind:   sources.KindGateway,
		},
		{
			name:       "notification after persistence",
			body:       `{}`,
			err:        &sources.NotificationSendError{Type: sources.NotificationAdd, Err: errors.New("bounced")},
			partial:    true,
			wantStatus: http.StatusInternalServerError,
			wantKind:   sources.KindNotification,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				createFn: func(_ context.Context, in *sources.Source) (*sources.Source, error) {
					out := in.Clone()
					out.ID = uuid.New()
					if tt.err != nil {
						if tt.partial {
							return out, tt.err
						}
						return nil, tt.err
					}
					return out, nil
				},
			}

			rec := serve(setupMux(sys, 1024), httptest.NewRequest("POST", "/sources", strings.NewReader(tt.body)))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus < 300 {
				return
			}

			body := decodeError(t, rec)
			if body.Kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", body.Kind, tt.wantKind)
			}
			if tt.wantKind == sources.KindValidation && (len(body.Errors) != 1 || body.Errors[0].Field != "name") {
				t.Errorf("errors = %+v", body.Errors)
			}
			if (body.Resource != nil) != tt.partial {
				t.Errorf("resource echoed = %v, want %v", body.Resource != nil, tt.partial)
			}
		})
	}
}

func TestHandlerUpdate(t *testing.T) {
	src := scheduledSource()
	var captured sources.Patch
	sys := &mockSystem{
		updateFn: func(_ context.Context, id uuid.UUID, p sources.Patch) (*sources.Source, error) {
			if id != src.ID {
				return nil, sources.ErrNotFound
			}
			captured = p
			return src, nil
		},
	}
	mux := setupMux(sys, 1024)

	t.Run("passes patch keys", func(t *testing.T) {
		rec := serve(mux, httptest.NewRequest("PUT", "/sources/"+src.ID.String(), strings.NewReader(`{"name":"B","dateFilter":null}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if _, ok := captured["dateFilter"]; !ok || len(captured) != 2 {
			t.Errorf("patch = %v", captured)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := serve(mux, httptest.NewRequest("PUT", "/sources/"+uuid.NewString(), strings.NewReader(`{}`)))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})

	t.Run("invalid id", func(t *testing.T) {
		rec := serve(mux, httptest.NewRequest("PUT", "/sources/nope", strings.NewReader(`{}`)))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})
}

func TestHandlerDelete(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "deleted", wantStatus: http.StatusNoContent},
		{name: "not found", err: sources.ErrNotFound, wantStatus: http.StatusNotFound},
		{name: "gateway", err: &schedule.GatewayError{Op: "delete", Err: errors.New("x")}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				deleteFn: func(context.Context, uuid.UUID) error { return tt.err },
			}
			rec := serve(setupMux(sys, 1024), httptest.NewRequest("DELETE", "/sources/"+uuid.NewString(), nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandlerParsersRoute(t *testing.T) {
	sys := &mockSystem{
		parsersFn: func(context.Context) ([]functions.Function, error) {
			return []functions.Function{{Name: "parser-csv"}}, nil
		},
		findFn: func(context.Context, uuid.UUID) (*sources.Source, error) {
			t.Error("parsers request routed to Find")
			return nil, sources.ErrNotFound
		},
	}

	rec := serve(setupMux(sys, 1024), httptest.NewRequest("GET", "/sources/parsers", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "parser-csv") {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestHandlerRetrieve(t *testing.T) {
	sys := &mockSystem{
		retrieveFn: func(context.Context, uuid.UUID) (*sources.RetrievalResult, error) {
			return nil, sources.ErrRetrievalUnavailable
		},
	}
	rec := serve(setupMux(sys, 1024), httptest.NewRequest("POST", "/sources/"+uuid.NewString()+"/retrieve", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func multipartBody(t *testing.T, fields map[string]string, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		if err != nil {
			t.Fatal(err)
		}
		part.Write([]byte(content))
	}
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHandlerCreateUpload(t *testing.T) {
	srcID := uuid.New()

	t.Run("multipart with payload", func(t *testing.T) {
		var gotCmd sources.CreateUploadCommand
		var gotData string
		sys := &mockSystem{
			createUploadFn: func(_ context.Context, id uuid.UUID, cmd sources.CreateUploadCommand) (*sources.Upload, error) {
				gotCmd = cmd
				data, _ := io.ReadAll(cmd.Payload.Body)
				gotData = string(data)
				return &sources.Upload{ID: uuid.New(), Status: cmd.Status}, nil
			},
		}

		body, ct := multipartBody(t, map[string]string{
			"status":  "SUCCESS",
			"summary": `{"numCreated":2,"numUpdated":1}`,
		}, "cases.csv", "a,b\n")
		req := httptest.NewRequest("POST", "/sources/"+srcID.String()+"/uploads", body)
		req.Header.Set("Content-Type", ct)

		rec := serve(setupMux(sys, 1<<20), req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
		}
		if gotCmd.Status != sources.UploadSuccess || gotCmd.Summary == nil || gotCmd.Summary.NumCreated != 2 {
			t.Errorf("cmd = %+v", gotCmd)
		}
		if gotCmd.Payload.Filename != "cases.csv" || gotData != "a,b\n" {
			t.Errorf("payload = %q %q", gotCmd.Payload.Filename, gotData)
		}
	})

	t.Run("json without payload", func(t *testing.T) {
		sys := &mockSystem{
			createUploadFn: func(_ context.Context, _ uuid.UUID, cmd sources.CreateUploadCommand) (*sources.Upload, error) {
				if cmd.Payload != nil {
					t.Error("unexpected payload")
				}
				return &sources.Upload{ID: uuid.New(), Status: cmd.Status}, nil
			},
		}
		req := httptest.NewRequest("POST", "/sources/"+srcID.String()+"/uploads", strings.NewReader(`{"status":"ERROR"}`))
		req.Header.Set("Content-Type", "application/json")

		rec := serve(setupMux(sys, 1024), req)
		if rec.Code != http.StatusCreated {
			t.Errorf("status = %d, want 201", rec.Code)
		}
	})

	t.Run("too large", func(t *testing.T) {
		sys := &mockSystem{
			createUploadFn: func(context.Context, uuid.UUID, sources.CreateUploadCommand) (*sources.Upload, error) {
				t.Error("system called for oversized body")
				return nil, nil
			},
		}
		body, ct := multipartBody(t, nil, "big.csv", strings.Repeat("x", 4096))
		req := httptest.NewRequest("POST", "/sources/"+srcID.String()+"/uploads", body)
		req.Header.Set("Content-Type", ct)

		rec := serve(setupMux(sys, 512), req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})

	manyParts := map[string]string{}
	for i := range 1100 {
		manyParts["f"+strconv.Itoa(i)] = "v"
	}
	partsBody, partsCT := multipartBody(t, manyParts, "", "")
	streamed := strings.Repeat(" ", 2048) + `{"status":"SUCCESS"}`

	oversized := []struct {
		name        string
		body        string
		contentType string
		limit       int64
	}{
		{"streamed json over limit", streamed, "application/json", 512},
		{"too many multipart parts", partsBody.String(), partsCT, 1 << 20},
	}

	for _, tt := range oversized {
		t.Run(tt.name, func(t *testing.T) {
			sys := &mockSystem{
				createUploadFn: func(context.Context, uuid.UUID, sources.CreateUploadCommand) (*sources.Upload, error) {
					t.Error("system called for oversized body")
					return nil, nil
				},
			}
			req := httptest.NewRequest("POST", "/sources/"+srcID.String()+"/uploads", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", tt.contentType)
			req.ContentLength = -1

			rec := serve(setupMux(sys, tt.limit), req)
			if rec.Code != http.StatusRequestEntityTooLarge {
				t.Errorf("status = %d, want 413: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset") }

func TestHandlerPayloadStreamFailure(t *testing.T) {
	sys := &mockSystem{
		uploadPayloadFn: func(context.Context, uuid.UUID, uuid.UUID) (*sources.PayloadDownload, error) {
			return &sources.PayloadDownload{
				BlobResult: &storage.BlobResult{
					Body:        io.NopCloser(failingReader{}),
					ContentType: "text/csv",
				},
				Filename: "cases.csv",
			}, nil
		},
	}

	var logs bytes.Buffer
	mux := http.NewServeMux()
	h := sources.NewHandler(sys, slog.New(slog.NewTextHandler(&logs, nil)), 1024)
	routes.Register(mux, h.Routes())

	path := "/sources/" + uuid.NewString() + "/uploads/" + uuid.NewString() + "/payload"
	rec := serve(mux, httptest.NewRequest("GET", path, nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(logs.String(), "payload stream failed") || !strings.Contains(logs.String(), "connection reset") {
		t.Errorf("stream failure not logged: %s", logs.String())
	}
}

func TestHandlerPayload(t *testing.T) {
	sys := &mockSystem{
		uploadPayloadFn: func(context.Context, uuid.UUID, uuid.UUID) (*sources.PayloadDownload, error) {
			return &sources.PayloadDownload{
				BlobResult: &storage.BlobResult{
					Body:          io.NopCloser(strings.NewReader("a,b\n")),
					ContentType:   "text/csv",
					ContentLength: 4,
				},
				Filename: "cases.csv",
			}, nil
		},
	}

	path := "/sources/" + uuid.NewString() + "/uploads/" + uuid.NewString() + "/payload"
	rec := serve(setupMux(sys, 1024), httptest.NewRequest("GET", path, nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Disposition"); got != `attachment; filename="cases.csv"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rec.Header().Get("Content-Type") != "text/csv" || rec.Body.String() != "a,b\n" {
		t.Errorf("response = %q %q", rec.Header().Get("Content-Type"), rec.Body.String())
	}
}

func TestMapHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{sources.ErrNotFound, http.StatusNotFound},
		{sources.ErrUploadNotFound, http.StatusNotFound},
		{sources.ErrPayloadNotFound, http.StatusNotFound},
		{sources.ErrInvalidID, http.StatusBadRequest},
		{sources.ErrInvalidBody, http.StatusBadRequest},
		{sources.ErrDuplicate, http.StatusConflict},
		{sources.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{sources.ErrRetrievalUnavailable, http.StatusServiceUnavailable},
		{&sources.ValidationError{}, http.StatusUnprocessableEntity},
		{&sources.NotificationSendError{Err: errors.New("x")}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := sources.MapHTTPStatus(tt.err); got != tt.want {
				t.Errorf("MapHTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}
