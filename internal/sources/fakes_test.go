package sources_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/JaimeStill/curator/internal/sources"
	"github.com/JaimeStill/curator/pkg/functions"
	"github.com/JaimeStill/curator/pkg/lifecycle"
	"github.com/JaimeStill/curator/pkg/notify"
	"github.com/JaimeStill/curator/pkg/schedule"
	"github.com/JaimeStill/curator/pkg/storage"
)

const retrievalARN = "arn:aws:lambda:us-east-1:123456789012:function:retrieve"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// journal records the order of side effects across fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	if j == nil {
		return
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type fakeScheduler struct {
	journal *journal
	puts    []schedule.RuleInput
	deletes []schedule.DeleteInput
	putErr  error
	delErr  error
}

func (f *fakeScheduler) PutRule(_ context.Context, in schedule.RuleInput) (string, error) {
	f.journal.add("putRule")
	f.puts = append(f.puts, in)
	if f.putErr != nil {
		return "", f.putErr
	}
	return "arn:aws:events:us-east-1:123456789012:rule/" + in.Name, nil
}

func (f *fakeScheduler) DeleteRule(_ context.Context, in schedule.DeleteInput) error {
	f.journal.add("deleteRule")
	f.deletes = append(f.deletes, in)
	return f.delErr
}

type sentMessage struct {
	recipients []string
	subject    string
	body       string
}

type fakeNotifier struct {
	journal *journal
	sent    []sentMessage
	err     error
}

func (f *fakeNotifier) Send(_ context.Context, recipients []string, subject, body string) (*notify.DeliveryResult, error) {
	f.journal.add("send")
	f.sent = append(f.sent, sentMessage{recipients, subject, body})
	if f.err != nil {
		return nil, f.err
	}
	return &notify.DeliveryResult{MessageID: "m-1"}, nil
}

type memStore struct {
	journal *journal
	mu      sync.Mutex
	data    map[uuid.UUID]*sources.Source
	saveErr error
}

func newMemStore(j *journal, seed ...*sources.Source) *memStore {
	m := &memStore{journal: j, data: make(map[uuid.UUID]*sources.Source)}
	for _, s := range seed {
		m.data[s.ID] = s.Clone()
	}
	return m
}

func (m *memStore) List(_ context.Context, f sources.Filters) ([]sources.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sources.Source, 0, len(m.data))
	for _, s := range m.data {
		if f.URL != nil && s.Origin.URL != *f.URL {
			continue
		}
		out = append(out, *s.Clone())
	}
	return out, nil
}

func (m *memStore) Find(_ context.Context, id uuid.UUID) (*sources.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.data[id]
	if !ok {
		return nil, sources.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *memStore) Insert(_ context.Context, s *sources.Source) (*sources.Source, error) {
	m.journal.add("insert")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.data[s.ID]; ok {
		return nil, sources.ErrDuplicate
	}
	m.data[s.ID] = s.Clone()
	return s.Clone(), nil
}

func (m *memStore) Save(_ context.Context, s *sources.Source) (*sources.Source, error) {
	m.journal.add("save")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	if _, ok := m.data[s.ID]; !ok {
		return nil, sources.ErrNotFound
	}
	m.data[s.ID] = s.Clone()
	return s.Clone(), nil
}

func (m *memStore) Delete(_ context.Context, id uuid.UUID) error {
	m.journal.add("delete")
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[id]; !ok {
		return sources.ErrNotFound
	}
	delete(m.data, id)
	return nil
}

func (m *memStore) AppendUpload(_ context.Context, id uuid.UUID, u sources.Upload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	s, ok := m.data[id]
	if !ok {
		return sources.ErrNotFound
	}
	s.Uploads = append(s.Uploads, u)
	return nil
}

func (m *memStore) get(id uuid.UUID) *sources.Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.data[id]; ok {
		return s.Clone()
	}
	return nil
}

type blobEntry struct {
	data        []byte
	contentType string
}

type fakeBlobs struct {
	mu      sync.Mutex
	blobs   map[string]blobEntry
	deleted []string
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: make(map[string]blobEntry)}
}

func (f *fakeBlobs) Start(*lifecycle.Coordinator) error { return nil }

func (f *fakeBlobs) Upload(_ context.Context, key string, r io.Reader, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[key] = blobEntry{data, contentType}
	return nil
}

func (f *fakeBlobs) Download(_ context.Context, key string) (*storage.BlobResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobResult{
		Body:          io.NopCloser(bytes.NewReader(b.data)),
		ContentType:   b.contentType,
		ContentLength: int64(len(b.data)),
	}, nil
}

func (f *fakeBlobs) Find(_ context.Context, key string) (*storage.BlobMeta, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.BlobMeta{Key: key, ContentType: b.contentType, ContentLength: int64(len(b.data))}, nil
}

func (f *fakeBlobs) List(context.Context, string, string, int32) (*storage.BlobList, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeBlobs) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(f.blobs, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *fakeBlobs) Exists(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.blobs[key]
	return ok, nil
}

type fakeFunctions struct {
	invoked []string
	payload any
	out     []byte
	err     error
	fns     []functions.Function
	prefix  string
}

func (f *fakeFunctions) Invoke(_ context.Context, arn string, payload any) ([]byte, error) {
	f.invoked = append(f.invoked, arn)
	f.payload = payload
	return f.out, f.err
}

func (f *fakeFunctions) List(_ context.Context, prefix string) ([]functions.Function, error) {
	f.prefix = prefix
	return f.fns, nil
}

// env bundles a source system wired to fakes.
type env struct {
	journal   *journal
	scheduler *fakeScheduler
	notifier  *fakeNotifier
	store     *memStore
	blobs     *fakeBlobs
	functions *fakeFunctions
	sys       sources.System
}

func newEnv(cfg sources.Config, seed ...*sources.Source) *env {
	j := &journal{}
	e := &env{
		journal:   j,
		scheduler: &fakeScheduler{journal: j},
		notifier:  &fakeNotifier{journal: j},
		store:     newMemStore(j, seed...),
		blobs:     newFakeBlobs(),
		functions: &fakeFunctions{},
	}
	reconciler := sources.NewReconciler(e.scheduler, e.notifier, cfg.RetrievalFunctionARN, discard())
	e.sys = sources.New(e.store, reconciler, e.blobs, e.functions, cfg, discard())
	return e
}

func defaultConfig() sources.Config {
	return sources.Config{RetrievalFunctionARN: retrievalARN, ParserPrefix: "parser-"}
}

// scheduledSource is a stored source with a live rule.
func scheduledSource(recipients ...string) *sources.Source {
	id := uuid.MustParse("6f1c2d3e-4b5a-4c6d-8e7f-901234567890")
	return &sources.Source{
		ID:     id,
		Name:   "County Court",
		Origin: sources.Origin{URL: "http://court.example.com/cases.csv", License: "public"},
		Format: "csv",
		Automation: &sources.Automation{
			Parser: &sources.Parser{AWSLambdaARN: "arn:aws:lambda:us-east-1:123456789012:function:parser-csv"},
			Schedule: &sources.Schedule{
				AWSRuleARN:            "arn:x",
				AWSScheduleExpression: "rate(1 day)",
			},
		},
		NotificationRecipients: append([]string{}, recipients...),
		Uploads:                []sources.Upload{},
	}
}
