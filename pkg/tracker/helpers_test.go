package tracker_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/model"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/providers"
	"github.com/ogulcanaydogan/ImageGen-Guardian/pkg/storage"
	"github.com/stretchr/testify/require"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(year int, month time.Month) *fakeClock {
	return &fakeClock{now: time.Date(year, month, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func newTestStore(t *testing.T) *storage.JSONFile {
	t.Helper()
	s, err := storage.NewJSONFile(filepath.Join(t.TempDir(), "cost_tracking.json"))
	require.NoError(t, err)
	return s
}

func seed(t *testing.T, s storage.Storage, rec model.CostRecord) {
	t.Helper()
	require.NoError(t, s.Save(context.Background(), &rec))
}

func load(t *testing.T, s storage.Storage) model.CostRecord {
	t.Helper()
	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	return *rec
}

// brokenStore fails every operation.
type brokenStore struct {
	loadErr error
	saveErr error
	saves   int
}

func (b *brokenStore) Load(context.Context) (*model.CostRecord, error) {
	return nil, b.loadErr
}

func (b *brokenStore) Save(context.Context, *model.CostRecord) error {
	b.saves++
	return b.saveErr
}

func (b *brokenStore) Close() error { return nil }

var errDisk = errors.New("disk on fire")

// fakeProvider records calls and returns a canned image or error.
type fakeProvider struct {
	mu    sync.Mutex
	calls []providers.ImageRequest
	err   error
}

func (p *fakeProvider) Name() string       { return "fake" }
func (p *fakeProvider) Deployment() string { return "dall-e-3" }

func (p *fakeProvider) GenerateImage(_ context.Context, req providers.ImageRequest) (*providers.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, req)
	if p.err != nil {
		return nil, p.err
	}
	return &providers.Image{
		URL:           "https://img.example/generated.png",
		RevisedPrompt: "revised: " + req.Prompt,
		Created:       1760870400,
	}, nil
}

func (p *fakeProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}
