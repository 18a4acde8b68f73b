package outbox_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Montabos/Projet/internal/outbox"
	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/lifecycle"
	"github.com/Montabos/Projet/pkg/storage"
)

type blob struct {
	data        []byte
	contentType string
	metadata    map[string]string
}

type memoryStorage struct {
	mu        sync.Mutex
	blobs     map[string]blob
	uploadErr error
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{blobs: make(map[string]blob)}
}

func (m *memoryStorage) Start(*lifecycle.Coordinator) error { return nil }

func (m *memoryStorage) Ready() bool { return true }

func (m *memoryStorage) Upload(_ context.Context, key string, r io.Reader, contentType string, metadata map[string]string) error {
	if m.uploadErr != nil {
		return m.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = blob{data: data, contentType: contentType, metadata: metadata}
	return nil
}

func (m *memoryStorage) Download(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blobs[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(b.data)), nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *memoryStorage) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.blobs[key]
	return ok, nil
}

func testEmail() workflow.Email {
	return workflow.Email{
		RunID:      "run-1",
		Intent:     workflow.IntentReply,
		Subject:    "Re: Meeting",
		Body:       "Hi,\nConfirmed.",
		ApprovedAt: time.Date(2025, time.November, 14, 9, 0, 0, 0, time.UTC),
	}
}

func newOutbox(store storage.System) *outbox.Outbox {
	return outbox.New(store, slog.New(slog.DiscardHandler))
}

func TestArchiveAndFetch(t *testing.T) {
	store := newMemoryStorage()
	box := newOutbox(store)
	ctx := context.Background()

	require.NoError(t, box.Archive(ctx, testEmail()))

	record := store.blobs[outbox.RecordKey("run-1")]
	assert.Equal(t, "application/json", record.contentType)
	assert.Equal(t, map[string]string{"run_id": "run-1", "intent": "REPLY_EMAIL"}, record.metadata)

	message := store.blobs[outbox.MessageKey("run-1")]
	assert.Equal(t, "message/rfc822", message.contentType)
	assert.Contains(t, string(message.data), "Subject: Re: Meeting\r\n")
	assert.True(t, strings.HasSuffix(string(message.data), "\r\n\r\nHi,\r\nConfirmed.\r\n"))

	got, err := box.Fetch(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, testEmail(), got)
}

func TestArchiveReplaces(t *testing.T) {
	store := newMemoryStorage()
	box := newOutbox(store)
	ctx := context.Background()

	require.NoError(t, box.Archive(ctx, testEmail()))

	edited := testEmail()
	edited.Body = "Edited"
	require.NoError(t, box.Archive(ctx, edited))

	got, err := box.Fetch(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "Edited", got.Body)
	assert.Len(t, store.blobs, 2)
}

func TestArchiveUploadError(t *testing.T) {
	store := newMemoryStorage()
	store.uploadErr = errors.New("unavailable")

	err := newOutbox(store).Archive(context.Background(), testEmail())
	require.Error(t, err)
	assert.ErrorIs(t, err, store.uploadErr)
}

func TestFetchMissing(t *testing.T) {
	_, err := newOutbox(newMemoryStorage()).Fetch(context.Background(), "ghost")
	assert.ErrorIs(t, err, outbox.ErrNotArchived)
	assert.Equal(t, http.StatusNotFound, outbox.MapHTTPStatus(err))
}

func TestRemove(t *testing.T) {
	store := newMemoryStorage()
	box := newOutbox(store)
	ctx := context.Background()

	require.NoError(t, box.Archive(ctx, testEmail()))
	require.NoError(t, box.Remove(ctx, "run-1"))
	assert.Empty(t, store.blobs)

	assert.NoError(t, box.Remove(ctx, "run-1"))
}

func TestMessageWithoutSubject(t *testing.T) {
	email := testEmail()
	email.Subject = ""

	msg := outbox.Message(email)
	assert.NotContains(t, msg, "Subject:")
	assert.Contains(t, msg, "Date: Fri, 14 Nov 2025 09:00:00 +0000\r\n")
	assert.Contains(t, msg, "X-Mailflow-Intent: REPLY_EMAIL\r\n")
}
