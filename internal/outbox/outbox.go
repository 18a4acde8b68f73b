// Package outbox archives approved emails in blob storage.
package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Montabos/Projet/internal/workflow"
	"github.com/Montabos/Projet/pkg/formatting"
	"github.com/Montabos/Projet/pkg/storage"
)

// ErrNotArchived indicates no approved email is stored for the run.
var ErrNotArchived = errors.New("email not archived")

const (
	recordType  = "application/json"
	messageType = "message/rfc822"
)

// Outbox stores each approved email twice: a JSON record read back by
// Fetch, and a plain message that mail clients can open.
type Outbox struct {
	storage storage.System
	logger  *slog.Logger
}

// New creates an Outbox over an initialized storage system.
func New(store storage.System, logger *slog.Logger) *Outbox {
	return &Outbox{
		storage: store,
		logger:  logger.With("system", "outbox"),
	}
}

// RecordKey is the blob key of the JSON record for runID.
func RecordKey(runID string) string {
	return "runs/" + runID + "/email.json"
}

// MessageKey is the blob key of the message file for runID.
func MessageKey(runID string) string {
	return "runs/" + runID + "/email.eml"
}

// Archive writes email to storage. Approving the same run again replaces
// the previous copy.
func (o *Outbox) Archive(ctx context.Context, email workflow.Email) error {
	record, err := json.Marshal(email)
	if err != nil {
		return fmt.Errorf("encode email %s: %w", email.RunID, err)
	}

	metadata := map[string]string{
		"run_id": email.RunID,
		"intent": string(email.Intent),
	}

	if err := o.storage.Upload(ctx, RecordKey(email.RunID), bytes.NewReader(record), recordType, metadata); err != nil {
		return fmt.Errorf("archive record: %w", err)
	}

	message := Message(email)
	if err := o.storage.Upload(ctx, MessageKey(email.RunID), strings.NewReader(message), messageType, metadata); err != nil {
		return fmt.Errorf("archive message: %w", err)
	}

	o.logger.InfoContext(
		ctx, "email archived",
		"run_id", email.RunID,
		"key", RecordKey(email.RunID),
		"size", formatting.FormatBytes(int64(len(record)+len(message)), 1),
	)
	return nil
}

// Fetch reads the archived email for runID.
func (o *Outbox) Fetch(ctx context.Context, runID string) (workflow.Email, error) {
	rc, err := o.storage.Download(ctx, RecordKey(runID))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return workflow.Email{}, fmt.Errorf("%w: %s", ErrNotArchived, runID)
		}
		return workflow.Email{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return workflow.Email{}, fmt.Errorf("read archived email %s: %w", runID, err)
	}

	var email workflow.Email
	if err := json.Unmarshal(data, &email); err != nil {
		return workflow.Email{}, fmt.Errorf("decode archived email %s: %w", runID, err)
	}
	return email, nil
}

// Remove deletes the archived copies for runID. Missing blobs are ignored.
func (o *Outbox) Remove(ctx context.Context, runID string) error {
	for _, key := range []string{RecordKey(runID), MessageKey(runID)} {
		if err := o.storage.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("remove %s: %w", key, err)
		}
	}
	return nil
}

// Message renders email as a minimal RFC 5322 message.
func Message(email workflow.Email) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\r\n", email.ApprovedAt.UTC().Format(time.RFC1123Z))
	if email.Subject != "" {
		fmt.Fprintf(&sb, "Subject: %s\r\n", email.Subject)
	}
	fmt.Fprintf(&sb, "X-Mailflow-Run: %s\r\n", email.RunID)
	fmt.Fprintf(&sb, "X-Mailflow-Intent: %s\r\n", email.Intent)
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	sb.WriteString(strings.ReplaceAll(email.Body, "\n", "\r\n"))
	sb.WriteString("\r\n")
	return sb.String()
}

// MapHTTPStatus maps outbox errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotArchived) {
		return http.StatusNotFound
	}
	return storage.MapHTTPStatus(err)
}
