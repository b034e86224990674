package inline

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/url"

	"go.uber.org/zap"

	"universes/internal/client"
)

// Kind names the resource a card shows. It doubles as the API path segment.
type Kind string

const (
	KindTask     Kind = "tasks"
	KindUniverse Kind = "universes"
)

// API is the part of the HTTP client the inline layer calls.
type API interface {
	UpdateTask(ctx context.Context, id uint, fields url.Values) (*client.Task, error)
	UpdateUniverse(ctx context.Context, id uint, fields url.Values) error
	CompleteTask(ctx context.Context, id uint) (*client.Task, error)
	SkipTask(ctx context.Context, id uint) (*client.Task, error)
	UnskipTask(ctx context.Context, id uint) (*client.Task, error)
	DeleteTask(ctx context.Context, id uint) error
	DeleteUniverse(ctx context.Context, id uint) error
	LogTime(ctx context.Context, resource string, id uint, minutes *int, notes string) error
}

var _ API = (*client.Client)(nil)

const saveFallback = "Could not save the change."

// SaveOptions carries fields sent along with the changed one, like the
// unit of an estimate.
type SaveOptions struct {
	Extra url.Values
}

// Saver turns one field change into a full resource update. Every field
// other than the changed one is taken from the card, so the server always
// receives a complete representation.
type Saver struct {
	page *Page
}

// Save sends field=value for the resource. It reports whether the server
// accepted the update; failures have already been shown to the user.
func (s *Saver) Save(ctx context.Context, kind Kind, id uint, field, value string, opts SaveOptions) bool {
	values := url.Values{field: {value}}
	for k, v := range opts.Extra {
		values[k] = v
	}
	return s.SaveValues(ctx, kind, id, values)
}

// SaveValues overlays values onto the card's fields, decodes HTML entities
// and sends the result.
func (s *Saver) SaveValues(ctx context.Context, kind Kind, id uint, values url.Values) bool {
	logger := s.page.logger.With(zap.String("kind", string(kind)), zap.Uint("id", id))
	card, ok := s.page.Card(kind, id)
	if !ok {
		logger.Warn("save for a card that is not on the page")
		s.page.alert(saveFallback)
		return false
	}

	// values may belong to the caller, so decoding writes fresh slices
	fields := card.baseFields()
	for k, v := range values {
		fields[k] = v
	}
	for k, v := range fields {
		decoded := make([]string, len(v))
		for i := range v {
			decoded[i] = html.UnescapeString(v[i])
		}
		fields[k] = decoded
	}

	var err error
	switch kind {
	case KindTask:
		var task *client.Task
		task, err = s.page.api.UpdateTask(ctx, id, fields)
		if err == nil && task != nil {
			card.applyTask(task)
		}
	case KindUniverse:
		err = s.page.api.UpdateUniverse(ctx, id, fields)
	default:
		err = fmt.Errorf("inline: unknown kind %q", kind)
	}
	if err != nil {
		logger.Warn("save failed", zap.Error(err))
		s.page.alert(userMessage(err, saveFallback))
		return false
	}
	return true
}

// userMessage is the alert text for err.
func userMessage(err error, fallback string) string {
	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		return apiErr.UserMessage(fallback)
	}
	return fallback
}
