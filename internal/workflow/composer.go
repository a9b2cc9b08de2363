package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/metrics"
	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/platform"
	"github.com/maheshrc27/postify/internal/storage"
)

type Generator interface {
	Generate(ctx context.Context, req gateway.GenerateRequest) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, req gateway.PublishRequest) error
}

// HistoryRecorder stores one row per publish attempt.
type HistoryRecorder interface {
	Create(ctx context.Context, rec *models.PublishRecord) (int64, error)
}

// Composer holds what every draft needs: the platform table, credentials,
// attachment storage and the generation and publishing services.
type Composer struct {
	connector *Connector
	media     storage.MediaStore
	generator Generator
	publisher Publisher
	history   HistoryRecorder
	metrics   metrics.Recorder
	now       func() time.Time
}

type ComposerOption func(*Composer)

func WithHistory(h HistoryRecorder) ComposerOption {
	return func(c *Composer) { c.history = h }
}

func WithComposerMetrics(m metrics.Recorder) ComposerOption {
	return func(c *Composer) { c.metrics = m }
}

func WithComposerClock(now func() time.Time) ComposerOption {
	return func(c *Composer) { c.now = now }
}

func NewComposer(connector *Connector, media storage.MediaStore, generator Generator, publisher Publisher, opts ...ComposerOption) *Composer {
	c := &Composer{
		connector: connector,
		media:     media,
		generator: generator,
		publisher: publisher,
		metrics:   metrics.Nop{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDraft starts an empty draft with every connected platform selected.
func (c *Composer) NewDraft(ctx context.Context, userID int64) (*Draft, error) {
	selected, err := c.connector.Connected(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := &Draft{composer: c, userID: userID}
	d.resetLocked(selected)
	return d, nil
}

func (c *Composer) registry() *platform.Registry {
	return c.connector.Registry()
}

// sniffImage returns the MIME type of data, or a validation error when it is
// not an image.
func sniffImage(data []byte) (string, error) {
	if len(data) > platform.MaxImageSize {
		return "", apperr.New(apperr.KindPayloadTooLarge, fmt.Sprintf("image exceeds %d MB", platform.MaxImageSize/(1024*1024)))
	}
	kind, err := filetype.Match(data)
	if err != nil || kind == types.Unknown || !filetype.IsImage(data) {
		return "", apperr.Validation("unsupported file type, only images are allowed", "image")
	}
	return kind.MIME.Value, nil
}

func (c *Composer) loadImage(ctx context.Context, a *Attachment) (*gateway.Image, error) {
	if a == nil {
		return nil, nil
	}
	data, err := c.media.Get(ctx, a.Key)
	if err != nil {
		return nil, fmt.Errorf("load attachment %s: %w", a.Key, err)
	}
	return &gateway.Image{Name: a.Name, ContentType: a.ContentType, Data: data}, nil
}

func (c *Composer) deleteImage(ctx context.Context, a *Attachment) {
	if a == nil {
		return
	}
	if err := c.media.Delete(ctx, a.Key); err != nil {
		slog.Warn("failed to delete draft attachment", "key", a.Key, "error", err.Error())
	}
}

// credentials loads the credential blob of each selected platform. A
// platform that is no longer connected fails the whole publish.
func (c *Composer) credentials(ctx context.Context, userID int64, selected []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(selected))
	for _, name := range selected {
		set, connected, err := c.connector.Load(ctx, userID, name)
		if err != nil {
			return nil, err
		}
		if !connected {
			return nil, &apperr.Error{Kind: apperr.KindConflict, Message: name + " is no longer connected", Err: ErrPlatformNotConnected}
		}
		out[name] = set.Fields
	}
	return out, nil
}

func (c *Composer) record(ctx context.Context, rec *models.PublishRecord) {
	if c.history == nil {
		return
	}
	if _, err := c.history.Create(ctx, rec); err != nil {
		slog.Warn("failed to record publish attempt", "user_id", rec.UserID, "status", rec.Status, "error", err.Error())
	}
}
