package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/maheshrc27/postify/internal/apperr"
	"github.com/maheshrc27/postify/internal/gateway"
	"github.com/maheshrc27/postify/internal/models"
)

type DraftState string

const (
	DraftComposing      DraftState = "composing"
	DraftPreviewPending DraftState = "preview_pending"
	DraftPreviewed      DraftState = "previewed"
	DraftPublishing     DraftState = "publishing"
)

type Attachment struct {
	Key         string `json:"-"`
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

type DraftSnapshot struct {
	ID               string      `json:"id"`
	State            DraftState  `json:"state"`
	Content          string      `json:"content"`
	Platforms        []string    `json:"platforms"`
	Image            *Attachment `json:"image,omitempty"`
	PreviewContent   string      `json:"preview_content"`
	PreviewGenerated bool        `json:"preview_generated"`
	Length           int         `json:"length"`
	Limit            int         `json:"limit"`
	Busy             bool        `json:"busy"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Draft is one user's post in progress. It is never persisted. Any edit
// clears the generated preview, so Publish always sends text that was
// previewed for the current content, selection and image.
type Draft struct {
	composer *Composer
	userID   int64

	mu               sync.Mutex
	id               string
	state            DraftState
	content          string
	platforms        []string
	image            *Attachment
	previewContent   string
	previewGenerated bool
	epoch            uint64
	inFlight         bool
	updatedAt        time.Time
}

func (d *Draft) Snapshot() DraftSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshotLocked()
}

func (d *Draft) snapshotLocked() DraftSnapshot {
	var image *Attachment
	if d.image != nil {
		a := *d.image
		image = &a
	}
	return DraftSnapshot{
		ID:               d.id,
		State:            d.state,
		Content:          d.content,
		Platforms:        append([]string{}, d.platforms...),
		Image:            image,
		PreviewContent:   d.previewContent,
		PreviewGenerated: d.previewGenerated,
		Length:           utf8.RuneCountInString(d.content),
		Limit:            d.composer.registry().Limit(d.platforms),
		Busy:             d.inFlight,
		UpdatedAt:        d.updatedAt,
	}
}

// IdleSince reports when the draft was last touched and whether a call is
// running against it.
func (d *Draft) IdleSince() (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updatedAt, d.inFlight
}

func (d *Draft) resetLocked(selected []string) {
	d.id = uuid.NewString()
	d.state = DraftComposing
	d.content = ""
	d.platforms = append([]string{}, selected...)
	d.image = nil
	d.previewContent = ""
	d.previewGenerated = false
	d.epoch++
	d.inFlight = false
	d.updatedAt = d.composer.now()
}

// editLocked clears the preview gate. A preview still being generated is
// abandoned.
func (d *Draft) editLocked() {
	if d.state == DraftPreviewPending {
		d.epoch++
		d.inFlight = false
	}
	d.state = DraftComposing
	d.previewContent = ""
	d.previewGenerated = false
	d.updatedAt = d.composer.now()
}

func (d *Draft) checkEditableLocked() error {
	if d.state == DraftPublishing {
		return conflict(ErrBusy)
	}
	return nil
}

func (d *Draft) limitError(limit int) error {
	return apperr.Validation(fmt.Sprintf("content exceeds the %d character limit", limit), "content")
}

// SetContent replaces the text. Text longer than the limit of the current
// selection is rejected and the draft keeps its previous content.
func (d *Draft) SetContent(text string) (DraftSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkEditableLocked(); err != nil {
		return d.snapshotLocked(), err
	}
	if limit := d.composer.registry().Limit(d.platforms); utf8.RuneCountInString(text) > limit {
		return d.snapshotLocked(), d.limitError(limit)
	}
	d.editLocked()
	d.content = text
	return d.snapshotLocked(), nil
}

// TogglePlatform selects or deselects name. Only connected platforms can be
// selected.
func (d *Draft) TogglePlatform(ctx context.Context, name string) (DraftSnapshot, error) {
	p, ok := d.composer.registry().Get(name)
	if !ok {
		return d.Snapshot(), unknownPlatform(name)
	}

	d.mu.Lock()
	if err := d.checkEditableLocked(); err != nil {
		defer d.mu.Unlock()
		return d.snapshotLocked(), err
	}
	if i := indexOf(d.platforms, p.Name); i >= 0 {
		defer d.mu.Unlock()
		d.platforms = append(d.platforms[:i:i], d.platforms[i+1:]...)
		d.editLocked()
		return d.snapshotLocked(), nil
	}
	d.mu.Unlock()

	_, connected, err := d.composer.connector.Load(ctx, d.userID, p.Name)
	if err != nil {
		return d.Snapshot(), err
	}
	if !connected {
		return d.Snapshot(), &apperr.Error{Kind: apperr.KindConflict, Message: p.DisplayName + " is not connected", Err: ErrPlatformNotConnected}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.checkEditableLocked(); err != nil {
		return d.snapshotLocked(), err
	}
	if indexOf(d.platforms, p.Name) < 0 {
		d.platforms = d.orderedLocked(append(d.platforms, p.Name))
	}
	d.editLocked()
	return d.snapshotLocked(), nil
}

func (d *Draft) orderedLocked(selected []string) []string {
	out := make([]string, 0, len(selected))
	for _, name := range d.composer.registry().Names() {
		if indexOf(selected, name) >= 0 {
			out = append(out, name)
		}
	}
	return out
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// AttachImage stores data as the draft's image, replacing any previous one.
func (d *Draft) AttachImage(ctx context.Context, name string, data []byte) (DraftSnapshot, error) {
	contentType, err := sniffImage(data)
	if err != nil {
		return d.Snapshot(), err
	}

	d.mu.Lock()
	err = d.checkEditableLocked()
	d.mu.Unlock()
	if err != nil {
		return d.Snapshot(), err
	}

	key, err := d.composer.media.Put(ctx, data, contentType)
	if err != nil {
		return d.Snapshot(), fmt.Errorf("store attachment: %w", err)
	}
	attachment := &Attachment{Key: key, Name: name, ContentType: contentType, Size: len(data)}

	d.mu.Lock()
	if err := d.checkEditableLocked(); err != nil {
		snap := d.snapshotLocked()
		d.mu.Unlock()
		d.composer.deleteImage(ctx, attachment)
		return snap, err
	}
	old := d.image
	d.image = attachment
	d.editLocked()
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.composer.deleteImage(ctx, old)
	return snap, nil
}

func (d *Draft) RemoveImage(ctx context.Context) (DraftSnapshot, error) {
	d.mu.Lock()
	if err := d.checkEditableLocked(); err != nil {
		defer d.mu.Unlock()
		return d.snapshotLocked(), err
	}
	old := d.image
	if old != nil {
		d.image = nil
		d.editLocked()
	}
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.composer.deleteImage(ctx, old)
	return snap, nil
}

// Preview sends the draft to the generation service and stores the
// returned text unchanged. On failure the draft is left as it was.
func (d *Draft) Preview(ctx context.Context) (DraftSnapshot, error) {
	d.mu.Lock()
	if d.inFlight {
		defer d.mu.Unlock()
		return d.snapshotLocked(), conflict(ErrBusy)
	}
	if len(d.platforms) == 0 {
		defer d.mu.Unlock()
		return d.snapshotLocked(), apperr.Validation("select at least one platform", "platforms")
	}
	if strings.TrimSpace(d.content) == "" {
		defer d.mu.Unlock()
		return d.snapshotLocked(), apperr.Validation("content is required", "content")
	}
	if limit := d.composer.registry().Limit(d.platforms); utf8.RuneCountInString(d.content) > limit {
		defer d.mu.Unlock()
		return d.snapshotLocked(), d.limitError(limit)
	}

	prev := d.state
	d.state = DraftPreviewPending
	d.epoch++
	d.inFlight = true
	epoch := d.epoch
	content := d.content
	platforms := append([]string{}, d.platforms...)
	attachment := d.image
	d.mu.Unlock()

	started := d.composer.now()
	text, err := d.generate(ctx, content, platforms, attachment)
	latency := d.composer.now().Sub(started)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch != epoch {
		return d.snapshotLocked(), conflict(ErrStale)
	}
	d.inFlight = false
	if err != nil {
		d.state = prev
		d.composer.metrics.RecordPreview("failed", latency)
		slog.Info(err.Error())
		return d.snapshotLocked(), apperr.Wrap(apperr.KindPreviewGeneration, "failed to generate preview", err)
	}

	d.state = DraftPreviewed
	d.previewContent = text
	d.previewGenerated = true
	d.updatedAt = d.composer.now()
	d.composer.metrics.RecordPreview("ok", latency)
	return d.snapshotLocked(), nil
}

func (d *Draft) generate(ctx context.Context, content string, platforms []string, attachment *Attachment) (string, error) {
	image, err := d.composer.loadImage(ctx, attachment)
	if err != nil {
		return "", err
	}
	out, err := d.composer.generator.Generate(ctx, gateway.GenerateRequest{
		Content:   content,
		Image:     image,
		Platforms: platforms,
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// Publish sends the previewed text, falling back to the raw content when the
// preview came back empty. Success starts a fresh draft; failure keeps the
// draft as it was so the user can retry.
func (d *Draft) Publish(ctx context.Context) (DraftSnapshot, error) {
	d.mu.Lock()
	if d.inFlight {
		defer d.mu.Unlock()
		return d.snapshotLocked(), conflict(ErrBusy)
	}
	if !d.previewGenerated {
		defer d.mu.Unlock()
		return d.snapshotLocked(), apperr.ErrPreviewRequired
	}

	prev := d.state
	d.state = DraftPublishing
	d.epoch++
	d.inFlight = true
	epoch := d.epoch
	text := d.previewContent
	if strings.TrimSpace(text) == "" {
		text = d.content
	}
	platforms := append([]string{}, d.platforms...)
	attachment := d.image
	d.mu.Unlock()

	restore := func(err error) (DraftSnapshot, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		if d.epoch == epoch {
			d.state = prev
			d.inFlight = false
		}
		return d.snapshotLocked(), err
	}

	creds, err := d.composer.credentials(ctx, d.userID, platforms)
	if err != nil {
		return restore(err)
	}
	image, err := d.composer.loadImage(ctx, attachment)
	if err != nil {
		return restore(apperr.Wrap(apperr.KindPublish, "failed to publish post", err))
	}

	err = d.composer.publisher.Publish(ctx, gateway.PublishRequest{
		Content:     text,
		Image:       image,
		Platforms:   platforms,
		Credentials: creds,
	})

	rec := &models.PublishRecord{
		UserID:    d.userID,
		Platforms: platforms,
		Content:   text,
		HasImage:  attachment != nil,
		Status:    models.PublishStatusPublished,
		CreatedAt: d.composer.now().UTC(),
	}
	if err != nil {
		rec.Status = models.PublishStatusFailed
		rec.ErrorMessage = err.Error()
	}
	d.composer.record(context.WithoutCancel(ctx), rec)
	for _, name := range platforms {
		d.composer.metrics.RecordPublish(name, rec.Status)
	}

	if err != nil {
		slog.Info(err.Error())
		return restore(apperr.Wrap(apperr.KindPublish, "failed to publish post", err))
	}

	d.composer.deleteImage(context.WithoutCancel(ctx), attachment)

	selected, lookupErr := d.composer.connector.Connected(ctx, d.userID)
	if lookupErr != nil {
		selected = platforms
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.epoch == epoch {
		d.resetLocked(selected)
	}
	return d.snapshotLocked(), nil
}

// Reset discards the draft and starts an empty one. An in-flight preview is
// abandoned; a publish in progress cannot be reset.
func (d *Draft) Reset(ctx context.Context) (DraftSnapshot, error) {
	selected, err := d.composer.connector.Connected(ctx, d.userID)
	if err != nil {
		return d.Snapshot(), err
	}

	d.mu.Lock()
	if err := d.checkEditableLocked(); err != nil {
		defer d.mu.Unlock()
		return d.snapshotLocked(), err
	}
	old := d.image
	d.resetLocked(selected)
	snap := d.snapshotLocked()
	d.mu.Unlock()

	d.composer.deleteImage(ctx, old)
	return snap, nil
}

// Discard drops the attachment and abandons any preview. It reports false
// when a publish is running and the draft must be left alone.
func (d *Draft) Discard(ctx context.Context) bool {
	d.mu.Lock()
	if d.state == DraftPublishing {
		d.mu.Unlock()
		return false
	}
	old := d.discardLocked()
	d.mu.Unlock()

	d.composer.deleteImage(ctx, old)
	return true
}

// DiscardIdle discards the draft only if it has not been touched since
// cutoff and no call is in flight.
func (d *Draft) DiscardIdle(ctx context.Context, cutoff time.Time) bool {
	d.mu.Lock()
	if d.inFlight || d.state == DraftPublishing || !d.updatedAt.Before(cutoff) {
		d.mu.Unlock()
		return false
	}
	old := d.discardLocked()
	d.mu.Unlock()

	d.composer.deleteImage(ctx, old)
	return true
}

func (d *Draft) discardLocked() *Attachment {
	old := d.image
	d.image = nil
	d.state = DraftComposing
	d.previewContent = ""
	d.previewGenerated = false
	d.epoch++
	d.inFlight = false
	return old
}
