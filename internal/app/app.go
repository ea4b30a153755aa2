package app

import (
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic fingerprint
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bounce-hq/bounce/internal/config"
	"github.com/bounce-hq/bounce/internal/domain"
	"github.com/bounce-hq/bounce/internal/logger"
	"github.com/bounce-hq/bounce/internal/storage"
	"github.com/bounce-hq/bounce/pkg/bounceclient"
	"github.com/bounce-hq/bounce/pkg/httpclient"
	"github.com/bounce-hq/bounce/pkg/publishers"
)

// SuccessMessage is shown after the backend accepted a bounce.
const SuccessMessage = "Bounce created 🎉"

var (
	// ErrEmptyTitle is returned before any request when the title is blank.
	ErrEmptyTitle = errors.New("title is required")
	// ErrDuplicate is returned when the same bounce was submitted within the guard TTL.
	ErrDuplicate = errors.New("bounce already submitted recently")
)

// App wires the bounce client with the optional submission guard and notification fan-out.
type App struct {
	client *bounceclient.Client
	guard  storage.Store
	fanout *publishers.Fanout
	log    logger.Logger
}

// CreateInput carries what the user entered. A nil Friend means no friend was invited.
type CreateInput struct {
	Title  string
	Date   time.Time
	Friend *string
	Force  bool
}

// Outcome describes an accepted bounce.
type Outcome struct {
	BounceID  string
	Display   string
	Published int
}

// New builds the runtime from config.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	opts := []bounceclient.Option{bounceclient.WithLogger(log)}
	if cfg.StrictHealth {
		opts = append(opts, bounceclient.WithStrictHealth())
	}
	client := bounceclient.New(cfg.BaseURL, httpclient.NewRestyClient(cfg.HTTPTimeout), opts...)
	log.InfoObj("bounce client configured", "client_config", map[string]any{
		"base_url":        client.BaseURL(),
		"timeout_seconds": int(cfg.HTTPTimeout.Seconds()),
		"strict_health":   cfg.StrictHealth,
	})

	guard, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{TTL: cfg.DedupeTTL})
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg.PublishersFile, log)
	if err != nil {
		guard.Close()
		return nil, err
	}

	return newApp(client, guard, fanout, log), nil
}

func newApp(client *bounceclient.Client, guard storage.Store, fanout *publishers.Fanout, log logger.Logger) *App {
	if guard == nil {
		guard, _ = storage.NewStore("none", "", storage.Options{})
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	return &App{client: client, guard: guard, fanout: fanout, log: log}
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*publishers.Fanout, error) {
	if path == "" {
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	fanout, err := publishers.DefaultBuilders().Build(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]string{"id": c.ID, "type": c.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return fanout, nil
}

// Close releases the guard and publishers.
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	return errors.Join(a.guard.Close(), a.fanout.Close())
}

// Health probes the backend.
func (a *App) Health(ctx context.Context) (map[string]string, error) {
	res := <-a.client.CheckHealthAsync(ctx)
	if res.Err != nil {
		return nil, fmt.Errorf("health check: %w", res.Err)
	}
	a.log.InfoObj("backend healthy", "health", res.Value)
	return res.Value, nil
}

// Create submits a bounce, then notifies publishers. Publisher failures are
// logged and never fail an accepted bounce.
func (a *App) Create(ctx context.Context, in CreateInput) (Outcome, error) {
	if strings.TrimSpace(in.Title) == "" {
		return Outcome{}, ErrEmptyTitle
	}

	bounce := domain.New(in.Title, in.Date, in.Friend)
	key := Fingerprint(bounce)
	if !in.Force {
		seen, err := a.guard.Seen(key)
		if err != nil {
			a.log.WarnObj("submission guard lookup failed", "guard_error", err.Error())
		} else if seen {
			return Outcome{}, ErrDuplicate
		}
	}

	if err := a.client.Submit(ctx, bounce); err != nil {
		return Outcome{}, fmt.Errorf("create bounce: %w", err)
	}

	if err := a.guard.Mark(key); err != nil {
		a.log.WarnObj("submission guard mark failed", "guard_error", err.Error())
	}

	published := a.notify(ctx, bounce)

	out := Outcome{
		BounceID:  bounce.ID().String(),
		Display:   bounce.FormattedDisplay(),
		Published: published,
	}
	a.log.InfoObj("bounce created", "bounce", out)
	return out, nil
}

// notify fans the accepted bounce out to the configured sinks and reports
// how many took it.
func (a *App) notify(ctx context.Context, bounce domain.Bounce) int {
	if a.fanout.Size() == 0 {
		return 0
	}
	evt, err := publishers.NewEvent(bounce)
	if err != nil {
		a.log.ErrorObj("bounce notification skipped", "publish_error", map[string]any{
			"bounce_id": bounce.ID().String(),
			"error":     err.Error(),
		})
		return 0
	}
	published, err := a.fanout.Publish(ctx, evt)
	if err != nil {
		a.log.ErrorObj("bounce notification failed", "publish_error", map[string]any{
			"bounce_id": bounce.ID().String(),
			"delivered": published,
			"error":     err.Error(),
		})
	}
	return published
}

// SampleView is a fixture rendered for display.
type SampleView struct {
	Title   string
	Display string
}

// Samples renders the canned fixtures relative to now in loc.
func Samples(now time.Time, loc *time.Location) []SampleView {
	samples := domain.SampleBounces(now)
	out := make([]SampleView, 0, len(samples))
	for _, b := range samples {
		out = append(out, SampleView{Title: b.Title(), Display: b.FormattedDisplayIn(loc)})
	}
	return out
}

// Fingerprint identifies a submission by the content that goes on the wire.
// The id is left out so two submits of the same content collide.
func Fingerprint(b domain.Bounce) string {
	var sb strings.Builder
	sb.WriteString(b.Title())
	sb.WriteByte(0)
	sb.WriteString(b.Date().UTC().Format(time.RFC3339Nano))
	sb.WriteByte(0)
	if friend, ok := b.Friend(); ok {
		sb.WriteByte('+')
		sb.WriteString(friend)
	}
	sum := sha1.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// Message renders err for a person.
func Message(err error) string {
	if err == nil {
		return SuccessMessage
	}
	switch {
	case errors.Is(err, ErrEmptyTitle):
		return "Error: give the bounce a title"
	case errors.Is(err, ErrDuplicate):
		return "Error: this bounce was already sent"
	case errors.Is(err, bounceclient.ErrTransport):
		return "Error: could not reach the bounce service"
	case errors.Is(err, bounceclient.ErrEncode):
		return "Error: could not prepare the bounce"
	case errors.Is(err, bounceclient.ErrDecode):
		return "Error: unexpected response from the bounce service"
	}
	if status, ok := bounceclient.StatusOf(err); ok {
		return fmt.Sprintf("Error: the bounce service responded with status %d", status)
	}
	return "Error: " + err.Error()
}
