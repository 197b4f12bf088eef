package tones

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/vigil/internal/audio"
	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/storage"
)

var (
	ErrBuiltinTone = errors.New("tones: built-in tones cannot be modified")
	ErrUnknownTone = errors.New("tones: unknown tone")
)

type ToneRepository interface {
	CreateTone(ctx context.Context, in storage.Tone) error
	GetTone(ctx context.Context, id string) (storage.Tone, error)
	DeleteTone(ctx context.Context, id string) error
	ListTones(ctx context.Context, filter storage.ToneListFilter) ([]storage.Tone, error)
}

// Tone is a library entry without its payload.
type Tone struct {
	ID        string
	Name      string
	MIME      string
	Size      int64
	Builtin   bool
	CreatedAt time.Time
}

// Library maps tone ids to playable sources. Built-in ids name synthesized
// presets; anything else is a stored upload.
type Library struct {
	repo   ToneRepository
	clock  clock.Clock
	logger *slog.Logger
	newID  func() string
}

func NewLibrary(repo ToneRepository, clk clock.Clock, logger *slog.Logger) *Library {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Library{repo: repo, clock: clk, logger: logging.OrDiscard(logger), newID: uuid.NewString}
}

// Upload validates and stores a custom tone, returning its id.
func (l *Library) Upload(ctx context.Context, name, mime string, payload []byte) (string, error) {
	if err := model.ValidateToneUpload(mime, len(payload)); err != nil {
		return "", err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = "custom tone"
	}
	tone := storage.Tone{
		ID:        l.newID(),
		Name:      name,
		MIME:      model.NormalizeMIME(mime),
		Size:      int64(len(payload)),
		Payload:   payload,
		CreatedAt: l.clock.Now().UTC(),
	}
	if err := l.repo.CreateTone(ctx, tone); err != nil {
		return "", fmt.Errorf("store tone: %w", err)
	}
	l.logger.Info("tone uploaded", "tone_id", tone.ID, "mime", tone.MIME, "size", tone.Size)
	return tone.ID, nil
}

// List returns the built-in presets followed by uploads.
func (l *Library) List(ctx context.Context) ([]Tone, error) {
	out := make([]Tone, 0, 8)
	for _, name := range audio.Presets() {
		out = append(out, Tone{ID: name, Name: name, Builtin: true})
	}
	custom, err := l.repo.ListTones(ctx, storage.ToneListFilter{})
	if err != nil {
		return out, fmt.Errorf("list tones: %w", err)
	}
	for _, t := range custom {
		out = append(out, Tone{ID: t.ID, Name: t.Name, MIME: t.MIME, Size: t.Size, CreatedAt: t.CreatedAt})
	}
	return out, nil
}

func (l *Library) Delete(ctx context.Context, id string) error {
	if audio.HasPreset(id) {
		return ErrBuiltinTone
	}
	if err := l.repo.DeleteTone(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownTone, id)
		}
		return fmt.Errorf("delete tone: %w", err)
	}
	return nil
}

// Exists reports whether id names a preset or a stored upload.
func (l *Library) Exists(ctx context.Context, id string) bool {
	if audio.HasPreset(id) {
		return true
	}
	_, err := l.repo.GetTone(ctx, id)
	return err == nil
}

// Resolve never fails: an unknown or unreadable tone resolves to the
// synthesized bell.
func (l *Library) Resolve(ctx context.Context, toneID string) audio.Source {
	if toneID == "" {
		return audio.Source{ToneID: model.DefaultToneID, Preset: audio.PresetBell}
	}
	if audio.HasPreset(toneID) {
		return audio.Source{ToneID: toneID, Preset: toneID}
	}
	tone, err := l.repo.GetTone(ctx, toneID)
	if err != nil {
		l.logger.Warn("tone unavailable; using synthesized bell", "tone_id", toneID, logging.Err(err))
		return audio.Source{ToneID: toneID, Preset: audio.PresetBell}
	}
	return audio.Source{ToneID: toneID, Preset: audio.PresetBell, MIME: tone.MIME, Payload: tone.Payload}
}
