package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sandeepkv93/vigil/internal/clock"
	"github.com/sandeepkv93/vigil/internal/logging"
	"github.com/sandeepkv93/vigil/internal/model"
)

var ErrNoIdentity = errors.New("store: no user identity for sync")

// Identity names the account alarms are attributed to when synchronized.
type Identity interface {
	UserID() string
}

// StaticIdentity is an Identity fixed by configuration.
type StaticIdentity string

func (s StaticIdentity) UserID() string { return strings.TrimSpace(string(s)) }

// Remote is a best-effort settings store keyed by user.
type Remote interface {
	Pull(ctx context.Context, userID string) ([]model.Alarm, error)
	Push(ctx context.Context, userID string, alarms []model.Alarm) error
}

type remoteDocument struct {
	User      string        `yaml:"user"`
	UpdatedAt time.Time     `yaml:"updatedAt"`
	Alarms    []model.Alarm `yaml:"alarms"`
}

// FileRemote keeps one YAML document per user in a shared directory. A nil
// Clock stamps documents with the wall clock.
type FileRemote struct {
	Dir   string
	Clock clock.Clock
}

func (r FileRemote) path(userID string) string {
	return filepath.Join(r.Dir, sanitizeUser(userID)+".yaml")
}

func (r FileRemote) Pull(ctx context.Context, userID string) ([]model.Alarm, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(r.path(userID))
	if errors.Is(err, os.ErrNotExist) {
		return []model.Alarm{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read remote: %w", err)
	}
	var doc remoteDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode remote: %w", err)
	}
	if doc.Alarms == nil {
		return []model.Alarm{}, nil
	}
	return doc.Alarms, nil
}

func (r FileRemote) Push(ctx context.Context, userID string, alarms []model.Alarm) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var clk clock.Clock = clock.Real{}
	if r.Clock != nil {
		clk = r.Clock
	}
	raw, err := yaml.Marshal(remoteDocument{User: userID, UpdatedAt: clk.Now().UTC(), Alarms: alarms})
	if err != nil {
		return fmt.Errorf("encode remote: %w", err)
	}
	if err := os.MkdirAll(r.Dir, 0o755); err != nil {
		return fmt.Errorf("create remote dir: %w", err)
	}
	target := r.path(userID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("write remote: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("commit remote: %w", err)
	}
	return nil
}

func sanitizeUser(userID string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, userID)
}

type SyncReport struct {
	Pulled   int
	Imported int
	Skipped  int
	Pushed   int
}

// Syncer merges the remote copy into the local store and pushes the result.
// The local copy wins whenever an id exists on both sides.
type Syncer struct {
	store    *AlarmStore
	remote   Remote
	identity Identity
	logger   *slog.Logger
}

func NewSyncer(store *AlarmStore, remote Remote, identity Identity, logger *slog.Logger) *Syncer {
	return &Syncer{store: store, remote: remote, identity: identity, logger: logging.OrDiscard(logger)}
}

func (s *Syncer) Sync(ctx context.Context) (SyncReport, error) {
	var report SyncReport
	if s.identity == nil || s.identity.UserID() == "" {
		return report, ErrNoIdentity
	}
	user := s.identity.UserID()

	remote, err := s.remote.Pull(ctx, user)
	if err != nil {
		return report, fmt.Errorf("pull: %w", err)
	}
	report.Pulled = len(remote)

	current, err := s.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("read local alarms: %w", err)
	}
	local := make(map[string]bool, len(current))
	for _, a := range current {
		local[a.ID] = true
	}
	for _, a := range remote {
		if local[a.ID] {
			report.Skipped++
			continue
		}
		if importErr := s.store.Import(ctx, a); importErr != nil {
			s.logger.Warn("skipping remote alarm", "alarm_id", a.ID, logging.Err(importErr))
			report.Skipped++
			continue
		}
		report.Imported++
	}

	merged, err := s.store.List(ctx)
	if err != nil {
		return report, fmt.Errorf("read merged alarms: %w", err)
	}
	if err := s.remote.Push(ctx, user, merged); err != nil {
		return report, fmt.Errorf("push: %w", err)
	}
	report.Pushed = len(merged)
	s.logger.Info("sync complete", "user", user, "pulled", report.Pulled, "imported", report.Imported, "pushed", report.Pushed)
	return report, nil
}
