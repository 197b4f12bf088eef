package relay

import (
	"context"
	"errors"
	"fmt"

	"github.com/sandeepkv93/vigil/internal/model"
	"github.com/sandeepkv93/vigil/internal/storage"
)

// DueSource is the relay's read-only view of the durable store.
type DueSource interface {
	ListArmed(ctx context.Context) ([]model.ArmedInstant, error)
	IsClaimed(ctx context.Context, key model.TriggerKey) (bool, error)
	GetAlarm(ctx context.Context, id string) (model.Alarm, bool)
}

type LedgerReader interface {
	ListArmed(ctx context.Context) ([]storage.ArmedInstant, error)
	GetClaim(ctx context.Context, key string) (storage.TriggerClaim, error)
}

type AlarmReader interface {
	Get(ctx context.Context, id string) (model.Alarm, bool)
}

// StoreSource reads armed instants and claims from the ledger and alarms
// from the alarm store.
type StoreSource struct {
	ledger LedgerReader
	alarms AlarmReader
}

func NewStoreSource(ledger LedgerReader, alarms AlarmReader) *StoreSource {
	return &StoreSource{ledger: ledger, alarms: alarms}
}

func (s *StoreSource) ListArmed(ctx context.Context) ([]model.ArmedInstant, error) {
	rows, err := s.ledger.ListArmed(ctx)
	if err != nil {
		return nil, fmt.Errorf("list armed: %w", err)
	}
	out := make([]model.ArmedInstant, 0, len(rows))
	for _, row := range rows {
		kind := model.ArmKind(row.Kind)
		if !kind.IsValid() {
			kind = model.ArmScheduled
		}
		out = append(out, model.ArmedInstant{AlarmID: row.AlarmID, At: row.FireAt, Kind: kind})
	}
	return out, nil
}

func (s *StoreSource) IsClaimed(ctx context.Context, key model.TriggerKey) (bool, error) {
	_, err := s.ledger.GetClaim(ctx, string(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get claim: %w", err)
	}
	return true, nil
}

func (s *StoreSource) GetAlarm(ctx context.Context, id string) (model.Alarm, bool) {
	return s.alarms.Get(ctx, id)
}
