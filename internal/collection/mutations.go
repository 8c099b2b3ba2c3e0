package collection

import (
	"context"

	"github.com/Spok95/bom-tracker/internal/domain/bom"
	"github.com/Spok95/bom-tracker/internal/infra/metrics"
	"github.com/Spok95/bom-tracker/internal/remote"
	"go.uber.org/zap"
)

// Группы полей, которые клиент вообще имеет право писать.
const (
	groupStatus        = "status"
	groupExpected      = "expected_completion"
	groupNotToTransfer = "not_to_transfer"
	groupPlannedStart  = "planned_start"
)

// UpdateStatus пишет статус и время его смены одним вызовом.
// Локальный снимок не трогаем: изменение придёт со следующим снимком.
func (s *Store) UpdateStatus(ctx context.Context, id string, status bom.TransferStatus) bool {
	st, ok := bom.LookupStatus(string(status))
	if !ok {
		s.log.Warn("unknown transfer status", zap.String("id", id), zap.String("status", string(status)))
		metrics.Writes.WithLabelValues(groupStatus, "invalid").Inc()
		return false
	}
	return s.write(ctx, groupStatus, id, map[string]any{
		bom.FieldTransferStatus:  string(st),
		bom.FieldStatusUpdatedAt: bom.Timestamp(s.now()),
	})
}

// UpdateExpectedCompletion nil очищает дату.
func (s *Store) UpdateExpectedCompletion(ctx context.Context, id string, date *string) bool {
	return s.write(ctx, groupExpected, id, map[string]any{
		bom.FieldExpectedCompletion: optional(date),
	})
}

// UpdateNotToTransferDetails причина и бренд всегда пишутся вместе.
func (s *Store) UpdateNotToTransferDetails(ctx context.Context, id, reason, brand string) bool {
	return s.write(ctx, groupNotToTransfer, id, map[string]any{
		bom.FieldNotToTransferReason: reason,
		bom.FieldBrand:               brand,
	})
}

// UpdatePlannedStart nil очищает дату.
func (s *Store) UpdatePlannedStart(ctx context.Context, id string, date *string) bool {
	return s.write(ctx, groupPlannedStart, id, map[string]any{
		bom.FieldPlannedStart: optional(date),
	})
}

func optional(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func (s *Store) write(ctx context.Context, group, id string, fields map[string]any) (ok bool) {
	log := s.log.With(zap.String("group", group), zap.String("id", id))
	defer func() {
		if r := recover(); r != nil {
			log.Error("remote write panicked", zap.Any("panic", r))
			metrics.Writes.WithLabelValues(group, "error").Inc()
			ok = false
		}
	}()

	updates := make(remote.Updates, len(fields))
	for field, v := range fields {
		p, err := remote.Path(s.collection, id, field)
		if err != nil {
			log.Warn("invalid write path", zap.Error(err))
			metrics.Writes.WithLabelValues(group, "invalid").Inc()
			return false
		}
		updates[p] = v
	}

	if err := s.writer.WriteFields(ctx, updates); err != nil {
		log.Warn("remote write failed", zap.Error(err))
		metrics.Writes.WithLabelValues(group, "error").Inc()
		return false
	}
	metrics.Writes.WithLabelValues(group, "ok").Inc()
	log.Info("remote write applied")
	return true
}
