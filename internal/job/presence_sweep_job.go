package job

import (
	"Mesdo/internal/pkg/logger"
	"Mesdo/internal/service"
	"context"
	log "log/slog"
	"time"

	"github.com/google/uuid"
)

// PresenceSweepJob 清理多实例部署下没有及时下线的在线记录
type PresenceSweepJob struct {
	presence service.PresenceService
	timeout  time.Duration
}

func NewPresenceSweepJob(presence service.PresenceService) *PresenceSweepJob {
	return &PresenceSweepJob{presence: presence, timeout: 30 * time.Second}
}

func (s *PresenceSweepJob) Run() {
	traceID := "job-" + uuid.NewString()
	ctx := context.WithValue(context.Background(), logger.TraceIDKey, traceID)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	removed, err := s.presence.Sweep(ctx)
	if err != nil {
		log.ErrorContext(ctx, "presence sweep error", "err", err)
		return
	}
	if removed > 0 {
		log.InfoContext(ctx, "presence sweep done", "removed", removed)
	}
}
