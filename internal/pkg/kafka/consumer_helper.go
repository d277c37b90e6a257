package kafka

import (
	"context"
	"errors"
	log "log/slog"
	"slices"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/goccy/go-json"
)

const (
	batchSize    = 32
	batchTimeout = 1 * time.Second
)

// ErrSkipMessage 无需重试的消息, 直接提交位点
var ErrSkipMessage = errors.New("skip message")

type LogicFunc func(ctx context.Context, msg *sarama.ConsumerMessage) error

// pullMessageBatch 拉取一批消息并执行业务逻辑
func pullMessageBatch(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim, logic LogicFunc) error {
	batch := make([]*sarama.ConsumerMessage, 0, batchSize)
	ticker := time.NewTicker(batchTimeout)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				if len(batch) > 0 {
					processBatch(session, batch, logic)
				}
				return nil
			}
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				processBatch(session, batch, logic)
				// 清空缓冲区 & 重置定时器
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
				ticker.Reset(batchTimeout)
			}
		case <-ticker.C:
			if len(batch) > 0 {
				processBatch(session, batch, logic)
				batch = make([]*sarama.ConsumerMessage, 0, batchSize)
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// processBatch 并发处理一批消息, 失败的消息退避重试
func processBatch(session sarama.ConsumerGroupSession, messages []*sarama.ConsumerMessage, logic LogicFunc) {
	var wg sync.WaitGroup

	for _, msg := range messages {
		wg.Add(1)

		go func(m *sarama.ConsumerMessage) {
			defer wg.Done()
			retryWithBackoff(session.Context(), func(ctx context.Context) error { return logic(ctx, m) })
		}(msg)
	}

	wg.Wait()

	if len(messages) > 0 {
		lastMsg := messages[len(messages)-1]
		session.MarkMessage(lastMsg, "")
		session.Commit()
	}
}

func retryWithBackoff(ctx context.Context, fn func(ctx context.Context) error) {
	retryInterval := 100 * time.Millisecond
	for {
		err := fn(ctx)
		if err == nil || errors.Is(err, ErrSkipMessage) {
			return
		}
		log.ErrorContext(ctx, "process message error", "err", err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(retryInterval):
		}

		retryInterval *= 2
		if retryInterval > 5*time.Second {
			retryInterval = 5 * time.Second
		}
	}
}

// ToCanalMessage 将kafka消息转换为canal消息结构体, 只接受 tables 中的表
func ToCanalMessage(msg *sarama.ConsumerMessage, tables ...string) (*CanalMessage, error) {
	var canalMsg CanalMessage
	if err := json.Unmarshal(msg.Value, &canalMsg); err != nil {
		log.Error("unmarshal canal message error", "err", err)
		return nil, ErrSkipMessage
	}

	if canalMsg.IsDDL || !slices.Contains(tables, canalMsg.Table) {
		return nil, ErrSkipMessage
	}

	if len(canalMsg.Data) == 0 {
		return nil, ErrSkipMessage
	}

	return &canalMsg, nil
}
