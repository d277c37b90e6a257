package imclient

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"sync"
	"time"
)

const DefaultTypingQuiet = 2 * time.Second

// Sender 由 Client 实现
type Sender interface {
	Send(event string, data any) error
}

// TypingNotifier 连续输入只发一次 typing-start, 停止输入 quiet 之后发 typing-stop
type TypingNotifier struct {
	sender Sender
	convID uint64
	quiet  time.Duration

	mu     sync.Mutex
	typing bool
	gen    uint64
	timer  *time.Timer
}

func NewTypingNotifier(sender Sender, convID uint64, quiet time.Duration) *TypingNotifier {
	if quiet <= 0 {
		quiet = DefaultTypingQuiet
	}
	return &TypingNotifier{sender: sender, convID: convID, quiet: quiet}
}

// Keystroke 每次输入调用
func (n *TypingNotifier) Keystroke() {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.typing {
		n.typing = true
		_ = n.sender.Send(consts.EventTypingStart, dto.ConversationPayload{ConversationID: n.convID})
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.gen++
	gen := n.gen
	n.timer = time.AfterFunc(n.quiet, func() { n.expire(gen) })
}

func (n *TypingNotifier) expire(gen uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if gen != n.gen {
		return
	}
	n.stopLocked()
}

// Stop 消息发出或视图关闭时立即结束输入状态
func (n *TypingNotifier) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.gen++
	n.stopLocked()
}

func (n *TypingNotifier) stopLocked() {
	if n.timer != nil {
		n.timer.Stop()
		n.timer = nil
	}
	if !n.typing {
		return
	}
	n.typing = false
	_ = n.sender.Send(consts.EventTypingStop, dto.ConversationPayload{ConversationID: n.convID})
}

type typingEntry struct {
	gen   uint64
	timer *time.Timer
	last  dto.TypingDTO
}

// TypingTracker 记录对端输入状态, 收不到新的 typing 超过 quiet 即视为停止
type TypingTracker struct {
	quiet    time.Duration
	onChange func(dto.TypingDTO)

	mu      sync.Mutex
	gen     uint64
	entries map[model.ParticipantRef]*typingEntry
	closed  bool
}

func NewTypingTracker(quiet time.Duration, onChange func(dto.TypingDTO)) *TypingTracker {
	if quiet <= 0 {
		quiet = DefaultTypingQuiet
	}
	if onChange == nil {
		onChange = func(dto.TypingDTO) {}
	}
	return &TypingTracker{
		quiet:    quiet,
		onChange: onChange,
		entries:  make(map[model.ParticipantRef]*typingEntry),
	}
}

// Observe 处理一条 typing 或 stopped-typing 事件
func (t *TypingTracker) Observe(ev dto.TypingDTO) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}

	entry, exists := t.entries[ev.User]
	if !ev.IsTyping {
		if exists {
			entry.timer.Stop()
			delete(t.entries, ev.User)
		}
		t.mu.Unlock()
		if exists {
			t.onChange(ev)
		}
		return
	}

	t.gen++
	gen := t.gen
	if exists {
		entry.timer.Stop()
	} else {
		entry = &typingEntry{}
		t.entries[ev.User] = entry
	}
	entry.gen = gen
	entry.last = ev
	entry.timer = time.AfterFunc(t.quiet, func() { t.expire(ev.User, gen) })
	t.mu.Unlock()

	if !exists {
		t.onChange(ev)
	}
}

func (t *TypingTracker) expire(ref model.ParticipantRef, gen uint64) {
	t.mu.Lock()
	entry, ok := t.entries[ref]
	if !ok || entry.gen != gen || t.closed {
		t.mu.Unlock()
		return
	}
	delete(t.entries, ref)
	stopped := entry.last
	stopped.IsTyping = false
	t.mu.Unlock()

	t.onChange(stopped)
}

// Typing 当前正在输入的参与方
func (t *TypingTracker) Typing() []model.ParticipantRef {
	t.mu.Lock()
	defer t.mu.Unlock()
	refs := make([]model.ParticipantRef, 0, len(t.entries))
	for ref := range t.entries {
		refs = append(refs, ref)
	}
	return refs
}

func (t *TypingTracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	for ref, entry := range t.entries {
		entry.timer.Stop()
		delete(t.entries, ref)
	}
}
