package imclient

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/realtime"
	"sync"
	"time"
)

// View 单个会话的订阅作用域, Close 时注销全部监听并离开房间
type View struct {
	client *Client
	convID uint64

	mu        sync.Mutex
	disposers []func()
	closed    bool
}

// View 打开会话视图, 多个视图共享同一个房间
func (c *Client) View(convID uint64) *View {
	c.acquire(convID)
	return &View{client: c, convID: convID}
}

func (v *View) ConversationID() uint64 { return v.convID }

// On 只把属于本会话的事件交给 fn
func (v *View) On(event string, fn Handler) func() {
	dispose := v.client.On(event, func(env realtime.Envelope) {
		var scope struct {
			ConversationID uint64 `json:"conversationId"`
		}
		if err := env.Bind(&scope); err != nil || scope.ConversationID != v.convID {
			return
		}
		fn(env)
	})

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		dispose()
		return func() {}
	}
	v.disposers = append(v.disposers, dispose)
	return dispose
}

func onTyped[T any](v *View, event string, fn func(T)) func() {
	return v.On(event, func(env realtime.Envelope) {
		var data T
		if err := env.Bind(&data); err != nil {
			return
		}
		fn(data)
	})
}

func (v *View) OnNewMessage(fn func(dto.MessageDTO)) func() {
	return onTyped(v, consts.EventNewMessage, fn)
}

func (v *View) OnMessageRead(fn func(dto.ReadReceiptDTO)) func() {
	return onTyped(v, consts.EventMessageRead, fn)
}

func (v *View) OnReaction(fn func(dto.ReactionDTO)) func() {
	return onTyped(v, consts.EventMessageReactionAdded, fn)
}

func (v *View) OnParticipantAdded(fn func(dto.ParticipantEventDTO)) func() {
	return onTyped(v, consts.EventParticipantAdded, fn)
}

func (v *View) OnParticipantRemoved(fn func(dto.ParticipantEventDTO)) func() {
	return onTyped(v, consts.EventParticipantRemoved, fn)
}

// OnRoomPresence 其他连接进入或离开本会话
func (v *View) OnRoomPresence(fn func(event string, data dto.RoomPresenceDTO)) func() {
	joined := onTyped(v, consts.EventUserJoinedConversation, func(d dto.RoomPresenceDTO) {
		fn(consts.EventUserJoinedConversation, d)
	})
	left := onTyped(v, consts.EventUserLeftConversation, func(d dto.RoomPresenceDTO) {
		fn(consts.EventUserLeftConversation, d)
	})
	return func() {
		joined()
		left()
	}
}

// OnTyping 同时处理 typing 与 stopped-typing
func (v *View) OnTyping(fn func(dto.TypingDTO)) func() {
	start := onTyped(v, consts.EventTyping, fn)
	stop := onTyped(v, consts.EventStoppedTyping, fn)
	return func() {
		start()
		stop()
	}
}

// TrackTyping 对端停止输入但没有发出 stop 时, quiet 之后视为已停止
func (v *View) TrackTyping(quiet time.Duration, onChange func(dto.TypingDTO)) *TypingTracker {
	tracker := NewTypingTracker(quiet, onChange)
	v.OnTyping(tracker.Observe)

	v.mu.Lock()
	v.disposers = append(v.disposers, tracker.Close)
	v.mu.Unlock()
	return tracker
}

// Typing 返回本会话的输入状态通知器
func (v *View) Typing(quiet time.Duration) *TypingNotifier {
	n := NewTypingNotifier(v.client, v.convID, quiet)

	v.mu.Lock()
	v.disposers = append(v.disposers, n.Stop)
	v.mu.Unlock()
	return n
}

// Close 幂等
func (v *View) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	disposers := v.disposers
	v.disposers = nil
	v.mu.Unlock()

	for _, dispose := range disposers {
		dispose()
	}
	v.client.release(v.convID)
}
