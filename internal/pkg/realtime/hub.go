package realtime

import (
	"Mesdo/internal/model"
	log "log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Hub 本进程的连接注册表: 身份房间与会话房间
// 一个身份可以同时有多条连接, 推送只发给解析出的房间成员
type Hub struct {
	mu           sync.RWMutex
	sessions     map[string]*Session                          // sessionID -> session
	identities   map[model.ParticipantRef]map[string]*Session // 身份房间
	rooms        map[uint64]map[string]*Session               // 会话房间
	sessionRooms map[string]map[uint64]struct{}
}

func NewHub() *Hub {
	return &Hub{
		sessions:     make(map[string]*Session),
		identities:   make(map[model.ParticipantRef]map[string]*Session),
		rooms:        make(map[uint64]map[string]*Session),
		sessionRooms: make(map[string]map[uint64]struct{}),
	}
}

// Attach 登记连接并加入其全部身份房间, 返回因此从离线变为在线的身份
func (h *Hub) Attach(s *Session) []model.ParticipantRef {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sessions[s.ID] = s
	h.sessionRooms[s.ID] = make(map[uint64]struct{})

	var online []model.ParticipantRef
	for _, ref := range s.Identities {
		room := h.identities[ref]
		if room == nil {
			room = make(map[string]*Session)
			h.identities[ref] = room
		}
		if len(room) == 0 {
			online = append(online, ref)
		}
		room[s.ID] = s
	}
	return online
}

// Detach 移除连接及其所有房间, 返回因此变为离线的身份; 重复调用无副作用
func (h *Hub) Detach(s *Session) []model.ParticipantRef {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID]; !ok {
		return nil
	}
	delete(h.sessions, s.ID)

	for convID := range h.sessionRooms[s.ID] {
		h.leaveLocked(convID, s.ID)
	}
	delete(h.sessionRooms, s.ID)

	var offline []model.ParticipantRef
	for _, ref := range s.Identities {
		room := h.identities[ref]
		delete(room, s.ID)
		if len(room) == 0 {
			delete(h.identities, ref)
			offline = append(offline, ref)
		}
	}
	return offline
}

// Join 加入会话房间, 返回是否为新加入
func (h *Hub) Join(convID uint64, s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	joined, ok := h.sessionRooms[s.ID]
	if !ok {
		return false
	}
	if _, already := joined[convID]; already {
		return false
	}
	room := h.rooms[convID]
	if room == nil {
		room = make(map[string]*Session)
		h.rooms[convID] = room
	}
	room[s.ID] = s
	joined[convID] = struct{}{}
	return true
}

// Leave 离开会话房间, 返回之前是否在房间中
func (h *Hub) Leave(convID uint64, s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessionRooms[s.ID][convID]; !ok {
		return false
	}
	h.leaveLocked(convID, s.ID)
	delete(h.sessionRooms[s.ID], convID)
	return true
}

func (h *Hub) leaveLocked(convID uint64, sessionID string) {
	room := h.rooms[convID]
	delete(room, sessionID)
	if len(room) == 0 {
		delete(h.rooms, convID)
	}
}

// Rooms 连接当前所在的会话房间
func (h *Hub) Rooms(s *Session) []uint64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make([]uint64, 0, len(h.sessionRooms[s.ID]))
	for convID := range h.sessionRooms[s.ID] {
		res = append(res, convID)
	}
	return res
}

// InRoom 连接是否在会话房间中
func (h *Hub) InRoom(convID uint64, s *Session) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[convID][s.ID]
	return ok
}

func (h *Hub) IsOnline(ref model.ParticipantRef) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.identities[ref]) > 0
}

// OnlineAmong 过滤出在线的身份
func (h *Hub) OnlineAmong(refs []model.ParticipantRef) []model.ParticipantRef {
	h.mu.RLock()
	defer h.mu.RUnlock()
	res := make([]model.ParticipantRef, 0, len(refs))
	for _, r := range refs {
		if len(h.identities[r]) > 0 {
			res = append(res, r)
		}
	}
	return res
}

func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// PublishToIdentities 同一连接代表多个目标身份时只投递一次
func (h *Hub) PublishToIdentities(refs []model.ParticipantRef, event string, data any) {
	h.mu.RLock()
	targets := make(map[string]*Session)
	for _, ref := range refs {
		for id, s := range h.identities[ref] {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, event, data)
}

// PublishToConversation exceptSession 非空时跳过发起方连接
func (h *Hub) PublishToConversation(convID uint64, event string, data any, exceptSession string) {
	h.mu.RLock()
	targets := make(map[string]*Session, len(h.rooms[convID]))
	for id, s := range h.rooms[convID] {
		if id != exceptSession {
			targets[id] = s
		}
	}
	h.mu.RUnlock()

	h.deliver(targets, event, data)
}

// deliver 在锁外发送, 慢连接会在 Send 中被关闭
func (h *Hub) deliver(targets map[string]*Session, event string, data any) {
	if len(targets) == 0 {
		return
	}
	payload, err := Encode(event, data)
	if err != nil {
		log.Error("realtime encode failed", "event", event, "err", err)
		return
	}
	for _, s := range targets {
		_ = s.Send(payload)
	}
}

// Close 关闭全部连接并清空注册表
func (h *Hub) Close() {
	h.mu.Lock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.sessions = make(map[string]*Session)
	h.identities = make(map[model.ParticipantRef]map[string]*Session)
	h.rooms = make(map[uint64]map[string]*Session)
	h.sessionRooms = make(map[string]map[uint64]struct{})
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close(websocket.CloseGoingAway, "server shutdown")
	}
}
