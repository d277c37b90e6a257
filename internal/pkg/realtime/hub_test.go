package realtime

import (
	"Mesdo/internal/model"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeConn 记录写入, 读取时阻塞直到关闭
type fakeConn struct {
	mu        sync.Mutex
	written   [][]byte
	closeCode int
	closed    chan struct{}
	once      sync.Once
	inbox     chan []byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{}), inbox: make(chan []byte, 16)}
}

func (c *fakeConn) SetWriteDeadline(time.Time) error  { return nil }
func (c *fakeConn) SetReadDeadline(time.Time) error   { return nil }
func (c *fakeConn) SetReadLimit(int64)                {}
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.written = append(c.written, data)
	}
	return nil
}

func (c *fakeConn) WriteControl(messageType int, data []byte, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.CloseMessage && len(data) >= 2 {
		c.closeCode = int(data[0])<<8 | int(data[1])
	}
	return nil
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case msg := <-c.inbox:
		return websocket.TextMessage, msg, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) code() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCode
}

func newTestSession(userID uint64, buffer int, refs ...model.ParticipantRef) (*Session, *fakeConn) {
	conn := newFakeConn()
	opts := DefaultOptions()
	opts.SendBuffer = buffer
	return NewSession(conn, userID, refs, opts), conn
}

// drain 取出未经写循环的排队消息
func drain(s *Session) []Envelope {
	var res []Envelope
	for {
		select {
		case payload := <-s.send:
			env, err := Decode(payload)
			if err == nil {
				res = append(res, env)
			}
		default:
			return res
		}
	}
}

func TestHubAttachDetachReportsPresenceTransitions(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	alice := model.UserRef(1)
	org := model.OrganizationRef(7)

	s1, _ := newTestSession(1, 8, alice, org)
	s2, _ := newTestSession(1, 8, alice)

	if online := hub.Attach(s1); len(online) != 2 {
		t.Fatalf("first attach online = %v", online)
	}
	if online := hub.Attach(s2); len(online) != 0 {
		t.Fatalf("second attach online = %v", online)
	}
	if !hub.IsOnline(alice) || !hub.IsOnline(org) {
		t.Fatal("identities should be online")
	}

	offline := hub.Detach(s1)
	if len(offline) != 1 || offline[0] != org {
		t.Fatalf("detach s1 offline = %v", offline)
	}
	if !hub.IsOnline(alice) {
		t.Fatal("alice still has a session")
	}
	if again := hub.Detach(s1); again != nil {
		t.Fatalf("second detach = %v", again)
	}

	offline = hub.Detach(s2)
	if len(offline) != 1 || offline[0] != alice {
		t.Fatalf("detach s2 offline = %v", offline)
	}
	if hub.SessionCount() != 0 {
		t.Fatalf("sessions left = %d", hub.SessionCount())
	}
}

func TestHubPublishToIdentitiesDedupes(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	alice, org, bob, eve := model.UserRef(1), model.OrganizationRef(7), model.UserRef(2), model.UserRef(3)

	sa, _ := newTestSession(1, 8, alice, org)
	sb, _ := newTestSession(2, 8, bob)
	se, _ := newTestSession(3, 8, eve)
	for _, s := range []*Session{sa, sb, se} {
		hub.Attach(s)
	}

	hub.PublishToIdentities([]model.ParticipantRef{alice, org, bob}, "newMessage", map[string]string{"message": "hi"})

	if got := drain(sa); len(got) != 1 || got[0].Event != "newMessage" {
		t.Fatalf("alice got %+v", got)
	}
	got := drain(sb)
	if len(got) != 1 {
		t.Fatalf("bob got %+v", got)
	}
	var body struct{ Message string }
	if err := got[0].Bind(&body); err != nil || body.Message != "hi" {
		t.Fatalf("payload = %+v, %v", body, err)
	}
	if got := drain(se); len(got) != 0 {
		t.Fatalf("eve must not receive: %+v", got)
	}
}

func TestHubConversationRooms(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	s1, _ := newTestSession(1, 8, model.UserRef(1))
	s2, _ := newTestSession(2, 8, model.UserRef(2))
	s3, _ := newTestSession(3, 8, model.UserRef(3))
	for _, s := range []*Session{s1, s2, s3} {
		hub.Attach(s)
	}

	if !hub.Join(10, s1) || !hub.Join(10, s2) {
		t.Fatal("join should report new membership")
	}
	if hub.Join(10, s1) {
		t.Fatal("rejoin should be a no-op")
	}

	hub.PublishToConversation(10, "typing", nil, s1.ID)
	if got := drain(s1); len(got) != 0 {
		t.Fatalf("sender got %+v", got)
	}
	if got := drain(s2); len(got) != 1 || got[0].Event != "typing" {
		t.Fatalf("peer got %+v", got)
	}
	if got := drain(s3); len(got) != 0 {
		t.Fatalf("outsider got %+v", got)
	}

	if !hub.Leave(10, s2) || hub.Leave(10, s2) {
		t.Fatal("leave should report prior membership once")
	}
	if hub.InRoom(10, s2) {
		t.Fatal("s2 left the room")
	}

	hub.Detach(s1)
	hub.PublishToConversation(10, "typing", nil, "")
	if got := drain(s1); len(got) != 0 {
		t.Fatalf("detached session got %+v", got)
	}
	if rooms := hub.Rooms(s1); len(rooms) != 0 {
		t.Fatalf("detached rooms = %v", rooms)
	}
}

func TestSessionSlowConsumerIsClosed(t *testing.T) {
	t.Parallel()
	s, conn := newTestSession(1, 1)

	if err := s.Send([]byte(`{"event":"a"}`)); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := s.Send([]byte(`{"event":"b"}`)); !errors.Is(err, ErrSlowConsumer) {
		t.Fatalf("second send err = %v", err)
	}
	if conn.code() != websocket.ClosePolicyViolation {
		t.Fatalf("close code = %d", conn.code())
	}
	if err := s.Send([]byte(`{"event":"c"}`)); !errors.Is(err, ErrSessionClosed) {
		t.Fatalf("send after close err = %v", err)
	}
}

func TestSessionWriteLoopAndReadLoop(t *testing.T) {
	t.Parallel()
	s, conn := newTestSession(1, 8, model.UserRef(1))
	s.Start()

	if err := s.SendEvent("pong", nil); err != nil {
		t.Fatalf("send event: %v", err)
	}
	deadline := time.After(2 * time.Second)
	for {
		conn.mu.Lock()
		n := len(conn.written)
		conn.mu.Unlock()
		if n == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("write loop did not flush")
		case <-time.After(5 * time.Millisecond):
		}
	}

	conn.inbox <- []byte(`{"event":"ping"}`)
	conn.inbox <- []byte(`not json`)
	conn.inbox <- []byte(`{"event":"join-conversation","data":{"conversationId":3}}`)

	var events []string
	var invalid int
	done := make(chan error, 1)
	go func() {
		done <- s.ReadLoop(func(env Envelope) {
			events = append(events, env.Event)
			if len(events) == 2 {
				s.Close(websocket.CloseNormalClosure, "")
			}
		}, func(error) { invalid++ })
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatal("read loop should end with an error")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("read loop did not stop")
	}
	if len(events) != 2 || events[0] != "ping" || events[1] != "join-conversation" || invalid != 1 {
		t.Fatalf("events = %v invalid = %d", events, invalid)
	}
}

func TestHubCloseShutsDownSessions(t *testing.T) {
	t.Parallel()
	hub := NewHub()
	s, conn := newTestSession(1, 8, model.UserRef(1))
	hub.Attach(s)

	hub.Close()
	select {
	case <-s.Done():
	default:
		t.Fatal("session should be closed")
	}
	if conn.code() != websocket.CloseGoingAway {
		t.Fatalf("close code = %d", conn.code())
	}
	if hub.IsOnline(model.UserRef(1)) {
		t.Fatal("registry should be empty")
	}
}
