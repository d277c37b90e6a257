// Package imclient 是实时网关的 Go 客户端: 断线重连, 按会话订阅事件, 输入状态去抖
package imclient

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/realtime"
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

var (
	ErrNotConnected = errors.New("imclient: not connected")
	ErrUnauthorized = errors.New("imclient: handshake rejected")
	ErrClosed       = errors.New("imclient: client closed")
)

type State string

const (
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateDisconnected State = "disconnected"
)

// Options URL 形如 ws://host/api/im/ws
type Options struct {
	URL             string
	Token           string
	Dialer          *websocket.Dialer
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxRetries      uint64
	WriteWait       time.Duration
}

func (o Options) withDefaults() Options {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.InitialInterval <= 0 {
		o.InitialInterval = time.Second
	}
	if o.MaxInterval <= 0 {
		o.MaxInterval = 5 * time.Second
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

type Handler func(env realtime.Envelope)

type listener struct {
	id uint64
	fn Handler
}

type Client struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	conn      *websocket.Conn
	state     State
	closed    bool
	nextID    uint64
	listeners map[string][]listener
	observers map[uint64]func(State)
	rooms     map[uint64]int

	writeMu sync.Mutex
}

func New(opts Options) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		opts:      opts.withDefaults(),
		ctx:       ctx,
		cancel:    cancel,
		state:     StateDisconnected,
		listeners: make(map[string][]listener),
		observers: make(map[uint64]func(State)),
		rooms:     make(map[uint64]int),
	}
}

// Connect 建立首个连接, 之后的断线由后台自动重连
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	c.setState(StateConnecting)
	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return err
	}
	c.attach(conn)
	return nil
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnStateChange 注册连接状态观察者, 返回注销函数
func (c *Client) OnStateChange(fn func(State)) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.observers[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.observers, id)
			c.mu.Unlock()
		})
	}
}

// On 注册事件监听, 返回注销函数
func (c *Client) On(event string, fn Handler) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners[event] = append(c.listeners[event], listener{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.off(event, id) })
	}
}

func (c *Client) off(event string, id uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ls := c.listeners[event]
	for i, l := range ls {
		if l.id == id {
			c.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			break
		}
	}
	if len(c.listeners[event]) == 0 {
		delete(c.listeners, event)
	}
}

// Send 发送一个事件, 未连接时返回 ErrNotConnected
func (c *Client) Send(event string, data any) error {
	payload, err := realtime.Encode(event, data)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

// Close 关闭连接并停止重连
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	c.cancel()
	var err error
	if conn != nil {
		c.writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = conn.Close()
	}
	c.setState(StateDisconnected)
	return err
}

func (c *Client) endpoint() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}
	if c.opts.Token != "" {
		q := u.Query()
		q.Set("token", c.opts.Token)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func (c *Client) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.InitialInterval
	b.MaxInterval = c.opts.MaxInterval
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, c.opts.MaxRetries), ctx)
}

// dial 按指数退避拨号, 握手被拒 (401) 时不再重试
func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := c.endpoint()
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	var conn *websocket.Conn
	op := func() error {
		ws, resp, err := c.opts.Dialer.DialContext(ctx, endpoint, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(ErrUnauthorized)
			}
			return err
		}
		conn = ws
		return nil
	}
	if err = backoff.Retry(op, c.newBackOff(ctx)); err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close()
		return
	}
	c.conn = conn
	rooms := make([]uint64, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	c.mu.Unlock()

	c.setState(StateConnected)
	go c.readLoop(conn)

	// 重连后恢复仍被视图持有的会话房间
	for _, id := range rooms {
		_ = c.Send(consts.EventJoinConversation, dto.ConversationPayload{ConversationID: id})
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		env, err := realtime.Decode(payload)
		if err != nil {
			continue
		}
		c.dispatch(env)
	}

	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	closed := c.closed
	c.mu.Unlock()
	_ = conn.Close()

	if !closed {
		c.reconnect()
	}
}

func (c *Client) reconnect() {
	c.setState(StateReconnecting)
	conn, err := c.dial(c.ctx)
	if err != nil {
		c.setState(StateDisconnected)
		return
	}
	c.attach(conn)
}

func (c *Client) dispatch(env realtime.Envelope) {
	c.mu.Lock()
	ls := append([]listener(nil), c.listeners[env.Event]...)
	c.mu.Unlock()

	for _, l := range ls {
		l.fn(env)
	}
}

func (c *Client) setState(s State) {
	c.mu.Lock()
	if c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	obs := make([]func(State), 0, len(c.observers))
	for _, fn := range c.observers {
		obs = append(obs, fn)
	}
	c.mu.Unlock()

	for _, fn := range obs {
		fn(s)
	}
}

// acquire/release 维护会话房间的引用计数, 首个视图加入, 最后一个视图离开
func (c *Client) acquire(convID uint64) {
	c.mu.Lock()
	c.rooms[convID]++
	first := c.rooms[convID] == 1
	c.mu.Unlock()
	if first {
		_ = c.Send(consts.EventJoinConversation, dto.ConversationPayload{ConversationID: convID})
	}
}

func (c *Client) release(convID uint64) {
	c.mu.Lock()
	if c.rooms[convID] == 0 {
		c.mu.Unlock()
		return
	}
	c.rooms[convID]--
	last := c.rooms[convID] == 0
	if last {
		delete(c.rooms, convID)
	}
	c.mu.Unlock()
	if last {
		_ = c.Send(consts.EventLeaveConversation, dto.ConversationPayload{ConversationID: convID})
	}
}
