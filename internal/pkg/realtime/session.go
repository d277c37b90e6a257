package realtime

import (
	"Mesdo/internal/api/config"
	"Mesdo/internal/model"
	"errors"
	log "log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var (
	ErrSessionClosed = errors.New("session closed")
	ErrSlowConsumer  = errors.New("session send buffer full")
)

// Options 连接层参数
type Options struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	SendBuffer     int
	MaxMessageSize int64
	// AllowOrigins 握手来源白名单, 为空时不限制
	AllowOrigins []string
}

func DefaultOptions() Options {
	return Options{
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     30 * time.Second,
		SendBuffer:     128,
		MaxMessageSize: 1 << 20,
	}
}

// OptionsFrom 配置里的时间单位是秒, 缺省项使用默认值
func OptionsFrom(cfg config.RealtimeConfig) Options {
	opts := DefaultOptions()
	if cfg.WriteWait > 0 {
		opts.WriteWait = time.Duration(cfg.WriteWait) * time.Second
	}
	if cfg.PongWait > 0 {
		opts.PongWait = time.Duration(cfg.PongWait) * time.Second
	}
	if cfg.PingPeriod > 0 {
		opts.PingPeriod = time.Duration(cfg.PingPeriod) * time.Second
	}
	if opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if cfg.SendBuffer > 0 {
		opts.SendBuffer = cfg.SendBuffer
	}
	if cfg.MaxMessageSize > 0 {
		opts.MaxMessageSize = cfg.MaxMessageSize
	}
	return opts
}

// wsConn *websocket.Conn 中会话用到的部分
type wsConn interface {
	SetWriteDeadline(t time.Time) error
	SetReadDeadline(t time.Time) error
	SetReadLimit(limit int64)
	SetPongHandler(h func(appData string) error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Session 一条已鉴权的连接, 写操作全部经由 send 队列串行化
type Session struct {
	ID         string
	UserID     uint64
	Identities []model.ParticipantRef

	ws   wsConn
	opts Options
	send chan []byte
	done chan struct{}
	once sync.Once
}

func NewSession(ws wsConn, userID uint64, identities []model.ParticipantRef, opts Options) *Session {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultOptions().SendBuffer
	}
	return &Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		Identities: identities,
		ws:         ws,
		opts:       opts,
		send:       make(chan []byte, opts.SendBuffer),
		done:       make(chan struct{}),
	}
}

// Start 启动写循环, 每个会话只能调用一次
func (s *Session) Start() {
	go s.writeLoop()
}

// Send 非阻塞入队, 缓冲区满说明客户端消费过慢, 直接断开
func (s *Session) Send(payload []byte) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}

	select {
	case s.send <- payload:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		log.Warn("realtime session too slow, closing", "session_id", s.ID, "user_id", s.UserID)
		s.Close(websocket.ClosePolicyViolation, "send buffer full")
		return ErrSlowConsumer
	}
}

// SendEvent 编码并发送一个事件
func (s *Session) SendEvent(event string, data any) error {
	payload, err := Encode(event, data)
	if err != nil {
		return err
	}
	return s.Send(payload)
}

// Close 幂等, 发送关闭帧后断开底层连接
func (s *Session) Close(code int, reason string) {
	s.once.Do(func() {
		close(s.done)
		deadline := time.Now().Add(s.opts.WriteWait)
		_ = s.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = s.ws.Close()
	})
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Owns 判断该连接是否可以代表 ref
func (s *Session) Owns(ref model.ParticipantRef) bool {
	for _, r := range s.Identities {
		if r == ref {
			return true
		}
	}
	return false
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(s.opts.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			if err := s.write(websocket.TextMessage, msg); err != nil {
				s.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := s.write(websocket.PingMessage, nil); err != nil {
				s.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (s *Session) write(messageType int, payload []byte) error {
	if err := s.ws.SetWriteDeadline(time.Now().Add(s.opts.WriteWait)); err != nil {
		return err
	}
	return s.ws.WriteMessage(messageType, payload)
}

// ReadLoop 阻塞读取客户端事件直到连接断开; 无法解析的帧交给 onInvalid
func (s *Session) ReadLoop(handle func(Envelope), onInvalid func(error)) error {
	s.ws.SetReadLimit(s.opts.MaxMessageSize)
	_ = s.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, payload, err := s.ws.ReadMessage()
		if err != nil {
			return err
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(s.opts.PongWait))

		env, err := Decode(payload)
		if err != nil || env.Event == "" {
			if err == nil {
				err = errors.New("missing event name")
			}
			if onInvalid != nil {
				onInvalid(err)
			}
			continue
		}
		handle(env)
	}
}
