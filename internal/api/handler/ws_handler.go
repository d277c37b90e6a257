package handler

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/api/middleware"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/logger"
	"Mesdo/internal/pkg/realtime"
	"Mesdo/internal/pkg/response"
	"Mesdo/internal/pkg/security"
	"Mesdo/internal/pkg/util"
	"Mesdo/internal/service"
	"context"
	"errors"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
)

type WsHandler struct {
	upgrader   websocket.Upgrader
	hub        *realtime.Hub
	opts       realtime.Options
	revoked    security.RevocationChecker
	identities service.IdentityService
	convs      service.ConversationService
	msgs       service.MessageService
	presence   service.PresenceService
}

func NewWsHandler(
	hub *realtime.Hub,
	opts realtime.Options,
	revoked security.RevocationChecker,
	identities service.IdentityService,
	convs service.ConversationService,
	msgs service.MessageService,
	presence service.PresenceService,
) *WsHandler {
	return &WsHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || middleware.OriginAllowed(opts.AllowOrigins, origin)
			},
		},
		hub:        hub,
		opts:       opts,
		revoked:    revoked,
		identities: identities,
		convs:      convs,
		msgs:       msgs,
		presence:   presence,
	}
}

// Connect 先鉴权再升级, 未登录的握手直接返回 401
func (s *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = security.BearerToken(c.GetHeader("Authorization"))
	}
	claims, err := security.Authenticate(c.Request.Context(), token, s.revoked)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		response.Error(c, service.ErrUnauthenticated)
		return
	}

	refs, err := s.identities.IdentitiesOf(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "WS 协议升级失败", "err", err)
		return
	}

	// 连接的生命周期不受请求 ctx 控制
	base := context.WithoutCancel(c.Request.Context())
	session := realtime.NewSession(conn, claims.UserID, refs, s.opts)
	s.serve(base, session)
}

func (s *WsHandler) serve(ctx context.Context, session *realtime.Session) {
	online := s.hub.Attach(session)
	session.Start()
	s.presence.Online(ctx, session.Identities...)
	log.InfoContext(ctx, "用户 WS 连接已建立", "userID", session.UserID, "sessionID", session.ID)

	_ = session.SendEvent(consts.EventConnected, dto.ConnectedDTO{
		SessionID:  session.ID,
		UserID:     session.UserID,
		Identities: session.Identities,
	})
	s.announce(ctx, online, consts.EventUserOnline)

	err := session.ReadLoop(
		func(env realtime.Envelope) { s.dispatch(logger.WithTraceID(ctx), session, env) },
		func(err error) {
			s.replyError(ctx, session, "", service.ErrParamInvalid)
		},
	)
	if err != nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		log.WarnContext(ctx, "WS 读取异常", "userID", session.UserID, "err", err)
	}

	s.teardown(ctx, session)
}

func (s *WsHandler) teardown(ctx context.Context, session *realtime.Session) {
	rooms := s.hub.Rooms(session)
	offline := s.hub.Detach(session)
	session.Close(websocket.CloseNormalClosure, "")

	now := time.Now()
	for _, convID := range rooms {
		actor, _, err := s.convs.Authorize(ctx, convID, session.Identities...)
		if err != nil {
			continue
		}
		s.hub.PublishToConversation(convID, consts.EventUserLeftConversation, dto.RoomPresenceDTO{ConversationID: convID, User: actor, At: now}, "")
	}

	s.presence.Offline(ctx, offline...)
	s.announce(ctx, offline, consts.EventUserOffline)
	log.InfoContext(ctx, "用户 WS 连接已断开", "userID", session.UserID, "sessionID", session.ID)
}

// announce 在线状态只推给与之共享会话的身份
func (s *WsHandler) announce(ctx context.Context, refs []model.ParticipantRef, event string) {
	now := time.Now()
	for _, ref := range refs {
		peers, err := s.convs.Peers(ctx, ref)
		if err != nil {
			log.WarnContext(ctx, "查询会话对象失败", "ref", ref.String(), "err", err)
			continue
		}
		s.hub.PublishToIdentities(peers, event, dto.PresenceDTO{User: ref, At: now})
	}
}

func (s *WsHandler) replyError(ctx context.Context, session *realtime.Session, event string, err error) {
	code, known := service.CodeOf(err)
	msg := service.UnExpectedError.Error()
	var ve validator.ValidationErrors
	switch {
	case errors.As(err, &ve):
		code, msg = service.BadRequest, util.ValidationMessage(err)
	case known:
		msg = err.Error()
	default:
		log.ErrorContext(ctx, "WS 事件处理失败", "event", event, "err", err)
	}
	_ = session.SendEvent(consts.EventError, dto.ErrorEventDTO{Event: event, Code: code, Message: msg})
}

func bindPayload(env realtime.Envelope, v any) error {
	if err := env.Bind(v); err != nil {
		return service.ErrParamInvalid
	}
	return util.ValidateDTO(v)
}

// dispatch 处理单个客户端事件, 错误以 error 事件回给发起连接
func (s *WsHandler) dispatch(ctx context.Context, session *realtime.Session, env realtime.Envelope) {
	var err error
	switch env.Event {
	case consts.EventJoinUser:
		err = s.joinUser(session, env)
	case consts.EventJoinConversation:
		err = s.joinConversation(ctx, session, env)
	case consts.EventLeaveConversation:
		err = s.leaveConversation(ctx, session, env)
	case consts.EventSendMessage:
		err = s.sendMessage(ctx, session, env)
	case consts.EventTypingStart:
		err = s.typing(ctx, session, env, consts.EventTyping, true)
	case consts.EventTypingStop:
		err = s.typing(ctx, session, env, consts.EventStoppedTyping, false)
	case consts.EventMarkRead:
		err = s.markRead(ctx, session, env)
	case consts.EventAddReaction:
		err = s.addReaction(ctx, session, env)
	case consts.EventGetOnlineUsers:
		var peers []dto.OnlinePeerDTO
		if peers, err = s.presence.OnlinePeers(ctx, session.Identities...); err == nil {
			err = session.SendEvent(consts.EventOnlineUsers, peers)
		}
	case consts.EventPing:
		s.presence.Online(ctx, session.Identities...)
		err = session.SendEvent(consts.EventPong, nil)
	default:
		err = service.ErrParamInvalid
	}

	if err != nil && !errors.Is(err, realtime.ErrSessionClosed) && !errors.Is(err, realtime.ErrSlowConsumer) {
		s.replyError(ctx, session, env.Event, err)
	}
}

// joinUser 身份房间在连接时已加入, 这里只做确认
func (s *WsHandler) joinUser(session *realtime.Session, env realtime.Envelope) error {
	var userID uint64
	if err := env.Bind(&userID); err != nil {
		var payload struct {
			UserID uint64 `json:"userId"`
		}
		if err = env.Bind(&payload); err != nil {
			return service.ErrParamInvalid
		}
		userID = payload.UserID
	}
	if userID != 0 && userID != session.UserID {
		return service.UnauthorizedError
	}
	return session.SendEvent(consts.EventConnected, dto.ConnectedDTO{
		SessionID:  session.ID,
		UserID:     session.UserID,
		Identities: session.Identities,
	})
}

func (s *WsHandler) joinConversation(ctx context.Context, session *realtime.Session, env realtime.Envelope) error {
	var payload dto.ConversationPayload
	if err := bindPayload(env, &payload); err != nil {
		return err
	}
	actor, _, err := s.convs.Authorize(ctx, payload.ConversationID, session.Identities...)
	if err != nil {
		return err
	}

	if s.hub.Join(payload.ConversationID, session) {
		s.hub.PublishToConversation(payload.ConversationID, consts.EventUserJoinedConversation, dto.RoomPresenceDTO{
			ConversationID: payload.ConversationID,
			User:           actor,
			At:             time.Now(),
		}, session.ID)
	}
	if err = s.convs.Touch(ctx, payload.ConversationID, actor); err != nil {
		log.WarnContext(ctx, "更新成员活跃时间失败", "conversationId", payload.ConversationID, "err", err)
	}
	return session.SendEvent(consts.EventConversationJoined, payload)
}

func (s *WsHandler) leaveConversation(ctx context.Context, session *realtime.Session, env realtime.Envelope) error {
	var payload dto.ConversationPayload
	if err := bindPayload(env, &payload); err != nil {
		return err
	}

	if s.hub.Leave(payload.ConversationID, session) {
		if actor, _, err := s.convs.Authorize(ctx, payload.ConversationID, session.Identities...); err == nil {
			s.hub.PublishToConversation(payload.ConversationID, consts.EventUserLeftConversation, dto.RoomPresenceDTO{
				ConversationID: payload.ConversationID,
				User:           actor,
				At:             time.Now(),
			}, session.ID)
		}
	}
	return session.SendEvent(consts.EventConversationLeft, payload)
}

// sendMessage 已有会话时以会话中的身份发送, 否则以个人身份发起私聊
func (s *WsHandler) sendMessage(ctx context.Context, session *realtime.Session, env realtime.Envelope) error {
	var req dto.SendMessageReq
	if err := env.Bind(&req); err != nil {
		return service.ErrParamInvalid
	}

	sender := session.Identities[0]
	if req.ConversationID != 0 {
		actor, _, err := s.convs.Authorize(ctx, req.ConversationID, session.Identities...)
		if err != nil {
			return err
		}
		sender = actor
	}

	msg, err := s.msgs.SendMessage(ctx, sender, &req)
	if err != nil {
		return err
	}
	return session.SendEvent(consts.EventMessageSent, msg)
}

func (s *WsHandler) typing(ctx context.Context, session *realtime.Session, env realtime.Envelope, event string, isTyping bool) error {
	var payload dto.ConversationPayload
	if err := bindPayload(env, &payload); err != nil {
		return err
	}
	actor, _, err := s.convs.Authorize(ctx, payload.ConversationID, session.Identities...)
	if err != nil {
		return err
	}
	s.hub.PublishToConversation(payload.ConversationID, event, dto.TypingDTO{
		ConversationID: payload.ConversationID,
		User:           actor,
		IsTyping:       isTyping,
	}, session.ID)
	return nil
}

// markRead 依次尝试连接代表的各个身份
func (s *WsHandler) markRead(ctx context.Context, session *realtime.Session, env realtime.Envelope) error {
	var payload dto.MarkReadPayload
	if err := bindPayload(env, &payload); err != nil {
		return err
	}
	var err error
	for _, ref := range session.Identities {
		if _, err = s.msgs.MarkRead(ctx, ref, payload.MessageIDs); !errors.Is(err, service.ErrNotParticipant) {
			return err
		}
	}
	return err
}

func (s *WsHandler) addReaction(ctx context.Context, session *realtime.Session, env realtime.Envelope) error {
	var payload dto.ReactionPayload
	if err := bindPayload(env, &payload); err != nil {
		return err
	}
	var err error
	for _, ref := range session.Identities {
		if _, err = s.msgs.AddReaction(ctx, ref, payload.MessageID, payload.Emoji); !errors.Is(err, service.ErrNotParticipant) {
			return err
		}
	}
	return err
}
