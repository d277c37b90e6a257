package service

import (
	"errors"
)

const (
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	InternalServerError = 500
)

var (
	ErrParamInvalid         = errors.New("参数错误")
	ErrUserNotFound         = errors.New("用户不存在")
	ErrOrganizationNotFound = errors.New("企业主页不存在")
	ErrJobNotFound          = errors.New("职位不存在")
	ErrNotJobOwner          = errors.New("无权以该职位发起会话")
	ErrSelfConversation     = errors.New("不能与自己发起会话")
	ErrConversationNotFound = errors.New("会话不存在")
	ErrNotParticipant       = errors.New("不是会话成员")
	ErrGroupTooSmall        = errors.New("群聊至少需要两名其他成员")
	ErrNotGroup             = errors.New("只有群聊可以增删成员")
	ErrAlreadyParticipant   = errors.New("已经是会话成员")
	ErrTargetNotParticipant = errors.New("目标不是会话成员")
	ErrEmptyMessage         = errors.New("消息内容不能为空")
	ErrMessageTooLong       = errors.New("消息内容过长")
	ErrMessageTypeInvalid   = errors.New("不支持的消息类型")
	ErrAttachmentNotFound   = errors.New("附件不存在")
	ErrMessageNotFound      = errors.New("消息不存在")
	ErrReplyTargetInvalid   = errors.New("回复的消息不在该会话中")
	ErrNotificationNotFound = errors.New("通知不存在")
	ErrUnauthenticated      = errors.New("未登录或登录已过期")
	UnauthorizedError       = errors.New("权限不足")
	UnExpectedError         = errors.New("系统异常，请稍后重试")
)

var ErrorMap = map[error]int{
	ErrParamInvalid:         BadRequest,
	ErrUserNotFound:         NotFound,
	ErrOrganizationNotFound: NotFound,
	ErrJobNotFound:          NotFound,
	ErrNotJobOwner:          Forbidden,
	ErrSelfConversation:     BadRequest,
	ErrConversationNotFound: NotFound,
	ErrNotParticipant:       Forbidden,
	ErrGroupTooSmall:        BadRequest,
	ErrNotGroup:             BadRequest,
	ErrAlreadyParticipant:   BadRequest,
	ErrTargetNotParticipant: BadRequest,
	ErrEmptyMessage:         BadRequest,
	ErrMessageTooLong:       BadRequest,
	ErrMessageTypeInvalid:   BadRequest,
	ErrAttachmentNotFound:   BadRequest,
	ErrMessageNotFound:      NotFound,
	ErrReplyTargetInvalid:   BadRequest,
	ErrNotificationNotFound: NotFound,
	ErrUnauthenticated:      Unauthorized,
	UnauthorizedError:       Forbidden,
	UnExpectedError:         InternalServerError,
}

// CodeOf 返回错误对应的业务码, 未登记的错误返回 false
func CodeOf(err error) (int, bool) {
	if code, ok := ErrorMap[err]; ok {
		return code, true
	}
	for known, code := range ErrorMap {
		if errors.Is(err, known) {
			return code, true
		}
	}
	return InternalServerError, false
}
