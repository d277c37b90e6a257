package consts

const (
	MimePrefixImage = "image"
	MimePrefixAudio = "audio"
	MimePrefixVideo = "video"
)

const (
	DefaultAvatarURL = "default_avatar.png"
)

// 上下文键
const (
	CtxUserID = "userID"
	CtxRoles  = "roles"
)

// 消息类型
const (
	MsgTypeText     = "text"
	MsgTypeImage    = "image"
	MsgTypeFile     = "file"
	MsgTypeAudio    = "audio"
	MsgTypeVideo    = "video"
	MsgTypeLocation = "location"
	MsgTypeSystem   = "system"
)

// ValidMsgTypes 客户端可提交的消息类型, system 只允许服务端生成
var ValidMsgTypes = map[string]bool{
	MsgTypeText:     true,
	MsgTypeImage:    true,
	MsgTypeFile:     true,
	MsgTypeAudio:    true,
	MsgTypeVideo:    true,
	MsgTypeLocation: true,
}

// 通知类型
const (
	NotificationNewMessage = "new_message"
)
