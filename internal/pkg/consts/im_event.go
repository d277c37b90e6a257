package consts

// 客户端 -> 服务端
const (
	EventJoinUser          = "joinUser"
	EventJoinConversation  = "join-conversation"
	EventLeaveConversation = "leave-conversation"
	EventSendMessage       = "send-message"
	EventTypingStart       = "typing-start"
	EventTypingStop        = "typing-stop"
	EventMarkRead          = "mark-message-read"
	EventAddReaction       = "add-reaction"
	EventGetOnlineUsers    = "get-online-users"
	EventPing              = "ping"
)

// 服务端 -> 客户端
const (
	EventConnected              = "connected"
	EventConversationJoined     = "conversation-joined"
	EventConversationLeft       = "conversation-left"
	EventNewMessage             = "newMessage"
	EventMessageSent            = "message-sent"
	EventMessageRead            = "message-read"
	EventMessageReactionAdded   = "message-reaction-added"
	EventTyping                 = "typing"
	EventStoppedTyping          = "stopped-typing"
	EventUserJoinedConversation = "user-joined-conversation"
	EventUserLeftConversation   = "user-left-conversation"
	EventParticipantAdded       = "participant-added"
	EventParticipantRemoved     = "participant-removed"
	EventConversationUpdate     = "conversationUpdate"
	EventNewNotification        = "newNotification"
	EventUserOnline             = "userOnline"
	EventUserOffline            = "userOffline"
	EventOnlineUsers            = "online-users"
	EventPong                   = "pong"
	EventError                  = "error"
)
