package consts

const (
	IdentityDisplayKey = "im:identity:display:"
	PresenceKey        = "im:presence"
	TokenRevokedKey    = "auth:token:revoked:"
)
