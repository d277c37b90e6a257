package model

import (
	"fmt"
	"strconv"
	"strings"
)

// 身份类型
const (
	KindUser         = "user"
	KindOrganization = "organization"
)

// ParticipantRef 会话参与方, 组织一侧统一使用企业主页(business profile)ID
type ParticipantRef struct {
	Kind string `json:"kind"`
	ID   uint64 `json:"id"`
}

func UserRef(id uint64) ParticipantRef {
	return ParticipantRef{Kind: KindUser, ID: id}
}

func OrganizationRef(id uint64) ParticipantRef {
	return ParticipantRef{Kind: KindOrganization, ID: id}
}

func (r ParticipantRef) IsZero() bool {
	return r.Kind == "" || r.ID == 0
}

func (r ParticipantRef) Valid() bool {
	return (r.Kind == KindUser || r.Kind == KindOrganization) && r.ID != 0
}

// String 形如 user:12, 用作房间名与缓存键
func (r ParticipantRef) String() string {
	return r.Kind + ":" + strconv.FormatUint(r.ID, 10)
}

// ParseParticipantRef 解析 String 的输出
func ParseParticipantRef(s string) (ParticipantRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return ParticipantRef{}, fmt.Errorf("invalid participant ref %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return ParticipantRef{}, fmt.Errorf("invalid participant ref %q: %w", s, err)
	}
	ref := ParticipantRef{Kind: kind, ID: n}
	if !ref.Valid() {
		return ParticipantRef{}, fmt.Errorf("invalid participant ref %q", s)
	}
	return ref, nil
}
