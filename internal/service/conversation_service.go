package service

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/pkg/util"
	"Mesdo/internal/repository"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
)

// ResolveRequest 查找或创建 1对1 会话的上下文, JobID 非零时为招聘会话
type ResolveRequest struct {
	Initiator model.ParticipantRef
	Target    model.ParticipantRef
	JobID     uint64
}

type ConversationService interface {
	Resolve(ctx context.Context, req ResolveRequest) (*model.Conversation, error)
	InitiateByUsername(ctx context.Context, initiator model.ParticipantRef, username string) (uint64, error)
	InitiateJob(ctx context.Context, applicant model.ParticipantRef, jobID uint64) (uint64, error)
	InitiateRecruiter(ctx context.Context, org model.ParticipantRef, jobID, receiverUserID uint64) (uint64, error)
	CreateGroup(ctx context.Context, creator model.ParticipantRef, req *dto.CreateGroupReq) (*dto.ConversationDTO, error)
	GetHistory(ctx context.Context, requester model.ParticipantRef, convID uint64) (*dto.ChatHistoryDTO, error)
	ListConversations(ctx context.Context, requester model.ParticipantRef, category string) ([]*dto.ConversationDTO, error)
	AddParticipant(ctx context.Context, actor model.ParticipantRef, convID uint64, req *dto.ParticipantReq) (*dto.ParticipantDTO, error)
	RemoveParticipant(ctx context.Context, actor model.ParticipantRef, convID uint64, target model.ParticipantRef) error
	Authorize(ctx context.Context, convID uint64, candidates ...model.ParticipantRef) (model.ParticipantRef, *model.Conversation, error)
	Touch(ctx context.Context, convID uint64, ref model.ParticipantRef) error
	Peers(ctx context.Context, refs ...model.ParticipantRef) ([]model.ParticipantRef, error)
}

type conversationServiceImpl struct {
	convRepo    repository.ConversationRepo
	messageRepo repository.MessageRepo
	identities  IdentityService
	pub         Publisher
}

func NewConversationService(convRepo repository.ConversationRepo, messageRepo repository.MessageRepo, identities IdentityService, pub Publisher) ConversationService {
	return &conversationServiceImpl{
		convRepo:    convRepo,
		messageRepo: messageRepo,
		identities:  identities,
		pub:         orNop(pub),
	}
}

// pairKey 1对1 会话去重键, 与参与方顺序无关
func pairKey(a, b model.ParticipantRef, jobID uint64) string {
	x, y := a.String(), b.String()
	if x > y {
		x, y = y, x
	}
	if jobID != 0 {
		return fmt.Sprintf("r:%s|%s#job:%d", x, y, jobID)
	}
	return "p:" + x + "|" + y
}

func personalCategory(a, b model.ParticipantRef) string {
	if a.Kind == model.KindOrganization || b.Kind == model.KindOrganization {
		return model.CategoryOrganization
	}
	return model.CategoryPersonal
}

func notFoundFor(ref model.ParticipantRef) error {
	if ref.Kind == model.KindOrganization {
		return ErrOrganizationNotFound
	}
	return ErrUserNotFound
}

// Resolve 查找或创建 1对1 会话; 并发创建时唯一索引保证收敛到同一条
func (s *conversationServiceImpl) Resolve(ctx context.Context, req ResolveRequest) (*model.Conversation, error) {
	if !req.Initiator.Valid() || !req.Target.Valid() {
		return nil, ErrParamInvalid
	}
	if req.Initiator == req.Target {
		return nil, ErrSelfConversation
	}

	for _, ref := range []model.ParticipantRef{req.Initiator, req.Target} {
		ok, err := s.identities.Exists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, notFoundFor(ref)
		}
	}

	key := pairKey(req.Initiator, req.Target, req.JobID)
	conv, err := s.convRepo.GetConversationByPairKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	conv = &model.Conversation{
		Category:      personalCategory(req.Initiator, req.Target),
		PairKey:       &key,
		CreatedByKind: req.Initiator.Kind,
		CreatedByID:   req.Initiator.ID,
	}
	if req.JobID != 0 {
		jobID := req.JobID
		conv.Category = model.CategoryRecruitment
		conv.JobID = &jobID
	}
	members := []*model.ConversationMember{
		{MemberKind: req.Initiator.Kind, MemberID: req.Initiator.ID, Role: model.RoleOwner},
		{MemberKind: req.Target.Kind, MemberID: req.Target.ID, Role: model.RoleMember},
	}

	if err = s.convRepo.CreateConversation(ctx, conv, members); err != nil {
		existing, lookupErr := s.convRepo.GetConversationByPairKey(ctx, key)
		if lookupErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	log.InfoContext(ctx, "conversation created", "conversation_id", conv.ID, "category", conv.Category)
	return conv, nil
}

// InitiateByUsername 按用户名发起私聊
func (s *conversationServiceImpl) InitiateByUsername(ctx context.Context, initiator model.ParticipantRef, username string) (uint64, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return 0, ErrParamInvalid
	}
	target, err := s.identities.ByUsername(ctx, username)
	if err != nil {
		return 0, err
	}
	conv, err := s.Resolve(ctx, ResolveRequest{Initiator: initiator, Target: target})
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// InitiateJob 求职者联系职位所属组织
func (s *conversationServiceImpl) InitiateJob(ctx context.Context, applicant model.ParticipantRef, jobID uint64) (uint64, error) {
	job, err := s.identities.Job(ctx, jobID)
	if err != nil {
		return 0, err
	}
	org := model.OrganizationRef(job.OrganizationID)
	if owner, err := s.identities.OwnerOf(ctx, org); err == nil && owner == applicant.ID && applicant.Kind == model.KindUser {
		return 0, ErrSelfConversation
	}

	conv, err := s.Resolve(ctx, ResolveRequest{Initiator: applicant, Target: org, JobID: job.ID})
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// InitiateRecruiter 组织就自己的职位联系求职者
func (s *conversationServiceImpl) InitiateRecruiter(ctx context.Context, org model.ParticipantRef, jobID, receiverUserID uint64) (uint64, error) {
	job, err := s.identities.Job(ctx, jobID)
	if err != nil {
		return 0, err
	}
	if job.OrganizationID != org.ID {
		return 0, ErrNotJobOwner
	}
	owner, err := s.identities.OwnerOf(ctx, org)
	if err != nil {
		return 0, err
	}
	if owner == receiverUserID {
		return 0, ErrSelfConversation
	}

	conv, err := s.Resolve(ctx, ResolveRequest{Initiator: org, Target: model.UserRef(receiverUserID), JobID: job.ID})
	if err != nil {
		return 0, err
	}
	return conv.ID, nil
}

// CreateGroup 创建群聊, 不去重; 创建者为群主
func (s *conversationServiceImpl) CreateGroup(ctx context.Context, creator model.ParticipantRef, req *dto.CreateGroupReq) (*dto.ConversationDTO, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrParamInvalid
	}

	invitees := make([]uint64, 0, len(req.ParticipantIDs))
	for _, id := range util.Dedup(req.ParticipantIDs) {
		if id == 0 {
			return nil, ErrParamInvalid
		}
		if model.UserRef(id) == creator {
			continue
		}
		invitees = append(invitees, id)
	}
	if len(invitees) < 2 {
		return nil, ErrGroupTooSmall
	}

	members := []*model.ConversationMember{
		{MemberKind: creator.Kind, MemberID: creator.ID, Role: model.RoleOwner},
	}
	for _, id := range invitees {
		ref := model.UserRef(id)
		ok, err := s.identities.Exists(ctx, ref)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrUserNotFound
		}
		members = append(members, &model.ConversationMember{MemberKind: ref.Kind, MemberID: ref.ID, Role: model.RoleMember})
	}

	conv := &model.Conversation{
		Category:      model.CategoryGroups,
		IsGroup:       true,
		Name:          name,
		Description:   strings.TrimSpace(req.Description),
		Avatar:        req.Avatar,
		CreatedByKind: creator.Kind,
		CreatedByID:   creator.ID,
	}
	if err := s.convRepo.CreateConversation(ctx, conv, members); err != nil {
		return nil, err
	}

	res, err := newAssembler(s.identities).conversation(ctx, conv, creator, 0)
	if err != nil {
		return nil, err
	}
	s.pub.PublishToIdentities(memberRefs(conv.Members), consts.EventConversationUpdate, res)
	return res, nil
}

// GetHistory 会话全部消息, 非成员一律返回无权限 (不泄露会话是否存在)
func (s *conversationServiceImpl) GetHistory(ctx context.Context, requester model.ParticipantRef, convID uint64) (*dto.ChatHistoryDTO, error) {
	isMember, err := s.convRepo.IsMember(ctx, convID, requester)
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, ErrNotParticipant
	}

	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, ErrConversationNotFound
	}

	msgs, err := s.messageRepo.GetHistory(ctx, convID)
	if err != nil {
		return nil, err
	}

	unread, err := s.messageRepo.CountUnread(ctx, requester)
	if err != nil {
		return nil, err
	}

	a := newAssembler(s.identities)
	convDTO, err := a.conversation(ctx, conv, requester, unread[convID])
	if err != nil {
		return nil, err
	}

	res := &dto.ChatHistoryDTO{
		Conversation: convDTO,
		Messages:     make([]*dto.MessageDTO, 0, len(msgs)),
	}
	for _, m := range msgs {
		d, err := a.message(ctx, m)
		if err != nil {
			return nil, err
		}
		res.Messages = append(res.Messages, d)
	}

	if conv.IsGroup {
		res.OtherUsers = make([]dto.ParticipantDTO, 0, len(convDTO.Participants))
		for _, p := range convDTO.Participants {
			if p.Ref() != requester {
				res.OtherUsers = append(res.OtherUsers, p)
			}
		}
	} else {
		res.OtherUser = convDTO.OtherParticipant
	}
	return res, nil
}

// ListConversations 按最近活跃倒序列出会话, category 为空时返回全部
func (s *conversationServiceImpl) ListConversations(ctx context.Context, requester model.ParticipantRef, category string) ([]*dto.ConversationDTO, error) {
	convs, err := s.convRepo.ListByMember(ctx, requester, category)
	if err != nil {
		return nil, err
	}
	unread, err := s.messageRepo.CountUnread(ctx, requester)
	if err != nil {
		return nil, err
	}

	a := newAssembler(s.identities)
	res := make([]*dto.ConversationDTO, 0, len(convs))
	for _, c := range convs {
		d, err := a.conversation(ctx, c, requester, unread[c.ID])
		if err != nil {
			return nil, err
		}
		res = append(res, d)
	}
	return res, nil
}

func findMember(conv *model.Conversation, ref model.ParticipantRef) *model.ConversationMember {
	for i := range conv.Members {
		if conv.Members[i].Ref() == ref {
			return &conv.Members[i]
		}
	}
	return nil
}

func (s *conversationServiceImpl) loadGroup(ctx context.Context, convID uint64, actor model.ParticipantRef) (*model.Conversation, *model.ConversationMember, error) {
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return nil, nil, err
	}
	if conv == nil {
		return nil, nil, ErrConversationNotFound
	}
	actorMember := findMember(conv, actor)
	if actorMember == nil {
		return nil, nil, ErrNotParticipant
	}
	if !conv.IsGroup {
		return nil, nil, ErrNotGroup
	}
	return conv, actorMember, nil
}

// AddParticipant 群主/管理员拉人, 只有群主可以直接设为管理员
func (s *conversationServiceImpl) AddParticipant(ctx context.Context, actor model.ParticipantRef, convID uint64, req *dto.ParticipantReq) (*dto.ParticipantDTO, error) {
	conv, actorMember, err := s.loadGroup(ctx, convID, actor)
	if err != nil {
		return nil, err
	}
	if !actorMember.CanManage() {
		return nil, UnauthorizedError
	}

	role := req.Role
	if role == "" {
		role = model.RoleMember
	}
	if role == model.RoleAdmin && actorMember.Role != model.RoleOwner {
		return nil, UnauthorizedError
	}

	target := req.Ref()
	if findMember(conv, target) != nil {
		return nil, ErrAlreadyParticipant
	}
	ok, err := s.identities.Exists(ctx, target)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, notFoundFor(target)
	}

	member := &model.ConversationMember{ConversationID: conv.ID, MemberKind: target.Kind, MemberID: target.ID, Role: role}
	if err = s.convRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicatePair) {
			return nil, ErrAlreadyParticipant
		}
		return nil, err
	}

	p, err := newAssembler(s.identities).participant(ctx, target, role)
	if err != nil {
		return nil, err
	}

	recipients := append(memberRefs(conv.Members), target)
	s.pub.PublishToIdentities(recipients, consts.EventParticipantAdded, dto.ParticipantEventDTO{
		ConversationID: conv.ID,
		Participant:    p,
		Actor:          actor,
	})
	return &p, nil
}

// RemoveParticipant 群主/管理员踢人或成员自行退出; 群主退出时把群主身份转交出去
func (s *conversationServiceImpl) RemoveParticipant(ctx context.Context, actor model.ParticipantRef, convID uint64, target model.ParticipantRef) error {
	conv, actorMember, err := s.loadGroup(ctx, convID, actor)
	if err != nil {
		return err
	}
	targetMember := findMember(conv, target)
	if targetMember == nil {
		return ErrTargetNotParticipant
	}

	self := actor == target
	if !self {
		if !actorMember.CanManage() {
			return UnauthorizedError
		}
		if targetMember.Role == model.RoleOwner {
			return UnauthorizedError
		}
		if targetMember.Role == model.RoleAdmin && actorMember.Role != model.RoleOwner {
			return UnauthorizedError
		}
	}

	if targetMember.Role == model.RoleOwner && len(conv.Members) > 1 {
		heir, err := s.convRepo.TransferOwnership(ctx, conv.ID, target)
		if err != nil {
			return err
		}
		if heir != nil {
			log.InfoContext(ctx, "group ownership transferred", "conversation_id", conv.ID, "to", heir.Ref().String())
		}
	}

	if err = s.convRepo.RemoveMember(ctx, conv.ID, target); err != nil {
		return err
	}

	p, err := newAssembler(s.identities).participant(ctx, target, targetMember.Role)
	if err != nil {
		return err
	}
	s.pub.PublishToIdentities(memberRefs(conv.Members), consts.EventParticipantRemoved, dto.ParticipantEventDTO{
		ConversationID: conv.ID,
		Participant:    p,
		Actor:          actor,
	})
	return nil
}

// Authorize 在候选身份中找出第一个会话成员, 作为本次操作的身份
func (s *conversationServiceImpl) Authorize(ctx context.Context, convID uint64, candidates ...model.ParticipantRef) (model.ParticipantRef, *model.Conversation, error) {
	conv, err := s.convRepo.GetConversation(ctx, convID)
	if err != nil {
		return model.ParticipantRef{}, nil, err
	}
	if conv == nil {
		return model.ParticipantRef{}, nil, ErrNotParticipant
	}
	for _, c := range candidates {
		if conv.HasMember(c) {
			return c, conv, nil
		}
	}
	return model.ParticipantRef{}, nil, ErrNotParticipant
}

func (s *conversationServiceImpl) Touch(ctx context.Context, convID uint64, ref model.ParticipantRef) error {
	return s.convRepo.TouchMember(ctx, convID, ref)
}

// Peers 与任一 refs 共享会话的身份, 不包含 refs 自身
func (s *conversationServiceImpl) Peers(ctx context.Context, refs ...model.ParticipantRef) ([]model.ParticipantRef, error) {
	self := make(map[model.ParticipantRef]struct{}, len(refs))
	for _, r := range refs {
		self[r] = struct{}{}
	}

	seen := make(map[model.ParticipantRef]struct{})
	res := make([]model.ParticipantRef, 0)
	for _, r := range refs {
		peers, err := s.convRepo.ListPeers(ctx, r)
		if err != nil {
			return nil, err
		}
		for _, p := range peers {
			if _, mine := self[p]; mine {
				continue
			}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			res = append(res, p)
		}
	}
	return res, nil
}
