package service

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/repository"
	"context"
	log "log/slog"
	"time"

	"github.com/goccy/go-json"
)

const displayCacheTTL = 10 * time.Minute

// DisplayCache 身份展示信息缓存
type DisplayCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// IdentityService 把登录用户解析为会话参与方, 并提供展示信息
type IdentityService interface {
	Self(ctx context.Context, userID uint64) (model.ParticipantRef, error)
	Organization(ctx context.Context, userID uint64) (model.ParticipantRef, error)
	Acting(ctx context.Context, userID uint64, kind string) (model.ParticipantRef, error)
	IdentitiesOf(ctx context.Context, userID uint64) ([]model.ParticipantRef, error)
	ByUsername(ctx context.Context, username string) (model.ParticipantRef, error)
	Job(ctx context.Context, jobID uint64) (*model.Job, error)
	OwnerOf(ctx context.Context, ref model.ParticipantRef) (uint64, error)
	Exists(ctx context.Context, ref model.ParticipantRef) (bool, error)
	Display(ctx context.Context, ref model.ParticipantRef) (dto.ParticipantDTO, error)
	Evict(ctx context.Context, ref model.ParticipantRef) error
}

type identityServiceImpl struct {
	repo  repository.IdentityRepo
	cache DisplayCache
}

// NewIdentityService cache 可以为 nil
func NewIdentityService(repo repository.IdentityRepo, cache DisplayCache) IdentityService {
	return &identityServiceImpl{repo: repo, cache: cache}
}

// Self 以个人身份参与
func (s *identityServiceImpl) Self(ctx context.Context, userID uint64) (model.ParticipantRef, error) {
	user, err := s.repo.GetUserById(ctx, userID)
	if err != nil {
		return model.ParticipantRef{}, err
	}
	if !user.Reachable() {
		return model.ParticipantRef{}, ErrUserNotFound
	}
	return model.UserRef(user.ID), nil
}

// Organization 以用户名下的企业主页身份参与
func (s *identityServiceImpl) Organization(ctx context.Context, userID uint64) (model.ParticipantRef, error) {
	profile, err := s.repo.GetBusinessProfileByUserId(ctx, userID)
	if err != nil {
		return model.ParticipantRef{}, err
	}
	if profile == nil {
		return model.ParticipantRef{}, ErrOrganizationNotFound
	}
	return model.OrganizationRef(profile.ID), nil
}

func (s *identityServiceImpl) Acting(ctx context.Context, userID uint64, kind string) (model.ParticipantRef, error) {
	switch kind {
	case model.KindUser:
		return s.Self(ctx, userID)
	case model.KindOrganization:
		return s.Organization(ctx, userID)
	default:
		return model.ParticipantRef{}, ErrParamInvalid
	}
}

// IdentitiesOf 用户可以代表的全部身份, 个人身份在前
func (s *identityServiceImpl) IdentitiesOf(ctx context.Context, userID uint64) ([]model.ParticipantRef, error) {
	self, err := s.Self(ctx, userID)
	if err != nil {
		return nil, err
	}
	refs := []model.ParticipantRef{self}

	org, err := s.Organization(ctx, userID)
	switch {
	case err == nil:
		refs = append(refs, org)
	case err != ErrOrganizationNotFound:
		return nil, err
	}
	return refs, nil
}

func (s *identityServiceImpl) ByUsername(ctx context.Context, username string) (model.ParticipantRef, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		return model.ParticipantRef{}, err
	}
	if user == nil || user.IsBan {
		return model.ParticipantRef{}, ErrUserNotFound
	}
	return model.UserRef(user.ID), nil
}

func (s *identityServiceImpl) Job(ctx context.Context, jobID uint64) (*model.Job, error) {
	job, err := s.repo.GetJobById(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// OwnerOf 身份背后的用户ID
func (s *identityServiceImpl) OwnerOf(ctx context.Context, ref model.ParticipantRef) (uint64, error) {
	switch ref.Kind {
	case model.KindUser:
		return ref.ID, nil
	case model.KindOrganization:
		profile, err := s.repo.GetBusinessProfileById(ctx, ref.ID)
		if err != nil {
			return 0, err
		}
		if profile == nil {
			return 0, ErrOrganizationNotFound
		}
		return profile.UserID, nil
	default:
		return 0, ErrParamInvalid
	}
}

func (s *identityServiceImpl) Exists(ctx context.Context, ref model.ParticipantRef) (bool, error) {
	switch ref.Kind {
	case model.KindUser:
		user, err := s.repo.GetUserById(ctx, ref.ID)
		return user.Reachable(), err
	case model.KindOrganization:
		profile, err := s.repo.GetBusinessProfileById(ctx, ref.ID)
		return profile != nil, err
	default:
		return false, nil
	}
}

// Display 身份的展示信息, 已注销的身份返回占位名称
func (s *identityServiceImpl) Display(ctx context.Context, ref model.ParticipantRef) (dto.ParticipantDTO, error) {
	key := consts.IdentityDisplayKey + ref.String()
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil && raw != "" {
			var cached dto.ParticipantDTO
			if err = json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	res, err := s.loadDisplay(ctx, ref)
	if err != nil {
		return dto.ParticipantDTO{}, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(res); err == nil {
			if err = s.cache.Set(ctx, key, string(raw), displayCacheTTL); err != nil {
				log.WarnContext(ctx, "identity display cache set failed", "ref", ref.String(), "err", err)
			}
		}
	}
	return res, nil
}

func (s *identityServiceImpl) loadDisplay(ctx context.Context, ref model.ParticipantRef) (dto.ParticipantDTO, error) {
	res := dto.ParticipantDTO{Kind: ref.Kind, ID: ref.ID}
	switch ref.Kind {
	case model.KindUser:
		user, err := s.repo.GetUserById(ctx, ref.ID)
		if err != nil {
			return res, err
		}
		if user == nil {
			res.Name = "已注销用户"
			return res, nil
		}
		res.Name = user.UserDetail.Nickname
		res.Avatar = user.UserDetail.AvatarURL
		if user.Username != nil {
			res.Username = *user.Username
			if res.Name == "" {
				res.Name = *user.Username
			}
		}
	case model.KindOrganization:
		profile, err := s.repo.GetBusinessProfileById(ctx, ref.ID)
		if err != nil {
			return res, err
		}
		if profile == nil {
			res.Name = "已注销企业"
			return res, nil
		}
		res.Name = profile.Name
		res.Avatar = profile.Logo
	}
	if res.Avatar == "" {
		res.Avatar = consts.DefaultAvatarURL
	}
	return res, nil
}

// Evict 身份资料变更后清除缓存
func (s *identityServiceImpl) Evict(ctx context.Context, ref model.ParticipantRef) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, consts.IdentityDisplayKey+ref.String())
}

// displayMemo 单次请求内复用展示信息
type displayMemo struct {
	identities IdentityService
	seen       map[model.ParticipantRef]dto.ParticipantDTO
}

func newDisplayMemo(identities IdentityService) *displayMemo {
	return &displayMemo{identities: identities, seen: make(map[model.ParticipantRef]dto.ParticipantDTO)}
}

func (m *displayMemo) get(ctx context.Context, ref model.ParticipantRef) (dto.ParticipantDTO, error) {
	if d, ok := m.seen[ref]; ok {
		return d, nil
	}
	d, err := m.identities.Display(ctx, ref)
	if err != nil {
		return dto.ParticipantDTO{}, err
	}
	m.seen[ref] = d
	return d, nil
}
