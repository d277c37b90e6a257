package repository

import (
	"Mesdo/internal/model"
	"context"
	"errors"

	"gorm.io/gorm"
)

// IdentityRepo 只读访问用户, 企业主页与职位, 这些表由其它服务维护
type IdentityRepo interface {
	GetUserById(ctx context.Context, id uint64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetBusinessProfileById(ctx context.Context, id uint64) (*model.BusinessProfile, error)
	GetBusinessProfileByUserId(ctx context.Context, userID uint64) (*model.BusinessProfile, error)
	GetJobById(ctx context.Context, id uint64) (*model.Job, error)
}

type IdentityRepoImpl struct {
	db *gorm.DB
}

func NewIdentityRepo(db *gorm.DB) IdentityRepo {
	return &IdentityRepoImpl{db: db}
}

func (s *IdentityRepoImpl) GetUserById(ctx context.Context, id uint64) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Preload("UserDetail").
		Where("is_delete = ?", false).
		First(user, id)
	return orNil(user, result.Error)
}

func (s *IdentityRepoImpl) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	user := &model.User{}
	result := s.db.WithContext(ctx).
		Preload("UserDetail").
		Where("username = ? AND is_delete = ?", username, false).
		First(user)
	return orNil(user, result.Error)
}

func (s *IdentityRepoImpl) GetBusinessProfileById(ctx context.Context, id uint64) (*model.BusinessProfile, error) {
	profile := &model.BusinessProfile{}
	result := s.db.WithContext(ctx).Where("is_delete = ?", false).First(profile, id)
	return orNil(profile, result.Error)
}

func (s *IdentityRepoImpl) GetBusinessProfileByUserId(ctx context.Context, userID uint64) (*model.BusinessProfile, error) {
	profile := &model.BusinessProfile{}
	result := s.db.WithContext(ctx).Where("user_id = ? AND is_delete = ?", userID, false).First(profile)
	return orNil(profile, result.Error)
}

func (s *IdentityRepoImpl) GetJobById(ctx context.Context, id uint64) (*model.Job, error) {
	job := &model.Job{}
	result := s.db.WithContext(ctx).First(job, id)
	return orNil(job, result.Error)
}

// orNil 记录不存在时返回 nil, nil
func orNil[T any](v *T, err error) (*T, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return v, nil
}
