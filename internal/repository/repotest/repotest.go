// Package repotest 提供基于内存 SQLite 的测试数据库
package repotest

import (
	"Mesdo/internal/model"
	"Mesdo/internal/repository"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open 为每个测试创建独立的内存库并完成迁移
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&model.User{}, &model.UserDetail{}, &model.BusinessProfile{}, &model.Job{}); err != nil {
		t.Fatalf("migrate identity tables: %v", err)
	}
	if err := repository.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// SeedUser 写入一个带昵称的用户
func SeedUser(t testing.TB, db *gorm.DB, username string) *model.User {
	t.Helper()
	name := username
	user := &model.User{Username: &name}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	detail := model.UserDetail{UserID: user.ID, Nickname: "Nick " + username, AvatarURL: username + ".png"}
	if err := db.Create(&detail).Error; err != nil {
		t.Fatalf("seed user detail %s: %v", username, err)
	}
	user.UserDetail = detail
	return user
}

// SeedOrganization 为 owner 写入一个企业主页
func SeedOrganization(t testing.TB, db *gorm.DB, ownerID uint64, name string) *model.BusinessProfile {
	t.Helper()
	profile := &model.BusinessProfile{UserID: ownerID, Name: name, Logo: name + ".png"}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("seed organization %s: %v", name, err)
	}
	return profile
}

// SeedJob 为组织写入一个职位
func SeedJob(t testing.TB, db *gorm.DB, orgID uint64, title string) *model.Job {
	t.Helper()
	job := &model.Job{OrganizationID: orgID, Title: title}
	if err := db.Create(job).Error; err != nil {
		t.Fatalf("seed job %s: %v", title, err)
	}
	return job
}
