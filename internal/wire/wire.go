package wire

import (
	"Mesdo/internal/api"
	"Mesdo/internal/api/config"
	"Mesdo/internal/api/handler"
	"Mesdo/internal/job"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/cron"
	"Mesdo/internal/pkg/kafka"
	"Mesdo/internal/pkg/minio"
	"Mesdo/internal/pkg/mongo"
	"Mesdo/internal/pkg/realtime"
	"Mesdo/internal/pkg/redis"
	"Mesdo/internal/repository"
	"Mesdo/internal/service"
	"context"
	"time"

	"github.com/gin-gonic/gin"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

// ApplicationContainer 封装了应用运行所需的所有顶级组件
type ApplicationContainer struct {
	Router       *gin.Engine
	DB           *gorm.DB
	Hub          *realtime.Hub
	CronMgr      *cron.Manager
	KafkaManager *kafka.ConsumerManager
}

func BuildApplication(db *gorm.DB, mongoDB *mongodriver.Database, cfg *config.Config) (*ApplicationContainer, error) {
	// repository
	convRepo := repository.NewConversationRepo(db)
	messageRepo := repository.NewMessageRepo(db)
	identityRepo := repository.NewIdentityRepo(db)
	notificationRepo := mongo.NewNotificationRepo(mongoDB)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := notificationRepo.EnsureIndexes(ctx); err != nil {
		return nil, err
	}

	// 实时网关
	hub := realtime.NewHub()

	// service
	identityService := service.NewIdentityService(identityRepo, redis.NewKV())
	conversationService := service.NewConversationService(convRepo, messageRepo, identityService, hub)
	notificationService := service.NewNotificationService(notificationRepo, identityService, hub, cfg.Chat.PreviewLength)
	messageService := service.NewMessageService(
		conversationService,
		convRepo,
		messageRepo,
		identityService,
		hub,
		minio.NewAttachmentStore(cfg.MinIO),
		notificationService,
		cfg.Chat,
	)
	presenceService := service.NewPresenceService(
		conversationService,
		redis.NewPresence(),
		hub,
		time.Duration(cfg.Chat.PresenceTTL)*time.Second,
	)

	revoked := redis.NewTokenBlacklist()
	wsOpts := realtime.OptionsFrom(cfg.Realtime)
	wsOpts.AllowOrigins = cfg.Server.AllowOrigins

	handlers := &api.HandlersGroup{
		ChatHandler:         handler.NewChatHandler(model.KindUser, identityService, conversationService, messageService, presenceService),
		JobChatHandler:      handler.NewChatHandler(model.KindUser, identityService, conversationService, messageService, presenceService),
		RecruiterHandler:    handler.NewChatHandler(model.KindOrganization, identityService, conversationService, messageService, presenceService),
		NotificationHandler: handler.NewNotificationHandler(identityService, notificationService),
		WSHandler: handler.NewWsHandler(
			hub,
			wsOpts,
			revoked,
			identityService,
			conversationService,
			messageService,
			presenceService,
		),
		Revoked:      revoked,
		LogToken:     cfg.Logstash.Token,
		AllowOrigins: cfg.Server.AllowOrigins,
	}

	router := api.SetupRouter(handlers)

	// 定时任务
	cronMgr := cron.NewCronManager(cfg.Chat.PresenceSweep, job.NewPresenceSweepJob(presenceService))

	// Kafka
	kafkaMgr, err := kafka.NewConsumerManager(cfg, identityService)
	if err != nil {
		return nil, err
	}

	return &ApplicationContainer{
		Router:       router,
		DB:           db,
		Hub:          hub,
		CronMgr:      cronMgr,
		KafkaManager: kafkaMgr,
	}, nil
}
