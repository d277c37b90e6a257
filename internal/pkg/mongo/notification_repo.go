package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrInvalidNotificationID 通知 ID 不是合法的 ObjectID
var ErrInvalidNotificationID = errors.New("invalid notification id")

type NotificationRepo interface {
	EnsureIndexes(ctx context.Context) error
	CreateNotification(ctx context.Context, msg *NotificationModel) error
	GetNotificationList(ctx context.Context, receiverKind string, receiverID uint64, limit, offset int64) ([]*NotificationModel, error)
	MarkAsRead(ctx context.Context, receiverKind string, receiverID uint64, msgID string) error
	MarkAllAsRead(ctx context.Context, receiverKind string, receiverID uint64) error
	GetUnreadCount(ctx context.Context, receiverKind string, receiverID uint64) (int64, error)
}

type notificationRepoImpl struct {
	col *mongo.Collection
}

func NewNotificationRepo(db *mongo.Database) NotificationRepo {
	return &notificationRepoImpl{
		col: db.Collection("notifications"),
	}
}

func receiverFilter(kind string, id uint64) bson.M {
	return bson.M{"receiver_kind": kind, "receiver_id": id}
}

// EnsureIndexes 收件箱按接收方 + 时间倒序查询
func (s *notificationRepoImpl) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "receiver_kind", Value: 1},
			{Key: "receiver_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	return err
}

// CreateNotification 插入新通知
func (s *notificationRepoImpl) CreateNotification(ctx context.Context, msg *NotificationModel) error {
	if msg.ID.IsZero() {
		msg.ID = primitive.NewObjectID()
	}
	_, err := s.col.InsertOne(ctx, msg)
	return err
}

// GetNotificationList 分页获取通知列表 (按时间倒序)
func (s *notificationRepoImpl) GetNotificationList(ctx context.Context, receiverKind string, receiverID uint64, limit, offset int64) ([]*NotificationModel, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetSkip(offset)

	cursor, err := s.col.Find(ctx, receiverFilter(receiverKind, receiverID), opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = cursor.Close(ctx)
	}()

	list := make([]*NotificationModel, 0)
	if err = cursor.All(ctx, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// MarkAsRead 标记单条通知为已读
func (s *notificationRepoImpl) MarkAsRead(ctx context.Context, receiverKind string, receiverID uint64, msgID string) error {
	objectID, err := primitive.ObjectIDFromHex(msgID)
	if err != nil {
		return ErrInvalidNotificationID
	}
	filter := receiverFilter(receiverKind, receiverID)
	filter["_id"] = objectID
	result, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// MarkAllAsRead 将接收方所有未读通知标记为已读
func (s *notificationRepoImpl) MarkAllAsRead(ctx context.Context, receiverKind string, receiverID uint64) error {
	filter := receiverFilter(receiverKind, receiverID)
	filter["is_read"] = false
	_, err := s.col.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"is_read": true}})
	return err
}

// GetUnreadCount 获取未读通知总数
func (s *notificationRepoImpl) GetUnreadCount(ctx context.Context, receiverKind string, receiverID uint64) (int64, error) {
	filter := receiverFilter(receiverKind, receiverID)
	filter["is_read"] = false
	return s.col.CountDocuments(ctx, filter)
}
