package service_test

import (
	"Mesdo/internal/api/config"
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/repository"
	"Mesdo/internal/repository/repotest"
	"Mesdo/internal/service"
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"
)

type published struct {
	refs  []model.ParticipantRef
	room  uint64
	event string
	data  any
}

// recordingPublisher 记录推送, online 决定 IsOnline 的结果
type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	online map[model.ParticipantRef]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{online: make(map[model.ParticipantRef]bool)}
}

func (p *recordingPublisher) PublishToIdentities(refs []model.ParticipantRef, event string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{refs: append([]model.ParticipantRef(nil), refs...), event: event, data: data})
}

func (p *recordingPublisher) PublishToConversation(convID uint64, event string, data any, _ string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{room: convID, event: event, data: data})
}

func (p *recordingPublisher) IsOnline(ref model.ParticipantRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[ref]
}

func (p *recordingPublisher) setOnline(ref model.ParticipantRef) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.online[ref] = true
}

func (p *recordingPublisher) byEvent(event string) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var res []published
	for _, e := range p.events {
		if e.event == event {
			res = append(res, e)
		}
	}
	return res
}

func (p published) targets(ref model.ParticipantRef) bool {
	for _, r := range p.refs {
		if r == ref {
			return true
		}
	}
	return false
}

type memCache struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memCache) Set(_ context.Context, key string, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *memCache) Del(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

type notified struct {
	receiver model.ParticipantRef
	msg      *dto.MessageDTO
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notified
}

func (n *fakeNotifier) NotifyNewMessage(_ context.Context, receiver model.ParticipantRef, msg *dto.MessageDTO) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notified{receiver: receiver, msg: msg})
	return nil
}

func (n *fakeNotifier) all() []notified {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notified(nil), n.sent...)
}

type fixture struct {
	db         *gorm.DB
	cache      *memCache
	pub        *recordingPublisher
	notifier   *fakeNotifier
	identities service.IdentityService
	convs      service.ConversationService
	msgs       service.MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := repotest.Open(t)
	f := &fixture{
		db:       db,
		cache:    newMemCache(),
		pub:      newRecordingPublisher(),
		notifier: &fakeNotifier{},
	}
	convRepo := repository.NewConversationRepo(db)
	msgRepo := repository.NewMessageRepo(db)
	f.identities = service.NewIdentityService(repository.NewIdentityRepo(db), f.cache)
	f.convs = service.NewConversationService(convRepo, msgRepo, f.identities, f.pub)
	f.msgs = service.NewMessageService(f.convs, convRepo, msgRepo, f.identities, f.pub, nil, f.notifier,
		config.ChatConfig{MaxMessageLength: 20, PreviewLength: 10})
	return f
}

func (f *fixture) user(t *testing.T, username string) model.ParticipantRef {
	t.Helper()
	return model.UserRef(repotest.SeedUser(t, f.db, username).ID)
}

func (f *fixture) personal(t *testing.T, a, b model.ParticipantRef) uint64 {
	t.Helper()
	conv, err := f.convs.Resolve(context.Background(), service.ResolveRequest{Initiator: a, Target: b})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return conv.ID
}

func (f *fixture) send(t *testing.T, sender model.ParticipantRef, convID uint64, text string) *dto.MessageDTO {
	t.Helper()
	msg, err := f.msgs.SendMessage(context.Background(), sender, &dto.SendMessageReq{ConversationID: convID, Message: text})
	if err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
	return msg
}
