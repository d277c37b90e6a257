package service_test

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/service"
	"context"
	"errors"
	"strings"
	"testing"
)

func TestSendMessageOrderingAndPreview(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	convID := f.personal(t, alice, bob)

	m1 := f.send(t, alice, convID, "  first ")
	m2 := f.send(t, bob, convID, "second")
	if m1.Seq != 1 || m2.Seq != 2 {
		t.Fatalf("seqs = %d, %d", m1.Seq, m2.Seq)
	}
	if m1.Message != "first" {
		t.Fatalf("body not trimmed: %q", m1.Message)
	}
	if m1.Receiver == nil || m1.Receiver.Ref() != bob {
		t.Fatalf("receiver = %+v", m1.Receiver)
	}

	history, err := f.convs.GetHistory(ctx, alice, convID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Messages) != 2 || history.Messages[0].ID != m1.ID || history.Messages[1].ID != m2.ID {
		t.Fatalf("history order = %+v", history.Messages)
	}

	for _, viewer := range []model.ParticipantRef{alice, bob} {
		list, err := f.convs.ListConversations(ctx, viewer, "")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 1 {
			t.Fatalf("list = %+v", list)
		}
		c := list[0]
		if c.LastMessage != "second" || c.MessageCount != 2 || c.LastMessageTime.IsZero() {
			t.Fatalf("preview for %s = %+v", viewer, c)
		}
		if c.LastMessageTime.Before(m1.CreatedAt) {
			t.Fatalf("last message time %v not updated", c.LastMessageTime)
		}
		if c.LastSender == nil || *c.LastSender != bob {
			t.Fatalf("last sender = %v", c.LastSender)
		}
	}
}

func TestSendMessageDeliveryScope(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	convID := f.personal(t, alice, bob)
	f.pub.setOnline(alice)

	msg := f.send(t, alice, convID, "hello")

	events := f.pub.byEvent(consts.EventNewMessage)
	if len(events) != 1 {
		t.Fatalf("newMessage events = %d", len(events))
	}
	e := events[0]
	if !e.targets(alice) || !e.targets(bob) || e.targets(eve) || len(e.refs) != 2 {
		t.Fatalf("newMessage targets = %v", e.refs)
	}
	if got := e.data.(*dto.MessageDTO); got.ID != msg.ID {
		t.Fatalf("payload = %+v", got)
	}

	updates := f.pub.byEvent(consts.EventConversationUpdate)
	if len(updates) != 2 {
		t.Fatalf("conversationUpdate events = %d", len(updates))
	}
	for _, u := range updates {
		d := u.data.(*dto.ConversationDTO)
		if d.LastMessage != "hello" || d.OtherParticipant == nil || u.targets(d.OtherParticipant.Ref()) {
			t.Fatalf("update = %+v to %v", d, u.refs)
		}
	}

	// bob 不在线, 只给 bob 写收件箱
	sent := f.notifier.all()
	if len(sent) != 1 || sent[0].receiver != bob || sent[0].msg.ID != msg.ID {
		t.Fatalf("notifications = %+v", sent)
	}
}

func TestSendMessageValidation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	convID := f.personal(t, alice, bob)
	otherConv := f.personal(t, alice, eve)
	foreign := f.send(t, eve, otherConv, "elsewhere")

	tests := []struct {
		name   string
		sender model.ParticipantRef
		req    dto.SendMessageReq
		want   error
	}{
		{"empty", alice, dto.SendMessageReq{ConversationID: convID}, service.ErrEmptyMessage},
		{"blank", alice, dto.SendMessageReq{ConversationID: convID, Message: " \n\t "}, service.ErrEmptyMessage},
		{"too long", alice, dto.SendMessageReq{ConversationID: convID, Message: strings.Repeat("好", 21)}, service.ErrMessageTooLong},
		{"system type", alice, dto.SendMessageReq{ConversationID: convID, Message: "x", MessageType: consts.MsgTypeSystem}, service.ErrMessageTypeInvalid},
		{"outsider", eve, dto.SendMessageReq{ConversationID: convID, Message: "x"}, service.ErrNotParticipant},
		{"missing conversation", alice, dto.SendMessageReq{ConversationID: 999, Message: "x"}, service.ErrConversationNotFound},
		{"no target", alice, dto.SendMessageReq{Message: "x"}, service.ErrParamInvalid},
		{"foreign reply", alice, dto.SendMessageReq{ConversationID: convID, Message: "x", ReplyTo: &foreign.ID}, service.ErrReplyTargetInvalid},
		{"attachment without location", alice, dto.SendMessageReq{ConversationID: convID, Attachments: []dto.AttachmentDTO{{Filename: "a.png"}}}, service.ErrParamInvalid},
	}
	for _, tt := range tests {
		req := tt.req
		if _, err := f.msgs.SendMessage(ctx, tt.sender, &req); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}

	history, err := f.convs.GetHistory(ctx, alice, convID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Messages) != 0 {
		t.Fatalf("rejected sends were persisted: %+v", history.Messages)
	}
}

func TestSendMessageResolvesByReceiver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	msg, err := f.msgs.SendMessage(ctx, alice, &dto.SendMessageReq{ReceiverID: bob.ID, Message: "hey"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if convID := f.personal(t, bob, alice); convID != msg.ConversationID {
		t.Fatalf("message landed in %d, personal conversation is %d", msg.ConversationID, convID)
	}

	reply, err := f.msgs.SendMessage(ctx, bob, &dto.SendMessageReq{ConversationID: msg.ConversationID, Message: "yo", ReplyTo: &msg.ID})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ReplyTo == nil || *reply.ReplyTo != msg.ID {
		t.Fatalf("reply to = %v", reply.ReplyTo)
	}

	attach, err := f.msgs.SendMessage(ctx, alice, &dto.SendMessageReq{
		ConversationID: msg.ConversationID,
		Attachments:    []dto.AttachmentDTO{{URL: "https://cdn.example.com/x.png", MimeType: "image/png"}},
	})
	if err != nil {
		t.Fatalf("attachment only: %v", err)
	}
	if attach.MessageType != consts.MsgTypeFile || len(attach.Attachments) != 1 || attach.Attachments[0].Type != consts.MsgTypeImage {
		t.Fatalf("attachment message = %+v", attach)
	}

	list, err := f.convs.ListConversations(ctx, bob, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].LastMessage != "[file]" {
		t.Fatalf("preview = %+v", list)
	}
}

func TestMarkReadAndUnreadCount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	convID := f.personal(t, alice, bob)

	m1 := f.send(t, alice, convID, "one")
	m2 := f.send(t, alice, convID, "two")
	own := f.send(t, bob, convID, "mine")

	unread, err := f.msgs.UnreadCount(ctx, bob)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread.Total != 2 || unread.Conversations[convID] != 2 {
		t.Fatalf("unread = %+v", unread)
	}

	if _, err = f.msgs.MarkRead(ctx, eve, []uint64{m1.ID}); !errors.Is(err, service.ErrNotParticipant) {
		t.Fatalf("outsider mark read: err = %v", err)
	}

	ids, err := f.msgs.MarkRead(ctx, bob, []uint64{m1.ID, m1.ID, own.ID})
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if len(ids) != 1 || ids[0] != m1.ID {
		t.Fatalf("marked = %v", ids)
	}
	// 重复标记是幂等的
	if _, err = f.msgs.MarkRead(ctx, bob, []uint64{m1.ID}); err != nil {
		t.Fatalf("mark read again: %v", err)
	}

	receipts := f.pub.byEvent(consts.EventMessageRead)
	if len(receipts) != 2 || !receipts[0].targets(alice) {
		t.Fatalf("receipts = %+v", receipts)
	}
	if r := receipts[0].data.(dto.ReadReceiptDTO); r.MessageID != m1.ID || r.Reader != bob {
		t.Fatalf("receipt = %+v", r)
	}

	unread, err = f.msgs.UnreadCount(ctx, bob)
	if err != nil {
		t.Fatalf("unread: %v", err)
	}
	if unread.Total != 1 {
		t.Fatalf("unread after read = %+v", unread)
	}

	history, err := f.convs.GetHistory(ctx, alice, convID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	byID := map[uint64]*dto.MessageDTO{}
	for _, m := range history.Messages {
		byID[m.ID] = m
	}
	if !byID[m1.ID].IsRead || len(byID[m1.ID].ReadBy) != 1 || byID[m1.ID].ReadBy[0].Reader != bob {
		t.Fatalf("m1 read state = %+v", byID[m1.ID])
	}
	if byID[m2.ID].IsRead {
		t.Fatalf("m2 should be unread")
	}

	if _, err = f.msgs.MarkRead(ctx, bob, []uint64{12345}); !errors.Is(err, service.ErrMessageNotFound) {
		t.Fatalf("missing message: err = %v", err)
	}
}

func TestAddReaction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	convID := f.personal(t, alice, bob)
	msg := f.send(t, alice, convID, "hi")

	for i := 0; i < 2; i++ {
		r, err := f.msgs.AddReaction(ctx, bob, msg.ID, "👍")
		if err != nil {
			t.Fatalf("reaction %d: %v", i, err)
		}
		if r.ConversationID != convID || r.User != bob {
			t.Fatalf("reaction = %+v", r)
		}
	}
	if _, err := f.msgs.AddReaction(ctx, eve, msg.ID, "👍"); !errors.Is(err, service.ErrNotParticipant) {
		t.Fatalf("outsider reaction: err = %v", err)
	}
	if _, err := f.msgs.AddReaction(ctx, bob, msg.ID, " "); !errors.Is(err, service.ErrParamInvalid) {
		t.Fatalf("blank emoji: err = %v", err)
	}
	if _, err := f.msgs.AddReaction(ctx, bob, 999, "👍"); !errors.Is(err, service.ErrMessageNotFound) {
		t.Fatalf("missing message: err = %v", err)
	}

	history, err := f.convs.GetHistory(ctx, alice, convID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if n := len(history.Messages[0].Reactions); n != 1 {
		t.Fatalf("reactions = %d, want 1", n)
	}
	if n := len(f.pub.byEvent(consts.EventMessageReactionAdded)); n != 2 {
		t.Fatalf("reaction events = %d", n)
	}
}

func TestIdentityDisplayIsCached(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	d, err := f.identities.Display(ctx, alice)
	if err != nil {
		t.Fatalf("display: %v", err)
	}
	if d.Name != "Nick alice" || d.Username != "alice" {
		t.Fatalf("display = %+v", d)
	}

	key := consts.IdentityDisplayKey + alice.String()
	if raw, _ := f.cache.Get(ctx, key); !strings.Contains(raw, "Nick alice") {
		t.Fatalf("cache entry = %q", raw)
	}
	if err = f.identities.Evict(ctx, alice); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if raw, _ := f.cache.Get(ctx, key); raw != "" {
		t.Fatalf("cache entry after evict = %q", raw)
	}

	gone, err := f.identities.Display(ctx, model.UserRef(999))
	if err != nil {
		t.Fatalf("display missing: %v", err)
	}
	if gone.Name == "" {
		t.Fatal("missing identity should get a placeholder name")
	}
}
