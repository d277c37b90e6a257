package imclient

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"testing"
	"time"
)

type recordingSender struct {
	events chan string
}

func (r *recordingSender) Send(event string, _ any) error {
	r.events <- event
	return nil
}

func nextEvent(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return ""
	}
}

func TestTypingNotifierDebounces(t *testing.T) {
	sender := &recordingSender{events: make(chan string, 8)}
	n := NewTypingNotifier(sender, 3, 50*time.Millisecond)

	n.Keystroke()
	n.Keystroke()
	n.Keystroke()
	if e := nextEvent(t, sender.events); e != consts.EventTypingStart {
		t.Fatalf("first event = %s", e)
	}
	// 安静期过后自动发出 stop
	if e := nextEvent(t, sender.events); e != consts.EventTypingStop {
		t.Fatalf("second event = %s", e)
	}

	n.Keystroke()
	n.Stop()
	n.Stop()
	if e := nextEvent(t, sender.events); e != consts.EventTypingStart {
		t.Fatalf("third event = %s", e)
	}
	if e := nextEvent(t, sender.events); e != consts.EventTypingStop {
		t.Fatalf("fourth event = %s", e)
	}

	time.Sleep(100 * time.Millisecond)
	if len(sender.events) != 0 {
		t.Fatalf("unexpected extra events: %d", len(sender.events))
	}
}

func TestTypingTrackerImpliesStop(t *testing.T) {
	changes := make(chan dto.TypingDTO, 8)
	tracker := NewTypingTracker(50*time.Millisecond, func(d dto.TypingDTO) { changes <- d })
	alice := model.UserRef(1)

	tracker.Observe(dto.TypingDTO{ConversationID: 9, User: alice, IsTyping: true})
	tracker.Observe(dto.TypingDTO{ConversationID: 9, User: alice, IsTyping: true})

	first := <-changes
	if !first.IsTyping || first.User != alice {
		t.Fatalf("first change = %+v", first)
	}
	if refs := tracker.Typing(); len(refs) != 1 || refs[0] != alice {
		t.Fatalf("typing = %v", refs)
	}

	select {
	case second := <-changes:
		if second.IsTyping || second.User != alice || second.ConversationID != 9 {
			t.Fatalf("implied stop = %+v", second)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no implied stop")
	}
	if len(tracker.Typing()) != 0 {
		t.Fatal("alice still typing")
	}
}

func TestTypingTrackerExplicitStop(t *testing.T) {
	changes := make(chan dto.TypingDTO, 8)
	tracker := NewTypingTracker(time.Hour, func(d dto.TypingDTO) { changes <- d })
	bob := model.OrganizationRef(2)

	tracker.Observe(dto.TypingDTO{User: bob, IsTyping: true})
	tracker.Observe(dto.TypingDTO{User: bob, IsTyping: false})
	// 未在输入的参与方发来 stop 不产生变化
	tracker.Observe(dto.TypingDTO{User: bob, IsTyping: false})

	if len(changes) != 2 {
		t.Fatalf("changes = %d", len(changes))
	}
	if c := <-changes; !c.IsTyping {
		t.Fatalf("first = %+v", c)
	}
	if c := <-changes; c.IsTyping {
		t.Fatalf("second = %+v", c)
	}

	tracker.Close()
	tracker.Observe(dto.TypingDTO{User: bob, IsTyping: true})
	if len(changes) != 0 || len(tracker.Typing()) != 0 {
		t.Fatal("closed tracker still observing")
	}
}
