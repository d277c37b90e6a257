package service_test

import (
	"Mesdo/internal/api/dto"
	"Mesdo/internal/model"
	"Mesdo/internal/pkg/consts"
	"Mesdo/internal/repository/repotest"
	"Mesdo/internal/service"
	"context"
	"errors"
	"sync"
	"testing"
)

func TestResolvePersonalIsOrderInsensitive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	first, err := f.convs.Resolve(ctx, service.ResolveRequest{Initiator: alice, Target: bob})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := f.convs.Resolve(ctx, service.ResolveRequest{Initiator: bob, Target: alice})
	if err != nil {
		t.Fatalf("resolve reversed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("conversation ids differ: %d vs %d", first.ID, second.ID)
	}
	if first.Category != model.CategoryPersonal || first.IsGroup {
		t.Fatalf("unexpected conversation: category=%s group=%v", first.Category, first.IsGroup)
	}

	byName, err := f.convs.InitiateByUsername(ctx, bob, "alice")
	if err != nil {
		t.Fatalf("initiate by username: %v", err)
	}
	if byName != first.ID {
		t.Fatalf("initiate by username = %d, want %d", byName, first.ID)
	}
}

func TestResolveRejectsInvalidTargets(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice := f.user(t, "alice")

	tests := []struct {
		name string
		call func() error
		want error
	}{
		{"self", func() error {
			_, err := f.convs.Resolve(ctx, service.ResolveRequest{Initiator: alice, Target: alice})
			return err
		}, service.ErrSelfConversation},
		{"missing user", func() error {
			_, err := f.convs.Resolve(ctx, service.ResolveRequest{Initiator: alice, Target: model.UserRef(999)})
			return err
		}, service.ErrUserNotFound},
		{"missing organization", func() error {
			_, err := f.convs.Resolve(ctx, service.ResolveRequest{Initiator: alice, Target: model.OrganizationRef(999)})
			return err
		}, service.ErrOrganizationNotFound},
		{"unknown username", func() error {
			_, err := f.convs.InitiateByUsername(ctx, alice, "nobody")
			return err
		}, service.ErrUserNotFound},
		{"blank username", func() error {
			_, err := f.convs.InitiateByUsername(ctx, alice, "  ")
			return err
		}, service.ErrParamInvalid},
	}
	for _, tt := range tests {
		if err := tt.call(); !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestResolveConcurrentCallsConverge(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")

	const n = 8
	ids := make([]uint64, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := service.ResolveRequest{Initiator: alice, Target: bob}
			if i%2 == 1 {
				req = service.ResolveRequest{Initiator: bob, Target: alice}
			}
			conv, err := f.convs.Resolve(context.Background(), req)
			errs[i] = err
			if conv != nil {
				ids[i] = conv.ID
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("resolve %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("resolve %d returned %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestRecruitmentConversationsArePerJob(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	carol := repotest.SeedUser(t, f.db, "carol")
	org := repotest.SeedOrganization(t, f.db, carol.ID, "Clinic")
	j1 := repotest.SeedJob(t, f.db, org.ID, "Nurse")
	j2 := repotest.SeedJob(t, f.db, org.ID, "Surgeon")
	alice := f.user(t, "alice")
	orgRef := model.OrganizationRef(org.ID)

	c1, err := f.convs.InitiateJob(ctx, alice, j1.ID)
	if err != nil {
		t.Fatalf("initiate job 1: %v", err)
	}
	c2, err := f.convs.InitiateJob(ctx, alice, j2.ID)
	if err != nil {
		t.Fatalf("initiate job 2: %v", err)
	}
	if c1 == c2 {
		t.Fatalf("different jobs share conversation %d", c1)
	}

	fromOrg, err := f.convs.InitiateRecruiter(ctx, orgRef, j1.ID, alice.ID)
	if err != nil {
		t.Fatalf("initiate recruiter: %v", err)
	}
	if fromOrg != c1 {
		t.Fatalf("recruiter side resolved %d, want %d", fromOrg, c1)
	}

	history, err := f.convs.GetHistory(ctx, orgRef, c1)
	if err != nil {
		t.Fatalf("org history: %v", err)
	}
	if history.Conversation.Category != model.CategoryRecruitment {
		t.Fatalf("category = %s", history.Conversation.Category)
	}
	if history.Conversation.JobID == nil || *history.Conversation.JobID != j1.ID {
		t.Fatalf("job id = %v, want %d", history.Conversation.JobID, j1.ID)
	}
	if history.OtherUser == nil || history.OtherUser.Ref() != alice {
		t.Fatalf("other user = %+v", history.OtherUser)
	}

	other := repotest.SeedOrganization(t, f.db, alice.ID, "Pharmacy")
	if _, err = f.convs.InitiateRecruiter(ctx, model.OrganizationRef(other.ID), j1.ID, alice.ID); !errors.Is(err, service.ErrNotJobOwner) {
		t.Fatalf("foreign job err = %v", err)
	}
	if _, err = f.convs.InitiateRecruiter(ctx, orgRef, j1.ID, carol.ID); !errors.Is(err, service.ErrSelfConversation) {
		t.Fatalf("recruiting own owner err = %v", err)
	}
	if _, err = f.convs.InitiateJob(ctx, model.UserRef(carol.ID), j1.ID); !errors.Is(err, service.ErrSelfConversation) {
		t.Fatalf("owner applying to own job err = %v", err)
	}
	if _, err = f.convs.InitiateJob(ctx, alice, 999); !errors.Is(err, service.ErrJobNotFound) {
		t.Fatalf("missing job err = %v", err)
	}
}

func TestUserOrganizationChatCategory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	carol := repotest.SeedUser(t, f.db, "carol")
	org := repotest.SeedOrganization(t, f.db, carol.ID, "Clinic")
	alice := f.user(t, "alice")

	conv, err := f.convs.Resolve(context.Background(), service.ResolveRequest{Initiator: alice, Target: model.OrganizationRef(org.ID)})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if conv.Category != model.CategoryOrganization {
		t.Fatalf("category = %s, want %s", conv.Category, model.CategoryOrganization)
	}
}

func TestGetHistoryRequiresParticipation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	convID := f.personal(t, alice, bob)
	f.send(t, alice, convID, "secret")

	for _, id := range []uint64{convID, convID + 100} {
		if _, err := f.convs.GetHistory(ctx, eve, id); !errors.Is(err, service.ErrNotParticipant) {
			t.Fatalf("history of %d for outsider: err = %v", id, err)
		}
	}

	history, err := f.convs.GetHistory(ctx, bob, convID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history.Messages) != 1 || history.Messages[0].Message != "secret" {
		t.Fatalf("messages = %+v", history.Messages)
	}
	if history.OtherUser == nil || history.OtherUser.Username != "alice" || history.OtherUser.Name != "Nick alice" {
		t.Fatalf("other user = %+v", history.OtherUser)
	}
}

func TestCreateGroupMinimumSize(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	tooSmall := [][]uint64{
		nil,
		{bob.ID},
		{bob.ID, bob.ID},
		{alice.ID, bob.ID},
	}
	for _, ids := range tooSmall {
		_, err := f.convs.CreateGroup(ctx, alice, &dto.CreateGroupReq{Name: "ward", ParticipantIDs: ids})
		if !errors.Is(err, service.ErrGroupTooSmall) {
			t.Errorf("invitees %v: err = %v, want ErrGroupTooSmall", ids, err)
		}
	}

	if _, err := f.convs.CreateGroup(ctx, alice, &dto.CreateGroupReq{Name: "ward", ParticipantIDs: []uint64{bob.ID, 999}}); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("missing invitee err = %v", err)
	}

	group, err := f.convs.CreateGroup(ctx, alice, &dto.CreateGroupReq{Name: "ward", ParticipantIDs: []uint64{bob.ID, carol.ID}})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}
	if !group.IsGroup || group.Category != model.CategoryGroups {
		t.Fatalf("group = %+v", group)
	}
	want := map[model.ParticipantRef]string{alice: model.RoleOwner, bob: model.RoleMember, carol: model.RoleMember}
	if len(group.Participants) != len(want) {
		t.Fatalf("participants = %+v", group.Participants)
	}
	for _, p := range group.Participants {
		if role, ok := want[p.Ref()]; !ok || role != p.Role {
			t.Fatalf("participant %+v unexpected", p)
		}
	}

	updates := f.pub.byEvent(consts.EventConversationUpdate)
	if len(updates) != 1 || !updates[0].targets(bob) || !updates[0].targets(carol) {
		t.Fatalf("conversationUpdate = %+v", updates)
	}

	again, err := f.convs.CreateGroup(ctx, alice, &dto.CreateGroupReq{Name: "ward", ParticipantIDs: []uint64{bob.ID, carol.ID}})
	if err != nil {
		t.Fatalf("create second group: %v", err)
	}
	if again.ID == group.ID {
		t.Fatal("groups must not be deduplicated")
	}
}

func TestGroupParticipantManagement(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol, dave := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol"), f.user(t, "dave")

	group, err := f.convs.CreateGroup(ctx, alice, &dto.CreateGroupReq{Name: "ward", ParticipantIDs: []uint64{bob.ID, carol.ID}})
	if err != nil {
		t.Fatalf("create group: %v", err)
	}

	if _, err = f.convs.AddParticipant(ctx, bob, group.ID, &dto.ParticipantReq{ID: dave.ID}); !errors.Is(err, service.UnauthorizedError) {
		t.Fatalf("member adding: err = %v", err)
	}
	if _, err = f.convs.AddParticipant(ctx, dave, group.ID, &dto.ParticipantReq{ID: dave.ID}); !errors.Is(err, service.ErrNotParticipant) {
		t.Fatalf("outsider adding: err = %v", err)
	}

	added, err := f.convs.AddParticipant(ctx, alice, group.ID, &dto.ParticipantReq{ID: dave.ID, Role: model.RoleAdmin})
	if err != nil {
		t.Fatalf("owner adding admin: %v", err)
	}
	if added.Role != model.RoleAdmin || added.Ref() != dave {
		t.Fatalf("added = %+v", added)
	}
	events := f.pub.byEvent(consts.EventParticipantAdded)
	if len(events) != 1 || !events[0].targets(dave) || !events[0].targets(bob) {
		t.Fatalf("participant-added = %+v", events)
	}

	if _, err = f.convs.AddParticipant(ctx, alice, group.ID, &dto.ParticipantReq{ID: bob.ID}); !errors.Is(err, service.ErrAlreadyParticipant) {
		t.Fatalf("duplicate add: err = %v", err)
	}

	if err = f.convs.RemoveParticipant(ctx, dave, group.ID, alice); !errors.Is(err, service.UnauthorizedError) {
		t.Fatalf("admin removing owner: err = %v", err)
	}
	if err = f.convs.RemoveParticipant(ctx, bob, group.ID, carol); !errors.Is(err, service.UnauthorizedError) {
		t.Fatalf("member removing member: err = %v", err)
	}
	if err = f.convs.RemoveParticipant(ctx, dave, group.ID, carol); err != nil {
		t.Fatalf("admin removing member: %v", err)
	}
	removed := f.pub.byEvent(consts.EventParticipantRemoved)
	if len(removed) != 1 || !removed[0].targets(carol) {
		t.Fatalf("participant-removed = %+v", removed)
	}

	// 群主退出, 管理员接任
	if err = f.convs.RemoveParticipant(ctx, alice, group.ID, alice); err != nil {
		t.Fatalf("owner leaving: %v", err)
	}
	history, err := f.convs.GetHistory(ctx, dave, group.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	roles := map[model.ParticipantRef]string{}
	for _, p := range history.Conversation.Participants {
		roles[p.Ref()] = p.Role
	}
	if len(roles) != 2 || roles[dave] != model.RoleOwner || roles[bob] != model.RoleMember {
		t.Fatalf("roles after owner left = %v", roles)
	}
	if _, err = f.convs.GetHistory(ctx, alice, group.ID); !errors.Is(err, service.ErrNotParticipant) {
		t.Fatalf("former owner history: err = %v", err)
	}

	personal := f.personal(t, bob, dave)
	if _, err = f.convs.AddParticipant(ctx, bob, personal, &dto.ParticipantReq{ID: carol.ID}); !errors.Is(err, service.ErrNotGroup) {
		t.Fatalf("adding to personal chat: err = %v", err)
	}
}

func TestListConversationsAndPeers(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")

	withBob := f.personal(t, alice, bob)
	withCarol := f.personal(t, alice, carol)
	f.send(t, bob, withBob, "older")
	f.send(t, carol, withCarol, "newer")

	list, err := f.convs.ListConversations(ctx, alice, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != withCarol || list[1].ID != withBob {
		t.Fatalf("list order = %+v", list)
	}
	if list[0].UnreadCount != 1 || list[0].OtherParticipant == nil || list[0].OtherParticipant.Ref() != carol {
		t.Fatalf("first item = %+v", list[0])
	}

	jobs, err := f.convs.ListConversations(ctx, alice, model.CategoryRecruitment)
	if err != nil {
		t.Fatalf("list recruitment: %v", err)
	}
	if len(jobs) != 0 {
		t.Fatalf("recruitment list = %+v", jobs)
	}

	peers, err := f.convs.Peers(ctx, alice)
	if err != nil {
		t.Fatalf("peers: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("peers = %v", peers)
	}

	actor, conv, err := f.convs.Authorize(ctx, withBob, carol, bob)
	if err != nil || actor != bob || conv.ID != withBob {
		t.Fatalf("authorize = %v %v %v", actor, conv, err)
	}
	if _, _, err = f.convs.Authorize(ctx, withBob, carol); !errors.Is(err, service.ErrNotParticipant) {
		t.Fatalf("authorize outsider: err = %v", err)
	}
}
