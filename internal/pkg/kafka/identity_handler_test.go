package kafka

import (
	"Mesdo/internal/model"
	"context"
	"errors"
	"testing"

	"github.com/IBM/sarama"
)

type evictRecorder struct {
	refs []model.ParticipantRef
	err  error
}

func (e *evictRecorder) Evict(_ context.Context, ref model.ParticipantRef) error {
	e.refs = append(e.refs, ref)
	return e.err
}

func TestIdentityHandlerEvicts(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  []model.ParticipantRef
	}{
		{
			name:  "user detail",
			value: `{"table":"user_detail","type":"UPDATE","data":[{"user_id":"7","nickname":"x"}]}`,
			want:  []model.ParticipantRef{model.UserRef(7)},
		},
		{
			name:  "business profile",
			value: `{"table":"business_profiles","type":"UPDATE","data":[{"id":"3","user_id":"7"},{"id":"4"}]}`,
			want:  []model.ParticipantRef{model.OrganizationRef(3), model.OrganizationRef(4)},
		},
		{
			name:  "users",
			value: `{"table":"users","type":"DELETE","data":[{"id":12}]}`,
			want:  []model.ParticipantRef{model.UserRef(12)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &evictRecorder{}
			h := NewIdentityHandler(rec)
			if err := h.logic(context.Background(), &sarama.ConsumerMessage{Value: []byte(tt.value)}); err != nil {
				t.Fatalf("logic: %v", err)
			}
			if len(rec.refs) != len(tt.want) {
				t.Fatalf("evicted %v, want %v", rec.refs, tt.want)
			}
			for i := range tt.want {
				if rec.refs[i] != tt.want[i] {
					t.Fatalf("evicted %v, want %v", rec.refs, tt.want)
				}
			}
		})
	}
}

func TestIdentityHandlerSkips(t *testing.T) {
	rec := &evictRecorder{}
	h := NewIdentityHandler(rec)

	for _, value := range []string{
		`not json`,
		`{"table":"jobs","data":[{"id":"1"}]}`,
		`{"table":"users","isDdl":true,"data":[{"id":"1"}]}`,
		`{"table":"users","data":[]}`,
	} {
		err := h.logic(context.Background(), &sarama.ConsumerMessage{Value: []byte(value)})
		if !errors.Is(err, ErrSkipMessage) {
			t.Fatalf("%s: err = %v", value, err)
		}
	}
	if len(rec.refs) != 0 {
		t.Fatalf("unexpected evictions %v", rec.refs)
	}
}

func TestIdentityHandlerPropagatesEvictError(t *testing.T) {
	boom := errors.New("redis down")
	h := NewIdentityHandler(&evictRecorder{err: boom})
	err := h.logic(context.Background(), &sarama.ConsumerMessage{Value: []byte(`{"table":"users","data":[{"id":"1"}]}`)})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
}

func TestRetryWithBackoffStopsOnSkip(t *testing.T) {
	calls := 0
	retryWithBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return ErrSkipMessage
	})
	if calls != 2 {
		t.Fatalf("calls = %d", calls)
	}
}
