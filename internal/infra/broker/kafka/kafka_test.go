package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
)

func TestProducer_PublishSetsKeyAndHeaders(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "carrental.reservation.events.v1" {
			return fmt.Errorf("unexpected topic %s", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "Hertz" {
			return fmt.Errorf("unexpected key %s", key)
		}
		if len(msg.Headers) != 2 || string(msg.Headers[0].Key) != "ce-type" || string(msg.Headers[1].Key) != "content-type" {
			return fmt.Errorf("headers not sorted: %v", msg.Headers)
		}
		return nil
	})
	p := NewProducerWith(sp)
	defer p.Close()

	err := p.Publish(context.Background(), "carrental.reservation.events.v1", "Hertz", []byte(`{}`), map[string]string{
		"content-type": "application/cloudevents+json",
		"ce-type":      "reservation.confirmed.v1",
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestProducer_PublishError(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := NewProducerWith(sp)
	defer p.Close()

	if err := p.Publish(context.Background(), "t", "k", nil, nil); !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Errorf("expected ErrOutOfBrokers, got %v", err)
	}
}

func TestProducer_CancelledContext(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	p := NewProducerWith(sp)
	defer p.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Publish(ctx, "t", "k", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

type fakeSession struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Claims() map[string][]int32 { return nil }
func (s *fakeSession) MemberID() string           { return "member" }
func (s *fakeSession) GenerationID() int32        { return 1 }
func (s *fakeSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *fakeSession) Commit() {}
func (s *fakeSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}
func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}
func (s *fakeSession) Context() context.Context { return s.ctx }

type fakeClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (c fakeClaim) Topic() string                            { return "tasks" }
func (c fakeClaim) Partition() int32                         { return 0 }
func (c fakeClaim) InitialOffset() int64                     { return 0 }
func (c fakeClaim) HighWaterMarkOffset() int64               { return 0 }
func (c fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumeClaim_MarksHandledAndDroppedMessages(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	claim := fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2}
	claim.messages <- &sarama.ConsumerMessage{Offset: 3}
	close(claim.messages)

	var handled []int64
	h := consumerGroupHandler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: MessageHandlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
			handled = append(handled, msg.Offset)
			if msg.Offset == 2 {
				return errors.New("poison")
			}
			return nil
		}),
	}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatal(err)
	}
	if len(handled) != 3 || len(sess.marked) != 3 {
		t.Errorf("expected all 3 handled and marked, got %v / %v", handled, sess.marked)
	}
}

func TestConsumeClaim_RetryLaterStopsWithoutMarking(t *testing.T) {
	sess := &fakeSession{ctx: context.Background()}
	claim := fakeClaim{messages: make(chan *sarama.ConsumerMessage, 2)}
	claim.messages <- &sarama.ConsumerMessage{Offset: 1}
	claim.messages <- &sarama.ConsumerMessage{Offset: 2}
	close(claim.messages)

	h := consumerGroupHandler{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		handler: MessageHandlerFunc(func(ctx context.Context, msg *sarama.ConsumerMessage) error {
			return ErrRetryLater
		}),
	}
	if err := h.ConsumeClaim(sess, claim); err != nil {
		t.Fatal(err)
	}
	if len(sess.marked) != 0 {
		t.Errorf("expected nothing marked, got %v", sess.marked)
	}
}

func TestHeaderValue(t *testing.T) {
	msg := &sarama.ConsumerMessage{Headers: []*sarama.RecordHeader{{Key: []byte("task-id"), Value: []byte("t-1")}}}
	if got := HeaderValue(msg, "task-id"); got != "t-1" {
		t.Errorf("expected t-1, got %q", got)
	}
	if got := HeaderValue(msg, "missing"); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
