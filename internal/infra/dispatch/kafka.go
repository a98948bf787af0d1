package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"

	"carrental/internal/app/policies"
	"carrental/internal/infra/broker/kafka"
)

// TasksTopic carries confirmation tasks keyed by task id.
const TasksTopic = "confirmation.tasks.v1"

type Publisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// KafkaDispatcher publishes tasks for a consumer group to execute.
type KafkaDispatcher struct {
	Producer Publisher
	Topic    string
}

func (d KafkaDispatcher) Dispatch(ctx context.Context, task policies.ConfirmTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}
	headers := map[string]string{
		"content-type": "application/json",
		"task-id":      task.TaskID,
	}
	return d.Producer.Publish(ctx, d.Topic, task.TaskID, payload, headers)
}

// TaskConsumer executes tasks read from Kafka. Malformed messages are dropped;
// a task that could not run is left for redelivery.
type TaskConsumer struct {
	Executor TaskExecutor
	Logger   *slog.Logger
}

func (c TaskConsumer) Handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var task policies.ConfirmTask
	if err := json.Unmarshal(msg.Value, &task); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedTask, err)
	}
	err := c.Executor.Execute(ctx, task)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrMalformedTask):
		return err
	default:
		if c.Logger != nil {
			c.Logger.Warn("confirmation task will be retried", "task_id", task.TaskID, "error", err)
		}
		return fmt.Errorf("%w: %v", kafka.ErrRetryLater, err)
	}
}

var (
	_ policies.TaskDispatcher = KafkaDispatcher{}
	_ kafka.MessageHandler    = TaskConsumer{}
)
