package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/cruise-feed-sync/internal/model"
	"github.com/iliyamo/cruise-feed-sync/internal/repository"
	syncer "github.com/iliyamo/cruise-feed-sync/internal/sync"
)

// LineRunner executes a lock-guarded refresh for one line.  *sync.Runner is
// the production implementation.
type LineRunner interface {
	RunLine(ctx context.Context, lineID uint64, source string) (*syncer.RunResult, error)
}

// StartLineChangedConsumer connects to RabbitMQ, declares the durable
// cruiseline.changed queue, and starts consuming.  Each message triggers a
// bulk refresh for the named line.  The function runs a reconnect loop with
// exponential backoff and keeps running across broker restarts; processing
// errors are logged and the message rejected without requeue — the
// pending-update flags stay set, so the periodic scheduler picks the line
// up on its next cycle anyway.
func StartLineChangedConsumer(runner LineRunner) error {
	url := brokerURL()

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("line-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn, runner); err != nil {
			log.Printf("line-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

func consumeLoop(conn *amqp.Connection, runner LineRunner) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// One refresh at a time per consumer: a bulk run is heavy and the sync
	// lock already serializes per line, so prefetching more only holds
	// messages hostage.
	if err := ch.Qos(1, 0, false); err != nil {
		log.Printf("line-consumer: set QoS failed: %v", err)
	}

	_, err = ch.QueueDeclare(lineChangedQueueName, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	msgs, err := ch.Consume(lineChangedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := handleMessage(d.Body, runner); err != nil {
			log.Printf("line-consumer: handle message failed: %v", err)
			_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte, runner LineRunner) error {
	var ev LineChangedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	res, err := runner.RunLine(context.Background(), ev.LineID, model.SnapshotSourceWebhook)
	if errors.Is(err, repository.ErrLockHeld) {
		// Another run already owns the line; its pass will cover this
		// notification's cruises.  Ack and move on.
		log.Printf("line-consumer: line %d locked, leaving to current holder (event %s)", ev.LineID, ev.EventID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("run line %d: %w", ev.LineID, err)
	}
	log.Printf("line-consumer: line %d refreshed: %d ok, %d failed (event %s)",
		ev.LineID, res.Succeeded, res.Failed, ev.EventID)
	return nil
}
