package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"graph-db-migrater/sdk/audit"
	"graph-db-migrater/sdk/bus"
	"graph-db-migrater/sdk/plan"
)

// Result statuses published on the result routing key.
const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// reconnectDelay paces broker reconnection attempts.
const reconnectDelay = 500 * time.Millisecond

// correlation carries the opaque request fields echoed verbatim on
// every result so the requester can match responses to requests.
type correlation struct {
	SourceGUID string `json:"source_guid,omitempty"`
	SourceName string `json:"source_name,omitempty"`
	ObjectGUID string `json:"object_guid,omitempty"`
	SyncType   string `json:"sync_type,omitempty"`
	IdentityID string `json:"identity_id,omitempty"`
	Model      string `json:"model,omitempty"`
}

// migrationTask is the envelope consumed from the request queue. The
// source_guid doubles as the migration's db_source.
type migrationTask struct {
	Name             string       `json:"name"`
	ConnString       string       `json:"conn_string"`
	ObjectName       string       `json:"object_name,omitempty"`
	ObjectDBPath     string       `json:"object_db_path,omitempty"`
	MigrationPattern plan.Pattern `json:"migration_pattern"`
	correlation
}

type migrationResult struct {
	Status         string              `json:"status"`
	ConnString     string              `json:"conn_string,omitempty"`
	ObjectName     string              `json:"object_name,omitempty"`
	GraphMigration *audit.MigrationOut `json:"graph_migration,omitempty"`
	Count          int                 `json:"count,omitempty"`
	correlation
}

// RunWorker consumes migration requests until the context is
// cancelled, reconnecting to the broker whenever the channel drops.
func (s *Service) RunWorker(ctx context.Context) {
	for {
		if err := s.consume(ctx); err != nil {
			log.WithError(err).Error("request worker stopped, restarting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

func (s *Service) consume(ctx context.Context) error {
	b, err := bus.Connect(bus.Config{
		URL:          s.cfg.MQConnectionString,
		Exchange:     s.cfg.MigrationExchange,
		RequestQueue: s.cfg.MigrationRequestQueue,
		ResultQueue:  s.cfg.MigrationResultQueue,
	})
	if err != nil {
		return err
	}
	defer b.Close()

	deliveries, err := b.Consume()
	if err != nil {
		return err
	}
	closed := b.NotifyClose()
	log.WithField("queue", s.cfg.MigrationRequestQueue).Info("request worker started")

	for {
		select {
		case <-ctx.Done():
			return nil
		case amqpErr := <-closed:
			return fmt.Errorf("channel closed: %v", amqpErr)
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery stream ended")
			}
			s.handleDelivery(ctx, b, d)
		}
	}
}

// handleDelivery processes one request. Failures are published as
// failure results and the message is rejected without requeue so a
// poison message cannot wedge the queue.
func (s *Service) handleDelivery(ctx context.Context, b *bus.Bus, d amqp.Delivery) {
	var task migrationTask
	if err := json.Unmarshal(d.Body, &task); err != nil {
		log.WithError(err).Error("undecodable migration request")
		s.publishResult(ctx, b, &migrationResult{Status: statusFailure})
		_ = d.Reject(false)
		return
	}

	result, err := s.processTask(ctx, task)
	if err != nil {
		log.WithError(err).WithField("source", task.SourceGUID).
			Error("migration request failed")
		s.publishResult(ctx, b, &migrationResult{
			Status:      statusFailure,
			ObjectName:  task.ObjectName,
			correlation: task.correlation,
		})
		_ = d.Reject(false)
		return
	}

	s.publishResult(ctx, b, result)
	_ = d.Ack(false)
}

func (s *Service) processTask(ctx context.Context, task migrationTask) (*migrationResult, error) {
	in := MigrationIn{
		Name:         task.Name,
		ConnString:   task.ConnString,
		DBSource:     task.SourceGUID,
		ObjectName:   task.ObjectName,
		ObjectDBPath: task.ObjectDBPath,
	}
	added, err := s.Add(ctx, in)
	if err != nil {
		return nil, err
	}
	if _, err := s.Apply(ctx, task.SourceGUID, task.MigrationPattern); err != nil {
		return nil, err
	}
	out, err := s.Get(ctx, added.GUID)
	if err != nil {
		return nil, err
	}
	return &migrationResult{
		Status:         statusSuccess,
		ConnString:     task.ConnString,
		ObjectName:     task.ObjectName,
		GraphMigration: out,
		Count:          added.TableCount,
		correlation:    task.correlation,
	}, nil
}

func (s *Service) publishResult(ctx context.Context, b *bus.Bus, result *migrationResult) {
	body, err := json.Marshal(result)
	if err != nil {
		log.WithError(err).Error("marshal result")
		return
	}
	if err := b.PublishResult(ctx, body); err != nil {
		log.WithError(err).Error("publish result")
	}
}
