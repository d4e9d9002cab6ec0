package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/medtrack/go-remind/internal/delivery"
	"github.com/medtrack/go-remind/internal/observability/metrics"
)

// DefaultTick is how often the relay checks for due reminders.
const DefaultTick = 15 * time.Second

// staleGrace is how far past its fire time a replayed register command may be
// and still fire. Older ones are dropped; on a replay from the earliest
// offset most of the log is history, not work.
const staleGrace = time.Minute

// AuditSink receives fired/dropped notices for the audit topic.
// *delivery.Producer satisfies it.
type AuditSink interface {
	ProduceMessage(ctx context.Context, topic, key string, value []byte) error
}

// Relay consumes delivery commands into the armed set and fires reminders as
// they come due.
type Relay struct {
	armory  *Armory
	sender  Sender
	audit   AuditSink
	metrics *metrics.Metrics
	logger  *zap.Logger
	clock   func() time.Time
	tick    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRelay creates a relay. metrics may be nil.
func NewRelay(sender Sender, m *metrics.Metrics, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		armory:  NewArmory(),
		sender:  sender,
		metrics: m,
		logger:  logger,
		clock:   time.Now,
		tick:    DefaultTick,
	}
}

// WithAudit publishes a notice to the audit topic for every fired or
// dropped reminder.
func (r *Relay) WithAudit(sink AuditSink) *Relay {
	r.audit = sink
	return r
}

// Handle is the consumer callback: it applies one delivery command to the
// armed set.
func (r *Relay) Handle(_ context.Context, msg *delivery.ConsumedMessage) error {
	var cmd delivery.Command
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		// A poison record is logged and skipped, not retried forever.
		r.logger.Error("malformed delivery command",
			zap.Int64("offset", msg.Offset),
			zap.Error(err))
		return nil
	}

	switch cmd.Op {
	case delivery.OpRegister:
		if cmd.Payload == nil {
			r.logger.Error("register command without payload", zap.String("handle", cmd.Handle))
			return nil
		}
		if cmd.FireAt.Before(r.clock().Add(-staleGrace)) {
			r.logger.Debug("stale register dropped",
				zap.String("handle", cmd.Handle),
				zap.Time("fire_at", cmd.FireAt))
			return nil
		}
		r.armory.Arm(cmd.Handle, cmd.FireAt, *cmd.Payload)
	case delivery.OpCancel:
		r.armory.Disarm(cmd.Handle)
	default:
		r.logger.Error("unknown delivery op", zap.String("op", string(cmd.Op)))
	}
	return nil
}

// Start begins the firing loop.
func (r *Relay) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.wg.Add(1)
	go r.fireLoop(ctx)
}

// Stop halts the firing loop and waits for it to exit.
func (r *Relay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Relay) fireLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.fireDue(ctx)
		}
	}
}

func (r *Relay) fireDue(ctx context.Context) {
	for _, due := range r.armory.Due(r.clock()) {
		text := due.Payload.Title
		if due.Payload.Body != "" {
			text = fmt.Sprintf("%s\n%s", due.Payload.Title, due.Payload.Body)
		}
		if err := r.sender.Send(ctx, text); err != nil {
			r.logger.Error("reminder send failed",
				zap.String("handle", due.Handle),
				zap.Error(err))
			if r.metrics != nil {
				r.metrics.RemindersDropped.Inc()
			}
			r.publishAudit(ctx, due, delivery.AuditDropped, err.Error())
			continue
		}
		if r.metrics != nil {
			r.metrics.RemindersFired.Inc()
		}
		r.logger.Info("reminder fired",
			zap.String("handle", due.Handle),
			zap.Time("at", due.At),
			zap.Int64("record_id", due.Payload.TargetRecordID))
		r.publishAudit(ctx, due, delivery.AuditFired, "")
	}
}

// publishAudit is best-effort: the audit trail never blocks firing.
func (r *Relay) publishAudit(ctx context.Context, due Armed, outcome delivery.AuditOutcome, reason string) {
	if r.audit == nil {
		return
	}
	notice := delivery.AuditNotice{
		Handle:         due.Handle,
		Outcome:        outcome,
		FireAt:         due.At,
		Title:          due.Payload.Title,
		TargetRecordID: due.Payload.TargetRecordID,
		EmittedAt:      r.clock().UTC(),
		Reason:         reason,
	}
	data, err := json.Marshal(notice)
	if err != nil {
		r.logger.Error("encode audit notice", zap.Error(err))
		return
	}
	if err := r.audit.ProduceMessage(ctx, delivery.TopicReminderAudit, due.Handle, data); err != nil {
		r.logger.Warn("audit publish failed",
			zap.String("handle", due.Handle),
			zap.Error(err))
	}
}
