/*
digest.go - Scheduled overdue-debt digest

PURPOSE:
  Once a day the bot pushes the overdue report to the admin chat without
  waiting for anyone to press the menu button. Uses the same report builder
  as the interactive flow, so both surfaces always agree.

SCHEDULE:
  Standard cron expression, default "0 9 * * *" (daily at 09:00 server time).
*/
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/creditbook/conversation"
	"github.com/warp/creditbook/debt"
	"github.com/warp/creditbook/ledger"
)

// DefaultDigestSchedule runs the digest daily at 09:00.
const DefaultDigestSchedule = "0 9 * * *"

// Digest sends the overdue report to a fixed admin chat on a cron schedule.
type Digest struct {
	store       ledger.Store
	sender      Sender
	adminChatID int64
	cron        *cron.Cron
}

// NewDigest creates a digest publisher. It does nothing until Start.
func NewDigest(store ledger.Store, sender Sender, adminChatID int64) *Digest {
	return &Digest{
		store:       store,
		sender:      sender,
		adminChatID: adminChatID,
		cron:        cron.New(),
	}
}

// Start registers the schedule and starts the cron runner.
func (d *Digest) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultDigestSchedule
	}
	if _, err := d.cron.AddFunc(schedule, d.Run); err != nil {
		return fmt.Errorf("invalid digest schedule %q: %w", schedule, err)
	}
	d.cron.Start()
	slog.Info("overdue digest scheduled", "schedule", schedule, "chat_id", d.adminChatID)
	return nil
}

// Stop halts the cron runner and waits for an in-flight run to finish.
func (d *Digest) Stop() {
	<-d.cron.Stop().Done()
}

// Run builds and sends one digest immediately. Exposed so the scheduler and
// manual triggers share one code path.
func (d *Digest) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	report, err := conversation.OverdueReportText(ctx, d.store, time.Now())
	if err != nil {
		slog.Error("failed to build overdue digest", "error", err)
		return
	}

	for _, chunk := range debt.ChunkMessage(report, debt.MaxMessageLen) {
		if err := d.sender.Send(ctx, d.adminChatID, conversation.Reply{Text: chunk}); err != nil {
			slog.Error("failed to send overdue digest", "chat_id", d.adminChatID, "error", err)
			return
		}
	}
}
