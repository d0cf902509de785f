package notifications

import (
	"context"
	"log/slog"

	"trackdesk/internal/sla"
	"trackdesk/internal/types"
)

// Sender abstracts the outbound mail provider. Implemented by
// external.MailClient; failures are logged by the notifier and never
// retried here, since the next scan cycle naturally re-attempts.
type Sender interface {
	Send(ctx context.Context, input types.SendInput) error
}

// ThresholdNotifier walks each scanned task up its priority's threshold
// ladder and sends at most one notification per task per scan: the first
// rung that has been crossed and not yet sent. Even if several rungs were
// crossed since the last successful scan (after downtime, say), only the
// lowest unsent one fires now; the next rung waits for the next scan.
type ThresholdNotifier struct {
	ladder   sla.Ladder
	dedup    *DedupStore
	sender   Sender
	renderer *Renderer
	from     types.SenderIdentity
	logger   *slog.Logger
}

// ThresholdNotifierConfig holds the dependencies for the notifier.
type ThresholdNotifierConfig struct {
	Ladder   sla.Ladder
	Dedup    *DedupStore
	Sender   Sender
	Renderer *Renderer
	From     types.SenderIdentity
	Logger   *slog.Logger
}

// NewThresholdNotifier creates a notifier. A nil ladder gets the default
// escalation ladder.
func NewThresholdNotifier(cfg ThresholdNotifierConfig) *ThresholdNotifier {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ladder := cfg.Ladder
	if ladder == nil {
		ladder = sla.DefaultLadder()
	}
	return &ThresholdNotifier{
		ladder:   ladder,
		dedup:    cfg.Dedup,
		sender:   cfg.Sender,
		renderer: cfg.Renderer,
		from:     cfg.From,
		logger:   logger,
	}
}

// Process evaluates every candidate and returns the number of notifications
// sent. Send failures are logged and leave no dedup record, so the same
// threshold is re-attempted on the next scan rather than lost.
func (n *ThresholdNotifier) Process(ctx context.Context, candidates []types.BreachCandidate) (int, error) {
	sent := 0
	for _, c := range candidates {
		if n.processOne(ctx, c) {
			sent++
		}
	}
	if sent > 0 {
		n.logger.InfoContext(ctx, "threshold notifications dispatched",
			"candidates", len(candidates),
			"sent", sent,
		)
	}
	return sent, nil
}

// processOne sends at most one notification for a single task. Reports
// whether one was sent.
func (n *ThresholdNotifier) processOne(ctx context.Context, c types.BreachCandidate) bool {
	for _, threshold := range n.ladder.Thresholds(c.Task.Priority) {
		if c.PercentElapsed < threshold {
			// Ladder is ascending; nothing further is crossed either.
			return false
		}
		if n.dedup.Seen(c.Task.ID, threshold) {
			continue
		}

		if err := n.send(ctx, c, threshold); err != nil {
			n.logger.ErrorContext(ctx, "threshold notification send failed",
				"task_id", c.Task.ID,
				"threshold", threshold,
				"code", types.ErrCodeTransientIO,
				"error", err,
			)
			// No dedup record: the next scan re-attempts this rung.
			return false
		}

		n.dedup.Record(c.Task.ID, threshold)
		n.logger.InfoContext(ctx, "threshold notification sent",
			"task_id", c.Task.ID,
			"priority", c.Task.Priority,
			"threshold", threshold,
			"percent_elapsed", c.PercentElapsed,
		)
		// One notification per task per scan, even when several rungs
		// were crossed since the last cycle.
		return true
	}
	return false
}

// send renders and dispatches one warning to the assignee, plus the creator
// when distinct.
func (n *ThresholdNotifier) send(ctx context.Context, c types.BreachCandidate, threshold float64) error {
	msg, err := n.renderer.Render(c, threshold)
	if err != nil {
		return err
	}

	to := []string{c.Task.AssigneeEmail}
	if c.Task.CreatorEmail != "" && c.Task.CreatorEmail != c.Task.AssigneeEmail {
		to = append(to, c.Task.CreatorEmail)
	}

	return n.sender.Send(ctx, types.SendInput{
		To:          to,
		From:        n.from,
		Subject:     msg.Subject,
		BodyText:    msg.Text,
		BodyHTML:    msg.HTML,
		ReferenceID: c.Task.ID,
	})
}
