package announce

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"sweepbot/internal/channel"
)

// purgeWindow bounds how many recent messages are scanned for stray
// platform-generated pin notifications after a replacement.
const purgeWindow = 20

// Outcome is the result of applying a candidate schedule.
type Outcome int

const (
	// OutcomeApplied means the announcement was replaced with the candidate.
	OutcomeApplied Outcome = iota
	// OutcomeRejectedPast means the candidate time is already in the past.
	OutcomeRejectedPast
	// OutcomeRejectedNotNewer means the candidate is older than the currently
	// pinned schedule.
	OutcomeRejectedNotNewer
	// OutcomeRejectedIdentical means the candidate equals the currently
	// pinned schedule.
	OutcomeRejectedIdentical
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeRejectedPast:
		return "rejected_past"
	case OutcomeRejectedNotNewer:
		return "rejected_not_newer"
	case OutcomeRejectedIdentical:
		return "rejected_identical"
	default:
		return "unknown"
	}
}

// Replies holds the user-facing reply texts for command handling.
type Replies struct {
	Usage     string
	Past      string
	NotNewer  string
	Identical string
	// Applied is a format string receiving the accepted schedule rendered
	// with the announcement time layout.
	Applied string
	Error   string
}

// Scheduler owns the one logical announcement slot for a channel. It is a
// state machine over {Absent, Present(scheduled_time)} where the scheduled
// time is monotonically non-decreasing across successful replacements.
type Scheduler struct {
	client    channel.Client
	channelID string
	replies   Replies
	logger    *slog.Logger

	// guard serializes pin updates against cleanup runs on the same channel;
	// the read-decide-replace sequence is not atomic against the platform.
	guard *sync.Mutex

	now func() time.Time
}

// NewScheduler creates an announcement scheduler for one channel. The guard
// mutex must be shared with the cleanup engine operating on the same channel.
func NewScheduler(client channel.Client, channelID string, replies Replies, logger *slog.Logger, guard *sync.Mutex) *Scheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Scheduler{
		client:    client,
		channelID: channelID,
		replies:   replies,
		logger:    logger.With("component", "announce_scheduler"),
		guard:     guard,
		now:       time.Now,
	}
}

// HandleMessage routes an inbound channel message. Non-command messages are
// ignored; malformed commands get a usage-hint reply; well-formed candidates
// are applied and answered with an outcome-specific reply. Reply failures are
// logged, never propagated.
func (s *Scheduler) HandleMessage(ctx context.Context, msg channel.Message) {
	if !IsCommand(msg.Content) {
		return
	}

	candidate, ok := ParseCandidate(msg.Content)
	if !ok {
		s.logger.InfoContext(ctx, "Unparseable schedule command, replying with usage hint",
			"author", msg.Author)
		s.reply(ctx, s.replies.Usage)
		return
	}

	outcome, err := s.Apply(ctx, candidate)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to apply candidate schedule",
			"candidate", candidate, "error", err)
		s.reply(ctx, s.replies.Error)
		return
	}

	s.logger.InfoContext(ctx, "Candidate schedule processed",
		"candidate", candidate, "outcome", outcome.String(), "author", msg.Author)

	switch outcome {
	case OutcomeApplied:
		s.reply(ctx, fmt.Sprintf(s.replies.Applied, candidate.Format(timeLayout)))
	case OutcomeRejectedPast:
		s.reply(ctx, s.replies.Past)
	case OutcomeRejectedNotNewer:
		s.reply(ctx, s.replies.NotNewer)
	case OutcomeRejectedIdentical:
		s.reply(ctx, s.replies.Identical)
	}
}

// Apply validates a candidate schedule against the currently pinned
// announcement and replaces it when the candidate is strictly newer.
// Rejections perform no mutating calls. A non-nil error means the replacement
// itself failed; the guard is held for the whole read-decide-replace sequence.
func (s *Scheduler) Apply(ctx context.Context, candidate time.Time) (Outcome, error) {
	if s.guard != nil {
		s.guard.Lock()
		defer s.guard.Unlock()
	}

	current, currentMsg, exists, err := s.currentAnnouncement(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read pinned announcements: %w", err)
	}

	if candidate.Before(s.now().UTC()) {
		return OutcomeRejectedPast, nil
	}

	if exists {
		if candidate.Equal(current) {
			return OutcomeRejectedIdentical, nil
		}
		if candidate.Before(current) {
			return OutcomeRejectedNotNewer, nil
		}
	}

	// The candidate wins. Retire the previous announcement best-effort: a
	// failed unpin or delete must not block pinning the new schedule.
	if exists {
		if err := s.client.Unpin(ctx, s.channelID, currentMsg.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to unpin previous announcement",
				"message_id", currentMsg.ID, "error", err)
		}
		if err := s.client.Delete(ctx, s.channelID, currentMsg.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete previous announcement",
				"message_id", currentMsg.ID, "error", err)
		}
	}

	s.purgePinNotices(ctx)

	sent, err := s.client.Send(ctx, s.channelID, FormatAnnouncement(candidate))
	if err != nil {
		return 0, fmt.Errorf("failed to send new announcement: %w", err)
	}
	if err := s.client.Pin(ctx, s.channelID, sent.ID); err != nil {
		return 0, fmt.Errorf("failed to pin new announcement %s: %w", sent.ID, err)
	}

	s.logger.InfoContext(ctx, "Announcement replaced",
		"scheduled_time", candidate, "message_id", sent.ID)
	return OutcomeApplied, nil
}

// currentAnnouncement scans the channel's pins for the announcement marker.
// A pin carrying the marker with a malformed time is logged and treated as if
// no announcement exists.
func (s *Scheduler) currentAnnouncement(ctx context.Context) (time.Time, channel.Message, bool, error) {
	pins, err := s.client.Pins(ctx, s.channelID)
	if err != nil {
		return time.Time{}, channel.Message{}, false, err
	}

	for _, pin := range pins {
		if !IsAnnouncement(pin.Content) {
			continue
		}
		scheduled, ok := ParseAnnouncement(pin.Content)
		if !ok {
			s.logger.WarnContext(ctx, "Pinned announcement is malformed, treating as absent",
				"message_id", pin.ID, "content", pin.Content)
			continue
		}
		return scheduled, pin, true, nil
	}

	return time.Time{}, channel.Message{}, false, nil
}

// purgePinNotices deletes platform-generated "message was pinned"
// notifications from a small recent-message window, best-effort.
func (s *Scheduler) purgePinNotices(ctx context.Context) {
	recent, err := s.client.Recent(ctx, s.channelID, purgeWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "Failed to fetch recent messages for pin-notice purge", "error", err)
		return
	}

	for _, m := range recent {
		if !m.PinNotice {
			continue
		}
		if err := s.client.Delete(ctx, s.channelID, m.ID); err != nil {
			s.logger.WarnContext(ctx, "Failed to delete pin notice", "message_id", m.ID, "error", err)
		}
	}
}

func (s *Scheduler) reply(ctx context.Context, text string) {
	if text == "" {
		return
	}
	if _, err := s.client.Send(ctx, s.channelID, text); err != nil {
		s.logger.ErrorContext(ctx, "Failed to send reply", "error", err)
	}
}
