// Package announce maintains the single pinned "next reset" announcement for
// a channel: it parses candidate schedules from inbound commands and replaces
// the pinned announcement only when a strictly newer schedule is observed.
package announce

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// The marker format is a versioned contract: exactly one recognizable
// announcement format exists at a time. Supporting two concurrent formats
// would reintroduce the "two pins disagree" ambiguity this package prevents.
const (
	// announcementPrefix identifies the authoritative pinned announcement
	// among all pinned messages.
	announcementPrefix = "📌 Next reset: "

	// timeLayout is the date/time notation in both commands and announcements.
	timeLayout = "2006-01-02 15:04"

	// commandPrefix starts a candidate schedule command.
	commandPrefix = "!reset"
)

var (
	candidateRe    = regexp.MustCompile(`^!reset\s+(\d{4}-\d{2}-\d{2} \d{2}:\d{2})\s*$`)
	announcementRe = regexp.MustCompile(`^📌 Next reset: (\d{4}-\d{2}-\d{2} \d{2}:\d{2}) UTC$`)
)

// IsCommand reports whether text is an attempt at a schedule command: the
// bare !reset token, optionally followed by arguments. Longer words sharing
// the prefix are not commands. An attempt that fails ParseCandidate gets a
// usage-hint reply.
func IsCommand(text string) bool {
	fields := strings.Fields(text)
	return len(fields) > 0 && fields[0] == commandPrefix
}

// ParseCandidate recognizes a schedule command of the form
// "!reset 2006-01-02 15:04" and returns the carried time in UTC.
// The second return value is false when the text does not match.
func ParseCandidate(text string) (time.Time, bool) {
	m := candidateRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(timeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// FormatAnnouncement renders the pinned announcement content for a scheduled
// time. ParseAnnouncement is its exact inverse.
func FormatAnnouncement(scheduled time.Time) string {
	return fmt.Sprintf("%s%s UTC", announcementPrefix, scheduled.UTC().Format(timeLayout))
}

// ParseAnnouncement extracts the scheduled time from a pinned announcement's
// content. The second return value is false when the content does not carry
// the announcement marker or its time is malformed.
func ParseAnnouncement(content string) (time.Time, bool) {
	m := announcementRe.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(timeLayout, m[1])
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// IsAnnouncement reports whether content carries the announcement marker,
// regardless of whether its timestamp parses.
func IsAnnouncement(content string) bool {
	return strings.HasPrefix(strings.TrimSpace(content), announcementPrefix)
}
