// Package channel defines the port through which the bot talks to the chat
// platform. The concrete implementation lives in internal/discord; tests use
// in-memory fakes.
package channel

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a channel or message no longer exists on the
// platform. Deleting an already-deleted message surfaces as ErrNotFound and
// callers treat it as a no-op.
var ErrNotFound = errors.New("channel: not found")

// Message is the read-only view of a platform message the core operates on.
// IDs are opaque strings that increase monotonically with creation time.
type Message struct {
	ID        string
	ChannelID string
	Author    string
	Content   string
	CreatedAt time.Time // UTC
	Pinned    bool

	// PinNotice marks platform-generated "message was pinned" notifications,
	// which the announcement scheduler purges best-effort after repinning.
	PinNotice bool
}

// Channel identifies a resolved channel.
type Channel struct {
	ID   string
	Name string
}

// Client abstracts the chat platform. All methods take a context and return
// explicit errors; none of them retry on behalf of the caller.
type Client interface {
	// ResolveChannel verifies the channel exists and is accessible.
	// Returns ErrNotFound if it does not.
	ResolveChannel(ctx context.Context, channelID string) (Channel, error)

	// Messages walks the full channel history oldest-first, invoking fn once
	// per page. Iteration stops on the first error returned by fn or by the
	// underlying transport.
	Messages(ctx context.Context, channelID string, fn func(batch []Message) error) error

	// Recent fetches up to limit of the newest messages, newest first.
	Recent(ctx context.Context, channelID string, limit int) ([]Message, error)

	// Delete removes a single message.
	Delete(ctx context.Context, channelID, messageID string) error

	// BulkDelete removes many messages in one platform call. Implementations
	// chunk as required by the platform's batch size limits.
	BulkDelete(ctx context.Context, channelID string, messageIDs []string) error

	// Pins lists the channel's currently pinned messages.
	Pins(ctx context.Context, channelID string) ([]Message, error)

	// Send posts a new message and returns it.
	Send(ctx context.Context, channelID, content string) (Message, error)

	Pin(ctx context.Context, channelID, messageID string) error
	Unpin(ctx context.Context, channelID, messageID string) error

	// SetPresence updates the bot's cosmetic status text, best-effort.
	SetPresence(ctx context.Context, text string) error
}
