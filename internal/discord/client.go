// Package discord implements the channel.Client port on top of the Discord
// REST and gateway APIs.
package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"sweepbot/internal/channel"
)

// pageSize is Discord's maximum page size for history fetches.
const pageSize = 100

// bulkSafetyMargin keeps bulk-delete batches clear of Discord's two-week
// bulk ceiling; anything near the edge is deleted individually instead of
// risking the whole batch being rejected.
const bulkSafetyMargin = time.Hour

// bulkAgeCeiling is Discord's hard limit for bulk deletion.
const bulkAgeCeiling = 14 * 24 * time.Hour

// Client wraps a discordgo session behind the channel.Client interface.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// NewClient creates a Discord-backed channel client. The session is not
// opened; call Open before relying on gateway events or presence updates.
func NewClient(token string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentMessageContent

	return &Client{
		session: session,
		logger:  logger.With("component", "discord_client"),
	}, nil
}

// Open connects the gateway session.
func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord gateway session: %w", err)
	}
	c.logger.Info("Discord gateway session opened", "bot_user", c.session.State.User.Username)
	return nil
}

// Close disconnects the gateway session.
func (c *Client) Close() error {
	return c.session.Close()
}

// OnMessage registers fn for every inbound channel message. The bot's own
// messages are filtered out.
func (c *Client) OnMessage(fn func(ctx context.Context, msg channel.Message)) {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if s.State.User != nil && m.Author != nil && m.Author.ID == s.State.User.ID {
			return
		}
		fn(context.Background(), toMessage(m.Message))
	})
}

// ResolveChannel verifies the channel exists and is accessible.
func (c *Client) ResolveChannel(ctx context.Context, channelID string) (channel.Channel, error) {
	ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return channel.Channel{}, mapError(err)
	}
	return channel.Channel{ID: ch.ID, Name: ch.Name}, nil
}

// Messages walks the channel history oldest-first in pages of up to 100,
// invoking fn once per page.
func (c *Client) Messages(ctx context.Context, channelID string, fn func(batch []channel.Message) error) error {
	after := "0"
	for {
		page, err := c.session.ChannelMessages(channelID, pageSize, "", after, "", discordgo.WithContext(ctx))
		if err != nil {
			return mapError(err)
		}
		if len(page) == 0 {
			return nil
		}

		// Discord returns pages newest-first; reverse for oldest-first order.
		batch := make([]channel.Message, 0, len(page))
		for i := len(page) - 1; i >= 0; i-- {
			batch = append(batch, toMessage(page[i]))
		}

		if err := fn(batch); err != nil {
			return err
		}

		after = batch[len(batch)-1].ID
		if len(page) < pageSize {
			return nil
		}
	}
}

// Recent fetches up to limit of the newest messages, newest first.
func (c *Client) Recent(ctx context.Context, channelID string, limit int) ([]channel.Message, error) {
	if limit <= 0 || limit > pageSize {
		limit = pageSize
	}
	page, err := c.session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]channel.Message, 0, len(page))
	for _, m := range page {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// Delete removes a single message.
func (c *Client) Delete(ctx context.Context, channelID, messageID string) error {
	if err := c.session.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// BulkDelete removes messages in one platform call where possible. Discord's
// bulk endpoint rejects entire batches containing messages older than two
// weeks, so older entries are deleted one at a time instead; a single-message
// remainder also goes through the individual endpoint, which bulk deletion
// does not accept.
func (c *Client) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	cutoff := time.Now().UTC().Add(-(bulkAgeCeiling - bulkSafetyMargin))

	var bulk, individual []string
	for _, id := range messageIDs {
		if created, ok := snowflakeTime(id); ok && created.After(cutoff) {
			bulk = append(bulk, id)
		} else {
			individual = append(individual, id)
		}
	}

	if len(bulk) == 1 {
		individual = append(individual, bulk[0])
		bulk = nil
	}

	if len(bulk) > 0 {
		if err := c.session.ChannelMessagesBulkDelete(channelID, bulk, discordgo.WithContext(ctx)); err != nil {
			return mapError(err)
		}
	}

	for _, id := range individual {
		if err := c.Delete(ctx, channelID, id); err != nil {
			if errors.Is(err, channel.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// Pins lists the channel's pinned messages.
func (c *Client) Pins(ctx context.Context, channelID string) ([]channel.Message, error) {
	pins, err := c.session.ChannelMessagesPinned(channelID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	out := make([]channel.Message, 0, len(pins))
	for _, m := range pins {
		out = append(out, toMessage(m))
	}
	return out, nil
}

// Send posts a new message.
func (c *Client) Send(ctx context.Context, channelID, content string) (channel.Message, error) {
	m, err := c.session.ChannelMessageSend(channelID, content, discordgo.WithContext(ctx))
	if err != nil {
		return channel.Message{}, mapError(err)
	}
	return toMessage(m), nil
}

// Pin pins a message.
func (c *Client) Pin(ctx context.Context, channelID, messageID string) error {
	if err := c.session.ChannelMessagePin(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// Unpin unpins a message.
func (c *Client) Unpin(ctx context.Context, channelID, messageID string) error {
	if err := c.session.ChannelMessageUnpin(channelID, messageID, discordgo.WithContext(ctx)); err != nil {
		return mapError(err)
	}
	return nil
}

// SetPresence updates the bot's status text.
func (c *Client) SetPresence(ctx context.Context, text string) error {
	return c.session.UpdateGameStatus(0, text)
}

func toMessage(m *discordgo.Message) channel.Message {
	author := ""
	if m.Author != nil {
		author = m.Author.Username
	}
	return channel.Message{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		Author:    author,
		Content:   m.Content,
		CreatedAt: m.Timestamp.UTC(),
		Pinned:    m.Pinned,
		PinNotice: m.Type == discordgo.MessageTypeChannelPinnedMessage,
	}
}

// snowflakeTime extracts the creation time embedded in a Discord snowflake ID.
func snowflakeTime(id string) (time.Time, bool) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	const discordEpochMs = 1420070400000
	ms := int64(n>>22) + discordEpochMs
	return time.UnixMilli(ms).UTC(), true
}

// mapError converts Discord "unknown channel/message" REST errors to
// channel.ErrNotFound so callers can treat re-deletion as a no-op.
func mapError(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %v", channel.ErrNotFound, err)
	}
	return err
}
