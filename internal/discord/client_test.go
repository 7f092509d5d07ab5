package discord

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"sweepbot/internal/channel"
)

func TestSnowflakeTime(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		id     string
		want   time.Time
		wantOK bool
	}{
		{
			// 175928847299117063 is the documented example snowflake:
			// 2016-04-30 11:18:25.796 UTC.
			name:   "documented example snowflake",
			id:     "175928847299117063",
			want:   time.Date(2016, 4, 30, 11, 18, 25, 796_000_000, time.UTC),
			wantOK: true,
		},
		{
			name:   "zero snowflake is the platform epoch",
			id:     "0",
			want:   time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC),
			wantOK: true,
		},
		{
			name:   "non-numeric id",
			id:     "not-a-snowflake",
			wantOK: false,
		},
		{
			name:   "empty id",
			id:     "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, ok := snowflakeTime(tt.id)
			if ok != tt.wantOK {
				t.Fatalf("snowflakeTime(%q) ok = %v, want %v", tt.id, ok, tt.wantOK)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("snowflakeTime(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestToMessage(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	got := toMessage(&discordgo.Message{
		ID:        "42",
		ChannelID: "chan",
		Author:    &discordgo.User{Username: "alice"},
		Content:   "hello",
		Timestamp: ts,
		Pinned:    true,
	})

	want := channel.Message{
		ID:        "42",
		ChannelID: "chan",
		Author:    "alice",
		Content:   "hello",
		CreatedAt: ts,
		Pinned:    true,
	}
	if got != want {
		t.Errorf("toMessage() = %+v, want %+v", got, want)
	}
}

func TestToMessagePinNotice(t *testing.T) {
	t.Parallel()

	got := toMessage(&discordgo.Message{
		ID:   "7",
		Type: discordgo.MessageTypeChannelPinnedMessage,
	})
	if !got.PinNotice {
		t.Error("toMessage() PinNotice = false for a channel-pinned system message")
	}

	got = toMessage(&discordgo.Message{ID: "8"})
	if got.PinNotice {
		t.Error("toMessage() PinNotice = true for a regular message")
	}
}

func TestMapError(t *testing.T) {
	t.Parallel()

	notFound := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusNotFound},
	}
	if err := mapError(notFound); !errors.Is(err, channel.ErrNotFound) {
		t.Errorf("mapError(404) = %v, want channel.ErrNotFound", err)
	}

	forbidden := &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden},
	}
	if err := mapError(forbidden); errors.Is(err, channel.ErrNotFound) {
		t.Error("mapError(403) must not map to channel.ErrNotFound")
	}

	plain := errors.New("connection reset")
	if err := mapError(plain); err != plain {
		t.Errorf("mapError(plain) = %v, want the error unchanged", err)
	}
}
