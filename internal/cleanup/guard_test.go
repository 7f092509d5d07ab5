package cleanup_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"sweepbot/internal/announce"
	"sweepbot/internal/channel"
	"sweepbot/internal/cleanup"
)

// guardClient blocks inside the history traversal until released, recording
// every mutating call in order.
type guardClient struct {
	mu        sync.Mutex
	entered   chan struct{}
	release   chan struct{}
	mutations []string
}

func newGuardClient() *guardClient {
	return &guardClient{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (c *guardClient) record(op string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mutations = append(c.mutations, op)
}

func (c *guardClient) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.mutations...)
}

func (c *guardClient) ResolveChannel(ctx context.Context, channelID string) (channel.Channel, error) {
	return channel.Channel{ID: channelID, Name: "general"}, nil
}

func (c *guardClient) Messages(ctx context.Context, channelID string, fn func(batch []channel.Message) error) error {
	close(c.entered)
	<-c.release
	return fn([]channel.Message{{
		ID:        "1",
		CreatedAt: time.Now().UTC().Add(-10 * 24 * time.Hour),
	}})
}

func (c *guardClient) Recent(ctx context.Context, channelID string, limit int) ([]channel.Message, error) {
	return nil, nil
}

func (c *guardClient) Delete(ctx context.Context, channelID, messageID string) error {
	c.record("delete")
	return nil
}

func (c *guardClient) BulkDelete(ctx context.Context, channelID string, messageIDs []string) error {
	c.record("bulk_delete")
	return nil
}

func (c *guardClient) Pins(ctx context.Context, channelID string) ([]channel.Message, error) {
	return nil, nil
}

func (c *guardClient) Send(ctx context.Context, channelID, content string) (channel.Message, error) {
	c.record("send")
	return channel.Message{ID: "100", Content: content}, nil
}

func (c *guardClient) Pin(ctx context.Context, channelID, messageID string) error {
	c.record("pin")
	return nil
}

func (c *guardClient) Unpin(ctx context.Context, channelID, messageID string) error {
	c.record("unpin")
	return nil
}

func (c *guardClient) SetPresence(ctx context.Context, text string) error { return nil }

// A cleanup run and a pin update share one per-channel mutex; the pin update
// must neither mutate the channel nor finish while the run is in flight.
func TestCleanupRunSerializesAgainstPinUpdate(t *testing.T) {
	t.Parallel()

	var guard sync.Mutex
	client := newGuardClient()
	engine := cleanup.NewEngine(client, &fakeStore{}, nil, nil, &guard)
	announcer := announce.NewScheduler(client, "chan", announce.Replies{}, nil, &guard)

	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		if _, err := engine.Run(context.Background(), "chan", cleanup.Policy{DeleteAfterDays: 7}); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()

	select {
	case <-client.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup run never reached the history traversal")
	}

	applyDone := make(chan struct{})
	go func() {
		defer close(applyDone)
		outcome, err := announcer.Apply(context.Background(), time.Now().UTC().Add(24*time.Hour))
		if err != nil {
			t.Errorf("Apply() error = %v", err)
		}
		if outcome != announce.OutcomeApplied {
			t.Errorf("Apply() outcome = %v, want applied", outcome)
		}
	}()

	time.Sleep(100 * time.Millisecond)
	if got := client.snapshot(); len(got) != 0 {
		t.Fatalf("pin update mutated the channel during a cleanup run: %v", got)
	}
	select {
	case <-applyDone:
		t.Fatal("Apply() finished while the cleanup run held the guard")
	default:
	}

	close(client.release)

	for _, done := range []chan struct{}{runDone, applyDone} {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("run and pin update never completed after release")
		}
	}

	got := client.snapshot()
	want := []string{"delete", "send", "pin"}
	if len(got) != len(want) {
		t.Fatalf("mutation sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("mutation sequence = %v, want %v (the run's deletions finish before the pin update starts)", got, want)
		}
	}
}
