package broker

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/domain"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	ns, err := StartEmbedded("127.0.0.1", -1)
	if err != nil {
		t.Fatalf("StartEmbedded: %v", err)
	}
	defer ns.Shutdown()

	sub, err := nats.Connect(ns.ClientURL())
	if err != nil {
		t.Fatalf("connecting subscriber: %v", err)
	}
	defer sub.Close()

	msgs := make(chan *nats.Msg, 4)
	if _, err := sub.ChanSubscribe("arena.7.>", msgs); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if err := sub.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	pub, err := Connect(ns.ClientURL(), "arena", zerolog.New(io.Discard))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	event := domain.Event{
		Type:      domain.EventArenaDuel,
		ServerID:  7,
		Timestamp: time.Now().UTC(),
		Data:      domain.ArenaDuelEvent{SessionID: "s1", Red: "A", Blue: "B"},
	}
	if got := pub.Subject(event); got != "arena.7.arena_duel" {
		t.Errorf("unexpected subject %q", got)
	}
	if err := pub.Publish(event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	select {
	case msg := <-msgs:
		var got struct {
			Type     string                `json:"event"`
			ServerID int64                 `json:"server_id"`
			Data     domain.ArenaDuelEvent `json:"data"`
		}
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("decoding message: %v", err)
		}
		if got.Type != domain.EventArenaDuel || got.ServerID != 7 || got.Data.Red != "A" || got.Data.Blue != "B" {
			t.Errorf("unexpected message %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
	}
}
