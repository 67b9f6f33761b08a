// Chainwatch - Wormhole Chain Killmail Surveillance
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/chainwatch

package ingest

import (
	"context"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/tomtom215/chainwatch/internal/dispatch"
	"github.com/tomtom215/chainwatch/internal/models"
	"github.com/tomtom215/chainwatch/internal/topology"
)

type recordingDispatcher struct {
	seen []int64
}

func (d *recordingDispatcher) HandleEvent(_ context.Context, km *models.Killmail) dispatch.Summary {
	d.seen = append(d.seen, km.ID)
	return dispatch.Summary{KillmailID: km.ID}
}

type recordingCache struct {
	deltas []topology.Delta
}

func (c *recordingCache) ApplyDelta(delta topology.Delta) {
	c.deltas = append(c.deltas, delta)
}

func newMessage(payload string) *message.Message {
	return message.NewMessage(watermill.NewUUID(), []byte(payload))
}

func TestHandleKillmail(t *testing.T) {
	d := &recordingDispatcher{}
	c := &Consumer{dispatcher: d}

	if err := c.handle(newMessage(`{"killmail_id": 9001, "solar_system_id": 31000002}`)); err != nil {
		t.Fatalf("handle error: %v", err)
	}
	if len(d.seen) != 1 || d.seen[0] != 9001 {
		t.Errorf("dispatched %v, want [9001]", d.seen)
	}
}

func TestHandleKillmailMalformed(t *testing.T) {
	d := &recordingDispatcher{}
	c := &Consumer{dispatcher: d}

	// A bad record is acked and dropped, never an error that would wedge
	// the stream on redelivery.
	for _, payload := range []string{`not json`, `{"solar_system_id": 31000002}`} {
		if err := c.handle(newMessage(payload)); err != nil {
			t.Errorf("handle(%q) error = %v, want nil", payload, err)
		}
	}
	if len(d.seen) != 0 {
		t.Errorf("dispatched %v, want nothing", d.seen)
	}
}

func TestHandleDelta(t *testing.T) {
	cache := &recordingCache{}
	c := &Consumer{cache: cache, mapID: "home-chain"}

	payload := `{
		"map_id": "home-chain",
		"delta": {
			"added_systems": [{"solar_system_id": 31000006, "connections": [31000002]}],
			"removed_system_ids": [31000005]
		}
	}`
	if err := c.handleDelta(newMessage(payload)); err != nil {
		t.Fatalf("handleDelta error: %v", err)
	}
	if len(cache.deltas) != 1 {
		t.Fatalf("applied %d deltas, want 1", len(cache.deltas))
	}
	delta := cache.deltas[0]
	if len(delta.AddedSystems) != 1 || delta.AddedSystems[0].SolarSystemID != 31000006 {
		t.Errorf("added systems = %+v, want [31000006]", delta.AddedSystems)
	}
	if len(delta.RemovedSystemIDs) != 1 || delta.RemovedSystemIDs[0] != 31000005 {
		t.Errorf("removed ids = %v, want [31000005]", delta.RemovedSystemIDs)
	}
}

func TestHandleDeltaOtherMap(t *testing.T) {
	cache := &recordingCache{}
	c := &Consumer{cache: cache, mapID: "home-chain"}

	if err := c.handleDelta(newMessage(`{"map_id": "other-chain", "delta": {"removed_system_ids": [1]}}`)); err != nil {
		t.Fatalf("handleDelta error: %v", err)
	}
	if len(cache.deltas) != 0 {
		t.Errorf("applied %d deltas, want 0 for a foreign map", len(cache.deltas))
	}
}

func TestHandleDeltaMalformed(t *testing.T) {
	cache := &recordingCache{}
	c := &Consumer{cache: cache}

	if err := c.handleDelta(newMessage(`{{`)); err != nil {
		t.Errorf("handleDelta error = %v, want nil for malformed payload", err)
	}
	if len(cache.deltas) != 0 {
		t.Errorf("applied %d deltas, want 0", len(cache.deltas))
	}
}

func TestDefaultConsumerConfig(t *testing.T) {
	cfg := DefaultConsumerConfig("nats://127.0.0.1:4222")
	if cfg.DurableName != "chainwatch" {
		t.Errorf("DurableName = %q, want chainwatch", cfg.DurableName)
	}
	if cfg.RetryMaxRetries != 3 {
		t.Errorf("RetryMaxRetries = %d, want 3", cfg.RetryMaxRetries)
	}
}
