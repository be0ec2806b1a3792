package push

import (
	"encoding/json"
	"testing"

	"SocialSync/service/eventx"
)

func TestParseClientFrame(t *testing.T) {
	f, err := ParseClientFrame([]byte(`{"type":"auth","token":"tok"}`))
	if err != nil {
		t.Fatalf("ParseClientFrame: %v", err)
	}
	if f.Type != FrameAuth || f.Token != "tok" {
		t.Fatalf("frame = %+v", f)
	}

	if _, err := ParseClientFrame([]byte(`{"token":"tok"}`)); err == nil {
		t.Fatal("missing type must be rejected")
	}
	if _, err := ParseClientFrame([]byte(`not json`)); err == nil {
		t.Fatal("bad json must be rejected")
	}
}

func TestEncodePushCarriesEventPayload(t *testing.T) {
	evt := eventx.Event{
		Type:    eventx.LikeAdded,
		Payload: eventx.MustPayload(&eventx.EdgePayload{Actor: "alice", Object: "post1", Kind: "like", Present: true}),
	}
	data := EncodePush(evt)

	var frame PushFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != string(eventx.LikeAdded) {
		t.Fatalf("type = %s", frame.Type)
	}
	var p eventx.EdgePayload
	if err := json.Unmarshal(frame.Payload, &p); err != nil {
		t.Fatal(err)
	}
	if p.Actor != "alice" || !p.Present {
		t.Fatalf("payload = %+v", p)
	}
}

func TestEncodePong(t *testing.T) {
	var frame PushFrame
	if err := json.Unmarshal(EncodePong(), &frame); err != nil {
		t.Fatal(err)
	}
	if frame.Type != FramePong {
		t.Fatalf("type = %s", frame.Type)
	}
}
