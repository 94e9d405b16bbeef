package core

import (
	"context"
	"testing"
	"time"
)

func TestHubRoutesByRoom(t *testing.T) {
	hub := NewHub(nil)

	alice := newRegistered(t, hub)
	bob := newRegistered(t, hub)
	admin := newRegistered(t, hub)

	hub.Join(alice, "alice", false)
	hub.Join(bob, "bob", false)
	rooms := hub.Join(admin, "", true)
	if len(rooms) != 1 || rooms[0] != AdminRoom {
		t.Fatalf("unexpected admin rooms: %v", rooms)
	}

	hub.Emit(UserRoom("alice"), &Event{Kind: EventMessage, Payload: "for alice"})
	hub.Emit(AdminRoom, &Event{Kind: EventMessage, Payload: "for admins"})

	ev := mustEvent(t, alice.Events, EventMessage)
	if ev.Payload != "for alice" || ev.Room != UserRoom("alice") {
		t.Fatalf("unexpected event: %+v", ev)
	}
	ev = mustEvent(t, admin.Events, EventMessage)
	if ev.Payload != "for admins" || ev.Room != AdminRoom {
		t.Fatalf("unexpected admin event: %+v", ev)
	}
	mustNoEvent(t, bob.Events)
	mustNoEvent(t, alice.Events)
}

func TestHubJoinReplacesMemberships(t *testing.T) {
	hub := NewHub(nil)
	c := newRegistered(t, hub)

	hub.Join(c, "u1", true)
	if hub.RoomSize(UserRoom("u1")) != 1 || hub.RoomSize(AdminRoom) != 1 {
		t.Fatalf("expected membership in both rooms")
	}

	hub.Join(c, "u2", false)
	if hub.RoomSize(UserRoom("u1")) != 0 {
		t.Fatalf("old user room should be left")
	}
	if hub.RoomSize(AdminRoom) != 0 {
		t.Fatalf("admin room should be left")
	}
	if hub.RoomSize(UserRoom("u2")) != 1 {
		t.Fatalf("expected membership in new room")
	}

	hub.Emit(UserRoom("u1"), &Event{Kind: EventMessage})
	mustNoEvent(t, c.Events)
}

func TestHubSeveralClientsShareRoom(t *testing.T) {
	hub := NewHub(nil)
	tab1 := newRegistered(t, hub)
	tab2 := newRegistered(t, hub)

	hub.Join(tab1, "u1", false)
	hub.Join(tab2, "u1", false)

	hub.Emit(UserRoom("u1"), &Event{Kind: EventMessageDeleted})
	mustEvent(t, tab1.Events, EventMessageDeleted)
	mustEvent(t, tab2.Events, EventMessageDeleted)
}

func TestHubEmitDoesNotBlockOnSlowClient(t *testing.T) {
	hub := NewHub(nil)
	slow := newRegistered(t, hub)
	hub.Join(slow, "u1", false)

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer+10; i++ {
			hub.Emit(UserRoom("u1"), &Event{Kind: EventMessage})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("emit blocked on a full client buffer")
	}
	if hub.Dropped() != 10 {
		t.Fatalf("expected 10 dropped events, got %d", hub.Dropped())
	}
}

func TestHubUnregisterClosesEvents(t *testing.T) {
	hub := NewHub(nil)
	c := newRegistered(t, hub)
	hub.Join(c, "u1", true)

	hub.Unregister(c)
	if hub.ClientCount() != 0 || hub.RoomSize(AdminRoom) != 0 {
		t.Fatalf("client still tracked after unregister")
	}
	if _, ok := <-c.Events; ok {
		t.Fatalf("events channel should be closed")
	}

	// second unregister is a no-op
	hub.Unregister(c)
	hub.Emit(AdminRoom, &Event{Kind: EventMessage})
}

func TestHubRunClosesClientsOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(nil)
	c := newRegistered(t, hub)

	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("hub did not stop")
	}
	if _, ok := <-c.Events; ok {
		t.Fatalf("events channel should be closed")
	}
	if hub.Register(NewClient()) {
		t.Fatalf("register after shutdown should fail")
	}
}

func TestHubEmitAllAndSend(t *testing.T) {
	hub := NewHub(nil)
	a := newRegistered(t, hub)
	b := newRegistered(t, hub)

	hub.EmitAll(&Event{Kind: EventUserDeleted})
	mustEvent(t, a.Events, EventUserDeleted)
	mustEvent(t, b.Events, EventUserDeleted)

	if !hub.Send(a, &Event{Kind: EventEditMessageResult}) {
		t.Fatalf("send failed")
	}
	mustEvent(t, a.Events, EventEditMessageResult)
	mustNoEvent(t, b.Events)
}

func TestEventKindNames(t *testing.T) {
	if EventAllMessagesDeleted.String() != "allMessagesDeleted" {
		t.Fatalf("unexpected name %q", EventAllMessagesDeleted.String())
	}
	if EventKind(999).String() != "unknown" {
		t.Fatalf("unknown kinds should say so")
	}
}
