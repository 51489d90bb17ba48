package broker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
)

func TestInitializeRejectsTakenIdentity(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	a := hub.NewClient()
	if _, err := a.Initialize(ctx, "EQ-123456"); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}
	defer a.Shutdown()

	b := hub.NewClient()
	if _, err := b.Initialize(ctx, "EQ-123456"); !errors.Is(err, domain.ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
}

func TestInitializeAssignsRandomIdentity(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	a := hub.NewClient()
	idA, err := a.Initialize(ctx, "")
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer a.Shutdown()

	b := hub.NewClient()
	idB, err := b.Initialize(ctx, "")
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer b.Shutdown()

	if idA == "" || idA == idB {
		t.Fatalf("expected distinct identities, got %q and %q", idA, idB)
	}
}

func TestConnectUnknownIdentityRefused(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	a := hub.NewClient()
	if _, err := a.Initialize(ctx, ""); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer a.Shutdown()

	if _, err := a.Connect(ctx, "EQ-NOBODY"); !errors.Is(err, domain.ErrConnectionRefused) {
		t.Fatalf("expected ErrConnectionRefused, got %v", err)
	}
}

func TestMessageDeliveryAndReplyPath(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	host := hub.NewClient()
	if _, err := host.Initialize(ctx, "EQ-111111"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer host.Shutdown()

	received := make(chan protocol.Envelope, 1)
	replies := make(chan protocol.Envelope, 1)
	host.SubscribeMessages(func(env protocol.Envelope, ch broker.Channel) {
		received <- env
		host.Send(protocol.MustEnvelope(protocol.StartExam{}), ch)
	})

	student := hub.NewClient()
	if _, err := student.Initialize(ctx, ""); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer student.Shutdown()
	student.SubscribeMessages(func(env protocol.Envelope, ch broker.Channel) {
		replies <- env
	})

	ch, err := student.Connect(ctx, "EQ-111111")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	student.Send(protocol.MustEnvelope(protocol.StudentJoin{Name: "Alice"}), ch)

	select {
	case env := <-received:
		if env.Type != protocol.KindStudentJoin {
			t.Fatalf("expected %s, got %s", protocol.KindStudentJoin, env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("host never received the join")
	}

	select {
	case env := <-replies:
		if env.Type != protocol.KindStartExam {
			t.Fatalf("expected unicast reply, got %s", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("student never received the reply")
	}
}

func TestBroadcastSkipsClosedChannels(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	host := hub.NewClient()
	if _, err := host.Initialize(ctx, "EQ-222222"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer host.Shutdown()

	newStudent := func() (*broker.MemoryClient, <-chan protocol.Envelope) {
		c := hub.NewClient()
		if _, err := c.Initialize(ctx, ""); err != nil {
			t.Fatalf("initialize failed: %v", err)
		}
		got := make(chan protocol.Envelope, 4)
		c.SubscribeMessages(func(env protocol.Envelope, _ broker.Channel) {
			got <- env
		})
		if _, err := c.Connect(ctx, "EQ-222222"); err != nil {
			t.Fatalf("connect failed: %v", err)
		}
		return c, got
	}

	alive, aliveGot := newStudent()
	defer alive.Shutdown()
	gone, goneGot := newStudent()
	gone.Shutdown()

	host.Send(protocol.MustEnvelope(protocol.HostEnded{}), nil)

	select {
	case env := <-aliveGot:
		if env.Type != protocol.KindHostEnded {
			t.Fatalf("expected HOST_ENDED, got %s", env.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("open channel missed the broadcast")
	}

	select {
	case env := <-goneGot:
		t.Fatalf("closed channel received %s", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestCloseNotifiesBothEnds(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	host := hub.NewClient()
	if _, err := host.Initialize(ctx, "EQ-333333"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer host.Shutdown()

	hostClosed := make(chan broker.Channel, 1)
	host.SubscribeClosed(func(ch broker.Channel) { hostClosed <- ch })

	student := hub.NewClient()
	if _, err := student.Initialize(ctx, ""); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	ch, err := student.Connect(ctx, "EQ-333333")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	if err := ch.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if ch.IsOpen() {
		t.Fatal("channel still open after close")
	}

	select {
	case <-hostClosed:
	case <-time.After(time.Second):
		t.Fatal("peer end never saw the close")
	}
}

func TestSubscribeCancelStopsDelivery(t *testing.T) {
	ctx := context.Background()
	hub := broker.NewHub()

	host := hub.NewClient()
	if _, err := host.Initialize(ctx, "EQ-444444"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer host.Shutdown()

	got := make(chan protocol.Envelope, 4)
	cancel := host.SubscribeMessages(func(env protocol.Envelope, _ broker.Channel) {
		got <- env
	})

	student := hub.NewClient()
	if _, err := student.Initialize(ctx, ""); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	defer student.Shutdown()
	ch, err := student.Connect(ctx, "EQ-444444")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	student.Send(protocol.MustEnvelope(protocol.StudentJoin{Name: "Alice"}), ch)
	select {
	case <-got:
	case <-time.After(time.Second):
		t.Fatal("subscriber never fired")
	}

	cancel()
	student.Send(protocol.MustEnvelope(protocol.StudentJoin{Name: "Alice"}), ch)
	select {
	case env := <-got:
		t.Fatalf("canceled subscriber received %s", env.Type)
	case <-time.After(50 * time.Millisecond):
	}
}
