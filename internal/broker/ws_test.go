package broker_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/nguyenthileBLB/tructuyen10A4/internal/broker"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/domain"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/protocol"
	"github.com/nguyenthileBLB/tructuyen10A4/internal/relay"
)

func startRelay(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(relay.NewServer(zerolog.Nop()).Handler())
	t.Cleanup(server.Close)
	return "ws" + server.URL[len("http"):] + "/ws"
}

func newWSClient(t *testing.T, url string) *broker.WSClient {
	t.Helper()
	c := broker.NewWSClient(url, 2*time.Second, zerolog.Nop())
	t.Cleanup(c.Shutdown)
	return c
}

func TestWSRegisterAndDuplicateIdentity(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	a := newWSClient(t, url)
	id, err := a.Initialize(ctx, "EQ-555555")
	if err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if id != "EQ-555555" {
		t.Fatalf("expected requested identity back, got %q", id)
	}

	b := newWSClient(t, url)
	if _, err := b.Initialize(ctx, "EQ-555555"); !errors.Is(err, domain.ErrIdentityUnavailable) {
		t.Fatalf("expected ErrIdentityUnavailable, got %v", err)
	}
}

func TestWSUnreachableRelay(t *testing.T) {
	c := newWSClient(t, "ws://127.0.0.1:1/ws")
	if _, err := c.Initialize(context.Background(), ""); !errors.Is(err, domain.ErrBrokerUnreachable) {
		t.Fatalf("expected ErrBrokerUnreachable, got %v", err)
	}
}

func TestWSConnectRefusedForUnknownIdentity(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	c := newWSClient(t, url)
	if _, err := c.Initialize(ctx, ""); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := c.Connect(ctx, "EQ-NOBODY"); !errors.Is(err, domain.ErrConnectionRefused) {
		t.Fatalf("expected ErrConnectionRefused, got %v", err)
	}
}

func TestWSEndToEndMessageFlow(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	host := newWSClient(t, url)
	if _, err := host.Initialize(ctx, "EQ-666666"); err != nil {
		t.Fatalf("host initialize failed: %v", err)
	}
	hostGot := make(chan protocol.Envelope, 4)
	host.SubscribeMessages(func(env protocol.Envelope, ch broker.Channel) {
		hostGot <- env
		host.Send(protocol.MustEnvelope(protocol.StartExam{}), ch)
	})
	opened := make(chan broker.Channel, 1)
	host.SubscribeOpened(func(ch broker.Channel) { opened <- ch })

	student := newWSClient(t, url)
	if _, err := student.Initialize(ctx, ""); err != nil {
		t.Fatalf("student initialize failed: %v", err)
	}
	studentGot := make(chan protocol.Envelope, 4)
	student.SubscribeMessages(func(env protocol.Envelope, _ broker.Channel) {
		studentGot <- env
	})

	ch, err := student.Connect(ctx, "EQ-666666")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	if ch.Remote() != "EQ-666666" {
		t.Fatalf("expected remote EQ-666666, got %q", ch.Remote())
	}

	select {
	case <-opened:
	case <-time.After(2 * time.Second):
		t.Fatal("host never observed the open")
	}

	student.Send(protocol.MustEnvelope(protocol.StudentJoin{Name: "Alice"}), ch)
	select {
	case env := <-hostGot:
		if env.Type != protocol.KindStudentJoin {
			t.Fatalf("expected STUDENT_JOIN, got %s", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("join never reached the host")
	}

	select {
	case env := <-studentGot:
		if env.Type != protocol.KindStartExam {
			t.Fatalf("expected unicast reply, got %s", env.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("reply never reached the student")
	}
}

func TestWSPeerShutdownClosesChannel(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	host := newWSClient(t, url)
	if _, err := host.Initialize(ctx, "EQ-777777"); err != nil {
		t.Fatalf("host initialize failed: %v", err)
	}
	closed := make(chan broker.Channel, 1)
	host.SubscribeClosed(func(ch broker.Channel) { closed <- ch })

	student := newWSClient(t, url)
	if _, err := student.Initialize(ctx, ""); err != nil {
		t.Fatalf("student initialize failed: %v", err)
	}
	ch, err := student.Connect(ctx, "EQ-777777")
	if err != nil {
		t.Fatalf("connect failed: %v", err)
	}

	student.Shutdown()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("host never observed the teardown")
	}
	_ = ch
}

func TestWSReinitializeReplacesIdentity(t *testing.T) {
	ctx := context.Background()
	url := startRelay(t)

	c := newWSClient(t, url)
	if _, err := c.Initialize(ctx, "EQ-888888"); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	if _, err := c.Initialize(ctx, "EQ-999999"); err != nil {
		t.Fatalf("reinitialize failed: %v", err)
	}

	// The first identity must come free again after the implicit
	// teardown; the relay processes the disconnect asynchronously.
	other := newWSClient(t, url)
	deadline := time.Now().Add(2 * time.Second)
	for {
		_, err := other.Initialize(ctx, "EQ-888888")
		if err == nil {
			return
		}
		if !errors.Is(err, domain.ErrIdentityUnavailable) || time.Now().After(deadline) {
			t.Fatalf("expected released identity to be claimable, got %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
