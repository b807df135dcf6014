package grpc

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

func TestPoolReusesConnection(t *testing.T) {
	passthrough := func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(ctx, method, req, reply, cc, opts...)
	}
	p := NewPool(
		WithInterceptor(passthrough),
		WithCallOptions(grpc.CallContentSubtype("json")),
		WithKeepalive(keepalive.ClientParameters{Time: 30 * time.Second, Timeout: 2 * time.Second}),
	)
	defer p.Close()

	a, err := p.GetConnection("passthrough:///ledger-a")
	if err != nil {
		t.Fatal(err)
	}
	again, err := p.GetConnection("passthrough:///ledger-a")
	if err != nil {
		t.Fatal(err)
	}
	if a != again {
		t.Fatal("same target should reuse the connection")
	}
	b, err := p.GetConnection("passthrough:///ledger-b")
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Fatal("different targets should not share a connection")
	}
}

func TestPoolReplacesClosedConnection(t *testing.T) {
	p := NewPool()
	defer p.Close()

	first, err := p.GetConnection("passthrough:///ledger")
	if err != nil {
		t.Fatal(err)
	}
	if err := first.Close(); err != nil {
		t.Fatal(err)
	}
	second, err := p.GetConnection("passthrough:///ledger")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("closed connection should be replaced")
	}
}

func TestPoolClose(t *testing.T) {
	p := NewPool()
	if _, err := p.GetConnection("passthrough:///ledger"); err != nil {
		t.Fatal(err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	n := 0
	p.conns.Range(func(any, any) bool { n++; return true })
	if n != 0 {
		t.Fatalf("conns=%d after close", n)
	}
}
