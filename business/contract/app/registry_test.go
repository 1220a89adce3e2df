package app

import (
	"context"
	"math/big"
	"strings"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"

	"github.com/fd1az/dapp-bridge/business/contract/domain"
	"github.com/fd1az/dapp-bridge/internal/apperror"
)

func newTestRegistry(t *testing.T, conns *fakeConns) *Registry {
	t.Helper()
	r, err := NewRegistry(conns, testLogger())
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}
	return r
}

func TestGetProxy_ReturnsCachedInstance(t *testing.T) {
	r := newTestRegistry(t, &fakeConns{node: &fakeNode{}})
	ctx := context.Background()

	first, err := r.GetProxy(ctx, demoAddress, demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatalf("GetProxy() error: %v", err)
	}
	second, err := r.GetProxy(ctx, "  "+strings.ToLower(demoAddress)+" ", demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatalf("GetProxy() error: %v", err)
	}

	if first != second {
		t.Fatal("same (address, mode) returned different proxies")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d", r.Len())
	}
	if first.Address().String() != demoAddress {
		t.Fatalf("proxy address = %s", first.Address())
	}
}

func TestGetProxy_ModesAreSeparate(t *testing.T) {
	conns := &fakeConns{node: &fakeNode{}}
	conns.connect()
	r := newTestRegistry(t, conns)
	ctx := context.Background()

	ro, err := r.GetProxy(ctx, demoAddress, demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	rw, err := r.GetProxy(ctx, demoAddress, demoIface, domain.Writable)
	if err != nil {
		t.Fatal(err)
	}
	if ro == rw {
		t.Fatal("read-only and writable proxies must differ")
	}
	if rw.Mode() != domain.Writable || ro.Mode() != domain.ReadOnly {
		t.Fatalf("modes = %s, %s", ro.Mode(), rw.Mode())
	}
}

func TestGetProxy_WritableRequiresConnection(t *testing.T) {
	conns := &fakeConns{node: &fakeNode{}}
	r := newTestRegistry(t, conns)
	ctx := context.Background()

	_, err := r.GetProxy(ctx, demoAddress, demoIface, domain.Writable)
	if !apperror.HasCode(err, apperror.CodeNotConnected) {
		t.Fatalf("expected NotConnected, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatal("a failed writable lookup must not be cached")
	}

	conns.connect()
	p, err := r.GetProxy(ctx, demoAddress, demoIface, domain.Writable)
	if err != nil || p == nil {
		t.Fatalf("GetProxy() after connect = %v, %v", p, err)
	}
}

func TestGetProxy_Rejects(t *testing.T) {
	r := newTestRegistry(t, &fakeConns{node: &fakeNode{}})
	ctx := context.Background()

	tests := []struct {
		name  string
		addr  string
		iface *domain.Interface
		mode  domain.BindingMode
		want  apperror.Code
	}{
		{"invalid address", "0xnot-an-address", demoIface, domain.ReadOnly, apperror.CodeInvalidAddress},
		{"missing interface", demoAddress, nil, domain.ReadOnly, apperror.CodeInvalidInput},
		{"unknown mode", demoAddress, demoIface, domain.BindingMode(9), apperror.CodeInvalidBindingMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.GetProxy(ctx, tt.addr, tt.iface, tt.mode)
			if !apperror.HasCode(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestGetProxy_ConcurrentCallersShareOneProxy(t *testing.T) {
	r := newTestRegistry(t, &fakeConns{node: &fakeNode{}})

	const callers = 20
	got := make([]*Proxy, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.GetProxy(context.Background(), demoAddress, demoIface, domain.ReadOnly)
			if err != nil {
				t.Errorf("GetProxy() error: %v", err)
				return
			}
			got[i] = p
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if got[i] != got[0] {
			t.Fatalf("caller %d received a different proxy", i)
		}
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d", r.Len())
	}
}

func TestGetProxy_DifferentInterfaceKeepsCachedBinding(t *testing.T) {
	r := newTestRegistry(t, &fakeConns{node: &fakeNode{}})
	ctx := context.Background()

	other := domain.MustParseInterface("Other", `[{"type":"function","name":"x","inputs":[],"outputs":[]}]`)

	first, err := r.GetProxy(ctx, demoAddress, demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.GetProxy(ctx, demoAddress, other, domain.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || second.Interface() != demoIface {
		t.Fatal("cached proxy should be returned unchanged")
	}
}

func TestProxy_Call(t *testing.T) {
	node := &fakeNode{call: func(msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
		return packOutput("message", "hello"), nil
	}}
	r := newTestRegistry(t, &fakeConns{node: node})

	p, err := r.GetProxy(context.Background(), demoAddress, demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}

	out, err := p.Call(context.Background(), "message")
	if err != nil {
		t.Fatalf("Call() error: %v", err)
	}
	if len(out) != 1 || out[0].(string) != "hello" {
		t.Fatalf("Call() = %v", out)
	}

	if _, err := p.Call(context.Background(), "nope"); !apperror.HasCode(err, apperror.CodeUnknownMethod) {
		t.Fatalf("expected UnknownMethod, got %v", err)
	}
	if _, err := p.Call(context.Background(), "setMessage", 42); !apperror.HasCode(err, apperror.CodeInvalidInput) {
		t.Fatalf("expected InvalidInput, got %v", err)
	}
}

func TestProxy_CallRevertCarriesReason(t *testing.T) {
	node := &fakeNode{call: func(ethereum.CallMsg, *big.Int) ([]byte, error) {
		return nil, revertWith("not owner")
	}}
	r := newTestRegistry(t, &fakeConns{node: node})

	p, err := r.GetProxy(context.Background(), demoAddress, demoIface, domain.ReadOnly)
	if err != nil {
		t.Fatal(err)
	}

	_, err = p.Call(context.Background(), "message")
	if !apperror.HasCode(err, apperror.CodeRemoteFailed) {
		t.Fatalf("expected RemoteFailed, got %v", err)
	}
	rev, ok := apperror.PayloadOf(err).(*Revert)
	if !ok || rev.Reason != "not owner" {
		t.Fatalf("payload = %#v", apperror.PayloadOf(err))
	}
}
