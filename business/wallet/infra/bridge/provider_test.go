package bridge

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/fd1az/dapp-bridge/business/wallet/app"
	"github.com/fd1az/dapp-bridge/internal/apperror"
	"github.com/fd1az/dapp-bridge/internal/httpclient"
	"github.com/fd1az/dapp-bridge/internal/logger"
	"github.com/fd1az/dapp-bridge/internal/wsconn"
)

var (
	alice = common.HexToAddress("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	bob   = common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	token = common.HexToAddress("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

type walletError struct {
	code int
	msg  string
	data any
}

func (e walletError) Error() string  { return e.msg }
func (e walletError) ErrorCode() int { return e.code }
func (e walletError) ErrorData() any { return e.data }

// walletService is served as the "eth" namespace by a go-ethereum rpc.Server.
type walletService struct {
	mu       sync.Mutex
	accounts []common.Address
	err      error
	sent     []txArgs
}

func (w *walletService) RequestAccounts() ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return nil, w.err
	}
	return w.accounts, nil
}

func (w *walletService) Accounts() ([]common.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.accounts, nil
}

func (w *walletService) SendTransaction(args txArgs) (common.Hash, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return common.Hash{}, w.err
	}
	w.sent = append(w.sent, args)
	return common.HexToHash("0xabc123"), nil
}

func (w *walletService) setAccounts(accounts ...common.Address) {
	w.mu.Lock()
	w.accounts = accounts
	w.mu.Unlock()
}

func testLogger() logger.LoggerInterface {
	return logger.New(io.Discard, logger.LevelDebug, "test", nil)
}

func newHTTPProvider(t *testing.T, svc *walletService) (*Provider, *httptest.Server) {
	t.Helper()

	srv := rpc.NewServer()
	if svc != nil {
		if err := srv.RegisterName("eth", svc); err != nil {
			t.Fatalf("register: %v", err)
		}
	}
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	t.Cleanup(srv.Stop)

	hc, err := httpclient.New(httpclient.WithProviderName("wallet"))
	if err != nil {
		t.Fatalf("httpclient.New() error: %v", err)
	}
	client, err := rpc.DialOptions(context.Background(), ts.URL, rpc.WithHTTPClient(hc))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(client.Close)

	p, err := NewProvider(client, nil, Config{RequestTimeout: 2 * time.Second, AccountPollInterval: 10 * time.Millisecond}, testLogger())
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}
	t.Cleanup(p.Close)
	return p, ts
}

func TestProvider_HTTPRequestAccounts(t *testing.T) {
	p, _ := newHTTPProvider(t, &walletService{accounts: []common.Address{alice}})

	accounts, err := p.RequestAccounts(context.Background())
	if err != nil {
		t.Fatalf("RequestAccounts() error: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != alice {
		t.Fatalf("accounts = %v", accounts)
	}
}

func TestProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		svc  *walletService
		want apperror.Code
	}{
		{"user rejected", &walletService{err: walletError{code: 4001, msg: "User rejected the request."}}, apperror.CodeUserRejected},
		{"unauthorized", &walletService{err: walletError{code: 4100, msg: "unauthorized"}}, apperror.CodeUserRejected},
		{"disconnected", &walletService{err: walletError{code: 4900, msg: "disconnected"}}, apperror.CodeWalletDisconnected},
		{"chain disconnected", &walletService{err: walletError{code: 4901, msg: "chain disconnected"}}, apperror.CodeWalletDisconnected},
		{"unsupported", &walletService{err: walletError{code: 4200, msg: "unsupported method"}}, apperror.CodeProviderUnavailable},
		{"no wallet namespace", nil, apperror.CodeProviderUnavailable},
		{"internal", &walletService{err: walletError{code: -32000, msg: "boom"}}, apperror.CodeWalletRPCError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newHTTPProvider(t, tt.svc)
			_, err := p.RequestAccounts(context.Background())
			if !apperror.HasCode(err, tt.want) {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
		})
	}
}

func TestProvider_UnreachableWallet(t *testing.T) {
	p, ts := newHTTPProvider(t, &walletService{accounts: []common.Address{alice}})
	ts.Close()

	_, err := p.RequestAccounts(context.Background())
	if !apperror.HasCode(err, apperror.CodeWalletUnreachable) {
		t.Fatalf("expected WalletUnreachable, got %v", err)
	}
}

func TestProvider_SendTransaction(t *testing.T) {
	svc := &walletService{accounts: []common.Address{alice}}
	p, _ := newHTTPProvider(t, svc)

	hash, err := p.SendTransaction(context.Background(), alice, app.CallRequest{To: token, Data: []byte{0xa9, 0x05, 0x9c, 0xbb}})
	if err != nil {
		t.Fatalf("SendTransaction() error: %v", err)
	}
	if hash != common.HexToHash("0xabc123") {
		t.Fatalf("hash = %s", hash)
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	if len(svc.sent) != 1 {
		t.Fatalf("wallet saw %d transactions", len(svc.sent))
	}
	got := svc.sent[0]
	if got.From != alice || got.To == nil || *got.To != token || len(got.Data) != 4 {
		t.Fatalf("unexpected args %+v", got)
	}
	if got.Value != nil {
		t.Fatalf("zero value should be omitted, got %v", got.Value)
	}
}

func TestProvider_PollsAccountChanges(t *testing.T) {
	svc := &walletService{accounts: []common.Address{alice}}
	p, _ := newHTTPProvider(t, svc)

	if _, err := p.RequestAccounts(context.Background()); err != nil {
		t.Fatal(err)
	}

	changes := make(chan []common.Address, 4)
	unsubscribe := p.OnAccountsChanged(func(accounts []common.Address) { changes <- accounts })
	defer unsubscribe()

	p.Start(context.Background())
	svc.setAccounts(bob)

	select {
	case got := <-changes:
		if len(got) != 1 || got[0] != bob {
			t.Fatalf("change = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no account change observed")
	}

	select {
	case extra := <-changes:
		t.Fatalf("unchanged accounts re-published: %v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

// wsWallet answers eth_requestAccounts and then pushes an accountsChanged
// notification for bob.
func wsWallet(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		serveWallet(r.Context(), conn)
	}))
}

func serveWallet(ctx context.Context, conn *websocket.Conn) {
	for {
		var req jsonrpcRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			return
		}

		switch req.Method {
		case methodRequestAccounts:
			_ = wsjson.Write(ctx, conn, map[string]any{
				"jsonrpc": "2.0", "id": req.ID, "result": []string{alice.Hex()},
			})
			_ = wsjson.Write(ctx, conn, map[string]any{
				"jsonrpc": "2.0", "method": notificationAccountsChanged, "params": [][]string{{bob.Hex()}},
			})
		default:
			_ = wsjson.Write(ctx, conn, map[string]any{
				"jsonrpc": "2.0", "id": req.ID,
				"error": map[string]any{"code": codeUserRejected, "message": "rejected"},
			})
		}
	}
}

// flakyWallet drops its first connection right after reading one request,
// then serves normally. requests receives every method the wallet read.
func flakyWallet(t *testing.T) (*httptest.Server, *atomic.Int32, chan string) {
	t.Helper()
	var dials atomic.Int32
	requests := make(chan string, 8)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		if dials.Add(1) == 1 {
			var req jsonrpcRequest
			if err := wsjson.Read(r.Context(), conn, &req); err == nil {
				requests <- req.Method
			}
			return
		}
		serveWallet(r.Context(), conn)
	}))
	t.Cleanup(ts.Close)
	return ts, &dials, requests
}

func newWSProvider(t *testing.T, ts *httptest.Server) *Provider {
	t.Helper()
	p, _ := dialWSProvider(t, ts, false)
	return p
}

func dialWSProvider(t *testing.T, ts *httptest.Server, reconnect bool) (*Provider, *wsconn.Client) {
	t.Helper()

	cfg := wsconn.DefaultConfig("ws"+strings.TrimPrefix(ts.URL, "http"), "wallet")
	cfg.AutoReconnect = reconnect
	cfg.InitialBackoff = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond
	cfg.PingInterval = 0
	client, err := wsconn.New(cfg)
	if err != nil {
		t.Fatalf("wsconn.New() error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	transport := NewWSTransport(client)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}

	p, err := NewProvider(transport, nil, DefaultConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewProvider() error: %v", err)
	}
	return p, client
}

func TestProvider_WebSocketNotifications(t *testing.T) {
	ts := wsWallet(t)
	defer ts.Close()
	p := newWSProvider(t, ts)

	changes := make(chan []common.Address, 1)
	p.OnAccountsChanged(func(accounts []common.Address) { changes <- accounts })

	accounts, err := p.RequestAccounts(context.Background())
	if err != nil {
		t.Fatalf("RequestAccounts() error: %v", err)
	}
	if len(accounts) != 1 || accounts[0] != alice {
		t.Fatalf("accounts = %v", accounts)
	}

	select {
	case got := <-changes:
		if len(got) != 1 || got[0] != bob {
			t.Fatalf("notification = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("accountsChanged not delivered")
	}
}

func TestProvider_WebSocketErrorCode(t *testing.T) {
	ts := wsWallet(t)
	defer ts.Close()
	p := newWSProvider(t, ts)

	_, err := p.SendTransaction(context.Background(), alice, app.CallRequest{To: token})
	if !apperror.HasCode(err, apperror.CodeUserRejected) {
		t.Fatalf("expected UserRejected, got %v", err)
	}
}

func TestWSTransport_DropFailsPendingCalls(t *testing.T) {
	accepted := make(chan *websocket.Conn, 1)
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
		// Swallow requests without answering.
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
		}
	}))
	defer ts.Close()

	cfg := wsconn.DefaultConfig("ws"+strings.TrimPrefix(ts.URL, "http"), "wallet")
	cfg.AutoReconnect = false
	cfg.PingInterval = 0
	client, err := wsconn.New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer client.Close()

	transport := NewWSTransport(client)
	if err := client.Connect(context.Background()); err != nil {
		t.Fatal(err)
	}
	server := <-accepted

	errCh := make(chan error, 1)
	go func() {
		var out json.RawMessage
		errCh <- transport.CallContext(context.Background(), &out, methodRequestAccounts)
	}()

	time.Sleep(50 * time.Millisecond)
	server.Close(websocket.StatusGoingAway, "bye")

	select {
	case err := <-errCh:
		if !apperror.HasCode(mapError(methodRequestAccounts, err), apperror.CodeWalletDisconnected) {
			t.Fatalf("expected WalletDisconnected after drop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("pending call not released after disconnect")
	}
}

func TestProvider_SendTransactionLostAnswer(t *testing.T) {
	ts, _, requests := flakyWallet(t)
	p, _ := dialWSProvider(t, ts, false)

	_, err := p.SendTransaction(context.Background(), alice, app.CallRequest{To: token, Data: []byte{0x5c, 0x36, 0xb1, 0x86}})
	if got := <-requests; got != methodSendTransaction {
		t.Fatalf("wallet read %q", got)
	}
	if !apperror.HasCode(err, apperror.CodeWalletDisconnected) {
		t.Fatalf("expected WalletDisconnected, got %v", err)
	}
}

func TestSession_ReconnectsAfterWalletDrop(t *testing.T) {
	ts, dials, requests := flakyWallet(t)
	p, client := dialWSProvider(t, ts, true)

	session, err := app.NewSession(p, app.DefaultSessionConfig(), testLogger())
	if err != nil {
		t.Fatalf("NewSession() error: %v", err)
	}
	defer session.Close()

	_, err = session.EnsureConnected(context.Background())
	if !apperror.HasCode(err, apperror.CodeWalletDisconnected) {
		t.Fatalf("first connect: expected WalletDisconnected, got %v", err)
	}
	<-requests

	deadline := time.Now().Add(3 * time.Second)
	for (dials.Load() < 2 || !client.IsConnected()) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if !client.IsConnected() {
		t.Fatal("wallet socket did not reconnect")
	}

	account, err := session.EnsureConnected(context.Background())
	if err != nil {
		t.Fatalf("second connect error: %v", err)
	}
	if account.Common() != alice {
		t.Fatalf("account = %s", account)
	}
}
