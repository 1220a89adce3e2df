package wsconn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
)

// walletServer accepts websocket connections and hands each to handler.
func walletServer(t *testing.T, handler func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Logf("websocket accept error: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		if handler != nil {
			handler(conn)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// drain reads until the peer goes away, counting frames.
func drain(count *atomic.Int32) func(conn *websocket.Conn) {
	return func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.Read(context.Background()); err != nil {
				return
			}
			if count != nil {
				count.Add(1)
			}
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// dial builds a client for server without pings, lets tweak adjust the
// config, and connects it.
func dial(t *testing.T, server *httptest.Server, tweak func(*Config), setup func(*Client)) (*Client, context.Context) {
	t.Helper()
	cfg := DefaultConfig(wsURL(server), "wallet")
	cfg.PingInterval = 0
	if tweak != nil {
		tweak(&cfg)
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	if setup != nil {
		setup(client)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	if err := client.Connect(ctx); err != nil {
		t.Fatalf("Connect() error: %v", err)
	}
	return client, ctx
}

func TestConnect_ReportsTransitions(t *testing.T) {
	server := walletServer(t, drain(nil))

	var mu sync.Mutex
	var states []State
	client, _ := dial(t, server, nil, func(c *Client) {
		c.OnStateChange(func(state State, _ error) {
			mu.Lock()
			states = append(states, state)
			mu.Unlock()
		})
	})

	if !client.IsConnected() {
		t.Fatalf("state = %v, want connected", client.State())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(states) < 2 || states[0] != StateConnecting || states[1] != StateConnected {
		t.Fatalf("transitions = %v, want [connecting connected ...]", states)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := DefaultConfig("ws://127.0.0.1:1", "wallet")
	cfg.PingInterval = 0
	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Connect(ctx); err == nil {
		t.Fatal("expected Connect to fail")
	}
	if client.State() != StateDisconnected {
		t.Fatalf("state = %v, want disconnected", client.State())
	}
}

func TestSendJSON_WritesRequestFrame(t *testing.T) {
	got := make(chan []byte, 1)
	server := walletServer(t, func(conn *websocket.Conn) {
		if _, data, err := conn.Read(context.Background()); err == nil {
			got <- data
		}
	})
	client, ctx := dial(t, server, nil, nil)

	req := map[string]any{"jsonrpc": "2.0", "id": 7, "method": "eth_requestAccounts", "params": []any{}}
	if err := client.SendJSON(ctx, req); err != nil {
		t.Fatalf("SendJSON() error: %v", err)
	}

	var frame struct {
		ID     int    `json:"id"`
		Method string `json:"method"`
	}
	select {
	case data := <-got:
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("frame is not JSON: %v (%s)", err, data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server received nothing")
	}
	if frame.ID != 7 || frame.Method != "eth_requestAccounts" {
		t.Fatalf("frame = %+v", frame)
	}
}

func TestOnMessage_ReceivesPushedNotification(t *testing.T) {
	const note = `{"jsonrpc":"2.0","method":"accountsChanged","params":[["0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"]]}`
	server := walletServer(t, func(conn *websocket.Conn) {
		ctx := context.Background()
		if err := conn.Write(ctx, websocket.MessageText, []byte(note)); err != nil {
			return
		}
		drain(nil)(conn)
	})

	got := make(chan string, 1)
	dial(t, server, nil, func(c *Client) {
		c.OnMessage(func(_ context.Context, msg []byte) {
			select {
			case got <- string(msg):
			default:
			}
		})
	})

	select {
	case msg := <-got:
		if msg != note {
			t.Fatalf("message = %s", msg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestClose_Idempotent(t *testing.T) {
	server := walletServer(t, drain(nil))
	client, _ := dial(t, server, nil, nil)

	if err := client.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if client.State() != StateClosed {
		t.Fatalf("state = %v, want closed", client.State())
	}
	if err := client.Close(); err != nil {
		t.Fatalf("second Close() error: %v", err)
	}
	if err := client.Connect(context.Background()); err == nil {
		t.Fatal("expected Connect on a closed client to fail")
	}
}

func TestSendJSON_ConcurrentWriters(t *testing.T) {
	var frames atomic.Int32
	server := walletServer(t, drain(&frames))
	client, ctx := dial(t, server, nil, nil)

	const writers, perWriter = 8, 6
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				req := map[string]any{"jsonrpc": "2.0", "id": w*perWriter + i, "method": "eth_chainId"}
				if err := client.SendJSON(ctx, req); err != nil {
					t.Errorf("SendJSON() error: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for frames.Load() < writers*perWriter && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := frames.Load(); got != writers*perWriter {
		t.Fatalf("server received %d frames, want %d", got, writers*perWriter)
	}
}

func TestReadLimit_DropsOversizedFrame(t *testing.T) {
	server := walletServer(t, func(conn *websocket.Conn) {
		_ = conn.Write(context.Background(), websocket.MessageText, []byte(strings.Repeat("x", 4096)))
		time.Sleep(200 * time.Millisecond)
	})
	client, _ := dial(t, server, func(c *Config) {
		c.MaxMessageSize = 128
		c.AutoReconnect = false
	}, nil)

	deadline := time.Now().Add(2 * time.Second)
	for client.IsConnected() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if client.IsConnected() {
		t.Fatal("expected the oversized frame to drop the connection")
	}
}

func TestReconnect_AfterServerDrop(t *testing.T) {
	var accepts atomic.Int32
	server := walletServer(t, func(conn *websocket.Conn) {
		if accepts.Add(1) == 1 {
			return
		}
		drain(nil)(conn)
	})

	reconnected := make(chan struct{}, 1)
	client, _ := dial(t, server, func(c *Config) {
		c.InitialBackoff = 10 * time.Millisecond
		c.MaxBackoff = 50 * time.Millisecond
	}, func(c *Client) {
		c.OnReconnect(func(context.Context) {
			select {
			case reconnected <- struct{}{}:
			default:
			}
		})
	})

	select {
	case <-reconnected:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for reconnect")
	}
	if !client.IsConnected() || client.Reconnects() < 1 {
		t.Fatalf("state = %v, reconnects = %d", client.State(), client.Reconnects())
	}
}

func TestNew_RejectsNonWebSocketURL(t *testing.T) {
	if _, err := New(DefaultConfig("http://localhost:8545", "wallet")); err == nil {
		t.Fatal("expected error for http url")
	}
}
