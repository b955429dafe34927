package pricefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"portfolio-engine/internal/domain"
	"portfolio-engine/internal/storage/memory"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func seedDefinition(t *testing.T, store *memory.AssetDefinitionStore) {
	t.Helper()
	err := store.Insert(context.Background(), &domain.AssetDefinition{
		ID:           "def-1",
		Name:         "Acme Corp",
		Ticker:       "ACME",
		Type:         domain.AssetTypeStock,
		CurrentPrice: 100,
		UpdatedAt:    time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("seed definition: %v", err)
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestClient_SubscribeAndApplyQuote(t *testing.T) {
	defs := memory.NewAssetDefinitionStore()
	seedDefinition(t, defs)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		// Read the subscribe request.
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			t.Errorf("unmarshal subscribe: %v", err)
			return
		}
		if req.Type != msgTypeSubscribe || len(req.Tickers) != 1 || req.Tickers[0] != "ACME" {
			t.Errorf("unexpected subscribe request: %+v", req)
		}

		// Stream one quote, then hold the connection open.
		quote := feedMessage{Type: msgTypeQuote, Ticker: "ACME", Price: 117.5, TimestampMs: 1717500000000}
		if err := conn.WriteJSON(quote); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	updates := make(chan string, 1)
	client, err := New(context.Background(), wsURL(server), defs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.WithOnUpdate(func(ticker string, price float64) {
		updates <- ticker
	})
	defer client.Close()

	if err := client.Subscribe([]string{"ACME"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case ticker := <-updates:
		if ticker != "ACME" {
			t.Errorf("expected update for ACME, got %s", ticker)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("quote was never applied")
	}

	def, err := defs.GetByID(context.Background(), "def-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if def.CurrentPrice != 117.5 {
		t.Errorf("expected price 117.5, got %v", def.CurrentPrice)
	}
}

func TestClient_DropsUnknownTicker(t *testing.T) {
	defs := memory.NewAssetDefinitionStore()
	seedDefinition(t, defs)

	quoteSent := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		quotes := []feedMessage{
			{Type: msgTypeQuote, Ticker: "NOPE", Price: 1},
			{Type: msgTypeQuote, Ticker: "ACME", Price: 120},
		}
		for _, q := range quotes {
			if err := conn.WriteJSON(q); err != nil {
				return
			}
		}
		close(quoteSent)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	applied := make(chan string, 2)
	client, err := New(context.Background(), wsURL(server), defs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.WithOnUpdate(func(ticker string, price float64) {
		applied <- ticker
	})
	defer client.Close()

	<-quoteSent

	// Only the known ticker must come through.
	select {
	case ticker := <-applied:
		if ticker != "ACME" {
			t.Errorf("expected ACME, got %s", ticker)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("known-ticker quote was never applied")
	}
	select {
	case ticker := <-applied:
		t.Errorf("unexpected second update for %s", ticker)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestClient_IgnoresMalformedAndErrorMessages(t *testing.T) {
	defs := memory.NewAssetDefinitionStore()
	seedDefinition(t, defs)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteJSON(feedMessage{Type: msgTypeError, Error: "throttled"})
		conn.WriteJSON(feedMessage{Type: msgTypeQuote, Ticker: "ACME", Price: 130})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	applied := make(chan float64, 1)
	client, err := New(context.Background(), wsURL(server), defs, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	client.WithOnUpdate(func(ticker string, price float64) {
		applied <- price
	})
	defer client.Close()

	select {
	case price := <-applied:
		if price != 130 {
			t.Errorf("expected price 130, got %v", price)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("quote after bad messages was never applied")
	}
}

func TestClient_ReconnectResubscribes(t *testing.T) {
	defs := memory.NewAssetDefinitionStore()
	seedDefinition(t, defs)

	var mu sync.Mutex
	connCount := 0
	resubscribed := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		mu.Lock()
		connCount++
		n := connCount
		mu.Unlock()

		if n == 1 {
			// Accept the subscribe, then drop the connection.
			conn.ReadMessage()
			conn.Close()
			return
		}

		// Second connection: expect the automatic resubscribe.
		defer conn.Close()
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err == nil &&
			req.Type == msgTypeSubscribe && len(req.Tickers) == 1 && req.Tickers[0] == "ACME" {
			close(resubscribed)
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	cfg := DefaultConfig()
	cfg.ReconnectDelay = 50 * time.Millisecond

	client, err := New(context.Background(), wsURL(server), defs, &cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer client.Close()

	if err := client.Subscribe([]string{"ACME"}); err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	select {
	case <-resubscribed:
	case <-time.After(5 * time.Second):
		t.Fatal("client never resubscribed after reconnect")
	}
}
