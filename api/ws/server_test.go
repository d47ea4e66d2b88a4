package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"hydra/api/protocol"
	"hydra/engine"
	"hydra/infra/sequence"
	"hydra/infra/store"
	"hydra/service"
	"hydra/syncer"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	eng := engine.New("node-a", sequence.New(0), slog.Default())
	srv := NewServer(nil, slog.Default())
	svc := service.NewOrderService(eng, protocol.NewCodec(2, 0), nil, nil, srv, slog.Default())
	srv.SetService(svc)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, ts
}

func postOrder(t *testing.T, url string, req protocol.SubmitOrderRequest) protocol.SubmitOrderResponse {
	t.Helper()
	body, _ := json.Marshal(req)
	resp, err := http.Post(url+"/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out protocol.SubmitOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestSubmitAndBookOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp := postOrder(t, ts.URL, protocol.SubmitOrderRequest{
		OrderID: "o1", Symbol: "BTC-USD", Side: "BUY",
		Price: "100", Quantity: "2", UserID: "alice",
	})
	if resp.Status != protocol.StatusAccepted {
		t.Fatalf("status = %s (%s)", resp.Status, resp.Error)
	}

	httpResp, err := http.Get(ts.URL + "/book?symbol=BTC-USD")
	if err != nil {
		t.Fatal(err)
	}
	defer httpResp.Body.Close()
	var bookResp protocol.BookResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&bookResp); err != nil {
		t.Fatal(err)
	}
	if len(bookResp.Bids) != 1 || bookResp.Bids[0].Price != "100" {
		t.Fatalf("bids = %+v", bookResp.Bids)
	}
}

func TestSubmitRejectionIs422(t *testing.T) {
	_, ts := newTestServer(t)

	body, _ := json.Marshal(protocol.SubmitOrderRequest{
		Symbol: "BTC-USD", Side: "BUY", Price: "not-a-price",
		Quantity: "1", UserID: "alice",
	})
	resp, err := http.Post(ts.URL+"/orders", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
}

func TestCancelOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	postOrder(t, ts.URL, protocol.SubmitOrderRequest{
		OrderID: "o1", Symbol: "BTC-USD", Side: "BUY",
		Price: "100", Quantity: "2", UserID: "alice",
	})

	req, _ := http.NewRequest(http.MethodDelete, ts.URL+"/orders?order_id=o1&user_id=bob", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("wrong-owner status code = %d", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/orders?order_id=o1&user_id=alice", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out protocol.CancelOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Status != protocol.StatusCancelled {
		t.Fatalf("status = %s", out.Status)
	}
}

func TestBookUnknownSymbolIs404(t *testing.T) {
	_, ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/book?symbol=NOPE")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
}

func TestFillHistoryByUserOverHTTP(t *testing.T) {
	fills, err := store.Open(filepath.Join(t.TempDir(), "fills.db"))
	if err != nil {
		t.Fatal(err)
	}
	eng := engine.New("node-a", sequence.New(0), slog.Default())
	srv := NewServer(nil, slog.Default())
	svc := service.NewOrderService(eng, protocol.NewCodec(2, 0), fills, nil, srv, slog.Default())
	srv.SetService(svc)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	postOrder(t, ts.URL, protocol.SubmitOrderRequest{
		OrderID: "s1", Symbol: "BTC-USD", Side: "SELL",
		Price: "100", Quantity: "5", UserID: "bob",
	})
	postOrder(t, ts.URL, protocol.SubmitOrderRequest{
		OrderID: "b1", Symbol: "BTC-USD", Side: "BUY",
		Price: "100", Quantity: "5", UserID: "alice",
	})

	for _, user := range []string{"alice", "bob"} {
		resp, err := http.Get(ts.URL + "/fills?user=" + user)
		if err != nil {
			t.Fatal(err)
		}
		var rows []store.FillRow
		if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if len(rows) != 1 || rows[0].Symbol != "BTC-USD" {
			t.Fatalf("%s rows = %+v", user, rows)
		}
	}

	resp, err := http.Get(ts.URL + "/fills")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing filter status = %d", resp.StatusCode)
	}
}

func TestBestPricesEndpoint(t *testing.T) {
	srv, ts := newTestServer(t)

	cache := syncer.NewBestPriceCache()
	bid := "99.50"
	cache.Put(syncer.BestPrice{Symbol: "BTC-USD", Origin: "node-b", BestBid: &bid})
	srv.SetBestPrices(cache)

	resp, err := http.Get(ts.URL + "/bestprices?symbol=BTC-USD")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out []syncer.BestPrice
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Origin != "node-b" || out[0].BestBid == nil || *out[0].BestBid != "99.50" {
		t.Fatalf("out = %+v", out)
	}
}

func wsURL(httpURL, path string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http") + path
}

func TestSyncStreamDeliversEnvelopes(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws/sync"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	// Subscription registration races the first broadcast; poll briefly.
	env := protocol.Envelope{
		Type: protocol.MsgBookUpdate,
		Book: &protocol.OrderBookUpdate{Symbol: "BTC-USD", Origin: "node-a", Seq: 1},
	}
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			_ = srv.Publish(context.Background(), env)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var got protocol.Envelope
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Type != protocol.MsgBookUpdate || got.Book == nil || got.Book.Symbol != "BTC-USD" {
		t.Fatalf("got %+v", got)
	}
}

func TestFillStreamDeliversFills(t *testing.T) {
	srv, ts := newTestServer(t)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts.URL, "/ws/fills"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	fill := protocol.Fill{FillID: 1, Symbol: "BTC-USD", Price: "100", Quantity: "2"}
	deadline := time.Now().Add(2 * time.Second)
	conn.SetReadDeadline(deadline)
	go func() {
		for time.Now().Before(deadline) {
			srv.PublishFill(fill)
			time.Sleep(20 * time.Millisecond)
		}
	}()

	var got protocol.Fill
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "BTC-USD" || got.Quantity != "2" {
		t.Fatalf("got %+v", got)
	}
}
