// Package ws exposes the node's client API: order entry over HTTP and
// streaming endpoints over websocket. Peers consume the same /ws/sync
// stream that local subscribers do.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"hydra/api/protocol"
	"hydra/domain/book"
	"hydra/infra/store"
	"hydra/service"
	"hydra/syncer"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
	subBuffer  = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type Server struct {
	svc   *service.OrderService
	best  *syncer.BestPriceCache
	sync  *Hub[protocol.Envelope]
	fills *Hub[protocol.Fill]
	log   *slog.Logger
}

func NewServer(svc *service.OrderService, log *slog.Logger) *Server {
	return &Server{
		svc:   svc,
		sync:  NewHub[protocol.Envelope](),
		fills: NewHub[protocol.Fill](),
		log:   log,
	}
}

// SetService breaks the construction cycle: the service needs the
// server as its fill sink, and the server dispatches requests to the
// service. Call before serving traffic.
func (s *Server) SetService(svc *service.OrderService) { s.svc = svc }

// SetBestPrices attaches the fleet-wide advisory cache served on
// /bestprices. Optional; unset returns empty results.
func (s *Server) SetBestPrices(c *syncer.BestPriceCache) { s.best = c }

// Publish pushes a synchronization frame to every /ws/sync subscriber.
// Delivery is fire and forget.
func (s *Server) Publish(_ context.Context, env protocol.Envelope) error {
	s.sync.Broadcast(env)
	return nil
}

// PublishFill pushes an executed fill to every /ws/fills subscriber.
func (s *Server) PublishFill(f protocol.Fill) {
	s.fills.Broadcast(f)
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /orders", s.handleSubmit)
	mux.HandleFunc("DELETE /orders", s.handleCancel)
	mux.HandleFunc("GET /book", s.handleBook)
	mux.HandleFunc("GET /fills", s.handleFillHistory)
	mux.HandleFunc("GET /bestprices", s.handleBestPrices)
	mux.HandleFunc("GET /ws/sync", s.handleSyncStream)
	mux.HandleFunc("GET /ws/fills", s.handleFillStream)
	return mux
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req protocol.SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "malformed request body"})
		return
	}
	resp := s.svc.Submit(req)
	code := http.StatusOK
	if resp.Status == protocol.StatusRejected {
		code = http.StatusUnprocessableEntity
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	req := protocol.CancelOrderRequest{
		OrderID: r.URL.Query().Get("order_id"),
		UserID:  r.URL.Query().Get("user_id"),
	}
	if req.OrderID == "" || req.UserID == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "order_id and user_id are required"})
		return
	}
	resp := s.svc.Cancel(req)
	code := http.StatusOK
	switch resp.Status {
	case protocol.StatusNotFound:
		code = http.StatusNotFound
	case protocol.StatusNotOwner:
		code = http.StatusForbidden
	}
	writeJSON(w, code, resp)
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "symbol is required"})
		return
	}
	resp, err := s.svc.Book(symbol)
	if err != nil {
		if errors.Is(err, book.ErrUnknownSymbol) {
			writeJSON(w, http.StatusNotFound, protocol.ErrorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFillHistory(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	user := r.URL.Query().Get("user")
	if symbol == "" && user == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "symbol or user is required"})
		return
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	var (
		rows []store.FillRow
		err  error
	)
	if user != "" {
		rows, err = s.svc.FillHistoryByUser(user, limit)
	} else {
		rows, err = s.svc.FillHistory(symbol, limit)
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, protocol.ErrorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleBestPrices(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeJSON(w, http.StatusBadRequest, protocol.ErrorResponse{Error: "symbol is required"})
		return
	}
	if s.best == nil {
		writeJSON(w, http.StatusOK, []syncer.BestPrice{})
		return
	}
	out := s.best.BySymbol(symbol)
	if out == nil {
		out = []syncer.BestPrice{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	streamHub(s, w, r, s.sync, "sync")
}

func (s *Server) handleFillStream(w http.ResponseWriter, r *http.Request) {
	streamHub(s, w, r, s.fills, "fills")
}

// streamHub upgrades the connection and copies hub messages to it until
// the client goes away.
func streamHub[T any](s *Server, w http.ResponseWriter, r *http.Request, hub *Hub[T], name string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "stream", name, "err", err)
		return
	}
	defer conn.Close()

	sub := hub.Subscribe(subBuffer)
	defer hub.Unsubscribe(sub)

	// Drain incoming frames so control messages are processed; the
	// stream is write-only at the application level.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
