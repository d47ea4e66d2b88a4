package syncer

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"hydra/api/protocol"
)

const (
	dialTimeout  = 10 * time.Second
	readTimeout  = 90 * time.Second
	pingInterval = 30 * time.Second
	baseDelay    = 1 * time.Second
	maxDelay     = 30 * time.Second
)

// Peer maintains a subscription to one remote node's sync stream and
// feeds received frames into the synchronizer. Connection loss is
// normal operation: the peer reconnects with backoff and the mesh
// re-converges from whatever snapshots arrive next.
type Peer struct {
	addr string
	sync *Synchronizer
	log  *slog.Logger
}

func newPeer(addr string, s *Synchronizer, log *slog.Logger) *Peer {
	return &Peer{addr: addr, sync: s, log: log.With("peer", addr)}
}

// ConnectPeers launches one subscription loop per configured peer
// address and returns immediately.
func (s *Synchronizer) ConnectPeers(ctx context.Context, addrs []string) {
	for _, addr := range addrs {
		p := newPeer(addr, s, s.log)
		go p.run(ctx)
	}
}

func (p *Peer) run(ctx context.Context) {
	retries := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		conn, err := p.dial(ctx)
		if err != nil {
			delay := backoff(retries)
			retries++
			p.log.Warn("peer unreachable", "error", err, "retry_in", delay)
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}

		retries = 0
		p.log.Info("peer sync stream connected")
		p.readLoop(ctx, conn)
	}
}

func (p *Peer) dial(ctx context.Context) (*websocket.Conn, error) {
	u := url.URL{Scheme: "ws", Host: p.addr, Path: "/ws/sync"}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	return conn, err
}

func (p *Peer) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	var writeMu sync.Mutex
	done := make(chan struct{})
	defer close(done)

	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				conn.Close()
				return
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(dialTimeout))
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			p.log.Warn("peer stream closed", "error", err)
			return
		}
		p.sync.HandleEnvelope(env)
	}
}

func backoff(retries int) time.Duration {
	d := baseDelay << uint(retries)
	if d <= 0 || d > maxDelay {
		return maxDelay
	}
	return d
}
