// Command loadgen drives a running node with random limit orders over
// HTTP and reports throughput. With -watch-fills it also subscribes to
// the node's fill stream and counts executions.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"hydra/api/protocol"
)

func main() {
	addr := flag.String("addr", "localhost:7465", "node address")
	totalOrders := flag.Int("orders", 10000, "number of orders to submit")
	symbol := flag.String("symbol", "SIM-USD", "symbol to trade")
	basePrice := flag.Int64("base-price", 10000, "mid price in ticks used for randomization")
	priceLevels := flag.Int64("price-levels", 50, "unique price levels around the mid")
	users := flag.Int("users", 10, "number of simulated users")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	watchFills := flag.Bool("watch-fills", false, "subscribe to /ws/fills and count executions")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))
	baseURL := "http://" + *addr

	var fills int64
	if *watchFills {
		conn, _, err := websocket.DefaultDialer.Dial("ws://"+*addr+"/ws/fills", nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "fill stream dial failed: %v\n", err)
			os.Exit(1)
		}
		defer conn.Close()
		go func() {
			for {
				var f protocol.Fill
				if err := conn.ReadJSON(&f); err != nil {
					return
				}
				atomic.AddInt64(&fills, 1)
			}
		}()
	}

	client := &http.Client{Timeout: 5 * time.Second}
	rejected := 0

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		req := nextRandomOrder(rng, i, *symbol, *basePrice, *priceLevels, *users)
		body, _ := json.Marshal(req)

		resp, err := client.Post(baseURL+"/orders", "application/json", bytes.NewReader(body))
		if err != nil {
			fmt.Fprintf(os.Stderr, "submit failed: %v\n", err)
			os.Exit(1)
		}
		if resp.StatusCode != http.StatusOK {
			rejected++
		}
		resp.Body.Close()
	}
	elapsed := time.Since(start)

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	fmt.Printf("submitted %d orders in %s (%.0f orders/s), %d rejected\n",
		*totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec, rejected)

	if *watchFills {
		// Give in-flight fill frames a moment to arrive.
		time.Sleep(500 * time.Millisecond)
		fmt.Printf("observed %d fills\n", atomic.LoadInt64(&fills))
	}
}

func nextRandomOrder(rng *rand.Rand, id int, symbol string, mid, width int64, users int) protocol.SubmitOrderRequest {
	side := "BUY"
	price := mid + rng.Int63n(width) + 1
	if rng.Intn(2) == 0 {
		side = "SELL"
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = 1
		}
	}

	qty := rng.Int63n(5) + 1

	return protocol.SubmitOrderRequest{
		OrderID:  "lg-" + strconv.Itoa(id),
		Symbol:   symbol,
		Side:     side,
		Price:    strconv.FormatInt(price, 10),
		Quantity: strconv.FormatInt(qty, 10),
		UserID:   "user-" + strconv.Itoa(rng.Intn(users)),
	}
}
