// Command chatprobe drives the guard messaging socket with concurrent clients
// and reports what came back. Tokens come from `seed -tokens`.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// Metrics tracks the probe results
type Metrics struct {
	ConnectionsAttempted int64
	ConnectionsSuccess   int64
	ConnectionsFailed    int64
	MessagesSent         int64
	FramesReceived       int64
	Errors               int64

	mu       sync.Mutex
	byEvent  map[string]int64
	errCodes map[string]int64
}

func (m *Metrics) record(event, code string) {
	atomic.AddInt64(&m.FramesReceived, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byEvent[event]++
	if code != "" {
		m.errCodes[code]++
	}
}

var metrics = Metrics{byEvent: map[string]int64{}, errCodes: map[string]int64{}}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func main() {
	host := flag.String("host", "localhost:8375", "API server host")
	token := flag.String("token", "", "Bearer token of the sending participant")
	recipient := flag.String("recipient", "", "Participant id to message")
	clients := flag.Int("clients", 5, "Number of concurrent sessions")
	duration := flag.Duration("duration", 30*time.Second, "Probe duration")
	interval := flag.Duration("interval", 5*time.Second, "Delay between messages per session")
	flag.Parse()

	if *token == "" || *recipient == "" {
		flag.Usage()
		os.Exit(2)
	}

	log.Printf("Probing %s with %d sessions for %v", *host, *clients, *duration)

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	var wg sync.WaitGroup
	stopChan := make(chan struct{})

	for i := 0; i < *clients; i++ {
		wg.Add(1)
		go runClient(*host, *token, *recipient, i, *interval, stopChan, &wg)
		time.Sleep(50 * time.Millisecond)
	}

	select {
	case <-time.After(*duration):
		log.Println("Probe duration reached")
	case <-interrupt:
		log.Println("Interrupted")
	}

	close(stopChan)
	wg.Wait()

	printMetrics()
}

func getTicket(host, token string) (string, error) {
	ticketURL := fmt.Sprintf("http://%s/api/ws/ticket", host)
	req, err := http.NewRequest(http.MethodPost, ticketURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ticket issuance failed with status %d", resp.StatusCode)
	}

	var result struct {
		Ticket string `json:"ticket"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ticket, nil
}

func runClient(host, token, recipient string, id int, interval time.Duration, stopChan <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	atomic.AddInt64(&metrics.ConnectionsAttempted, 1)

	ticket, err := getTicket(host, token)
	if err != nil {
		log.Printf("client %d: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return
	}

	u := url.URL{Scheme: "ws", Host: host, Path: "/api/ws", RawQuery: "ticket=" + url.QueryEscape(ticket)}
	c, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if resp != nil && resp.Body != nil {
		defer func() { _ = resp.Body.Close() }()
	}
	if err != nil {
		log.Printf("client %d: dial: %v", id, err)
		atomic.AddInt64(&metrics.ConnectionsFailed, 1)
		return
	}
	defer func() { _ = c.Close() }()
	atomic.AddInt64(&metrics.ConnectionsSuccess, 1)

	go func() {
		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				return
			}
			var f frame
			if json.Unmarshal(raw, &f) != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				continue
			}
			var code string
			if f.Event == "error" {
				var e struct {
					Code string `json:"code"`
				}
				_ = json.Unmarshal(f.Data, &e)
				code = e.Code
			}
			metrics.record(f.Event, code)
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 1; ; n++ {
		select {
		case <-stopChan:
			_ = c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			msg, _ := json.Marshal(map[string]any{
				"event": "send_message",
				"data": map[string]string{
					"recipient_id": recipient,
					"body":         fmt.Sprintf("probe %d message %d", id, n),
				},
			})
			if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
				atomic.AddInt64(&metrics.Errors, 1)
				return
			}
			atomic.AddInt64(&metrics.MessagesSent, 1)
		}
	}
}

func printMetrics() {
	log.Println("Probe results")
	log.Printf("Connections: %d attempted, %d ok, %d failed",
		metrics.ConnectionsAttempted, metrics.ConnectionsSuccess, metrics.ConnectionsFailed)
	log.Printf("Messages sent: %d", metrics.MessagesSent)
	log.Printf("Frames received: %d", metrics.FramesReceived)
	log.Printf("Errors: %d", metrics.Errors)

	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	events := make([]string, 0, len(metrics.byEvent))
	for e := range metrics.byEvent {
		events = append(events, e)
	}
	sort.Strings(events)
	for _, e := range events {
		log.Printf("  %-26s %d", e, metrics.byEvent[e])
	}
	for code, n := range metrics.errCodes {
		log.Printf("  error %-20s %d", code, n)
	}
}
