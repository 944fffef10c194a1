// api/client.go

// Smart polling client library for applications watching the gossip
// engine over HTTP instead of embedding it.

// Implements intelligent quote polling with adaptive intervals (15s
// normal, 2s right after a broadcast). Provides QuotePoller for a
// single tag pair and SmartPoller for watching several at once.
// Handles background polling, error recovery, and aggressive mode
// after a broadcast.

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client is an HTTP client for the dex API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// ListResponse mirrors the JSON body of GET /api/v1/dex/list.
type ListResponse struct {
	Matches []QuoteMatch `json:"matches"`
	TagA    string       `json:"tagA"`
	TagB    string       `json:"tagB"`
	DestPub string       `json:"destpub"`
	N       int          `json:"n"`
}

// QuoteMatch mirrors dex.Match as it crosses the wire.
type QuoteMatch struct {
	Timestamp uint32 `json:"Timestamp"`
	ID        uint32 `json:"ID"`
	Hex       string `json:"Hex"`
	AmountA   uint64 `json:"AmountA"`
	AmountB   uint64 `json:"AmountB"`
	Priority  int    `json:"Priority"`
	TagA      string `json:"TagA"`
	TagB      string `json:"TagB"`
	DestPub   string `json:"DestPub"`
}

// List fetches the quotes currently matching tagA/tagB from the API.
func (c *Client) List(tagA, tagB string) (*ListResponse, error) {
	url := fmt.Sprintf("%s/api/v1/dex/list?tagA=%s&tagB=%s", c.baseURL, tagA, tagB)

	resp, err := c.httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch quote list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("api returned status %d", resp.StatusCode)
	}

	var list ListResponse
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode quote list: %w", err)
	}
	return &list, nil
}

// QuotePoller watches a (tagA, tagB) pair for newly appeared quotes,
// the gossip analogue of the teacher's BalancePoller watching an
// address for a balance change.
type QuotePoller struct {
	client   *Client
	tagA     string
	tagB     string
	interval time.Duration

	// seenIDs is the set of short hashes already reported, so a
	// repeated poll doesn't re-fire the callback for the same quote.
	seenIDs map[uint32]bool

	ctx    context.Context
	cancel context.CancelFunc

	onNewQuote func(QuoteMatch)
	onError    func(error)
}

// NewQuotePoller creates a poller watching tagA/tagB for new quotes.
func NewQuotePoller(client *Client, tagA, tagB string) *QuotePoller {
	ctx, cancel := context.WithCancel(context.Background())

	return &QuotePoller{
		client:   client,
		tagA:     tagA,
		tagB:     tagB,
		interval: 15 * time.Second,
		seenIDs:  make(map[uint32]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SetInterval sets the polling interval.
func (qp *QuotePoller) SetInterval(interval time.Duration) {
	qp.interval = interval
}

// OnNewQuote sets a callback fired once per newly observed quote.
func (qp *QuotePoller) OnNewQuote(callback func(QuoteMatch)) {
	qp.onNewQuote = callback
}

// OnError sets a callback for when polling itself fails.
func (qp *QuotePoller) OnError(callback func(error)) {
	qp.onError = callback
}

// Start begins polling in the background.
func (qp *QuotePoller) Start() {
	go qp.pollLoop()
}

// Stop stops the polling.
func (qp *QuotePoller) Stop() {
	qp.cancel()
}

// PollOnce performs a single check, useful right after a broadcast.
func (qp *QuotePoller) PollOnce() {
	qp.checkQuotes()
}

// SetAggressivePolling temporarily increases polling frequency, used
// right after the caller's own broadcast to see it propagate quickly.
func (qp *QuotePoller) SetAggressivePolling(duration time.Duration) {
	original := qp.interval
	qp.interval = 2 * time.Second
	time.AfterFunc(duration, func() {
		qp.interval = original
	})
}

func (qp *QuotePoller) pollLoop() {
	ticker := time.NewTicker(qp.interval)
	defer ticker.Stop()

	qp.checkQuotes()

	for {
		select {
		case <-qp.ctx.Done():
			return
		case <-ticker.C:
			if ticker.C != time.NewTicker(qp.interval).C {
				ticker.Stop()
				ticker = time.NewTicker(qp.interval)
			}
			qp.checkQuotes()
		}
	}
}

func (qp *QuotePoller) checkQuotes() {
	list, err := qp.client.List(qp.tagA, qp.tagB)
	if err != nil {
		if qp.onError != nil {
			qp.onError(err)
		}
		return
	}

	for _, m := range list.Matches {
		if qp.seenIDs[m.ID] {
			continue
		}
		qp.seenIDs[m.ID] = true
		if qp.onNewQuote != nil {
			qp.onNewQuote(m)
		}
	}
}

// SeenCount returns how many distinct quotes this poller has reported.
func (qp *QuotePoller) SeenCount() int {
	return len(qp.seenIDs)
}

// SmartPoller watches several tag pairs at once.
type SmartPoller struct {
	client  *Client
	pollers map[string]*QuotePoller
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewSmartPoller creates a poller that can watch multiple tag pairs.
func NewSmartPoller(client *Client) *SmartPoller {
	ctx, cancel := context.WithCancel(context.Background())

	return &SmartPoller{
		client:  client,
		pollers: make(map[string]*QuotePoller),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func tagPairKey(tagA, tagB string) string {
	return tagA + "\x00" + tagB
}

// Watch starts watching a (tagA, tagB) pair for new quotes.
func (sp *SmartPoller) Watch(tagA, tagB string, onNewQuote func(QuoteMatch)) {
	key := tagPairKey(tagA, tagB)
	if _, exists := sp.pollers[key]; exists {
		return
	}

	poller := NewQuotePoller(sp.client, tagA, tagB)
	poller.OnNewQuote(onNewQuote)
	poller.OnError(func(err error) {
		fmt.Printf("error polling %s/%s: %v\n", tagA, tagB, err)
	})

	sp.pollers[key] = poller
	poller.Start()
}

// Unwatch stops watching a (tagA, tagB) pair.
func (sp *SmartPoller) Unwatch(tagA, tagB string) {
	key := tagPairKey(tagA, tagB)
	if poller, exists := sp.pollers[key]; exists {
		poller.Stop()
		delete(sp.pollers, key)
	}
}

// SetAggressiveMode temporarily increases polling for every watched pair.
func (sp *SmartPoller) SetAggressiveMode(duration time.Duration) {
	for _, poller := range sp.pollers {
		poller.SetAggressivePolling(duration)
	}
}

// Stop stops all polling.
func (sp *SmartPoller) Stop() {
	sp.cancel()
	for _, poller := range sp.pollers {
		poller.Stop()
	}
	sp.pollers = make(map[string]*QuotePoller)
}
