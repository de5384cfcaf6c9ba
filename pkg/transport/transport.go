// Package transport is the HTTP byte source for the playback pipeline.
// A Client connects to a stream URL, reads the response body on its own
// goroutine, and hands arrived bytes over through Process. Nothing here
// blocks the caller: pausing, harvesting, and status checks are all
// immediate, which is what lets the flow controller poll on a tick.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/dkosmari/RadiiU-sub000/pkg/bytestream"
)

const (
	defaultUserAgent  = "radiiu/1.0"
	dialTimeout       = 5 * time.Second
	respHeaderTimeout = 10 * time.Second
	readChunkSize     = 4096
)

// Client fetches a single stream. Create with New, configure request
// headers with AddHeader, then Start. A Client is not reusable.
type Client struct {
	url     string
	headers http.Header

	mu        sync.Mutex
	cond      *sync.Cond
	arrived   *bytestream.Stream
	resp      *http.Response
	responded bool
	finished  bool
	paused    bool
	closed    bool
	readErr   error
}

// New returns an unconnected client for url.
func New(url string) *Client {
	c := &Client{
		url:     url,
		headers: make(http.Header),
		arrived: bytestream.New(),
	}
	c.cond = sync.NewCond(&c.mu)
	c.headers.Set("User-Agent", defaultUserAgent)
	c.headers.Set("Accept", "*/*")
	return c
}

// AddHeader sets a request header. Must be called before Start.
func (c *Client) AddHeader(key, value string) {
	c.headers.Set(key, value)
}

// Start connects and begins reading the response body in the
// background. Connection establishment has timeouts; the stream read
// itself does not, since a live stream is open-ended.
func (c *Client) Start(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("transport: create request: %w", err)
	}
	req.Header = c.headers.Clone()

	dialer := &net.Dialer{Timeout: dialTimeout}
	client := &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			ResponseHeaderTimeout: respHeaderTimeout,
			DisableCompression:    true,
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("transport: connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return fmt.Errorf("transport: stream returned status %d", resp.StatusCode)
	}

	c.mu.Lock()
	c.resp = resp
	c.responded = true
	c.mu.Unlock()

	go c.readLoop()
	return nil
}

func (c *Client) readLoop() {
	buf := make([]byte, readChunkSize)
	for {
		c.mu.Lock()
		for c.paused && !c.closed {
			c.cond.Wait()
		}
		if c.closed {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()

		n, err := c.resp.Body.Read(buf)

		c.mu.Lock()
		if n > 0 {
			c.arrived.Write(buf[:n])
		}
		if err != nil {
			c.finished = true
			c.readErr = err
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// Process moves every byte that has arrived since the last call into
// dst and returns how many were moved.
func (c *Client) Process(dst *bytestream.Stream) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return dst.Consume(c.arrived, -1)
}

// Responded reports whether response headers are available.
func (c *Client) Responded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responded
}

// Finished reports whether the body has ended (EOF or error). Bytes
// already arrived may still be pending in Process.
func (c *Client) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished && c.arrived.Len() == 0
}

// Header returns a response header value, empty before Responded.
func (c *Client) Header(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resp == nil {
		return ""
	}
	return c.resp.Header.Get(name)
}

// Pause stops consuming from the socket until Resume. The server keeps
// filling kernel buffers meanwhile, which is exactly the backpressure
// the flow controller wants.
func (c *Client) Pause() {
	c.mu.Lock()
	c.paused = true
	c.mu.Unlock()
}

// Resume restarts socket reads after Pause.
func (c *Client) Resume() {
	c.mu.Lock()
	c.paused = false
	c.mu.Unlock()
	c.cond.Signal()
}

// Close tears the connection down and unblocks the reader.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.paused = false
	resp := c.resp
	c.arrived.Reset()
	c.mu.Unlock()
	c.cond.Signal()

	if resp != nil {
		return resp.Body.Close()
	}
	return nil
}
