package sdk

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// Subscription is an open event stream. Events is closed when the stream
// ends; Err then reports why.
type Subscription struct {
	Events <-chan Event

	cancel context.CancelFunc
	mu     sync.Mutex
	err    error
	done   chan struct{}
}

// Close ends the stream and waits for the reader to exit.
func (s *Subscription) Close() {
	s.cancel()
	<-s.done
}

// Err returns the error that ended the stream, nil after Close or a clean
// end of stream.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Subscribe streams host bus events of topics. With no topics the host
// streams every topic except shared:changed.
func (c *Client) Subscribe(ctx context.Context, topics ...string) (*Subscription, error) {
	q := url.Values{}
	for _, t := range topics {
		q.Add("topic", t)
	}
	path := "/api/events"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return c.subscribe(ctx, path)
}

// SubscribeShared streams the session's shared:changed notifications.
func (c *Client) SubscribeShared(ctx context.Context) (*Subscription, error) {
	return c.subscribe(ctx, "/api/shared/events")
}

func (c *Client) subscribe(ctx context.Context, path string) (*Subscription, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		cancel()
		return nil, decodeError(resp)
	}

	events := make(chan Event, 16)
	sub := &Subscription{
		Events: events,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(events)
		defer resp.Body.Close()

		err := readEvents(ctx, resp.Body, events)
		if ctx.Err() != nil {
			err = nil
		}
		sub.mu.Lock()
		sub.err = err
		sub.mu.Unlock()
	}()
	return sub, nil
}

// readEvents parses a text/event-stream body. Comment lines are skipped and
// a blank line dispatches the pending event.
func readEvents(ctx context.Context, r io.Reader, out chan<- Event) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)

	var name string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() == 0 {
				name = ""
				continue
			}
			var ev Event
			if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
				return fmt.Errorf("decode %s event: %w", name, err)
			}
			if ev.Topic == "" {
				ev.Topic = name
			}
			name = ""
			data.Reset()
			select {
			case out <- ev:
			case <-ctx.Done():
				return nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
