package protect

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"lpr-capture-service/internal/domain/lpr"
)

const (
	handshakeTimeout = 10 * time.Second
	readDeadline     = 60 * time.Second
)

// updateFrame is one message on the Protect updates socket. Event additions
// arrive as action "add" with modelKey "event".
type updateFrame struct {
	Action   string          `json:"action"`
	ModelKey string          `json:"modelKey"`
	Data     json.RawMessage `json:"data"`
}

// Subscribe opens the real-time updates stream and delivers detection
// events on the returned channel. The channel closes when the connection is
// lost; the caller owns reconnect policy. The returned function tears the
// subscription down and is safe to call once.
//
// Consoles without the updates endpoint yield lpr.ErrPushUnsupported so the
// caller can fall back to polling.
func (c *Client) Subscribe(ctx context.Context) (<-chan lpr.DetectionEvent, func(), error) {
	dialer := websocket.Dialer{
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	if !c.cfg.VerifySSL {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in
	}

	wsURL := fmt.Sprintf("wss://%s:%d%s", c.cfg.Host, c.cfg.Port, updatesPath)
	header := http.Header{}
	c.authorize(header)

	conn, resp, err := dialer.DialContext(ctx, wsURL, header)
	if resp != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented) {
			return nil, nil, fmt.Errorf("%w: HTTP %d from updates endpoint", lpr.ErrPushUnsupported, resp.StatusCode)
		}
		return nil, nil, fmt.Errorf("protect websocket dial: %w", err)
	}

	events := make(chan lpr.DetectionEvent, 16)
	stop := make(chan struct{})
	go c.readUpdates(conn, events, stop)

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			close(stop)
			_ = conn.Close()
		})
	}
	return events, unsubscribe, nil
}

// readUpdates pumps frames from the websocket into the event channel until
// the connection drops or the subscription is stopped.
func (c *Client) readUpdates(conn *websocket.Conn, events chan<- lpr.DetectionEvent, stop <-chan struct{}) {
	defer close(events)
	defer conn.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := conn.SetReadDeadline(time.Now().Add(readDeadline)); err != nil {
			c.log.Debug().Err(err).Msg("failed to set websocket read deadline")
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Info().Msg("Protect websocket closed")
			} else {
				select {
				case <-stop:
				default:
					c.log.Warn().Err(err).Msg("Protect websocket read error")
				}
			}
			return
		}

		var frame updateFrame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.log.Debug().Err(err).Msg("unparseable websocket frame")
			continue
		}
		if frame.ModelKey != "event" || (frame.Action != "add" && frame.Action != "update") {
			continue
		}

		var we wireEvent
		if err := json.Unmarshal(frame.Data, &we); err != nil {
			c.log.Debug().Err(err).Msg("unparseable event frame")
			continue
		}

		select {
		case events <- we.toDomain():
		case <-stop:
			return
		}
	}
}
