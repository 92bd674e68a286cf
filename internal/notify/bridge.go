// Package notify forwards engine events to a NATS server so that other
// processes can react to task completions and level-ups.
package notify

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	nc "github.com/nats-io/nats.go"

	"github.com/JamesPrial/liferpg/internal/engine"
)

// SubjectPrefix is the first token of every subject the bridge publishes on.
const SubjectPrefix = "liferpg"

// Bridge publishes engine events as JSON on liferpg.<user>.<event>.
type Bridge struct {
	conn   *nc.Conn
	logger *log.Logger
}

// Connect dials the NATS server at url. The connection reconnects
// indefinitely; publish failures are logged and never reach the engine.
func Connect(url string, logger *log.Logger) (*Bridge, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	opts := []nc.Option{
		nc.Name("liferpg"),
		nc.ReconnectWait(2 * time.Second),
		nc.MaxReconnects(-1),
		nc.DisconnectErrHandler(func(conn *nc.Conn, err error) {
			if err != nil {
				logger.Printf("nats disconnected: %v", err)
			}
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			logger.Printf("nats reconnected to %s", conn.ConnectedUrl())
		}),
	}

	conn, err := nc.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &Bridge{conn: conn, logger: logger}, nil
}

// Subject returns the subject an event is published on. The user token is
// the user name when known, otherwise the numeric id.
func Subject(ev engine.Event) string {
	user := ev.UserName
	if user == "" {
		user = strconv.FormatInt(ev.UserID, 10)
	}
	return SubjectPrefix + "." + token(user) + "." + token(string(ev.Type))
}

// token makes s safe to use as a single subject token.
func token(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
	if s == "" {
		return "_"
	}
	return s
}

// Publish implements engine.Publisher.
func (b *Bridge) Publish(ev engine.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		b.logger.Printf("failed to marshal %s event: %v", ev.Type, err)
		return
	}
	subject := Subject(ev)
	if err := b.conn.Publish(subject, data); err != nil {
		b.logger.Printf("failed to publish to %s: %v", subject, err)
	}
}

// Flush waits until the server has processed everything published so far.
func (b *Bridge) Flush() error {
	if err := b.conn.Flush(); err != nil {
		return fmt.Errorf("flush failed: %w", err)
	}
	return nil
}

// Close closes the NATS connection.
func (b *Bridge) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
}
