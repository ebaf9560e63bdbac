// Package natspub republishes session events on NATS and accepts generation
// requests over NATS request/reply.
package natspub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"poemd/internal/session"
	"poemd/pkg/types"
)

// DefaultSubject prefixes every subject used by the package.
const DefaultSubject = "poemd"

// Options configures the NATS connection.
type Options struct {
	// URL is a comma separated list of servers.
	URL      string
	Subject  string
	Name     string
	Timeout  time.Duration
	Username string
	Password string
	Token    string
	Logger   zerolog.Logger
}

// Publisher is a session.EventPublisher that JSON-encodes events to
// <subject>.<event name>.
type Publisher struct {
	conn    *nats.Conn
	subject string
	log     zerolog.Logger
	sub     *nats.Subscription
}

// Connect dials NATS and returns a Publisher owning the connection.
func Connect(opts Options) (*Publisher, error) {
	if strings.TrimSpace(opts.URL) == "" {
		return nil, errors.New("natspub: no NATS servers configured")
	}
	name := opts.Name
	if name == "" {
		name = "poemd"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	nopts := []nats.Option{
		nats.Name(name),
		nats.Timeout(timeout),
	}
	if opts.Username != "" || opts.Password != "" {
		nopts = append(nopts, nats.UserInfo(opts.Username, opts.Password))
	}
	if opts.Token != "" {
		nopts = append(nopts, nats.Token(opts.Token))
	}
	conn, err := nats.Connect(opts.URL, nopts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	p := New(conn, opts.Subject, opts.Logger)
	p.log.Info().Str("servers", opts.URL).Str("subject", p.subject).Msg("connected to NATS")
	return p, nil
}

// New wraps an existing connection.
func New(conn *nats.Conn, subject string, log zerolog.Logger) *Publisher {
	subject = strings.Trim(strings.TrimSpace(subject), ".")
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject, log: log.With().Str("component", "natspub").Logger()}
}

// Subject returns the subject an event name is published on.
func (p *Publisher) Subject(event string) string { return p.subject + "." + event }

// Publish sends the event without waiting for the server. Errors are logged.
func (p *Publisher) Publish(e session.Event) {
	if p == nil || p.conn == nil {
		return
	}
	b, err := json.Marshal(e.Message())
	if err != nil {
		p.log.Warn().Err(err).Str("event", e.Name).Msg("encode event")
		return
	}
	if err := p.conn.Publish(p.Subject(e.Name), b); err != nil {
		p.log.Warn().Err(err).Str("event", e.Name).Msg("publish event")
	}
}

// Starter starts asynchronous generations; *session.Controller satisfies it.
type Starter interface {
	Start(ctx context.Context, topic string) (string, bool)
}

// ServeRequests answers requests on <subject>.generate with a
// types.GenerateResponse. Generations run on ctx.
func (p *Publisher) ServeRequests(ctx context.Context, s Starter) error {
	sub, err := p.conn.Subscribe(p.Subject("generate"), func(msg *nats.Msg) {
		var req types.GenerateRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				p.reply(msg, types.ErrorResponse{Error: "invalid JSON body", Code: 400})
				return
			}
		}
		id, started := s.Start(ctx, req.Topic)
		p.log.Debug().Bool("started", started).Str("generation_id", id).Msg("generate request")
		p.reply(msg, types.GenerateResponse{Started: started, GenerationID: id})
	})
	if err != nil {
		return fmt.Errorf("subscribe generate requests: %w", err)
	}
	p.sub = sub
	return nil
}

func (p *Publisher) reply(msg *nats.Msg, v any) {
	if msg.Reply == "" {
		return
	}
	b, _ := json.Marshal(v)
	if err := msg.Respond(b); err != nil {
		p.log.Warn().Err(err).Msg("reply")
	}
}

// Healthy reports whether the connection is up.
func (p *Publisher) Healthy() bool {
	return p != nil && p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close drains the request subscription and the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.log.Info().Msg("closing NATS connection")
	if p.sub != nil {
		_ = p.sub.Drain()
	}
	_ = p.conn.Drain()
	p.conn.Close()
}
