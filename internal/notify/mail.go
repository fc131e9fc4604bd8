package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
	"golang.org/x/time/rate"

	"github.com/example/resywatch/internal/metrics"
)

// DefaultMailQueueSize bounds the mails waiting for the rate limiter.
const DefaultMailQueueSize = 256

type MailConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	PerMinute int
}

type mailSender interface {
	DialAndSendWithContext(ctx context.Context, msgs ...*mail.Msg) error
}

// MailSink sends one plain-text mail per event to its recipients over
// implicit TLS. Deliver only queues the message; a single worker paces the
// sends with the rate limiter, so a burst of events is spread out instead of
// running into the fanout's delivery timeout.
type MailSink struct {
	from        string
	sender      mailSender
	limiter     *rate.Limiter
	sendTimeout time.Duration
	log         zerolog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan *mail.Msg
	done   chan struct{}
}

type MailOption func(*MailSink)

func withSender(s mailSender) MailOption { return func(m *MailSink) { m.sender = s } }

// WithMailLogger sets the logger used for failed background sends.
func WithMailLogger(log zerolog.Logger) MailOption {
	return func(m *MailSink) { m.log = log.With().Str("component", "mail").Logger() }
}

// WithMailQueueSize overrides DefaultMailQueueSize.
func WithMailQueueSize(n int) MailOption {
	return func(m *MailSink) {
		if n > 0 {
			m.queue = make(chan *mail.Msg, n)
		}
	}
}

func NewMailSink(cfg MailConfig, opts ...MailOption) (*MailSink, error) {
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	perMin := cfg.PerMinute
	if perMin <= 0 {
		perMin = 10
	}
	s := &MailSink{
		from:        from,
		limiter:     rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMin)), 1),
		sendTimeout: DefaultDeliveryTimeout,
		log:         zerolog.Nop(),
		queue:       make(chan *mail.Msg, DefaultMailQueueSize),
		done:        make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	if s.sender == nil {
		c, err := mail.NewClient(cfg.Host,
			mail.WithPort(cfg.Port),
			mail.WithSSL(),
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
		if err != nil {
			return nil, fmt.Errorf("mail client: %w", err)
		}
		s.sender = c
	}
	go s.run()
	return s, nil
}

func (s *MailSink) Name() string { return "mail" }

// Deliver queues one mail for ev. It returns ErrDropped when the queue is
// full or the sink is closed.
func (s *MailSink) Deliver(ctx context.Context, ev Event) error {
	if len(ev.Recipients) == 0 {
		return nil
	}
	m, err := s.message(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("mail sink closed: %w", ErrDropped)
	}
	select {
	case s.queue <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return fmt.Errorf("mail queue full: %w", ErrDropped)
	}
}

func (s *MailSink) run() {
	defer close(s.done)
	for m := range s.queue {
		// The limiter is only ever waited on here, so Wait cannot fail.
		_ = s.limiter.Wait(context.Background())
		s.send(m)
	}
}

func (s *MailSink) send(m *mail.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()
	if err := s.sender.DialAndSendWithContext(ctx, m); err != nil {
		metrics.Deliveries.WithLabelValues(s.Name(), "send_error").Inc()
		s.log.Error().Err(err).Strs("to", m.GetToString()).Msg("send mail failed")
		return
	}
	metrics.Deliveries.WithLabelValues(s.Name(), "sent").Inc()
}

// Close stops accepting mail and waits until everything already queued
// has been sent.
func (s *MailSink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()
	<-s.done
}

func (s *MailSink) message(ev Event) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return nil, fmt.Errorf("mail from %q: %w", s.from, err)
	}
	if err := m.To(ev.Recipients...); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	m.Subject(ev.Name)
	m.SetBodyString(mail.TypeTextPlain, ev.Body())
	return m, nil
}
