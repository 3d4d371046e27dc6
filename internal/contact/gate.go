// Package contact implements the public contact form's submission gate:
// honeypot, validation, per-origin rate limiting and owner notification.
package contact

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/PratikDhanave/portfolio-inbox/internal/notify"
	"github.com/PratikDhanave/portfolio-inbox/internal/ratelimit"
)

const (
	MinLength = 10
	MaxLength = 2000

	Subject = "[portfolio] New message"
)

// Rejection reasons. These strings reach anonymous callers.
const (
	ReasonTextRequired    = "message text is required"
	ReasonTooShort        = "message too short"
	ReasonTooLong         = "message too long"
	ReasonTooManyLinks    = "too many links in message"
	ReasonContentRejected = "message rejected"
	ReasonSenderRequired  = "fromEmail is required"
	ReasonRateLimited     = "too many messages, slow down"
	ReasonSendFailed      = "failed to send message"
)

// Kind classifies an Outcome.
type Kind int

const (
	Accepted Kind = iota
	SilentlyDiscarded
	Rejected
	RateLimited
	Failed
)

func (k Kind) String() string {
	switch k {
	case Accepted:
		return "accepted"
	case SilentlyDiscarded:
		return "silently_discarded"
	case Rejected:
		return "rejected"
	case RateLimited:
		return "rate_limited"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Submission is one contact form post.
type Submission struct {
	Text           string
	SenderIdentity string
	Honeypot       string
	OriginKey      string
}

// Outcome is the gate's verdict. Reason is set for Rejected, RateLimited and
// Failed; EmailSent and MessageID only for Accepted.
type Outcome struct {
	Kind              Kind
	Reason            string
	EmailSent         bool
	MessageID         string
	RetryAfterSeconds int
}

// Limiter decides whether an origin may submit now.
type Limiter interface {
	Allow(key string) ratelimit.Decision
}

// Notifier is the outbound channel for accepted submissions.
type Notifier interface {
	Recipient() string
	CheckConfig() error
	Send(ctx context.Context, e notify.Email) (notify.Receipt, error)
}

// Gate evaluates submissions. It is safe for concurrent use.
type Gate struct {
	limiter     Limiter
	notifier    Notifier
	rules       []Rule
	sendTimeout time.Duration
	log         *zap.Logger
	outcomes    *prometheus.CounterVec
	stats       ratelimit.StatsStore
	now         func() time.Time
}

type Option func(*Gate)

// WithRules replaces the content rules.
func WithRules(rules ...Rule) Option {
	return func(g *Gate) { g.rules = rules }
}

func WithSendTimeout(d time.Duration) Option {
	return func(g *Gate) {
		if d > 0 {
			g.sendTimeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.log = l
		}
	}
}

// WithOutcomeCounter counts outcomes by Kind label.
func WithOutcomeCounter(c *prometheus.CounterVec) Option {
	return func(g *Gate) { g.outcomes = c }
}

// WithStats records every limiter decision.
func WithStats(s ratelimit.StatsStore) Option {
	return func(g *Gate) { g.stats = s }
}

// NewGate wires a gate. A nil notifier behaves like an unconfigured one.
func NewGate(limiter Limiter, notifier Notifier, opts ...Option) *Gate {
	g := &Gate{
		limiter:     limiter,
		notifier:    notifier,
		rules:       DefaultRules(),
		sendTimeout: 10 * time.Second,
		log:         zap.NewNop(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Evaluate runs the checks in order; the first failing check decides the
// outcome. It never panics.
func (g *Gate) Evaluate(ctx context.Context, sub Submission) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			g.log.Error("contact gate panicked",
				zap.Any("panic", r),
				zap.String("origin", sub.OriginKey),
				zap.Stack("stack"),
			)
			out = Outcome{Kind: Failed, Reason: ReasonSendFailed}
		}
		if g.outcomes != nil {
			g.outcomes.WithLabelValues(out.Kind.String()).Inc()
		}
	}()

	return g.evaluate(ctx, sub)
}

func (g *Gate) evaluate(ctx context.Context, sub Submission) Outcome {
	if sub.Honeypot != "" {
		g.log.Debug("contact honeypot filled", zap.String("origin", sub.OriginKey))
		return Outcome{Kind: SilentlyDiscarded}
	}

	if sub.Text == "" {
		return g.reject(sub, ReasonTextRequired)
	}
	trimmed := strings.TrimSpace(sub.Text)
	n := utf8.RuneCountInString(trimmed)
	if n < MinLength {
		return g.reject(sub, ReasonTooShort)
	}
	if n > MaxLength {
		return g.reject(sub, ReasonTooLong)
	}
	for _, rule := range g.rules {
		if rule.Match != nil && rule.Match(trimmed) {
			return g.reject(sub, rule.Reason)
		}
	}

	sender := strings.TrimSpace(sub.SenderIdentity)
	if sender == "" || !strings.Contains(sender, "@") {
		return g.reject(sub, ReasonSenderRequired)
	}

	origin := sub.OriginKey
	if origin == "" {
		origin = ratelimit.UnknownOrigin
	}
	dec := g.limiter.Allow(origin)
	g.record(ctx, origin, dec)
	if !dec.Allowed {
		return Outcome{
			Kind:              RateLimited,
			Reason:            ReasonRateLimited,
			RetryAfterSeconds: int(dec.RetryAfter / time.Second),
		}
	}

	return g.deliver(ctx, sender, trimmed)
}

func (g *Gate) deliver(ctx context.Context, sender, trimmed string) Outcome {
	if g.notifier == nil {
		g.log.Warn("contact email skipped", zap.String("reason", "no notifier"))
		return Outcome{Kind: Accepted}
	}
	if err := g.notifier.CheckConfig(); err != nil {
		g.log.Warn("contact email skipped", zap.Error(err))
		return Outcome{Kind: Accepted}
	}

	sendCtx, cancel := context.WithTimeout(ctx, g.sendTimeout)
	defer cancel()

	rcpt, err := g.notifier.Send(sendCtx, notify.Email{
		To:      g.notifier.Recipient(),
		Subject: Subject,
		Body:    "From: " + sender + "\n\n" + trimmed,
		ReplyTo: sender,
	})
	if err != nil {
		if errors.Is(err, notify.ErrNotConfigured) {
			g.log.Warn("contact email skipped", zap.Error(err))
			return Outcome{Kind: Accepted}
		}
		g.log.Error("contact email send failed", zap.Error(err))
		return Outcome{Kind: Failed, Reason: ReasonSendFailed}
	}

	return Outcome{Kind: Accepted, EmailSent: true, MessageID: rcpt.ID}
}

func (g *Gate) reject(sub Submission, reason string) Outcome {
	g.log.Debug("contact rejected", zap.String("reason", reason), zap.String("origin", sub.OriginKey))
	return Outcome{Kind: Rejected, Reason: reason}
}

func (g *Gate) record(ctx context.Context, origin string, dec ratelimit.Decision) {
	if g.stats == nil {
		return
	}
	outcome := RateLimited.String()
	if dec.Allowed {
		outcome = "admitted"
	}

	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 500*time.Millisecond)
	defer cancel()
	err := g.stats.Record(rctx, ratelimit.StatsEvent{
		Key:     origin,
		Allowed: dec.Allowed,
		Outcome: outcome,
		At:      g.now(),
	})
	if err != nil {
		g.log.Warn("contact stats record failed", zap.Error(err))
	}
}
