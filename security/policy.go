// Package security enforces admission policy for transport messages:
// size caps, per-client sliding-window rate limits, port-range checks,
// and command restrictions.
package security

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/c360/maxbridge/config"
	"github.com/c360/maxbridge/errors"
)

// clientWindow tracks one client's recent request timestamps plus
// running totals for observability.
type clientWindow struct {
	timestamps []time.Time // oldest first
	totalBytes int64
	messages   int64
}

// ClientStats is a read-only snapshot of one client's traffic.
type ClientStats struct {
	Messages   int64
	TotalBytes int64
	InWindow   int
}

// Policy validates inbound traffic before it reaches the orchestrator.
// All methods are safe for concurrent use.
type Policy struct {
	mu sync.Mutex

	maxMessageSize int
	ratePerSec     int
	enforceRate    bool
	minPort        int
	maxPort        int

	// allowed is an allowlist; nil means every command is allowed.
	// restricted is a denylist layered on top, adjustable at runtime.
	allowed    map[string]struct{}
	restricted map[string]struct{}

	clients map[string]*clientWindow

	now    func() time.Time
	logger *slog.Logger
}

// NewPolicy builds a policy from the security configuration.
func NewPolicy(cfg config.SecurityConfig, logger *slog.Logger) *Policy {
	if logger == nil {
		logger = slog.Default()
	}

	var allowed map[string]struct{}
	if cfg.AllowedCommands != nil {
		allowed = make(map[string]struct{}, len(cfg.AllowedCommands))
		for _, c := range cfg.AllowedCommands {
			allowed[c] = struct{}{}
		}
	}

	return &Policy{
		maxMessageSize: cfg.MaxMessageSize,
		ratePerSec:     cfg.RateLimitPerSec,
		enforceRate:    cfg.EnforceRateLimit,
		minPort:        cfg.MinPort,
		maxPort:        cfg.MaxPort,
		allowed:        allowed,
		restricted:     make(map[string]struct{}),
		clients:        make(map[string]*clientWindow),
		now:            time.Now,
		logger:         logger.With("component", "security"),
	}
}

// MaxMessageSize returns the configured message size cap in bytes.
func (p *Policy) MaxMessageSize() int { return p.maxMessageSize }

// ValidateMessageSize rejects messages over the configured cap.
func (p *Policy) ValidateMessageSize(size int) error {
	if size < 0 {
		return errors.WrapInvalid(errors.ErrInvalidData, "Policy", "ValidateMessageSize",
			fmt.Sprintf("negative size %d", size))
	}
	if p.maxMessageSize > 0 && size > p.maxMessageSize {
		return errors.WrapCapacity(errors.ErrMessageTooLarge, "Policy", "ValidateMessageSize",
			fmt.Sprintf("%d bytes exceeds limit %d", size, p.maxMessageSize))
	}
	return nil
}

// ValidateRateLimit records one request for the client and rejects it
// when the client has exceeded the per-second budget. Requests are
// counted against a one-second sliding window. When rate limiting is
// not enforced, traffic is still recorded for stats but never rejected.
func (p *Policy) ValidateRateLimit(clientID string, size int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	w := p.clients[clientID]
	if w == nil {
		w = &clientWindow{}
		p.clients[clientID] = w
	}

	// Drop timestamps that have aged out of the window.
	cutoff := now.Add(-time.Second)
	trimmed := w.timestamps[:0]
	for _, ts := range w.timestamps {
		if ts.After(cutoff) {
			trimmed = append(trimmed, ts)
		}
	}
	w.timestamps = trimmed

	if p.enforceRate && p.ratePerSec > 0 && len(w.timestamps) >= p.ratePerSec {
		p.logger.Warn("rate limit exceeded", "client", clientID,
			"limit", p.ratePerSec)
		return errors.WrapCapacity(errors.ErrRateLimited, "Policy", "ValidateRateLimit",
			fmt.Sprintf("client %q over %d/s", clientID, p.ratePerSec))
	}

	w.timestamps = append(w.timestamps, now)
	w.totalBytes += int64(size)
	w.messages++
	return nil
}

// ValidatePort rejects ports outside the configured range.
func (p *Policy) ValidatePort(port int) error {
	if port < p.minPort || port > p.maxPort {
		return errors.WrapInvalid(errors.ErrPortOutOfRange, "Policy", "ValidatePort",
			fmt.Sprintf("port %d outside [%d, %d]", port, p.minPort, p.maxPort))
	}
	return nil
}

// ValidateCommand rejects commands outside the allowlist or on the
// runtime denylist.
func (p *Policy) ValidateCommand(command string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, denied := p.restricted[command]; denied {
		return errors.WrapPermission(errors.ErrCommandRestricted, "Policy", "ValidateCommand",
			fmt.Sprintf("command %q", command))
	}
	if p.allowed != nil {
		if _, ok := p.allowed[command]; !ok {
			return errors.WrapPermission(errors.ErrCommandRestricted, "Policy", "ValidateCommand",
				fmt.Sprintf("command %q not in allowlist", command))
		}
	}
	return nil
}

// RestrictCommand adds a command to the runtime denylist.
func (p *Policy) RestrictCommand(command string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.restricted[command] = struct{}{}
}

// AllowCommand removes a command from the runtime denylist.
func (p *Policy) AllowCommand(command string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.restricted, command)
}

// ValidateMessage runs the size and rate checks a transport applies to
// every inbound frame.
func (p *Policy) ValidateMessage(clientID string, size int) error {
	if err := p.ValidateMessageSize(size); err != nil {
		return err
	}
	return p.ValidateRateLimit(clientID, size)
}

// Stats returns the traffic snapshot for a client.
func (p *Policy) Stats(clientID string) ClientStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	w := p.clients[clientID]
	if w == nil {
		return ClientStats{}
	}
	return ClientStats{
		Messages:   w.messages,
		TotalBytes: w.totalBytes,
		InWindow:   len(w.timestamps),
	}
}

// ForgetClient drops a client's rate-limit state, typically on disconnect.
func (p *Policy) ForgetClient(clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.clients, clientID)
}
