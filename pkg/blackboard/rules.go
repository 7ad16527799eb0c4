package blackboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gobwas/glob"

	"github.com/tripsmith/tripsmith/pkg/config"
	"github.com/tripsmith/tripsmith/pkg/events"
	"github.com/tripsmith/tripsmith/pkg/models"
)

// ttlRule is a compiled default-TTL rule. Rules are evaluated in
// configuration order; the first match supplies the TTL.
type ttlRule struct {
	namespace models.Namespace // empty matches any namespace
	keys      glob.Glob        // nil matches any key
	ttl       time.Duration
}

// invalidationRule maps an inbound invalidation reason to the entries
// it purges.
type invalidationRule struct {
	name      string
	reason    glob.Glob
	namespace models.Namespace
	keys      glob.Glob
}

func compileTTLRules(rules []config.TTLRule) ([]ttlRule, error) {
	compiled := make([]ttlRule, 0, len(rules))
	for _, r := range rules {
		ns := models.Namespace(r.Namespace)
		if r.Namespace != "" && !ns.IsValid() {
			return nil, fmt.Errorf("%w: ttl rule namespace %q", ErrUnknownNamespace, r.Namespace)
		}
		var keys glob.Glob
		if r.KeyPattern != "" {
			g, err := glob.Compile(r.KeyPattern)
			if err != nil {
				return nil, fmt.Errorf("%w: ttl rule key pattern %q: %v", ErrInvalidPattern, r.KeyPattern, err)
			}
			keys = g
		}
		compiled = append(compiled, ttlRule{namespace: ns, keys: keys, ttl: r.TTL})
	}
	return compiled, nil
}

func compileInvalidationRules(rules []config.InvalidationRule) ([]invalidationRule, error) {
	compiled := make([]invalidationRule, 0, len(rules))
	for _, r := range rules {
		ns := models.Namespace(r.Namespace)
		if !ns.IsValid() {
			return nil, fmt.Errorf("%w: invalidation rule %q namespace %q", ErrUnknownNamespace, r.Name, r.Namespace)
		}
		reason, err := glob.Compile(r.ReasonPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalidation rule %q reason pattern %q: %v", ErrInvalidPattern, r.Name, r.ReasonPattern, err)
		}
		keys, err := glob.Compile(r.KeyPattern)
		if err != nil {
			return nil, fmt.Errorf("%w: invalidation rule %q key pattern %q: %v", ErrInvalidPattern, r.Name, r.KeyPattern, err)
		}
		compiled = append(compiled, invalidationRule{name: r.Name, reason: reason, namespace: ns, keys: keys})
	}
	return compiled, nil
}

// defaultTTL returns the TTL from the first matching configured rule, or
// zero when no rule matches (no expiry).
func (b *Blackboard) defaultTTL(ns models.Namespace, key string) time.Duration {
	for _, r := range b.ttlRules {
		if r.namespace != "" && r.namespace != ns {
			continue
		}
		if r.keys != nil && !r.keys.Match(key) {
			continue
		}
		return r.ttl
	}
	return 0
}

// handleInvalidate processes one state-invalidate event: every rule whose
// reason pattern matches purges its configured entry selection. Reasons
// that match no rule are no-ops.
func (b *Blackboard) handleInvalidate(ctx context.Context, env events.Envelope) error {
	payload, ok := env.Payload.(events.StateInvalidatePayload)
	if !ok {
		return fmt.Errorf("unexpected state-invalidate payload type %T", env.Payload)
	}

	matched := false
	for _, rule := range b.invRules {
		if !rule.reason.Match(payload.Reason) {
			continue
		}
		matched = true
		count, err := b.removeMatching(ctx, rule.namespace, rule.keys)
		if err != nil {
			slog.Error("Invalidation rule failed",
				"rule", rule.name,
				"reason", payload.Reason,
				"error", err)
			continue
		}
		slog.Info("Invalidation rule applied",
			"rule", rule.name,
			"reason", payload.Reason,
			"namespace", rule.namespace,
			"removed", count)
	}
	if !matched {
		slog.Debug("Invalidation reason matched no rules", "reason", payload.Reason)
	}
	return nil
}
