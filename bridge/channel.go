package bridge

import (
	"context"
	"strings"

	"github.com/c360/alertstream/errors"
)

// Channel is a resolved delivery destination.
type Channel struct {
	ID   string
	Name string
}

// Strategy attempts one way of turning a target reference into a channel.
// Returning false means "not mine, try the next one".
type Strategy func(ctx context.Context, target string) (*Channel, bool)

// Resolver turns target references into channels. Strategies are tried in
// order over the WHOLE reference set: the first strategy that yields at
// least one channel wins, later strategies are never consulted.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds a resolver from strategies, tried in the given order.
func NewResolver(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// ResolveAll resolves a target list. Each strategy is applied to every
// reference; the first strategy producing a non-empty channel set
// short-circuits the rest. Duplicate channel IDs are collapsed.
func (r *Resolver) ResolveAll(ctx context.Context, targets []string) ([]*Channel, error) {
	refs := make([]string, 0, len(targets))
	for _, target := range targets {
		if target = strings.TrimSpace(target); target != "" {
			refs = append(refs, target)
		}
	}
	if len(refs) == 0 {
		return nil, errors.WrapInvalid(errors.ErrNoTarget, "Resolver", "ResolveAll", "no targets")
	}

	for _, strategy := range r.strategies {
		seen := make(map[string]struct{}, len(refs))
		channels := make([]*Channel, 0, len(refs))
		for _, ref := range refs {
			channel, ok := strategy(ctx, ref)
			if !ok {
				continue
			}
			if _, dup := seen[channel.ID]; dup {
				continue
			}
			seen[channel.ID] = struct{}{}
			channels = append(channels, channel)
		}
		if len(channels) > 0 {
			return channels, nil
		}
	}
	return nil, errors.WrapInvalid(errors.ErrNoChannel, "Resolver", "ResolveAll", strings.Join(refs, ", "))
}

// Resolve resolves a single target reference.
func (r *Resolver) Resolve(ctx context.Context, target string) (*Channel, error) {
	channels, err := r.ResolveAll(ctx, []string{target})
	if err != nil {
		return nil, err
	}
	return channels[0], nil
}

// MappedNames resolves targets through a configured alias table, e.g. the
// "staff" channel of a bridge's channel mapping.
func MappedNames(mapping map[string]string) Strategy {
	return func(_ context.Context, target string) (*Channel, bool) {
		id, ok := mapping[strings.ToLower(target)]
		if !ok {
			return nil, false
		}
		return &Channel{ID: id, Name: target}, true
	}
}

// Named resolves targets by exact channel name using a lookup function
// supplied by the bridge.
func Named(lookup func(name string) (string, bool)) Strategy {
	return func(_ context.Context, target string) (*Channel, bool) {
		id, ok := lookup(target)
		if !ok {
			return nil, false
		}
		return &Channel{ID: id, Name: target}, true
	}
}

// RawIDs resolves targets that are already numeric channel IDs.
func RawIDs() Strategy {
	return func(_ context.Context, target string) (*Channel, bool) {
		if target == "" {
			return nil, false
		}
		for _, c := range target {
			if c < '0' || c > '9' {
				return nil, false
			}
		}
		return &Channel{ID: target}, true
	}
}
