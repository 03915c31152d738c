// Package access decides whether a session may mutate shared city state.
//
// The rule is:
//
//	!embedded && ((adminClaim && hostAllowed && pathAllowed) || (devHost && localOverride))
//
// The admin claim arrives asynchronously, so a new Gate starts closed.
package access

import (
	"context"
	"sync"

	"github.com/okian/globepins/internal/domain/errkind"
	"github.com/okian/globepins/pkg/logger"
	"github.com/okian/globepins/pkg/metrics"
)

// Gate is the single mutation permission check.
type Gate struct {
	mu        sync.RWMutex
	policy    Policy
	env       Env
	admin     bool
	allowed   bool
	resolver  ClaimResolver
	listeners map[int]func(bool)
	nextID    int
	log       logger.Logger
}

// New creates a gate for env. The admin claim starts false.
func New(policy Policy, env Env, opts ...Option) *Gate {
	g := &Gate{
		policy:    policy,
		env:       env,
		listeners: make(map[int]func(bool)),
		log:       logger.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.allowed = g.evaluate()
	return g
}

// CanMutate reports the current decision.
func (g *Gate) CanMutate() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.allowed
}

// Check returns ErrPermissionDenied when the gate is closed.
func (g *Gate) Check(op string) error {
	if g.CanMutate() {
		return nil
	}
	metrics.RecordGateDenied(op)
	return errkind.New(op, errkind.ErrPermissionDenied)
}

// SetAdminClaim records the outcome of an authentication callback and
// re-evaluates the gate.
func (g *Gate) SetAdminClaim(admin bool) {
	g.mu.Lock()
	g.admin = admin
	g.mu.Unlock()
	g.reevaluate()
}

// SetEnv replaces the execution context and re-evaluates the gate.
func (g *Gate) SetEnv(env Env) {
	g.mu.Lock()
	g.env = env
	g.mu.Unlock()
	g.reevaluate()
}

// Authenticate resolves token into an admin claim. A rejected token clears
// the claim.
func (g *Gate) Authenticate(ctx context.Context, token string) error {
	if g.resolver == nil {
		return ErrNoResolver
	}
	admin, err := g.resolver.Resolve(ctx, token)
	if err != nil {
		g.log.Warn(ctx, "credential rejected", logger.Error(err))
		g.SetAdminClaim(false)
		return err
	}
	g.SetAdminClaim(admin)
	return nil
}

// OnChange registers fn to run whenever the decision flips. The returned
// func removes it.
func (g *Gate) OnChange(fn func(allowed bool)) (cancel func()) {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()
	return func() {
		g.mu.Lock()
		delete(g.listeners, id)
		g.mu.Unlock()
	}
}

func (g *Gate) reevaluate() {
	g.mu.Lock()
	prev := g.allowed
	g.allowed = g.evaluate()
	now := g.allowed
	fns := make([]func(bool), 0, len(g.listeners))
	for _, fn := range g.listeners {
		fns = append(fns, fn)
	}
	g.mu.Unlock()

	if prev == now {
		return
	}
	g.log.Info(context.Background(), "mutation gate changed", logger.Bool("allowed", now))
	for _, fn := range fns {
		fn(now)
	}
}

// evaluate applies the rule. Must be called with g.mu held.
func (g *Gate) evaluate() bool {
	if g.env.Embedded() {
		return false
	}
	admin := g.admin &&
		hostAllowed(g.env.Host, g.policy.AdminHosts) &&
		pathAllowed(g.env.Path, g.policy.AdminPaths)
	dev := g.env.LocalOverride && hostAllowed(g.env.Host, g.policy.DevHosts)
	return admin || dev
}
