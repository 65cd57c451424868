// Package delivery decides which popups a page view should display.
//
// The engine is a pure function of the stored collection, the page context
// and a read-only view of the client's display history. It never records
// that a popup was shown; callers do that once the popup has opened.
package delivery

import "github.com/rexliu/popd/pkg/core"

// SessionEpoch is the history epoch used by the session frequency.
const SessionEpoch = "session"

// History reports whether a popup was already shown to this client within an
// epoch. Implementations are scoped per client.
type History interface {
	Shown(popupID, epoch string) bool
}

// Policy reports whether a popup must be suppressed given the history.
type Policy func(popupID string, history History) bool

// SessionPolicy suppresses a popup already shown during the current session.
func SessionPolicy(popupID string, history History) bool {
	return history.Shown(popupID, SessionEpoch)
}

// AlwaysPolicy never suppresses.
func AlwaysPolicy(string, History) bool {
	return false
}

// Engine evaluates eligibility. Its policy table is fixed at construction, so
// one engine may serve concurrent page renders.
type Engine struct {
	policies map[core.DisplayFrequency]Policy
	fallback Policy
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPolicy registers or replaces the policy for a frequency.
func WithPolicy(freq core.DisplayFrequency, policy Policy) Option {
	return func(e *Engine) {
		e.policies[freq] = policy
	}
}

// WithFallback sets the policy applied to unregistered frequencies.
func WithFallback(policy Policy) Option {
	return func(e *Engine) {
		e.fallback = policy
	}
}

// NewEngine returns an engine knowing the session and always frequencies.
// Unknown frequencies are treated like session.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		policies: map[core.DisplayFrequency]Policy{
			core.FrequencySession: SessionPolicy,
			core.FrequencyAlways:  AlwaysPolicy,
		},
		fallback: SessionPolicy,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Eligible returns the popups to display on this page view, in collection
// order. A nil history means nothing has been shown yet.
func (e *Engine) Eligible(popups core.Collection, page core.PageContext, history History) core.Collection {
	if history == nil {
		history = noHistory{}
	}
	out := core.Collection{}
	for _, p := range popups {
		if p.ID == "" {
			continue
		}
		if p.Deactivated {
			continue
		}
		if p.TestModeEnabled && !page.ViewerIsPrivileged {
			continue
		}
		if !p.TargetsPage(page.PageID) {
			continue
		}
		if e.policyFor(p.DisplayFrequency)(p.ID, history) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *Engine) policyFor(freq core.DisplayFrequency) Policy {
	if policy, ok := e.policies[freq]; ok && policy != nil {
		return policy
	}
	if e.fallback != nil {
		return e.fallback
	}
	return SessionPolicy
}

type noHistory struct{}

func (noHistory) Shown(string, string) bool { return false }
