// Package service implements the popup registry operations on top of a
// storage.Store. Every operation reloads the collection; nothing is cached
// between calls.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/delivery"
	"github.com/rexliu/popd/pkg/storage"
)

// Service orchestrates sanitizing and persisting popups.
type Service struct {
	store     storage.Store
	sanitizer *core.Sanitizer
	engine    *delivery.Engine
	expander  delivery.Expander
	logger    *slog.Logger
	newID     func(core.Collection) string
}

// Option customizes a Service.
type Option func(*Service)

// WithLogger sets the logger used for mutation records.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithEngine overrides the delivery engine.
func WithEngine(engine *delivery.Engine) Option {
	return func(s *Service) { s.engine = engine }
}

// WithExpander sets the content macro renderer used for snapshots.
func WithExpander(expander delivery.Expander) Option {
	return func(s *Service) { s.expander = expander }
}

// WithIDGenerator replaces the popup id generator.
func WithIDGenerator(fn func(core.Collection) string) Option {
	return func(s *Service) { s.newID = fn }
}

// New builds a Service over store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		sanitizer: core.NewSanitizer(),
		engine:    delivery.NewEngine(),
		expander:  delivery.NoopExpander,
		logger:    slog.Default(),
		newID:     core.NewUniquePopupID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every popup in storage order.
func (s *Service) List(ctx context.Context) (core.Collection, error) {
	popups, _, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return popups, nil
}

// Get returns the popup with id.
func (s *Service) Get(ctx context.Context, id string) (core.Popup, error) {
	id, err := s.requireID(id)
	if err != nil {
		return core.Popup{}, err
	}
	popups, _, err := s.store.Load(ctx)
	if err != nil {
		return core.Popup{}, err
	}
	idx := popups.Index(id)
	if idx < 0 {
		return core.Popup{}, &core.NotFoundError{ID: id}
	}
	return popups[idx], nil
}

// Create sanitizes raw, assigns a fresh id and appends the popup. Any id in
// the payload is ignored.
func (s *Service) Create(ctx context.Context, raw json.RawMessage) (core.Popup, error) {
	p, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return core.Popup{}, err
	}
	popups, version, err := s.store.Load(ctx)
	if err != nil {
		return core.Popup{}, err
	}
	p.ID = s.newID(popups)
	popups = append(popups, p)
	if _, err := s.store.Save(ctx, popups, version); err != nil {
		return core.Popup{}, err
	}
	s.logger.Info("popup created", "id", p.ID, "count", len(popups))
	return p, nil
}

// Update replaces the popup whose id the payload names, keeping its position.
func (s *Service) Update(ctx context.Context, raw json.RawMessage) (core.Popup, error) {
	p, err := s.sanitizer.Sanitize(raw)
	if err != nil {
		return core.Popup{}, err
	}
	id, err := s.requireID(p.ID)
	if err != nil {
		return core.Popup{}, err
	}
	popups, version, err := s.store.Load(ctx)
	if err != nil {
		return core.Popup{}, err
	}
	idx := popups.Index(id)
	if idx < 0 {
		return core.Popup{}, &core.NotFoundError{ID: id}
	}
	p.ID = popups[idx].ID
	popups[idx] = p
	if _, err := s.store.Save(ctx, popups, version); err != nil {
		return core.Popup{}, err
	}
	s.logger.Info("popup updated", "id", p.ID)
	return p, nil
}

// Delete removes every popup with id. Deleting a missing id succeeds.
func (s *Service) Delete(ctx context.Context, id string) error {
	id, err := s.requireID(id)
	if err != nil {
		return err
	}
	popups, version, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	kept := make(core.Collection, 0, len(popups))
	for _, p := range popups {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if _, err := s.store.Save(ctx, kept, version); err != nil {
		return err
	}
	s.logger.Info("popup deleted", "id", id, "removed", len(popups)-len(kept))
	return nil
}

// Snapshot returns the rendering-facing payload for one page view.
func (s *Service) Snapshot(ctx context.Context, page core.PageContext) (delivery.Snapshot, error) {
	popups, _, err := s.store.Load(ctx)
	if err != nil {
		return delivery.Snapshot{}, err
	}
	return delivery.BuildSnapshot(popups, page, s.expander), nil
}

// Eligible runs the delivery engine against the stored collection.
func (s *Service) Eligible(ctx context.Context, page core.PageContext, history delivery.History) (core.Collection, error) {
	snap, err := s.Snapshot(ctx, page)
	if err != nil {
		return nil, err
	}
	return s.engine.Eligible(snap.Popups, page, history), nil
}

// Version reports the store's current version token.
func (s *Service) Version(ctx context.Context) (storage.Version, error) {
	_, version, err := s.store.Load(ctx)
	return version, err
}

// Restore replaces the whole collection with records taken from an external
// snapshot. Every record passes through the sanitizer and must carry a
// unique non-empty id; one bad record rejects the batch and nothing is saved.
// The save is conditional on expected.
func (s *Service) Restore(ctx context.Context, records []json.RawMessage, expected storage.Version) (core.Collection, error) {
	popups := make(core.Collection, 0, len(records))
	seen := make(map[string]int, len(records))
	for i, raw := range records {
		p, err := s.sanitizer.Sanitize(raw)
		if err != nil {
			var invalid *core.ValidationError
			if errors.As(err, &invalid) {
				return nil, &core.ValidationError{
					Field:   fmt.Sprintf("popups[%d].%s", i, invalid.Field),
					Message: fmt.Sprintf("record %d: %s", i, invalid.Message),
				}
			}
			return nil, err
		}
		id, err := s.requireID(p.ID)
		if err != nil {
			return nil, &core.ValidationError{
				Field:   fmt.Sprintf("popups[%d].id", i),
				Message: fmt.Sprintf("record %d: popup id required", i),
			}
		}
		if first, dup := seen[id]; dup {
			return nil, &core.ValidationError{
				Field:   fmt.Sprintf("popups[%d].id", i),
				Message: fmt.Sprintf("records %d and %d share id %q", first, i, id),
			}
		}
		seen[id] = i
		p.ID = id
		popups = append(popups, p)
	}
	if _, err := s.store.Save(ctx, popups, expected); err != nil {
		return nil, err
	}
	s.logger.Info("popups restored", "count", len(popups))
	return popups, nil
}

func (s *Service) requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", &core.ValidationError{Field: "id", Message: "popup id required"}
	}
	return id, nil
}
