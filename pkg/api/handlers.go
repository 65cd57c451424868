// Package api exposes the popup service as named RPC operations.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/delivery"
	"github.com/rexliu/popd/pkg/ipc"
	"github.com/rexliu/popd/pkg/service"
)

// Operation names.
const (
	OpPing           = "ping"
	OpListPopups     = "list_popups"
	OpGetPopup       = "get_popup"
	OpCreatePopup    = "create_popup"
	OpUpdatePopup    = "update_popup"
	OpDeletePopup    = "delete_popup"
	OpGetSnapshot    = "get_snapshot"
	OpEligiblePopups = "eligible_popups"
)

// MutationHook runs after a successful create, update or delete.
type MutationHook func(ctx context.Context, message string)

// Handlers binds a Service to the RPC surface.
type Handlers struct {
	svc    *service.Service
	logger *slog.Logger
	after  MutationHook
	now    func() time.Time
}

// Option customizes Handlers.
type Option func(*Handlers)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) { h.logger = logger }
}

// WithMutationHook installs fn to run after each mutation.
func WithMutationHook(fn MutationHook) Option {
	return func(h *Handlers) { h.after = fn }
}

// New builds Handlers over svc.
func New(svc *service.Service, opts ...Option) *Handlers {
	h := &Handlers{svc: svc, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register installs every operation on srv.
func (h *Handlers) Register(srv *ipc.Server) {
	srv.Register(OpPing, h.ping)
	srv.Register(OpListPopups, h.listPopups)
	srv.Register(OpGetPopup, h.getPopup)
	srv.Register(OpCreatePopup, h.createPopup)
	srv.Register(OpUpdatePopup, h.updatePopup)
	srv.Register(OpDeletePopup, h.deletePopup)
	srv.Register(OpGetSnapshot, h.getSnapshot)
	srv.Register(OpEligiblePopups, h.eligiblePopups)
}

type idParams struct {
	ID string `json:"id"`
}

type popupParams struct {
	Popup json.RawMessage `json:"popup"`
}

type pageParams struct {
	PageID             int                   `json:"pageId"`
	ViewerIsPrivileged bool                  `json:"viewerIsPrivileged"`
	Shown              []delivery.ShownEntry `json:"shown"`
}

func (p pageParams) context() core.PageContext {
	return core.PageContext{PageID: p.PageID, ViewerIsPrivileged: p.ViewerIsPrivileged}
}

func (h *Handlers) ping(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	return map[string]any{"now": h.now().UnixMilli()}, nil
}

func (h *Handlers) listPopups(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	popups, err := h.svc.List(ctx)
	if err != nil {
		return nil, ToError(err)
	}
	return map[string]any{"popups": popups}, nil
}

func (h *Handlers) getPopup(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req idParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	p, err := h.svc.Get(ctx, req.ID)
	if err != nil {
		return nil, ToError(err)
	}
	return map[string]any{"popup": p}, nil
}

func (h *Handlers) createPopup(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req popupParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	p, err := h.svc.Create(ctx, req.Popup)
	if err != nil {
		return nil, ToError(err)
	}
	h.mutated(ctx, "create popup "+p.ID)
	return map[string]any{"popup": p}, nil
}

func (h *Handlers) updatePopup(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req popupParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	p, err := h.svc.Update(ctx, req.Popup)
	if err != nil {
		return nil, ToError(err)
	}
	h.mutated(ctx, "update popup "+p.ID)
	return map[string]any{"popup": p}, nil
}

func (h *Handlers) deletePopup(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req idParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	if err := h.svc.Delete(ctx, req.ID); err != nil {
		return nil, ToError(err)
	}
	h.mutated(ctx, "delete popup "+req.ID)
	return map[string]any{"deleted": true}, nil
}

func (h *Handlers) getSnapshot(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req pageParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	snap, err := h.svc.Snapshot(ctx, req.context())
	if err != nil {
		return nil, ToError(err)
	}
	return snap, nil
}

func (h *Handlers) eligiblePopups(ctx context.Context, params json.RawMessage) (any, *ipc.Error) {
	var req pageParams
	if rpcErr := decode(params, &req); rpcErr != nil {
		return nil, rpcErr
	}
	history := delivery.NewMemoryHistory(req.Shown...)
	popups, err := h.svc.Eligible(ctx, req.context(), history)
	if err != nil {
		return nil, ToError(err)
	}
	return map[string]any{"popups": popups}, nil
}

func (h *Handlers) mutated(ctx context.Context, message string) {
	h.logger.Debug("mutation applied", "message", message)
	if h.after != nil {
		h.after(ctx, message)
	}
}

func decode(params json.RawMessage, out any) *ipc.Error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, out); err != nil {
		return ipc.Errorf(ipc.CodeInvalidRequest, "invalid params", map[string]any{"reason": err.Error()})
	}
	return nil
}

// ToError maps service errors onto protocol error codes.
func ToError(err error) *ipc.Error {
	var (
		validation *core.ValidationError
		notFound   *core.NotFoundError
		conflict   *core.ConflictError
	)
	switch {
	case errors.As(err, &validation):
		return ipc.Errorf(ipc.CodeValidationFailed, validation.Message, map[string]any{"field": validation.Field})
	case errors.As(err, &notFound):
		return ipc.Errorf(ipc.CodeNotFound, err.Error(), map[string]any{"id": notFound.ID})
	case errors.As(err, &conflict):
		return ipc.Errorf(ipc.CodeConflict, err.Error(), map[string]any{
			"expected": conflict.Expected,
			"current":  conflict.Current,
		})
	case errors.Is(err, core.ErrValidation):
		return ipc.Errorf(ipc.CodeValidationFailed, err.Error(), nil)
	case errors.Is(err, core.ErrNotFound):
		return ipc.Errorf(ipc.CodeNotFound, err.Error(), nil)
	case errors.Is(err, core.ErrConflict):
		return ipc.Errorf(ipc.CodeConflict, err.Error(), nil)
	case errors.Is(err, core.ErrStorage):
		return ipc.Errorf(ipc.CodeStorageError, err.Error(), nil)
	default:
		return ipc.Errorf(ipc.CodeInternal, err.Error(), nil)
	}
}
