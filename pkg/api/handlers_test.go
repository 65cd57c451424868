package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rexliu/popd/pkg/core"
	"github.com/rexliu/popd/pkg/ipc"
	"github.com/rexliu/popd/pkg/service"
	"github.com/rexliu/popd/pkg/storage/memory"
)

type harness struct {
	srv     *ipc.Server
	hooks   []string
	counter int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New(),
		service.WithLogger(logger),
		service.WithIDGenerator(func(core.Collection) string {
			h.counter++
			return fmt.Sprintf("p%d", h.counter)
		}),
	)
	h.srv = ipc.NewServer(logger)
	New(svc, WithLogger(logger), WithMutationHook(func(_ context.Context, msg string) {
		h.hooks = append(h.hooks, msg)
	})).Register(h.srv)
	return h
}

func (h *harness) call(t *testing.T, method string, params string) ipc.Response {
	t.Helper()
	req := map[string]any{"id": "t", "type": method}
	if params != "" {
		req["params"] = json.RawMessage(params)
	}
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return h.srv.Dispatch(context.Background(), payload)
}

func (h *harness) ok(t *testing.T, method, params string, out any) {
	t.Helper()
	resp := h.call(t, method, params)
	require.True(t, resp.OK, "%s failed: %+v", method, resp.Error)
	if out != nil {
		require.NoError(t, json.Unmarshal(resp.Result, out))
	}
}

func (h *harness) fails(t *testing.T, method, params, code string) *ipc.Error {
	t.Helper()
	resp := h.call(t, method, params)
	require.False(t, resp.OK)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
	return resp.Error
}

type popupResult struct {
	Popup core.Popup `json:"popup"`
}

type popupsResult struct {
	Popups core.Collection `json:"popups"`
}

func TestRegisterExposesOperations(t *testing.T) {
	h := newHarness(t)
	require.ElementsMatch(t, []string{
		OpPing, OpListPopups, OpGetPopup, OpCreatePopup,
		OpUpdatePopup, OpDeletePopup, OpGetSnapshot, OpEligiblePopups,
	}, h.srv.Methods())

	var pong map[string]int64
	h.ok(t, OpPing, "", &pong)
	require.Positive(t, pong["now"])
}

func TestCrudLifecycle(t *testing.T) {
	h := newHarness(t)

	var list popupsResult
	h.ok(t, OpListPopups, "", &list)
	require.NotNil(t, list.Popups)
	require.Empty(t, list.Popups)

	var created popupResult
	h.ok(t, OpCreatePopup, `{"popup":{"id":"ignored","title":"Hello"}}`, &created)
	require.Equal(t, "p1", created.Popup.ID)
	require.Equal(t, "Hello", created.Popup.Title)
	require.Equal(t, core.FrequencySession, created.Popup.DisplayFrequency)

	var fetched popupResult
	h.ok(t, OpGetPopup, `{"id":"p1"}`, &fetched)
	require.Equal(t, created.Popup, fetched.Popup)

	var updated popupResult
	h.ok(t, OpUpdatePopup, `{"popup":"{\"id\":\"p1\",\"title\":\"Bye\",\"displayFrequency\":\"always\"}"}`, &updated)
	require.Equal(t, "p1", updated.Popup.ID)
	require.Equal(t, "Bye", updated.Popup.Title)
	require.Equal(t, core.FrequencyAlways, updated.Popup.DisplayFrequency)

	var deleted map[string]bool
	h.ok(t, OpDeletePopup, `{"id":"p1"}`, &deleted)
	require.True(t, deleted["deleted"])
	h.ok(t, OpDeletePopup, `{"id":"p1"}`, &deleted)

	h.fails(t, OpGetPopup, `{"id":"p1"}`, ipc.CodeNotFound)
	require.Equal(t, []string{"create popup p1", "update popup p1", "delete popup p1", "delete popup p1"}, h.hooks)
}

func TestErrorCodes(t *testing.T) {
	h := newHarness(t)

	rpcErr := h.fails(t, OpCreatePopup, `{"popup":{"content":"x"}}`, ipc.CodeValidationFailed)
	require.Equal(t, "title", rpcErr.Details["field"])

	h.fails(t, OpCreatePopup, "", ipc.CodeValidationFailed)
	h.fails(t, OpGetPopup, `{}`, ipc.CodeValidationFailed)
	h.fails(t, OpGetPopup, `[1,2]`, ipc.CodeInvalidRequest)
	h.fails(t, OpUpdatePopup, `{"popup":{"id":"nope","title":"x"}}`, ipc.CodeNotFound)
	require.Empty(t, h.hooks)
}

func TestSnapshotAndEligible(t *testing.T) {
	h := newHarness(t)
	h.ok(t, OpCreatePopup, `{"popup":{"title":"everywhere"}}`, nil)
	h.ok(t, OpCreatePopup, `{"popup":{"title":"page 7","showOnAllPages":false,"showOnThesePages":[3,7]}}`, nil)
	h.ok(t, OpCreatePopup, `{"popup":{"title":"test","testModeEnabled":true}}`, nil)
	h.ok(t, OpCreatePopup, `{"popup":{"title":"off","deactivated":true}}`, nil)

	var snap struct {
		Popups             core.Collection `json:"popups"`
		PageID             int             `json:"pageId"`
		ViewerIsPrivileged bool            `json:"viewerIsPrivileged"`
	}
	h.ok(t, OpGetSnapshot, `{"pageId":7,"viewerIsPrivileged":true}`, &snap)
	require.Len(t, snap.Popups, 4)
	require.Equal(t, 7, snap.PageID)
	require.True(t, snap.ViewerIsPrivileged)

	ids := func(c core.Collection) []string {
		out := make([]string, 0, len(c))
		for _, p := range c {
			out = append(out, p.ID)
		}
		return out
	}

	var res popupsResult
	h.ok(t, OpEligiblePopups, `{"pageId":7}`, &res)
	require.Equal(t, []string{"p1", "p2"}, ids(res.Popups))

	h.ok(t, OpEligiblePopups, `{"pageId":4,"viewerIsPrivileged":true}`, &res)
	require.Equal(t, []string{"p1", "p3"}, ids(res.Popups))

	h.ok(t, OpEligiblePopups, `{"pageId":3,"shown":[{"id":"p1","epoch":"session"}]}`, &res)
	require.Equal(t, []string{"p2"}, ids(res.Popups))
}

func TestToError(t *testing.T) {
	cases := []struct {
		err  error
		code string
	}{
		{&core.ValidationError{Field: "title", Message: "title is required"}, ipc.CodeValidationFailed},
		{fmt.Errorf("get: %w", &core.NotFoundError{ID: "x"}), ipc.CodeNotFound},
		{&core.ConflictError{Expected: 1, Current: 2}, ipc.CodeConflict},
		{core.StorageError("load", errors.New("disk")), ipc.CodeStorageError},
		{errors.New("boom"), ipc.CodeInternal},
	}
	for _, tc := range cases {
		require.Equal(t, tc.code, ToError(tc.err).Code, tc.err.Error())
	}
	conflict := ToError(&core.ConflictError{Expected: 1, Current: 2})
	require.EqualValues(t, 2, conflict.Details["current"])
}
