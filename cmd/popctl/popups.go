package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rexliu/popd/pkg/api"
	"github.com/rexliu/popd/pkg/delivery"
)

func pingCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("ping", flag.ExitOnError)
	t.bind(fs)
	_ = fs.Parse(args)

	raw, err := t.call(api.OpPing, nil)
	if err != nil {
		return err
	}
	var data struct {
		Now int64 `json:"now"`
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	fmt.Printf("daemon responded: now=%d\n", data.Now)
	return nil
}

func listCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	t.bind(fs)
	_ = fs.Parse(args)
	raw, err := t.call(api.OpListPopups, nil)
	if err != nil {
		return err
	}
	return t.print(raw)
}

func getCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	t.bind(fs)
	id := fs.String("id", "", "Popup id")
	_ = fs.Parse(args)
	raw, err := t.call(api.OpGetPopup, map[string]string{"id": *id})
	if err != nil {
		return err
	}
	return t.print(raw)
}

func createCommand(args []string) error {
	return mutateCommand("create", api.OpCreatePopup, args)
}

func updateCommand(args []string) error {
	return mutateCommand("update", api.OpUpdatePopup, args)
}

func mutateCommand(name, method string, args []string) error {
	var t target
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	t.bind(fs)
	filePath := fs.String("file", "", "Path to popup JSON (defaults to stdin)")
	inline := fs.String("json", "", "Inline popup JSON")
	_ = fs.Parse(args)

	payload, err := readPopupPayload(*filePath, *inline, os.Stdin)
	if err != nil {
		return err
	}
	raw, err := t.call(method, popupParams(payload))
	if err != nil {
		return err
	}
	return t.print(raw)
}

// readPopupPayload takes the popup JSON from file, then inline, then stdin.
func readPopupPayload(file, inline string, stdin io.Reader) (json.RawMessage, error) {
	var (
		payload []byte
		err     error
	)
	switch {
	case file != "":
		payload, err = os.ReadFile(file)
	case inline != "":
		payload = []byte(inline)
	default:
		payload, err = io.ReadAll(stdin)
	}
	if err != nil {
		return nil, err
	}
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 {
		return nil, fmt.Errorf("empty popup payload")
	}
	if !json.Valid(payload) {
		return nil, fmt.Errorf("popup payload is not valid JSON")
	}
	return payload, nil
}

func popupParams(payload json.RawMessage) map[string]json.RawMessage {
	return map[string]json.RawMessage{"popup": payload}
}

func deleteCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	t.bind(fs)
	id := fs.String("id", "", "Popup id")
	_ = fs.Parse(args)
	if _, err := t.call(api.OpDeletePopup, map[string]string{"id": *id}); err != nil {
		return err
	}
	fmt.Printf("deleted %s\n", *id)
	return nil
}

type pageFlags struct {
	page       *int
	privileged *bool
}

func bindPage(fs *flag.FlagSet) pageFlags {
	return pageFlags{
		page:       fs.Int("page", 0, "Page id being viewed"),
		privileged: fs.Bool("privileged", false, "Viewer is a logged-in privileged user"),
	}
}

func snapshotCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("snapshot", flag.ExitOnError)
	t.bind(fs)
	pf := bindPage(fs)
	_ = fs.Parse(args)
	raw, err := t.call(api.OpGetSnapshot, map[string]any{
		"pageId":             *pf.page,
		"viewerIsPrivileged": *pf.privileged,
	})
	if err != nil {
		return err
	}
	return t.print(raw)
}

func eligibleCommand(args []string) error {
	var t target
	fs := flag.NewFlagSet("eligible", flag.ExitOnError)
	t.bind(fs)
	pf := bindPage(fs)
	shown := fs.String("shown", "", "Comma-separated popup ids already shown this session")
	_ = fs.Parse(args)

	entries := make([]delivery.ShownEntry, 0)
	for _, id := range strings.Split(*shown, ",") {
		if id = strings.TrimSpace(id); id != "" {
			entries = append(entries, delivery.ShownEntry{ID: id, Epoch: delivery.SessionEpoch})
		}
	}
	raw, err := t.call(api.OpEligiblePopups, map[string]any{
		"pageId":             *pf.page,
		"viewerIsPrivileged": *pf.privileged,
		"shown":              entries,
	})
	if err != nil {
		return err
	}
	return t.print(raw)
}
