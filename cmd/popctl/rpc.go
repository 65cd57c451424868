package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rexliu/popd/pkg/config"
	"github.com/rexliu/popd/pkg/ipc"
)

const defaultProfile = "./_dev_profile"

type target struct {
	profile string
	socket  string
	output  string
	timeout time.Duration
}

func (t *target) bind(fs *flag.FlagSet) {
	fs.StringVar(&t.profile, "profile", defaultProfile, "Profile directory")
	fs.StringVar(&t.socket, "socket", "", "Override socket path")
	fs.StringVar(&t.output, "output", "json", "Output format (json, yaml)")
	fs.DurationVar(&t.timeout, "timeout", 10*time.Second, "Request timeout")
}

func (t *target) client() (*ipc.Client, error) {
	cfg, err := config.LoadProfile(t.profile)
	if err != nil && t.socket == "" {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config not found in %s (run 'popctl init --profile %s')", t.profile, t.profile)
		}
		return nil, fmt.Errorf("load config: %w", err)
	}
	c := &ipc.Client{SocketPath: t.socket}
	if cfg != nil {
		if c.SocketPath == "" {
			c.SocketPath = config.ResolvePath(t.profile, cfg.IPC.SocketPath)
		}
		if cfg.IPC.RequireToken {
			c.Token = cfg.IPC.Token
		}
	}
	return c, nil
}

func (t *target) call(method string, params any) (json.RawMessage, error) {
	c, err := t.client()
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		var rpcErr *ipc.Error
		if errors.As(err, &rpcErr) {
			return nil, fmt.Errorf("daemon error: %s (%s)", rpcErr.Message, rpcErr.Code)
		}
		return nil, err
	}
	return resp.Result, nil
}

func (t *target) print(raw json.RawMessage) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	var (
		out []byte
		err error
	)
	switch t.output {
	case "yaml":
		out, err = yaml.Marshal(v)
	case "json", "":
		out, err = json.MarshalIndent(v, "", "  ")
	default:
		return fmt.Errorf("unknown output format %q", t.output)
	}
	if err != nil {
		return err
	}
	fmt.Println(strings.TrimRight(string(out), "\n"))
	return nil
}
