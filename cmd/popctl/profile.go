package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rexliu/popd/pkg/config"
	gitvcs "github.com/rexliu/popd/pkg/vcs/git"
)

func initCommand(args []string) error {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	profilePath := fs.String("profile", defaultProfile, "Profile directory")
	name := fs.String("name", "dev", "Profile name")
	backend := fs.String("backend", config.BackendSQLite, "Storage backend (sqlite, jsonfile, memory)")
	force := fs.Bool("force", false, "Overwrite existing config if present")
	_ = fs.Parse(args)

	if err := os.MkdirAll(*profilePath, 0o700); err != nil {
		return err
	}
	configPath := filepath.Join(*profilePath, config.FileName)
	if _, err := os.Stat(configPath); err == nil && !*force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}
	cfg := config.DefaultProfile(*name)
	cfg.Storage.Backend = *backend
	if err := config.Save(configPath, cfg); err != nil {
		return err
	}
	fmt.Printf("initialized profile %s at %s\n", cfg.ProfileName, *profilePath)
	return nil
}

func diagCommand(args []string) error {
	fs := flag.NewFlagSet("diag", flag.ExitOnError)
	profile := fs.String("profile", defaultProfile, "Profile directory")
	_ = fs.Parse(args)
	cfg, err := config.LoadProfile(*profile)
	if err != nil {
		return err
	}
	fmt.Printf("Profile: %s\n", cfg.ProfileName)
	fmt.Printf("Config: %s\n", filepath.Join(*profile, config.FileName))
	fmt.Printf("Backend: %s (unit %s)\n", cfg.Storage.Backend, cfg.Storage.Unit)
	switch cfg.Storage.Backend {
	case config.BackendSQLite:
		fmt.Printf("DB Path: %s\n", config.ResolvePath(*profile, cfg.Storage.DBPath))
	case config.BackendJSONFile:
		fmt.Printf("JSON Path: %s\n", config.ResolvePath(*profile, cfg.Storage.JSONPath))
	}
	fmt.Printf("Socket: %s (token=%t)\n", config.ResolvePath(*profile, cfg.IPC.SocketPath), cfg.IPC.RequireToken)
	if cfg.Logging.FilePath != "" {
		fmt.Printf("Log File: %s\n", config.ResolvePath(*profile, cfg.Logging.FilePath))
	}
	fmt.Printf("VCS Branch: %s (enabled=%t autoPush=%t)\n", cfg.VCS.Branch, cfg.VCS.Enabled, cfg.VCS.AutoPush)
	if cfg.VCS.Remote.URL != "" {
		fmt.Printf("Remote URL: %s\n", cfg.VCS.Remote.URL)
	}
	return nil
}

func remoteCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: popctl remote <set|show> [options]")
	}
	sub := args[0]
	switch sub {
	case "set":
		fs := flag.NewFlagSet("remote set", flag.ExitOnError)
		profile := fs.String("profile", defaultProfile, "Profile directory")
		url := fs.String("url", "", "Remote Git URL")
		_ = fs.Parse(args[1:])
		if *url == "" {
			return fmt.Errorf("--url is required")
		}
		cfg, err := config.LoadProfile(*profile)
		if err != nil {
			return err
		}
		cfg.VCS.Remote.URL = *url
		cfg.VCS.Enabled = true
		if err := config.Save(filepath.Join(*profile, config.FileName), cfg); err != nil {
			return err
		}
		repo, err := gitvcs.Open(*profile, cfg.VCS.Branch)
		if err != nil {
			return err
		}
		if err := repo.SetRemote(*url); err != nil {
			return err
		}
		fmt.Printf("remote set to %s\n", *url)
		return nil
	case "show":
		fs := flag.NewFlagSet("remote show", flag.ExitOnError)
		profile := fs.String("profile", defaultProfile, "Profile directory")
		_ = fs.Parse(args[1:])
		cfg, err := config.LoadProfile(*profile)
		if err != nil {
			return err
		}
		if cfg.VCS.Remote.URL == "" {
			fmt.Println("remote not configured")
			return nil
		}
		fmt.Printf("remote URL: %s\n", cfg.VCS.Remote.URL)
		if repo, err := gitvcs.Open(*profile, cfg.VCS.Branch); err == nil {
			if url, err := repo.RemoteURL(); err == nil && url != cfg.VCS.Remote.URL {
				fmt.Printf("repository origin: %s (applied on next daemon start)\n", url)
			} else if errors.Is(err, gitvcs.ErrNoRemote) {
				fmt.Println("repository origin: unset (applied on next daemon start)")
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown remote subcommand %q", sub)
	}
}

func vcsCommand(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: popctl vcs <push|pull|status> [options]")
	}
	sub := args[0]
	var t target
	fs := flag.NewFlagSet("vcs", flag.ExitOnError)
	t.bind(fs)
	_ = fs.Parse(args[1:])

	var method string
	switch sub {
	case "push":
		method = "vcs_push"
	case "pull":
		method = "vcs_pull"
	case "status":
		method = "vcs_status"
	default:
		return fmt.Errorf("unknown vcs subcommand %q", sub)
	}
	raw, err := t.call(method, nil)
	if err != nil {
		return err
	}
	return t.print(raw)
}
