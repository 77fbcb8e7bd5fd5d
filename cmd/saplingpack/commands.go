package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/phanxgames/sapling"
	"github.com/phanxgames/sapling/project"
	"github.com/phanxgames/sapling/storage"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
)

func runValidate(ctx context.Context, e *env, args []string) error {
	var paths []string
	flagSet := pflag.NewFlagSet("validate", pflag.ContinueOnError)
	flagSet.StringArrayVar(&paths, "manifest-path", nil,
		"gjson path into the project selecting resource ids (repeatable); when set the project is not decoded")
	rest, err := parseCommand(e, "validate", flagSet, args, 1)
	if err != nil {
		return err
	}

	data, err := storage.ReadBundleFile(rest[0])
	if err != nil {
		return err
	}
	if len(paths) > 0 {
		err = validateRaw(data, paths)
	} else {
		err = validateProject(ctx, e, data)
	}
	var malformed *sapling.MalformedBundleError
	if errors.As(err, &malformed) {
		fmt.Fprintln(e.stdout, failStyle.Render("malformed"))
		for _, id := range malformed.Missing {
			fmt.Fprintf(e.stdout, "  missing %s\n", id)
		}
		return err
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, okStyle.Render("ok"))
	return nil
}

func validateRaw(data []byte, paths []string) error {
	b, err := sapling.ParseBundle[json.RawMessage](data)
	if err != nil {
		return err
	}
	return sapling.ValidateBundle(b, sapling.JSONPathManifest[json.RawMessage](paths...))
}

// validateProject checks the manifest and then loads the bundle so that
// every resource is decoded once.
func validateProject(ctx context.Context, e *env, data []byte) error {
	b, err := sapling.ParseBundle[*project.Project](data)
	if err != nil {
		return err
	}
	if b.Project == nil {
		return fmt.Errorf("bundle has no project")
	}
	if err := sapling.ValidateBundle(b, project.Manifest); err != nil {
		return err
	}
	opts := project.StateOptions(nil)
	opts.HistoryLimit = e.cfg.History.Limit
	opts.Logger = e.logger
	sm := sapling.NewStateManager(opts)
	if err := sm.LoadBundle(ctx, b); err != nil {
		return err
	}
	e.logger.Debug("bundle loaded", "rooms", len(b.Project.Rooms), "resources", sm.Resources().Len())
	return nil
}

func runConvert(_ context.Context, e *env, args []string) error {
	flagSet := pflag.NewFlagSet("convert", pflag.ContinueOnError)
	rest, err := parseCommand(e, "convert", flagSet, args, 2)
	if err != nil {
		return err
	}
	data, err := storage.ReadBundleFile(rest[0])
	if err != nil {
		return err
	}
	if err := storage.WriteBundleFile(rest[1], data); err != nil {
		return err
	}
	e.logger.Debug("converted", "in", rest[0], "out", rest[1], "bytes", len(data))
	return nil
}

// storeFlags adds --db and --key with defaults from the config.
func storeFlags(e *env, flagSet *pflag.FlagSet, db, key *string) {
	flagSet.StringVar(db, "db", e.cfg.Storage.Path, "local store database")
	if key != nil {
		flagSet.StringVar(key, "key", e.cfg.Storage.Key, "bundle key")
	}
}

func runSave(ctx context.Context, e *env, args []string) error {
	var db, key, compression string
	flagSet := pflag.NewFlagSet("save", pflag.ContinueOnError)
	storeFlags(e, flagSet, &db, &key)
	flagSet.StringVar(&compression, "compression", "zstd", "none, lz4 or zstd")
	rest, err := parseCommand(e, "save", flagSet, args, 1)
	if err != nil {
		return err
	}
	c, err := storage.ParseCompression(compression)
	if err != nil {
		return err
	}
	data, err := storage.ReadBundleFile(rest[0])
	if err != nil {
		return err
	}
	s, err := storage.Open(ctx, db)
	if err != nil {
		return err
	}
	defer s.Close()
	s.Compression = c
	if err := s.Put(ctx, key, data); err != nil {
		return err
	}
	e.logger.Debug("saved", "db", db, "key", key, "bytes", len(data))
	return nil
}

func runLoad(ctx context.Context, e *env, args []string) error {
	var db, key string
	flagSet := pflag.NewFlagSet("load", pflag.ContinueOnError)
	storeFlags(e, flagSet, &db, &key)
	rest, err := parseCommand(e, "load", flagSet, args, 1)
	if err != nil {
		return err
	}
	s, err := storage.Open(ctx, db)
	if err != nil {
		return err
	}
	defer s.Close()
	data, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	return storage.WriteBundleFile(rest[0], data)
}

func runKeys(ctx context.Context, e *env, args []string) error {
	var db string
	flagSet := pflag.NewFlagSet("keys", pflag.ContinueOnError)
	storeFlags(e, flagSet, &db, nil)
	if _, err := parseCommand(e, "keys", flagSet, args, 0); err != nil {
		return err
	}
	s, err := storage.Open(ctx, db)
	if err != nil {
		return err
	}
	defer s.Close()
	keys, err := s.Keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	fmt.Fprintln(e.stdout, headerStyle.Render(fmt.Sprintf("%-32s %-5s %10s  %s", "KEY", "CODEC", "SIZE", "UPDATED")))
	for _, k := range keys {
		info, err := s.Stat(ctx, k)
		if err != nil {
			return err
		}
		fmt.Fprintf(e.stdout, "%-32s %-5s %10d  %s\n", k, info.Codec, info.Size, info.Updated.Format(time.DateTime))
	}
	return nil
}
