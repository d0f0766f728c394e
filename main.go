// parley - conversation state management for LLM chat.
//
// Copyright (c) 2025-2026 Parley Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/lmittmann/tint"

	"github.com/mveldt/parley/internal/config"
	"github.com/mveldt/parley/internal/export"
	"github.com/mveldt/parley/internal/model"
	"github.com/mveldt/parley/internal/purpose"
	"github.com/mveldt/parley/internal/store"
	"github.com/mveldt/parley/internal/storage"
	"github.com/mveldt/parley/internal/token"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	args := os.Args[1:]
	cmd := ""
	if len(args) > 0 {
		cmd = args[0]
		args = args[1:]
	}

	switch cmd {
	case "", "list":
		run(args, handleList)
	case "new":
		run(args, handleNew)
	case "show":
		run(args, handleShow)
	case "add":
		run(args, handleAdd)
	case "title":
		run(args, handleTitle)
	case "active":
		run(args, handleActive)
	case "delete":
		run(args, handleDelete)
	case "delete-all":
		run(args, handleDeleteAll)
	case "export":
		run(args, handleExport)
	case "import":
		run(args, handleImport)
	case "version":
		fmt.Printf("parley %s (%s, %s)\n", Version, GitCommit, BuildDate)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Print(`parley - conversation state management for LLM chat

Usage:
  parley <command> [options]

Commands:
  list                       List conversations (default)
  new [-purpose ID]          Create a conversation and make it active
  show [id]                  Print a conversation (default: active)
  add -role R [id] <text>    Append a message (default: active conversation)
  title <id> <title>         Set a conversation's title
  active <id>                Set the active conversation
  delete <id>                Delete a conversation
  delete-all                 Delete all conversations
  export [-format md|json] [id]
                             Export a conversation (default: active)
  import <file.json>         Import a conversation from a JSON export
  version                    Print version information
  help                       Show this help
`)
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// app bundles everything a command handler needs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *store.Store
	saver  *storage.Saver
}

// run loads config, opens the storage backend, rehydrates the store, invokes
// the handler, then flushes any pending changes.
func run(args []string, handler func(*app, []string) error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	kv, closeKV, err := openKV(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeKV()

	adapter := storage.NewAdapter(kv, cfg.Storage.Key, logger)
	conversations, activeID, err := adapter.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	st := store.New(token.NewCounter(nil), logger)
	st.SetChatModel(cfg.Chat.Model)

	// A first run seeds one empty conversation; give it the configured
	// default persona before anything observes it.
	if len(conversations) == 1 && len(conversations[0].Messages) == 0 &&
		cfg.Chat.DefaultPurpose != "" {
		conversations[0].SystemPurposeID = cfg.Chat.DefaultPurpose
	}
	st.Hydrate(conversations, activeID)

	saver := storage.NewSaver(st, adapter, storage.SaverConfig{
		Interval: cfg.AutosaveInterval(),
		MinGap:   cfg.AutosaveMinGap(),
	}, logger)
	if cfg.Autosave.Enabled {
		saver.Start()
	} else {
		// Still observe mutations so the exit flush knows what is pending.
		st.Subscribe(saver.MarkDirty)
	}

	a := &app{cfg: cfg, logger: logger, store: st, saver: saver}

	handlerErr := handler(a, args)

	if cfg.Autosave.Enabled {
		if err := saver.Close(); err != nil {
			logger.Warn("final save failed", "error", err)
		}
	} else if err := saver.Flush(context.Background()); err != nil {
		logger.Warn("final save failed", "error", err)
	}

	if handlerErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", handlerErr)
		os.Exit(1)
	}
}

// newLogger builds the slog logger from config.
func newLogger(cfg *config.Config) *slog.Logger {
	level := parseLogLevel(cfg.Log.Level)
	if cfg.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{Level: level}))
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// openKV opens the configured storage backend.
func openKV(cfg *config.Config) (storage.KV, func(), error) {
	dataDir := cfg.Storage.DataDir
	if dataDir == "" {
		var err error
		dataDir, err = config.DefaultDataDir()
		if err != nil {
			return nil, nil, err
		}
	}

	switch strings.ToLower(cfg.Storage.Backend) {
	case "sqlite":
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		kv, err := storage.OpenSQLiteKV(filepath.Join(dataDir, "parley.db"))
		if err != nil {
			return nil, nil, err
		}
		return kv, func() { kv.Close() }, nil
	default:
		kv, err := storage.NewFileKV(dataDir)
		if err != nil {
			return nil, nil, err
		}
		return kv, func() {}, nil
	}
}

// =============================================================================
// COMMAND HANDLERS
// =============================================================================

func handleList(a *app, _ []string) error {
	snap := a.store.Snapshot()
	for _, conv := range snap.Conversations {
		marker := " "
		if conv.ID == snap.ActiveConversationID {
			marker = "*"
		}
		fmt.Printf("%s %s  %-30s  %3d messages  %5d tokens  %s\n",
			marker, conv.ID, conv.Title(), conv.MessageCount(), conv.TokenCount,
			conv.Created.Format("2006-01-02 15:04"))
	}
	return nil
}

func handleNew(a *app, args []string) error {
	fs := flag.NewFlagSet("new", flag.ExitOnError)
	purposeID := fs.String("purpose", "", "persona for the new conversation")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *purposeID != "" && !purpose.IsValid(*purposeID) {
		return fmt.Errorf("unknown purpose %q, valid: %s", *purposeID, strings.Join(purpose.IDs(), ", "))
	}
	limit := a.cfg.Chat.MaxConversations
	if limit <= 0 {
		limit = store.MaxConversations
	}
	if a.store.Len() >= limit {
		return fmt.Errorf("conversation limit reached (%d)", limit)
	}

	id := a.store.CreateConversation()
	if *purposeID != "" {
		a.store.SetSystemPurposeID(id, *purposeID)
	}
	fmt.Println(id)
	return nil
}

func handleShow(a *app, args []string) error {
	conv, err := a.resolveConversation(args)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", conv.Title(), conv.SystemPurposeID)
	fmt.Printf("%d messages, %d tokens\n\n", conv.MessageCount(), conv.TokenCount)
	for _, msg := range conv.Messages {
		fmt.Printf("[%s] %s\n", msg.Sender, msg.Text)
	}
	return nil
}

func handleAdd(a *app, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	role := fs.String("role", "user", "message role: user, assistant, system")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: parley add -role R [id] <text>")
	}

	r := model.Role(*role)
	if !r.Valid() {
		return fmt.Errorf("invalid role %q", *role)
	}

	snap := a.store.Snapshot()
	convID := snap.ActiveConversationID
	if len(rest) > 1 {
		if c := a.store.ConversationByID(rest[0]); c != nil {
			convID = rest[0]
			rest = rest[1:]
		}
	}
	if convID == "" {
		return fmt.Errorf("no active conversation")
	}

	msg := model.NewMessage(r, strings.Join(rest, " "))
	a.store.AppendMessage(convID, msg)
	fmt.Println(msg.ID)
	return nil
}

func handleTitle(a *app, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: parley title <id> <title>")
	}
	id := args[0]
	if a.store.ConversationByID(id) == nil {
		return fmt.Errorf("no conversation %s", id)
	}
	a.store.SetUserTitle(id, strings.Join(args[1:], " "))
	return nil
}

func handleActive(a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: parley active <id>")
	}
	if a.store.ConversationByID(args[0]) == nil {
		return fmt.Errorf("no conversation %s", args[0])
	}
	a.store.SetActiveConversationID(args[0])
	return nil
}

func handleDelete(a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: parley delete <id>")
	}
	if a.store.ConversationByID(args[0]) == nil {
		return fmt.Errorf("no conversation %s", args[0])
	}
	a.store.DeleteConversation(args[0])
	return nil
}

func handleDeleteAll(a *app, _ []string) error {
	a.store.DeleteAllConversations()
	return nil
}

func handleExport(a *app, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	format := fs.String("format", "md", "export format: md or json")
	outDir := fs.String("out", ".", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	conv, err := a.resolveConversation(fs.Args())
	if err != nil {
		return err
	}

	opts := export.DefaultOptions()
	opts.OutputDir = *outDir

	var path string
	switch strings.ToLower(*format) {
	case "md", "markdown":
		path, err = export.ExportMarkdown(conv, opts)
	case "json":
		path, err = export.ExportJSON(conv, opts)
	default:
		return fmt.Errorf("unknown format %q, valid: md, json", *format)
	}
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func handleImport(a *app, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: parley import <file.json>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	conv, err := export.ImportJSON(data)
	if err != nil {
		return err
	}
	a.store.ImportConversation(conv)
	fmt.Println(conv.ID)
	return nil
}

// resolveConversation returns the conversation named by args[0], or the
// active conversation when no argument is given.
func (a *app) resolveConversation(args []string) (*model.Conversation, error) {
	snap := a.store.Snapshot()
	id := snap.ActiveConversationID
	if len(args) > 0 {
		id = args[0]
	}
	for _, conv := range snap.Conversations {
		if conv.ID == id {
			return conv, nil
		}
	}
	return nil, fmt.Errorf("no conversation %s", id)
}
