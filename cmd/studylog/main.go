// Command studylog is the study-log client: it records drill outcomes,
// shows statistics and exports CSV, against either the local store or
// the hosted API.
//
// Usage:
//
//	studylog [flags] <command> [command flags]
//
// Commands: register, login, logout, add, delete, list, stats, export, retry
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/okabe/studylog/internal/export"
	"github.com/okabe/studylog/internal/identity"
	"github.com/okabe/studylog/internal/models"
	"github.com/okabe/studylog/internal/session"
	"github.com/okabe/studylog/internal/stats"
	"github.com/okabe/studylog/internal/storage"
	"github.com/okabe/studylog/internal/storage/badgerkv"
	"github.com/okabe/studylog/internal/storage/remote"
	"github.com/okabe/studylog/internal/syncer"
	"github.com/okabe/studylog/pkg/logging"
)

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".studylog"
	}
	return filepath.Join(home, ".studylog")
}

// app bundles the wiring for one invocation. The local badger store is
// always open: in local mode it holds everything, in remote mode it
// still holds the session slot and token while records live server-side.
type app struct {
	local   *badgerkv.Store
	remote  *remote.Client // nil in local mode
	records storage.RecordStore
	idstore *identity.Store // nil in remote mode
	sess    *session.Session
	dataDir string
}

func main() {
	logging.Setup()

	remoteURL := flag.String("remote", "", "hosted API base URL; empty uses the local store")
	dataDir := flag.String("data", defaultDataDir(), "local data directory")
	openMode := flag.Bool("open", false, "local mode only: run without credentials")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: studylog [flags] <register|login|logout|add|delete|list|stats|export|retry>")
		os.Exit(2)
	}

	local, err := badgerkv.New(badgerkv.DefaultConfig(filepath.Join(*dataDir, "db")))
	if err != nil {
		slog.Error("Opening local store failed", "error", err)
		os.Exit(1)
	}
	defer local.Close()

	a := &app{local: local, dataDir: *dataDir}
	if *remoteURL != "" {
		a.remote = remote.New(strings.TrimRight(*remoteURL, "/"), nil)
		a.records = a.remote
		a.sess = session.New(local, nil) // directory lives server-side
	} else {
		a.records = local
		a.idstore = identity.New(local, !*openMode)
		a.sess = session.New(local, local)
	}

	ctx := context.Background()
	if err := a.run(ctx, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func (a *app) run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "add":
		return a.add(ctx, args)
	case "delete":
		return a.delete(ctx, args)
	case "list":
		return a.list(ctx)
	case "stats":
		return a.stats(ctx)
	case "export":
		return a.export(ctx, args)
	case "retry":
		return a.retry(ctx)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	id := fs.String("id", "", "student id")
	name := fs.String("name", "", "display name")
	password := fs.String("password", "", "password")
	confirm := fs.String("confirm", "", "password confirmation")
	fs.Parse(args)

	var user *models.User
	var err error
	if a.remote != nil {
		user, err = a.remote.Register(ctx, *id, *name, *password, *confirm)
		if err == nil {
			err = a.saveToken()
		}
	} else {
		user, err = a.idstore.Register(ctx, *id, *name, *password, *confirm)
		if err == nil {
			// Fresh local accounts get an empty document too.
			err = a.local.ReplaceAll(ctx, user.ID, nil)
		}
	}
	if err != nil {
		return err
	}

	if err := a.sess.Start(ctx, user); err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", user.ID, user.Name)
	return nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	id := fs.String("id", "", "student id")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	var user *models.User
	var err error
	if a.remote != nil {
		user, err = a.remote.Login(ctx, *id, *password)
		if err == nil {
			err = a.saveToken()
		}
	} else {
		user, err = a.idstore.Authenticate(ctx, *id, *password)
	}
	if err != nil {
		return err
	}

	if err := a.sess.Start(ctx, user); err != nil {
		return err
	}

	controller, err := a.controller(ctx, user)
	if err != nil {
		fmt.Fprintln(os.Stderr, "warning: could not load records:", err)
	}
	snap := controller.Snapshot()
	fmt.Printf("welcome back, %s: %d records, overall rate %d%%\n",
		user.Name, snap.Totals.Count, snap.Totals.Rate)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	user, err := a.restore(ctx)
	if err != nil {
		return err
	}

	ended, err := a.sess.End(ctx, confirmPrompt(fmt.Sprintf("log out %s?", user.ID)))
	if err != nil {
		return err
	}
	if !ended {
		fmt.Println("logout cancelled")
		return nil
	}
	a.clearToken()
	fmt.Println("logged out")
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	field := fs.String("field", "", "subject field")
	attempted := fs.Int("attempted", 0, "questions attempted")
	correct := fs.Int("correct", 0, "questions correct")
	fs.Parse(args)

	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}

	record, err := controller.Add(ctx, *field, *attempted, *correct)
	if errors.Is(err, storage.ErrPersistence) {
		fmt.Fprintln(os.Stderr, "warning: record kept locally but not saved:", err)
		fmt.Fprintln(os.Stderr, "run `studylog retry` to push again")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("recorded %s: %d/%d (%d%%, %s)\n",
		record.Field, record.Correct, record.Attempted, record.Rate, stats.RateTier(record.Rate))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	id := fs.Int64("id", 0, "record id to delete")
	fs.Parse(args)

	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}

	removed, err := controller.Delete(ctx, *id, confirmPrompt(fmt.Sprintf("delete record %d?", *id)))
	if err != nil {
		return err
	}
	if !removed {
		fmt.Println("nothing deleted")
		return nil
	}
	fmt.Println("deleted")
	return nil
}

func (a *app) list(ctx context.Context) error {
	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}

	records := controller.Records()
	if len(records) == 0 {
		fmt.Println("no records yet")
		return nil
	}
	fmt.Printf("%-20s %-12s %-12s %5s %5s %5s\n", "id", "date", "field", "att", "cor", "rate")
	for _, r := range records {
		fmt.Printf("%-20d %-12s %-12s %5d %5d %4d%%\n",
			r.ID, r.Date, r.Field, r.Attempted, r.Correct, r.Rate)
	}
	return nil
}

func (a *app) stats(ctx context.Context) error {
	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}
	snap := controller.Snapshot()

	fmt.Printf("total: %d records, %d/%d correct, rate %d%% (%s)\n",
		snap.Totals.Count, snap.Totals.Correct, snap.Totals.Attempted,
		snap.Totals.Rate, stats.RateTier(snap.Totals.Rate))

	fmt.Println("\nby field:")
	for _, fs := range stats.FieldBreakdown(snap.Records) {
		fmt.Printf("  %-12s %3d%% (%d/%d over %d records)\n",
			fs.Field, fs.Rate, fs.Correct, fs.Attempted, fs.Count)
	}

	fmt.Println("\nby day:")
	for _, d := range stats.MergeDaily(snap.Records) {
		fmt.Printf("  %s %-12s %3d%% (%d/%d)\n", d.Date, d.Field, d.Rate, d.Correct, d.Attempted)
	}

	if a.remote != nil {
		averages, err := a.remote.FieldAverages(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning: cohort averages unavailable:", err)
			return nil
		}
		comparisons := stats.CompareFields(stats.FieldBreakdown(snap.Records), averages)
		if len(comparisons) > 0 {
			fmt.Println("\nvs cohort:")
			for _, c := range comparisons {
				marker := ""
				if c.Weak {
					marker = "  ← needs work"
				} else if c.Strong {
					marker = "  ← strength"
				}
				fmt.Printf("  %-12s %3d%% vs %5.1f%% (%+.1f)%s\n", c.Field, c.Rate, c.CohortAvg, c.Diff, marker)
			}
		}
	}

	fmt.Println("\ntrend (last 20):")
	for _, p := range snap.Series {
		fmt.Printf("  %s %3d%%\n", p.Label, p.Rate)
	}
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	out := fs.String("out", "", "output path (default: generated filename in the current directory)")
	fs.Parse(args)

	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}
	snap := controller.Snapshot()

	path := *out
	if path == "" {
		path = export.Filename(snap.User.ID, time.Now())
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer file.Close()

	if err := export.Write(file, snap.Records); err != nil {
		return err
	}
	fmt.Printf("exported %d records to %s\n", len(snap.Records), path)
	return nil
}

func (a *app) retry(ctx context.Context) error {
	controller, err := a.sessionController(ctx)
	if err != nil {
		return err
	}
	// A fresh process already re-pulled, so there is nothing queued; a
	// plain push of the current list covers the divergence case anyway.
	if err := controller.Retry(ctx); err != nil {
		return err
	}
	fmt.Println("in sync")
	return nil
}

// restore loads the persisted session or fails with a hint.
func (a *app) restore(ctx context.Context) (*models.User, error) {
	user, err := a.sess.Restore(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("not logged in (run `studylog login`)")
	}
	return user, nil
}

// sessionController restores the session and starts a sync controller
// for it. In remote mode the saved token is re-adopted first.
func (a *app) sessionController(ctx context.Context) (*syncer.Controller, error) {
	user, err := a.restore(ctx)
	if err != nil {
		return nil, err
	}
	return a.controller(ctx, user)
}

func (a *app) controller(ctx context.Context, user *models.User) (*syncer.Controller, error) {
	if a.remote != nil {
		token, err := os.ReadFile(a.tokenPath())
		if err == nil {
			a.remote.SetToken(strings.TrimSpace(string(token)))
		}
	}
	return syncer.Start(ctx, a.records, user, nil)
}

func (a *app) tokenPath() string {
	return filepath.Join(a.dataDir, "token")
}

func (a *app) saveToken() error {
	return os.WriteFile(a.tokenPath(), []byte(a.remote.Token()), 0600)
}

func (a *app) clearToken() {
	_ = os.Remove(a.tokenPath())
}

// confirmPrompt builds a yes/no gate reading from stdin.
func confirmPrompt(question string) func() bool {
	return func() bool {
		fmt.Printf("%s [y/N]: ", question)
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return false
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}
