package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bounce-hq/bounce/internal/app"
	"github.com/bounce-hq/bounce/internal/config"
	"github.com/bounce-hq/bounce/internal/logger"
	"github.com/spf13/pflag"
)

const usage = `usage:
  bounce health
  bounce create --title TITLE --at RFC3339 [--friend NAME] [--force]
  bounce samples`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, app.Message(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	if args[0] == "samples" {
		for _, s := range app.Samples(time.Now(), time.Local) {
			fmt.Fprintf(out, "%s: %s\n", s.Title, s.Display)
		}
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		logger.ErrorObj("failed to initialize app", "error", err)
		return err
	}
	defer a.Close()

	switch args[0] {
	case "health":
		status, err := a.Health(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	case "create":
		in, err := parseCreate(args[1:])
		if err != nil {
			return err
		}
		res, err := a.Create(ctx, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s (%s, id %s)\n", app.SuccessMessage, res.Display, res.BounceID)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func parseCreate(args []string) (app.CreateInput, error) {
	fs := pflag.NewFlagSet("create", pflag.ContinueOnError)
	title := fs.String("title", "", "what's the plan")
	at := fs.String("at", "", "when, as RFC3339 (e.g. 2025-09-09T16:00:00+12:00)")
	friend := fs.String("friend", "", "invite a friend")
	force := fs.Bool("force", false, "submit even if the same bounce was sent recently")
	if err := fs.Parse(args); err != nil {
		return app.CreateInput{}, err
	}

	date, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		return app.CreateInput{}, fmt.Errorf("invalid --at %q: %w", *at, err)
	}

	in := app.CreateInput{Title: *title, Date: date, Force: *force}
	if fs.Changed("friend") {
		in.Friend = friend
	}
	return in, nil
}
