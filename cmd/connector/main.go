// cmd/connector/main.go
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/unclebandit/notify-event/internal/app"
	"github.com/unclebandit/notify-event/internal/config"
	"github.com/unclebandit/notify-event/internal/logger"
)

const usage = `usage: connector <command> [flags]

commands:
  post-deploy    create the channel, subscription and trigger objects
  pre-undeploy   remove native subscriptions and optionally stored data
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("❌ Invalid configuration")
	}
	log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	ctx := context.Background()
	c, err := app.NewContainer(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("❌ Failed to initialise services")
	}

	err = run(ctx, c, os.Args[1:], os.Stdout)
	c.Close()
	if err != nil {
		log.WithError(err).Fatal("❌ Connector action failed")
	}
}

func run(ctx context.Context, c *app.Container, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usage)
	}
	switch args[0] {
	case "post-deploy":
		return postDeploy(ctx, c, out)
	case "pre-undeploy":
		return preUndeploy(ctx, c, args[1:], out)
	default:
		return fmt.Errorf("unknown command %q\n%s", args[0], usage)
	}
}

func postDeploy(ctx context.Context, c *app.Container, out io.Writer) error {
	report, err := c.Maintenance.Bootstrap(ctx)
	if err != nil {
		return err
	}
	c.Log.Info("✅ Post-deploy completed")
	return json.NewEncoder(out).Encode(report)
}

type undeployReport struct {
	Unsubscribed  []string `json:"unsubscribed"`
	Objects       bool     `json:"objectsDeleted"`
	MessageStates int      `json:"messageStatesDeleted"`
	MessageLogs   int      `json:"messageLogsDeleted"`
}

func preUndeploy(ctx context.Context, c *app.Container, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("pre-undeploy", flag.ContinueOnError)
	fs.SetOutput(out)
	deleteObjects := fs.Bool("delete-objects", false, "delete the channel, subscription and trigger objects")
	deleteStates := fs.Bool("delete-message-state", false, "delete every message state")
	deleteLogs := fs.Bool("delete-message-logs", false, "delete every message log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	report := undeployReport{}
	removed, err := c.Maintenance.RemoveNativeSubscriptions(ctx)
	if err != nil {
		return err
	}
	report.Unsubscribed = removed

	if *deleteObjects {
		if err := c.Maintenance.DeleteAllObjects(ctx); err != nil {
			return err
		}
		report.Objects = true
	}
	if *deleteStates {
		if report.MessageStates, err = c.Maintenance.DeleteAllMessageState(ctx); err != nil {
			return err
		}
	}
	if *deleteLogs {
		if report.MessageLogs, err = c.Maintenance.DeleteAllMessageLogs(ctx); err != nil {
			return err
		}
	}

	c.Log.Info("✅ Pre-undeploy completed")
	return json.NewEncoder(out).Encode(report)
}
