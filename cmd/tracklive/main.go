// Command tracklive follows a DJ's sets on a trackstar server from the
// terminal.
//
//	tracklive sets <user>
//	tracklive export <user> <set>
//	tracklive follow <user|/u/user/set|page URL> [set]
//	tracklive watch <user>
//	tracklive version
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/tracklive/internal/adapter/metrics"
	"github.com/pscheid92/tracklive/internal/adapter/trackapi"
	"github.com/pscheid92/tracklive/internal/catalog"
	"github.com/pscheid92/tracklive/internal/domain"
	"github.com/pscheid92/tracklive/internal/platform/config"
	"github.com/pscheid92/tracklive/internal/platform/logging"
	"github.com/pscheid92/tracklive/internal/platform/version"
	"github.com/pscheid92/tracklive/internal/view"
)

const usage = `usage:
  tracklive sets <user>
  tracklive export <user> <set>
  tracklive follow <user|/u/user/set|page URL> [set]
  tracklive watch <user>
  tracklive version`

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	if os.Args[1] == "version" {
		fmt.Println(version.Get().String())
		return
	}

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)

	var err error
	switch os.Args[1] {
	case "sets":
		err = runSets(cfg, os.Args[2:])
	case "export":
		err = runExport(cfg, os.Args[2:])
	case "follow":
		err = runFollow(cfg, os.Args[2:])
	case "watch":
		err = runWatch(cfg, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		slog.Error("Command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func newClient(cfg *config.Config, reg *prometheus.Registry) *trackapi.Client {
	return trackapi.New(cfg.BaseURL(),
		trackapi.WithTimeout(cfg.FetchTimeout),
		trackapi.WithMetrics(metrics.NewFetchMetrics(reg)),
	)
}

func runSets(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tracklive sets <user>")
	}
	user, _, err := parseTarget(args[0])
	if err != nil {
		return err
	}

	client := newClient(cfg, metrics.NewRegistry())
	sets, err := catalog.New(user, client, catalog.WithFetchTimeout(cfg.FetchTimeout)).List(context.Background())
	if err != nil {
		return fmt.Errorf("listing sets of %s: %w", user, err)
	}

	list := view.NewSetList(os.Stdout, user, nil, clockwork.NewRealClock(), time.Local)
	list.SetCatalog(sets)
	list.Render()
	return nil
}

func runExport(cfg *config.Config, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: tracklive export <user> <set>")
	}
	user, _, err := parseTarget(args[0])
	if err != nil {
		return err
	}
	set, err := parseSetID(args[1])
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.FetchTimeout)
	defer cancel()

	client := newClient(cfg, metrics.NewRegistry())
	if set == domain.LiveSet {
		live, ok, err := catalog.New(user, client).Live(ctx)
		if err != nil {
			return fmt.Errorf("resolving live set of %s: %w", user, err)
		}
		if !ok {
			return fmt.Errorf("%s has no sets", user)
		}
		set = live
	}

	n, err := client.ExportCSV(ctx, user, set, os.Stdout)
	if err != nil {
		return fmt.Errorf("exporting set %s of %s: %w", set, user, err)
	}
	slog.Debug("Exported set", "user_id", user, "set_id", set, "bytes", n)
	return nil
}
