package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pynezz/heimdall/internal/api"
	"github.com/pynezz/heimdall/internal/config"
	"github.com/pynezz/heimdall/internal/database"
	"github.com/pynezz/heimdall/internal/engine"
	"github.com/pynezz/heimdall/internal/fswatcher"
	"github.com/pynezz/heimdall/internal/logstore"
	"github.com/pynezz/heimdall/internal/rules"
	"github.com/pynezz/heimdall/internal/scanner"
	"github.com/pynezz/heimdall/internal/tui"
	"github.com/pynezz/heimdall/internal/util"
	"github.com/pynezz/heimdall/pkg/version"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to the configuration file")
	scanFile := flag.String("scan", "", "Scan a single log file and print the alerts")
	format := flag.String("format", "", "Log format for -scan: cloudtrail or flatjson (auto-detected when empty)")
	scanAll := flag.Bool("scan-all", false, "Scan every registered log file")
	serve := flag.Bool("serve", false, "Start the API server")
	watch := flag.Bool("watch", false, "Watch the logs directory and scan new files")
	dashboard := flag.Bool("tui", false, "Show the terminal dashboard (implies -watch)")
	versionFlag := flag.Bool("version", false, "Print version information")
	flag.Parse()

	if *versionFlag {
		fmt.Println(version.Info())
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		util.PrintWarning("No configuration file found, using defaults")
		cfg = config.DefaultCfg()
	}

	repo, err := rules.NewRepository(cfg.Paths.RulesDir)
	if err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}
	logs, err := logstore.New(cfg.Paths.LogsDir)
	if err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}
	scan := scanner.New(repo)

	switch {
	case *scanFile != "":
		runScan(scan, cfg, *configPath, *scanFile, engine.Format(*format))
	case *scanAll:
		runScanAll(scan, logs)
	case *serve:
		runServer(cfg, repo, logs, scan)
	case *watch, *dashboard:
		runWatcher(cfg, scan, logs, *dashboard)
	default:
		flag.Usage()
	}
}

func runScan(scan *scanner.Scanner, cfg *config.Cfg, configPath, path string, format engine.Format) {
	if format == engine.FormatUnknown {
		detected, err := engine.DetectFormat(path)
		if err != nil {
			util.PrintError(err.Error())
			os.Exit(1)
		}
		format = detected
	}

	result, err := scan.Scan(path, format)
	if err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}

	cfg.AddRecentFile(path)
	if err := cfg.Write(configPath); err != nil {
		util.PrintWarningf("could not update recent files: %v", err)
	}

	printJSON(result)
	util.PrintSuccess(fmt.Sprintf("%d alert(s) from %d rule(s) in %dms",
		len(result.Alerts), result.RulesEvaluated, result.ScanTimeMs))
}

func runScanAll(scan *scanner.Scanner, logs *logstore.Store) {
	sources, err := logs.Sources()
	if err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}

	result, err := scan.ScanAll(sources)
	if err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}

	printJSON(result)
	for _, failed := range result.FailedFiles {
		util.PrintWarningf("failed: %s (%s)", failed.FileName, failed.Error)
	}
	util.PrintSuccess(fmt.Sprintf("%d alert(s) across %d file(s) in %dms",
		result.TotalAlerts, result.TotalFilesScanned, result.TotalScanTimeMs))
}

func runServer(cfg *config.Cfg, repo *rules.Repository, logs *logstore.Store, scan *scanner.Scanner) {
	var history *database.History
	db, err := database.InitHistoryDB(cfg.Paths.Database)
	if err != nil {
		util.PrintWarningf("scan history disabled: %v", err)
	} else {
		history = database.NewHistory(db)
	}

	alerts := fswatcher.NewFeed()
	app := api.NewServer(api.Deps{
		Config:  cfg,
		Rules:   repo,
		Logs:    logs,
		Scanner: scan,
		History: history,
		Alerts:  alerts,
	})

	go watchAndScan(context.Background(), cfg.Paths.LogsDir, scan, nil, alerts)

	addr := fmt.Sprintf(":%d", cfg.Network.Port)
	if err := app.Listen(addr); err != nil {
		util.PrintError(err.Error())
		os.Exit(1)
	}
}

func runWatcher(cfg *config.Cfg, scan *scanner.Scanner, logs *logstore.Store, withDashboard bool) {
	alerts := fswatcher.NewFeed()
	activity := fswatcher.NewFeed()

	ctx := context.Background()
	go watchAndScan(ctx, cfg.Paths.LogsDir, scan, activity, alerts)

	if withDashboard {
		activityCh, cancelActivity := activity.Subscribe()
		alertCh, cancelAlerts := alerts.Subscribe()
		defer cancelActivity()
		defer cancelAlerts()

		tui.NewDashboard(activityCh, alertCh).Display()
		return
	}

	util.PrintInfo("Watching " + cfg.Paths.LogsDir + " (ctrl-c to stop)")
	select {}
}

// watchAndScan scans every new .json file in dir and publishes the results.
func watchAndScan(ctx context.Context, dir string, scan *scanner.Scanner, activity, alerts *fswatcher.Feed) {
	err := fswatcher.Watch(ctx, dir, func(path string) {
		name := filepath.Base(path)
		if activity != nil {
			activity.Publish("new file: " + name)
		}

		format, err := engine.DetectFormat(path)
		if err != nil {
			util.PrintWarningf("skipping %s: %v", name, err)
			return
		}
		result, err := scan.Scan(path, format)
		if err != nil {
			util.PrintWarningf("scan of %s failed: %v", name, err)
			return
		}

		for _, alert := range result.Alerts {
			msg := fmt.Sprintf("[%s] %s: %d match(es) in %s",
				alert.Severity, alert.RuleTitle, alert.MatchCount, name)
			util.PrintWarning(msg)
			if alerts != nil {
				alerts.Publish(msg)
			}
		}
	})
	if err != nil && err != context.Canceled {
		util.PrintErrorf("watcher stopped: %v", err)
	}
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		util.PrintError(err.Error())
		return
	}
	fmt.Println(string(out))
}
