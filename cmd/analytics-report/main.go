// Command analytics-report computes a dashboard from JSON exports of a
// space's actions and users and prints it as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/radiusdt/space-analytics/internal/analytics"
	"github.com/radiusdt/space-analytics/internal/config"
	"github.com/radiusdt/space-analytics/internal/dataset"
	"github.com/radiusdt/space-analytics/internal/middleware"
	"github.com/radiusdt/space-analytics/internal/models"
	"go.uber.org/zap"
)

type options struct {
	actionsPath string
	usersPath   string
	spacesPath  string
	view        string
	users       string
	itemTypes   string
	pretty      bool
}

// report is the CLI output: the dashboard plus, when a space tree is given,
// the children of its main space.
type report struct {
	*analytics.Dashboard
	Children []models.Space `json:"children,omitempty"`
}

func main() {
	var opts options
	flag.StringVar(&opts.actionsPath, "actions", "", "JSON file with the actions array (required)")
	flag.StringVar(&opts.usersPath, "users", "", "JSON file with the users array")
	flag.StringVar(&opts.spacesPath, "spaces", "", "JSON file with the space tree")
	flag.StringVar(&opts.view, "view", string(models.ViewPerform), "view mode: perform or compose")
	flag.StringVar(&opts.users, "users-filter", "", "comma-separated user names to restrict to")
	flag.StringVar(&opts.itemTypes, "item-types", "", "comma-separated item types for the ranking")
	flag.BoolVar(&opts.pretty, "pretty", false, "indent the JSON output")
	flag.Parse()

	if err := run(context.Background(), opts, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "analytics-report: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, out io.Writer) error {
	if opts.actionsPath == "" {
		return fmt.Errorf("-actions is required")
	}
	view, err := models.ParseViewMode(opts.view)
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(".env")
	if err != nil {
		return err
	}
	logger, err := middleware.NewLogger(cfg.Log.Level, "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	actions, err := dataset.LoadActions(opts.actionsPath)
	if err != nil {
		return err
	}
	var users []models.User
	if opts.usersPath != "" {
		if users, err = dataset.LoadUsers(opts.usersPath); err != nil {
			return err
		}
	}

	engine := analytics.NewEngine(cfg.Analytics, logger, nil)
	d, err := engine.Build(ctx, analytics.Input{
		Actions:       actions,
		Users:         users,
		View:          view,
		SelectedUsers: splitList(opts.users),
		ItemTypes:     splitList(opts.itemTypes),
	})
	if err != nil {
		return err
	}

	r := report{Dashboard: d}
	if opts.spacesPath != "" {
		spaces, err := dataset.LoadSpaces(opts.spacesPath)
		if err != nil {
			return err
		}
		if r.Children, err = analytics.MainSpaceChildren(spaces); err != nil {
			return err
		}
	}

	logger.Debug("report computed",
		zap.Int("actions", len(actions)),
		zap.Int("users", len(users)),
		zap.Bool("selection_applied", d.Selection.Applied),
	)

	enc := json.NewEncoder(out)
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(r)
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
