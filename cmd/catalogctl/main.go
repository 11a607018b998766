package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"catalog-service/internal/app"
	"catalog-service/internal/search"
	"catalog-service/pkg/config"
	"catalog-service/pkg/logger"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

const serviceName = "catalogctl"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  serviceName,
		Usage: "Query and maintain the catalog search and availability engine",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "warn",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "search",
				Usage:  "Run a catalog search and print the response",
				Action: searchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "Search text, empty lists the catalog"},
					&cli.IntFlag{Name: "page", Usage: "Page number", Value: 1},
					&cli.IntFlag{Name: "limit", Usage: "Page size", Value: search.DefaultLimit},
					&cli.Int64Flag{Name: "city", Usage: "City id", Value: 1},
					&cli.StringFlag{Name: "sort", Usage: "Sort key", Value: search.SortRelevance},
					&cli.StringFlag{Name: "brand", Usage: "Exact brand name filter"},
					&cli.StringFlag{Name: "series", Usage: "Exact series name filter"},
					&cli.Int64Flag{Name: "user", Usage: "User id for personalised requests"},
				},
			},
			{
				Name:      "autocomplete",
				Usage:     "Print suggestions for a prefix",
				ArgsUsage: "<prefix>",
				Action:    autocompleteCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Usage: "Maximum suggestions", Value: search.DefaultSuggestLimit},
				},
			},
			{
				Name:   "availability",
				Usage:  "Print price, stock and delivery for products in a city",
				Action: availabilityCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "ids", Usage: "Comma separated product ids", Required: true},
					&cli.Int64Flag{Name: "city", Usage: "City id", Value: 1},
					&cli.Int64Flag{Name: "user", Usage: "User id for contract prices"},
				},
			},
			{
				Name:  "cache",
				Usage: "Manage the dynamic data cache (requires CACHE_DIR and a stopped server)",
				Subcommands: []*cli.Command{
					{
						Name:   "clear",
						Usage:  "Drop every cached availability batch",
						Action: cacheClearCommand,
					},
				},
			},
			{
				Name:   "warm",
				Usage:  "Precompute availability batches for every product",
				Action: warmCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "cities", Usage: "Comma separated city ids", Value: "1"},
					&cli.IntFlag{Name: "batch-size", Usage: "Products per cached batch", Value: 50},
					&cli.IntFlag{Name: "workers", Usage: "Concurrent batches", Value: 4},
				},
			},
		},
	}
}

func setupLogger(c *cli.Context) error {
	return logger.InitLogger(&logger.LogConfig{
		Level:       c.String("log-level"),
		Environment: "development",
		ServiceName: serviceName,
	})
}

// openEngine loads configuration from the environment and connects the engine
func openEngine() (*app.App, error) {
	cfg, err := config.Load(serviceName)
	if err != nil {
		return nil, err
	}
	return app.New(cfg, logger.GetLogger())
}

func searchCommand(c *cli.Context) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	params := search.Params{
		Query:  c.String("query"),
		Page:   c.Int("page"),
		Limit:  c.Int("limit"),
		CityID: c.Int64("city"),
		Sort:   c.String("sort"),
		Brand:  c.String("brand"),
		Series: c.String("series"),
		UserID: optionalID(c.Int64("user")),
	}
	return printJSON(c.App.Writer, engine.Router.Search(c.Context, params))
}

func autocompleteCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one prefix argument")
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	return printJSON(c.App.Writer, engine.Router.Autocomplete(c.Context, c.Args().First(), c.Int("limit")))
}

func availabilityCommand(c *cli.Context) error {
	ids, err := parseIDs(c.String("ids"))
	if err != nil {
		return err
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := engine.Dynamic.Resolve(c.Context, ids, c.Int64("city"), optionalID(c.Int64("user")))
	return printJSON(c.App.Writer, states)
}

func cacheClearCommand(c *cli.Context) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Dynamic.ClearCache(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "dynamic data cache cleared")
	return nil
}

func warmCommand(c *cli.Context) error {
	cities, err := parseIDs(c.String("cities"))
	if err != nil {
		return fmt.Errorf("invalid cities: %w", err)
	}

	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var productIDs []int64
	if err := engine.DB.WithContext(c.Context).
		Table("products").
		Order("id").
		Pluck("id", &productIDs).Error; err != nil {
		return fmt.Errorf("failed to list products: %w", err)
	}

	log := logger.GetLogger()
	warmed, err := warm(c.Context, engine.Dynamic, productIDs, cities, c.Int("batch-size"), c.Int("workers"), log)
	if err != nil {
		return err
	}
	log.Info("Cache warm-up finished", zap.Int("batches", warmed), zap.Int("products", len(productIDs)))
	fmt.Fprintf(c.App.Writer, "warmed %d batches\n", warmed)
	return nil
}

func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no ids given")
	}
	return ids, nil
}

func optionalID(id int64) *int64 {
	if id <= 0 {
		return nil
	}
	return &id
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
