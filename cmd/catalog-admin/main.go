package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/qrcatalog-backend/internal/admin"
	"github.com/angelmondragon/qrcatalog-backend/internal/catalog"
	"github.com/angelmondragon/qrcatalog-backend/pkg/config"
	"github.com/angelmondragon/qrcatalog-backend/pkg/docstore"
	"github.com/angelmondragon/qrcatalog-backend/pkg/logger"
	"github.com/angelmondragon/qrcatalog-backend/pkg/qr"
)

const usage = `usage: catalog-admin <command> [flags]

commands:
  convert-qrs            rewrite product qr_code values into product URL data URIs
  list-codes             print manual product codes (first 3 per store)
  prune-stores -keep N   delete every store after the first N
  reset -force           delete the users, stores, orders and requests roots
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	logg := logger.New(logger.Options{ServiceName: "catalog-admin"})
	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(context.Background(), logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "catalog-admin",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      "console",
		Output:      os.Stderr,
	})

	cmd := os.Args[1]
	ctx := logg.WithFields(context.Background(), map[string]any{"env": cfg.App.Env, "cmd": cmd})

	docs, err := docstore.NewClient(cfg.DocStore, logg)
	requireResource(ctx, logg, "docstore", err)

	tool, err := admin.NewTool(catalog.NewRepository(docs, cfg.DocStore.IncrementRetries), qr.NewCodec(cfg.QR), docs, os.Stdout, logg)
	requireResource(ctx, logg, "admin tool", err)

	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	switch cmd {
	case "convert-qrs":
		_ = fs.Parse(os.Args[2:])
		converted, err := tool.ConvertQRCodes(ctx)
		fmt.Printf("converted %d product codes\n", converted)
		exitOnError(ctx, logg, "convert-qrs", err)

	case "list-codes":
		_ = fs.Parse(os.Args[2:])
		exitOnError(ctx, logg, "list-codes", tool.ListCodes(ctx))

	case "prune-stores":
		keep := fs.Int("keep", 1, "number of stores to keep, in creation order")
		_ = fs.Parse(os.Args[2:])
		deleted, err := tool.PruneStores(ctx, *keep)
		fmt.Printf("deleted %d stores\n", deleted)
		exitOnError(ctx, logg, "prune-stores", err)

	case "reset":
		force := fs.Bool("force", false, "confirm deletion of all application data")
		_ = fs.Parse(os.Args[2:])
		exitOnError(ctx, logg, "reset", tool.Reset(ctx, *force))

	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}
}

func exitOnError(ctx context.Context, logg *logger.Logger, cmd string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("%s failed", cmd), err)
	os.Exit(1)
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
