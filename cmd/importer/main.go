package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/yousefihsm/natours/internal/bootstrap"
	"github.com/yousefihsm/natours/internal/importer"
	"github.com/yousefihsm/natours/internal/platform/password"
	"github.com/yousefihsm/natours/pkg/config"
	"github.com/yousefihsm/natours/pkg/logger"
)

func main() {
	var (
		doImport  = flag.Bool("import", false, "import tours and users")
		doDelete  = flag.Bool("delete", false, "delete all tours and users")
		toursFile = flag.String("tours", "dev-data/tours.json", "tours JSON file")
		usersFile = flag.String("users", "", "users JSON file (optional)")
	)
	flag.Parse()

	if *doImport == *doDelete {
		fmt.Fprintln(os.Stderr, "usage: importer --import [--tours file] [--users file] | --delete")
		os.Exit(2)
	}

	if err := run(*doImport, *toursFile, *usersFile); err != nil {
		logger.Error("Importer failed", "error", err)
		os.Exit(1)
	}
}

func run(doImport bool, toursFile, usersFile string) error {
	cfg := config.Load()
	ctx := context.Background()

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close(ctx)

	hasher, err := password.NewHasher(password.Params{
		MemoryKiB:   cfg.Auth.ArgonMemoryKiB,
		Iterations:  cfg.Auth.ArgonIterations,
		Parallelism: cfg.Auth.ArgonParallelism,
	}, cfg.Auth.MaxHashWorkers)
	if err != nil {
		return err
	}

	im := &importer.Importer{Tours: store.Tours, Users: store.Users, Hasher: hasher}
	if !doImport {
		return im.DeleteAll(ctx)
	}

	if err := importFile(toursFile, func(f *os.File) error {
		_, err := im.ImportTours(ctx, f)
		return err
	}); err != nil {
		return err
	}
	if usersFile == "" {
		return nil
	}
	return importFile(usersFile, func(f *os.File) error {
		_, err := im.ImportUsers(ctx, f)
		return err
	})
}

func importFile(path string, load func(*os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return load(f)
}
