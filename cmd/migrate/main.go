package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/ministeam/ministeam-api/pkg/config"
	"github.com/ministeam/ministeam-api/pkg/db"
	"github.com/ministeam/ministeam-api/pkg/logger"
	"github.com/ministeam/ministeam-api/pkg/migrate"
)

func main() {
	_ = godotenv.Load()

	cmd := flag.String("cmd", "up", "one of "+strings.Join(migrate.Commands, "|")+"|version|create|validate")
	dir := flag.String("dir", "", "migrations directory; empty uses the files built into the binary")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=version")
	flag.Parse()

	if err := offline(*cmd, *dir, *name); !errors.Is(err, errNeedsDB) {
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	logg := logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Console:     strings.EqualFold(cfg.App.LogFormat, "console"),
	})
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env": cfg.App.Env,
		"cmd": *cmd,
	})

	if err := online(ctx, cfg, logg, *cmd, *dir, *version); err != nil {
		logg.Error(ctx, "migration failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migration finished")
}

var errNeedsDB = errors.New("command needs a database")

// offline handles the commands that only touch files.
func offline(cmd, dir, name string) error {
	switch cmd {
	case "create":
		if name == "" {
			return errors.New("-name is required for create")
		}
		if dir == "" {
			dir = migrate.DefaultDir
		}
		file, err := migrate.Create(dir, name, time.Now())
		if err != nil {
			return err
		}
		fmt.Println("created", file)
		return nil
	case "validate":
		fsys, err := migrate.Source(dir)
		if err != nil {
			return err
		}
		if err := migrate.Validate(fsys); err != nil {
			return err
		}
		fmt.Println("migrations ok")
		return nil
	}
	return errNeedsDB
}

func online(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd, dir, version string) error {
	client, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer client.Close()

	sqlDB, err := client.DB().DB()
	if err != nil {
		return err
	}
	fsys, err := migrate.Source(dir)
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, fsys, logg)
	if err != nil {
		return err
	}
	if cmd == "version" {
		if version == "" {
			return errors.New("-version is required for version")
		}
		return runner.To(ctx, version)
	}
	return runner.Apply(ctx, cmd)
}
