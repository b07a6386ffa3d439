package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"staybook/internal/config"
	"staybook/internal/database"
	"staybook/internal/domain"
	"staybook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type HomestaysConfig struct {
	Homestays []models.Homestay `yaml:"homestays"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		homestaysPath = flag.String("homestays", "configs/homestays.yaml", "path to homestays.yaml")
		dbPath        = flag.String("db", "./data/staybook.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*homestaysPath)
	if err != nil {
		return fmt.Errorf("read homestays: %w", err)
	}
	var cfg HomestaysConfig
	if err = yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return fmt.Errorf("parse homestays: %w", err)
	}
	if len(cfg.Homestays) == 0 {
		return fmt.Errorf("no homestays in yaml")
	}
	if err = config.ValidateHomestays(cfg.Homestays); err != nil {
		return err
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	created := 0
	updated := 0
	for _, h := range cfg.Homestays {
		_, err = db.GetHomestay(ctx, h.ID)
		switch {
		case err == nil:
			updated++
		case errors.Is(err, domain.ErrNotFound):
			created++
		default:
			return fmt.Errorf("get homestay %d: %w", h.ID, err)
		}
	}

	if err = db.SyncHomestays(ctx, cfg.Homestays); err != nil {
		return fmt.Errorf("sync homestays: %w", err)
	}

	fmt.Printf("done: created=%d updated=%d\n", created, updated)
	return nil
}
