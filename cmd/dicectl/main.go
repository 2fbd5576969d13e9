// cmd/dicectl/main.go
package main

import (
	"context"

	"github.com/jason-s-yu/dicetable/internal/cli"
	"github.com/jason-s-yu/dicetable/internal/config"
	"github.com/jason-s-yu/dicetable/internal/database"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	cli.Execute(func(ctx context.Context) (cli.Store, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		store, err := database.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, err
		}
		return store, nil
	})
}
