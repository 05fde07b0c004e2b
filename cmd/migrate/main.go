// Command migrate aplica las migraciones embebidas con goose.
//
//	go run ./cmd/migrate [up|down|status|reset]
package main

import (
	"context"
	"log"
	"os"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"chirp/internal/config"
	"chirp/internal/db"
)

func main() {
	_ = godotenv.Load()

	var opts struct {
		DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	}
	if err := env.Parse(&opts); err != nil {
		log.Fatal(err)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, &config.Config{DatabaseURL: opts.DatabaseURL})
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, command); err != nil {
		log.Fatalf("migrate %s: %v", command, err)
	}
	log.Printf("migrate %s: ok", command)
}
