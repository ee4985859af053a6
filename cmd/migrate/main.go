package main

import (
	"context"
	"flag"
	"log"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/dropDatabas3/ofbmock/internal/config"
	"github.com/dropDatabas3/ofbmock/internal/keys"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to YAML config (empty = env only)")
		envFile    = flag.String("env-file", ".env", "Path to .env (loaded if present)")
		dsnFlag    = flag.String("dsn", "", "Postgres DSN (overrides keys.postgres.dsn)")
	)
	flag.Parse()

	_ = godotenv.Load(*envFile)

	// Positional args: [action] [steps]
	action := "up"
	steps := 0
	args := flag.Args()
	if len(args) >= 1 && args[0] != "" {
		action = strings.ToLower(args[0])
	}
	if len(args) >= 2 {
		if n, err := strconv.Atoi(args[1]); err == nil && n > 0 {
			steps = n
		}
	}
	if action != "up" && action != "down" {
		log.Fatalf("unknown action %q. Use: up | down [steps]", action)
	}

	dsn := *dsnFlag
	if dsn == "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("config load: %v", err)
		}
		dsn = cfg.Keys.Postgres.DSN
	}
	if dsn == "" {
		log.Fatal("missing DSN: use -dsn, keys.postgres.dsn or KEYS_PG_DSN")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("pgxpool: %v", err)
	}
	defer pool.Close()

	start := time.Now()
	applied, err := keys.ApplyMigrations(ctx, pool, action, steps)
	for _, f := range applied {
		log.Printf("OK %s", path.Base(f))
	}
	if err != nil {
		log.Fatalf("%s: %v", action, err)
	}
	if len(applied) == 0 {
		log.Println("No migrations found. Nothing to do.")
		return
	}
	log.Printf("%s migrations completed (%d, %s).", action, len(applied), time.Since(start).Truncate(time.Millisecond))
}
