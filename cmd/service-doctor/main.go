package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/twmb/franz-go/pkg/kgo"

	"storefront-service/internal/config"
	"storefront-service/internal/observability"
)

// Check describes one diagnostic check.
type Check struct {
	Name string
	Func func(ctx context.Context) error
}

// Connectivity doctor for the storefront deployment: verifies every
// collaborator the purchase engine depends on is reachable before anyone
// blames the engine itself.
func main() {
	cfg, err := config.Load("configs/config.yaml")
	logger := observability.SetupLogger("dev")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	checks := []Check{
		{
			Name: "PostgreSQL (purchase history)",
			Func: func(ctx context.Context) error {
				conn, err := pgx.Connect(ctx, cfg.Postgres.DSN)
				if err != nil {
					return err
				}
				defer conn.Close(ctx)
				return conn.Ping(ctx)
			},
		},
		{
			Name: "Redis (history cache / rate limiter)",
			Func: func(ctx context.Context) error {
				rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
				defer rdb.Close()
				return rdb.Ping(ctx).Err()
			},
		},
		{
			Name: "Kafka (completion events)",
			Func: func(ctx context.Context) error {
				client, err := kgo.NewClient(kgo.SeedBrokers(strings.Split(cfg.Kafka.BootstrapServers, ",")...))
				if err != nil {
					return err
				}
				defer client.Close()
				return client.Ping(ctx)
			},
		},
		{
			Name: "Storefront API (/health)",
			Func: func(ctx context.Context) error {
				return httpCheck(ctx, "http://localhost:"+cfg.Server.Port+"/health")
			},
		},
		{
			Name: "Platform gateway",
			Func: func(ctx context.Context) error {
				if cfg.Platform.Mode != "http" {
					return nil // simulated gateway needs no connectivity
				}
				return httpCheck(ctx, cfg.Platform.BaseURL+"/health")
			},
		},
		{
			Name: "Reward backend",
			Func: func(ctx context.Context) error {
				return httpCheck(ctx, cfg.Rewards.BaseURL+"/health")
			},
		},
	}

	type result struct {
		name string
		err  error
	}

	results := make([]result, len(checks))
	var wg sync.WaitGroup
	for i, check := range checks {
		wg.Add(1)
		go func(i int, check Check) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			results[i] = result{name: check.Name, err: check.Func(ctx)}
		}(i, check)
	}
	wg.Wait()

	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	failed := 0
	for _, res := range results {
		if res.err != nil {
			failed++
			fmt.Printf("%s  %s: %v\n", bad("FAIL"), res.name, res.err)
		} else {
			fmt.Printf("%s    %s\n", ok("OK"), res.name)
		}
	}

	if failed > 0 {
		fmt.Printf("\n%d of %d checks failed\n", failed, len(checks))
		os.Exit(1)
	}
	fmt.Println("\nall checks passed")
}

func httpCheck(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
