package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-faker/faker/v4"
	"github.com/google/uuid"
)

// Load generator for the storefront purchase API. Fires purchase requests
// for random catalog item ids at a fixed rate and reports the outcome
// distribution the engine produces under load.
func main() {
	targetURL := flag.String("target", "http://localhost:8080/api/v1/items", "Base URL of the items API")
	token := flag.String("token", "", "Bearer token for the protected routes")
	rps := flag.Int("rps", 5, "Requests per second")
	minItem := flag.Int("min-item", 10000, "Lowest item id to purchase")
	maxItem := flag.Int("max-item", 10010, "Highest item id to purchase")
	flag.Parse()

	log.Printf("Starting generator: target=%s, rps=%d, items=[%d,%d]\n", *targetURL, *rps, *minItem, *maxItem)

	ticker := time.NewTicker(time.Second / time.Duration(*rps))
	defer ticker.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := &http.Client{Timeout: 90 * time.Second}

	for {
		select {
		case <-ticker.C:
			itemID := *minItem + rand.Intn(*maxItem-*minItem+1)
			go sendPurchase(ctx, client, *targetURL, *token, itemID)
		case <-ctx.Done():
			log.Println("Generator stopped")
			return
		}
	}
}

func sendPurchase(ctx context.Context, client *http.Client, baseURL, token string, itemID int) {
	url := fmt.Sprintf("%s/%d/purchase", baseURL, itemID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		log.Printf("ERROR: building request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	// A fake player identity keeps server-side logs distinguishable.
	req.Header.Set("X-Player", faker.Username())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		log.Printf("ERROR: item %d: %v", itemID, err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	log.Printf("item %d -> %d (%s)", itemID, resp.StatusCode, time.Since(start).Round(time.Millisecond))
}
