package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"anonchat/backend/internal/api/handler"
	"anonchat/backend/internal/config"
	"anonchat/backend/internal/storage"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <stats|rooms> [args]")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch os.Args[1] {
	case "stats":
		if err := printStats(ctx, config.Getenv("ADMIN_API_URL", "http://localhost:8080"), config.Getenv("ADMIN_API_TOKEN", "")); err != nil {
			log.Fatalf("Error reading stats: %v", err)
		}
	case "rooms":
		limit := 20
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				fmt.Println("Usage: admin rooms [limit]")
				os.Exit(1)
			}
			limit = n
		}
		if err := printRooms(ctx, config.Getenv("DATABASE_DSN", ""), limit); err != nil {
			log.Fatalf("Error listing rooms: %v", err)
		}
	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func printStats(ctx context.Context, baseURL, token string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/stats", nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats handler.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return err
	}
	fmt.Printf("Active chats: %d\nWaiting: %d\n", stats.ActiveChats, stats.Waiting)
	return nil
}

func printRooms(ctx context.Context, dsn string, limit int) error {
	if dsn == "" {
		return fmt.Errorf("DATABASE_DSN is not set")
	}
	db, err := storage.OpenDatabase(dsn)
	if err != nil {
		return err
	}

	rooms, err := storage.NewStorageService(db, nil).RecentRooms(ctx, limit) // No redis needed for admin CLI
	if err != nil {
		return err
	}

	for _, r := range rooms {
		ended := "-"
		if r.EndedAt != nil {
			ended = r.EndedAt.Format(time.RFC3339)
		}
		fmt.Printf("%s  %s <-> %s  active=%t  started=%s  ended=%s  reason=%s\n",
			r.RoomID, r.User1ID, r.User2ID, r.IsActive, r.StartedAt.Format(time.RFC3339), ended, r.EndReason)
	}
	return nil
}
