package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"storefront-service/internal/config"
	"storefront-service/internal/observability"
)

// Ops tool for the purchase history table: inspect what players bought
// and clean records up when support needs to re-enable a purchase.
func main() {
	cfg, err := config.Load("configs/config.yaml")

	logger := observability.SetupLogger("dev")
	if err != nil {
		logger.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	var dsn string

	rootCmd := &cobra.Command{Use: "history-tool"}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", cfg.Postgres.DSN, "PostgreSQL DSN")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recent purchase records",
		Run: func(cmd *cobra.Command, _ []string) {
			limit, _ := cmd.Flags().GetInt("limit")
			conn := connect(dsn)
			defer conn.Close(context.Background())

			rows, err := conn.Query(context.Background(),
				`SELECT item_id, transaction_id, purchased_at FROM purchase_history ORDER BY purchased_at DESC LIMIT $1`, limit)
			if err != nil {
				logger.Error("query failed", "error", err)
				os.Exit(1)
			}
			defer rows.Close()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ITEM ID\tTRANSACTION ID\tPURCHASED AT")
			for rows.Next() {
				var itemID int
				var txnID string
				var purchasedAt time.Time
				if err := rows.Scan(&itemID, &txnID, &purchasedAt); err != nil {
					logger.Error("scan failed", "error", err)
					os.Exit(1)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\n", itemID, txnID, purchasedAt.Format(time.RFC3339))
			}
			if err := w.Flush(); err != nil {
				logger.Error("failed to flush writer", "error", err)
			}
		},
	}
	listCmd.Flags().Int("limit", 20, "Number of records to show")

	countCmd := &cobra.Command{
		Use:   "count [item-id]",
		Short: "Count purchases of one item",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			conn := connect(dsn)
			defer conn.Close(context.Background())

			var n int
			err := conn.QueryRow(context.Background(),
				`SELECT COUNT(*) FROM purchase_history WHERE item_id = $1`, args[0]).Scan(&n)
			if err != nil {
				logger.Error("query failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("item %s: %d purchase(s)\n", args[0], n)
		},
	}

	removeCmd := &cobra.Command{
		Use:   "remove [item-id]",
		Short: "Remove all history for one item",
		Args:  cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			conn := connect(dsn)
			defer conn.Close(context.Background())

			tag, err := conn.Exec(context.Background(),
				`DELETE FROM purchase_history WHERE item_id = $1`, args[0])
			if err != nil {
				logger.Error("delete failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("removed %d record(s) for item %s\n", tag.RowsAffected(), args[0])
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete the entire purchase history",
		Run: func(cmd *cobra.Command, _ []string) {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				fmt.Println("refusing to clear without --yes")
				os.Exit(1)
			}
			conn := connect(dsn)
			defer conn.Close(context.Background())

			tag, err := conn.Exec(context.Background(), `DELETE FROM purchase_history`)
			if err != nil {
				logger.Error("delete failed", "error", err)
				os.Exit(1)
			}
			fmt.Printf("removed %d record(s)\n", tag.RowsAffected())
		},
	}
	clearCmd.Flags().Bool("yes", false, "Confirm clearing all history")

	rootCmd.AddCommand(listCmd, countCmd, removeCmd, clearCmd)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func connect(dsn string) *pgx.Conn {
	conn, err := pgx.Connect(context.Background(), dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		os.Exit(1)
	}
	return conn
}
