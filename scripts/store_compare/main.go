// Command store_compare checks a copy of the entity store against the store
// the API is configured to use, for example after moving from SQLite to
// PostgreSQL. It exits non-zero when a seeded key differs.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/dept-portal-api/internal/kv"
	"github.com/noah-isme/dept-portal-api/internal/models"
	"github.com/noah-isme/dept-portal-api/pkg/config"
)

func main() {
	var (
		against string
		timeout time.Duration
	)
	flag.StringVar(&against, "against", "", `store to compare with: "sqlite:<path>", "postgres://..." or "redis://...[?prefix=p]"`)
	flag.DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	flag.Parse()

	if against == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	primary, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Store.Driver, err)
	}
	defer primary.Close() //nolint:errcheck

	other, err := kv.OpenURL(ctx, against)
	if err != nil {
		log.Fatalf("open %s: %v", against, err)
	}
	defer other.Close() //nolint:errcheck

	diffs, err := kv.Compare(ctx, primary, other, models.StorageKeys)
	if err != nil {
		log.Fatalf("compare: %v", err)
	}

	breaking, optional := printReport(primary.Name(), other.Name(), diffs)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func printReport(left, right string, diffs []kv.KeyDiff) (breaking, optional int) {
	fmt.Println("Store Compare Report")
	fmt.Println("====================")
	for _, d := range diffs {
		status := "OK"
		if !d.Match {
			status = "DIFF"
			if d.Critical {
				breaking++
			} else {
				optional++
			}
		}
		fmt.Printf("[%s] %s\n", status, d.Key)
		fmt.Printf("  %s: present=%t records=%d\n", left, d.InLeft, d.Left)
		fmt.Printf("  %s: present=%t records=%d\n", right, d.InRight, d.Right)
		if !d.Match {
			fmt.Printf("  Critical: %t\n", d.Critical)
		}
	}
	return breaking, optional
}
