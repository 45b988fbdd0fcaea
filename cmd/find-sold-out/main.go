package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/gibbarosa/storefront/internal/cms"
	"github.com/gibbarosa/storefront/internal/config"
	"github.com/gibbarosa/storefront/internal/domain"
	"github.com/gibbarosa/storefront/internal/repository/sanity"
)

const pageSize = 50

func main() {
	match := flag.String("match", "", "only list products whose id, slug or name contains this text")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	products := sanity.NewProductRepository(cms.NewClient(cfg.Sanity, logger), logger)
	ctx := context.Background()
	needle := strings.ToLower(*match)

	fmt.Printf("Listing sold-out products\n\n")

	total := 0
	for offset := 0; ; offset += pageSize {
		page, err := products.ListSoldOut(ctx, offset, pageSize)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to list products: %v\n", err)
			os.Exit(1)
		}

		for _, p := range page {
			name := p.Name.In(domain.LanguageEN)
			if needle != "" && !strings.Contains(strings.ToLower(p.ID+" "+p.Slug+" "+name), needle) {
				continue
			}
			total++
			fmt.Printf("%-40s %-30s %s\n", p.ID, p.Slug, name)
		}

		if len(page) < pageSize {
			break
		}
	}

	fmt.Printf("\n%d sold-out product(s)\n", total)
	if total > 0 {
		fmt.Printf("Restore one with: POST /v1/admin/products/<id>/restore-stock\n")
	}
}
