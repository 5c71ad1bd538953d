package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/JoelleM-design/veeni-app-sub002/internal/models"
)

// DefaultWinesTable is used when no table is configured.
const DefaultWinesTable = "wines"

// WinesQuery builds the dataset query for table, which may be schema
// qualified ("catalog.wines"). Identifiers are quoted.
func WinesQuery(table string) string {
	if table == "" {
		table = DefaultWinesTable
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()

	return fmt.Sprintf(`
		SELECT COALESCE(name, ''), COALESCE(year, 0)::int, COALESCE(region, ''),
		       COALESCE(producer, ''), COALESCE(grapes, '{}')::text[], COALESCE(country, ''),
		       COALESCE(price::text, '0'), COALESCE(rating, 0)::float8
		FROM %s
		ORDER BY name, year
	`, ident)
}

// LoadWines reads every row of the wine dataset table.
func LoadWines(ctx context.Context, table string) ([]models.DatasetEntry, error) {
	if Pool == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := Pool.Query(ctx, WinesQuery(table))
	if err != nil {
		return nil, fmt.Errorf("failed to query wines: %w", err)
	}
	defer rows.Close()

	var wines []models.DatasetEntry
	for rows.Next() {
		var e models.DatasetEntry
		var price string
		if err := rows.Scan(&e.Name, &e.Year, &e.Region, &e.Producer, &e.Grapes, &e.Country, &price, &e.Rating); err != nil {
			return nil, fmt.Errorf("failed to scan wine: %w", err)
		}
		e.Price, err = decimal.NewFromString(price)
		if err != nil {
			e.Price = decimal.Zero
		}
		wines = append(wines, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read wines: %w", err)
	}
	return wines, nil
}
