// Package repository provides PostgreSQL access to the product catalog,
// retailer prices and review summaries.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lib/pq"

	"product-discovery/internal/common/errors"
	"product-discovery/internal/common/logger"
	"product-discovery/internal/models"
)

type ProductRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewProductRepository(db *sql.DB, log logger.Logger) *ProductRepository {
	return &ProductRepository{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "repository"}),
	}
}

const productColumns = `id, name, description, category, brand, color, features`

// GetProduct loads one product with its prices and review summary.
func (r *ProductRepository) GetProduct(ctx context.Context, productID string) (*models.Product, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, productID)

	product, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewProductNotFoundError(productID)
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	prices, err := r.GetPrices(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Prices = prices

	reviews, err := r.GetReviewSummary(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Reviews = reviews

	return product, nil
}

// GetPrices returns the latest price per retailer for a product.
func (r *ProductRepository) GetPrices(ctx context.Context, productID string) ([]models.PriceInfo, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT amount, currency, retailer, available, stock_count, updated_at
		FROM prices
		WHERE product_id = $1
		ORDER BY amount ASC`, productID)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	var prices []models.PriceInfo
	for rows.Next() {
		var p models.PriceInfo
		if err := rows.Scan(&p.Amount, &p.Currency, &p.Retailer, &p.Available, &p.StockCount, &p.UpdatedAt); err != nil {
			return nil, errors.NewDatabaseQueryFailedError(err)
		}
		prices = append(prices, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	return prices, nil
}

// GetReviewSummary returns the aggregated review insight for a product,
// or nil when the product has no reviews yet.
func (r *ProductRepository) GetReviewSummary(ctx context.Context, productID string) (*models.ReviewSummary, error) {
	var summary models.ReviewSummary
	var positive, negative, keywords pq.StringArray

	err := r.db.QueryRowContext(ctx, `
		SELECT average_rating, total_reviews, sentiment_score,
		       positive_points, negative_points, top_keywords
		FROM review_summaries
		WHERE product_id = $1`, productID).
		Scan(&summary.AverageRating, &summary.TotalReviews, &summary.SentimentScore,
			&positive, &negative, &keywords)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	summary.PositivePoints = positive
	summary.NegativePoints = negative
	summary.TopKeywords = keywords
	return &summary, nil
}

// FindByFilters returns catalog products matching the structured
// filters, used by the catalog tools when the conversation carries no
// explicit candidates. Price bounds match against available retailer
// prices: a product qualifies when at least one in-stock price falls
// inside the requested range.
func (r *ProductRepository) FindByFilters(ctx context.Context, filters models.QueryFilters, limit int) ([]models.Product, error) {
	priceMin, priceMax := 0.0, 0.0
	if filters.PriceMin != nil {
		priceMin = *filters.PriceMin
	}
	if filters.PriceMax != nil {
		priceMax = *filters.PriceMax
	}

	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE ($1 = '' OR category = $1)
		  AND ($2 = '' OR brand = $2)
		  AND ($3 = '' OR color = $3)
		  AND (($4 = 0 AND $5 = 0) OR EXISTS (
			SELECT 1 FROM prices
			WHERE product_id = products.id
			  AND available
			  AND ($4 = 0 OR amount >= $4)
			  AND ($5 = 0 OR amount <= $5)))
		LIMIT $6`

	rows, err := r.db.QueryContext(ctx, query,
		filters.Category, filters.Brand, filters.Color, priceMin, priceMax, limit)
	if err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, errors.NewDatabaseQueryFailedError(err)
		}
		products = append(products, *product)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewDatabaseQueryFailedError(err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProduct(row rowScanner) (*models.Product, error) {
	var p models.Product
	var brand, color sql.NullString
	var featuresRaw []byte

	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &brand, &color, &featuresRaw); err != nil {
		return nil, err
	}

	p.Brand = brand.String
	p.Color = color.String

	if len(featuresRaw) > 0 {
		if err := json.Unmarshal(featuresRaw, &p.Features); err != nil {
			return nil, err
		}
	}

	return &p, nil
}
