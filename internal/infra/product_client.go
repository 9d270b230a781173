package infra

import (
	"checkout-service/internal/domain"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type productDTO struct {
	ID              uint64          `json:"id"`
	Name            string          `json:"name"`
	Image           string          `json:"image"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	BulkDiscount    struct {
		Threshold    int64           `json:"threshold"`
		ExtraPercent decimal.Decimal `json:"extraPercent"`
	} `json:"bulkDiscount"`
	Stock             int64  `json:"stock"`
	IsAvailable       *bool  `json:"isAvailable"`
	WarehouseLocation string `json:"warehouseLocation"`
}

func (p productDTO) toDomain() *domain.Product {
	available := p.Stock > 0
	if p.IsAvailable != nil {
		available = *p.IsAvailable
	}
	return &domain.Product{
		ID:               p.ID,
		Name:             p.Name,
		Image:            p.Image,
		BasePrice:        p.Price,
		DiscountPercent:  p.DiscountPercent,
		BulkThreshold:    p.BulkDiscount.Threshold,
		BulkExtraPercent: p.BulkDiscount.ExtraPercent,
		Stock:            p.Stock,
		IsAvailable:      available,
		Location:         p.WarehouseLocation,
	}
}

type ProductClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	return &ProductClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *ProductClient) GetProduct(ctx context.Context, id uint64) (*domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/products/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned status %d", resp.StatusCode)
	}

	var p productDTO
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, err
	}
	return p.toDomain(), nil
}
