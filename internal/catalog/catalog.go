// Package catalog provides the immutable product catalog the market is
// built from. Products are loaded once at startup from a TOML file and
// never change during a run.
package catalog

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/talgya/agora/internal/dist"
)

// Category groups products by the kind of need they satisfy. Agents
// generate demand per category, so every product belongs to exactly one.
type Category uint8

const (
	CategoryFood Category = iota
	CategoryClothing
	CategoryTransport
	CategoryWater
	CategoryEntertainment
)

// Categories lists every category in declaration order.
var Categories = [5]Category{
	CategoryFood,
	CategoryClothing,
	CategoryTransport,
	CategoryWater,
	CategoryEntertainment,
}

var categoryNames = [5]string{"Food", "Clothing", "Transport", "Water", "Entertainment"}

// String returns the category name used in config files and log records.
func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return fmt.Sprintf("Category(%d)", uint8(c))
}

// CategoryFromString parses a category name. Unknown names report an error
// so a typo in the catalog fails loudly at startup.
func CategoryFromString(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown product category %q", s)
}

// Product describes one tradable commodity: identity, durability, and the
// three distributions that seed agent beliefs and factory economics.
type Product struct {
	ID         uint64   `json:"id"`
	Name       string   `json:"name"`
	Category   Category `json:"category"`
	Durability float64  `json:"durability"` // Fraction of unsold stock surviving a round, 0–1

	PriceDist   dist.Normal `json:"price_dist"`   // Seeds agent belief prices and factory reference prices
	ElasticDist dist.Normal `json:"elastic_dist"` // Seeds agent demand elasticity
	CostDist    dist.Normal `json:"cost_dist"`    // Seeds factory per-unit production cost
}

// NewProduct builds a product with explicit distributions.
func NewProduct(id uint64, name string, category Category, durability float64, price, elastic, cost dist.Normal) Product {
	return Product{
		ID:          id,
		Name:        name,
		Category:    category,
		Durability:  durability,
		PriceDist:   price,
		ElasticDist: elastic,
		CostDist:    cost,
	}
}

// productConfig is the TOML shape of one catalog entry.
type productConfig struct {
	ID                uint64  `toml:"id"`
	Name              string  `toml:"name"`
	Category          string  `toml:"category"`
	Durability        float64 `toml:"durability"`
	MeanPrice         float64 `toml:"mean_price"`
	StdDevPrice       float64 `toml:"std_dev_price"`
	MeanElastic       float64 `toml:"mean_elastic"`
	StdDevElastic     float64 `toml:"std_dev_elastic"`
	MeanProductCost   float64 `toml:"mean_product_cost"`
	StdDevProductCost float64 `toml:"std_dev_product_cost"`
}

type catalogConfig struct {
	Products []productConfig `toml:"products"`
}

// Load reads the product catalog from a TOML file.
func Load(path string) ([]Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog from raw TOML.
func Parse(data []byte) ([]Product, error) {
	var cfg catalogConfig
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if len(cfg.Products) == 0 {
		return nil, fmt.Errorf("catalog holds no products")
	}

	products := make([]Product, 0, len(cfg.Products))
	seen := make(map[uint64]bool, len(cfg.Products))
	for _, pc := range cfg.Products {
		category, err := CategoryFromString(pc.Category)
		if err != nil {
			return nil, fmt.Errorf("product %q: %w", pc.Name, err)
		}
		if seen[pc.ID] {
			return nil, fmt.Errorf("duplicate product id %d", pc.ID)
		}
		seen[pc.ID] = true
		if pc.Durability < 0 || pc.Durability > 1 {
			return nil, fmt.Errorf("product %q: durability %v outside [0,1]", pc.Name, pc.Durability)
		}

		products = append(products, NewProduct(
			pc.ID, pc.Name, category, pc.Durability,
			dist.NewNormal(pc.ID, pc.Name+"_price_dist", pc.MeanPrice, pc.StdDevPrice),
			dist.NewNormal(pc.ID, pc.Name+"_elastic_dist", pc.MeanElastic, pc.StdDevElastic),
			dist.NewNormal(pc.ID, pc.Name+"_cost_dist", pc.MeanProductCost, pc.StdDevProductCost),
		))
	}
	return products, nil
}
