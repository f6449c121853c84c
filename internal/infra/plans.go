package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"guru/internal/domain"
)

// planCatalogFile is the on-disk shape of PLAN_CATALOG_PATH.
//
//	plans:
//	  scholar: {price: 499}
//	  genius: {price: 990}
type planCatalogFile struct {
	Plans map[string]struct {
		Price int64 `yaml:"price"`
	} `yaml:"plans"`
}

// LoadPriceList returns the default prices overlaid with the catalog file at path.
// Quotas are fixed per plan and cannot be overridden.
func LoadPriceList(path string) (domain.PriceList, error) {
	prices := domain.DefaultPrices()
	if strings.TrimSpace(path) == "" {
		return prices, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan catalog: %w", err)
	}
	return parsePriceList(raw, prices)
}

func parsePriceList(raw []byte, prices domain.PriceList) (domain.PriceList, error) {
	var file planCatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse plan catalog: %w", err)
	}
	for name, entry := range file.Plans {
		plan, err := domain.ParsePlan(name)
		if err != nil {
			return nil, err
		}
		if plan == domain.PlanFree {
			return nil, fmt.Errorf("plan catalog: %s is not purchasable", plan)
		}
		if entry.Price <= 0 {
			return nil, fmt.Errorf("plan catalog: price for %s must be positive", plan)
		}
		prices[plan] = entry.Price
	}
	return prices, nil
}
