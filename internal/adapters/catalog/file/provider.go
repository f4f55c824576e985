package file

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"storefront-service/internal/core/domain"
)

// Provider is a CatalogProvider that reads the item catalog from a YAML
// file shipped alongside the service.
type Provider struct {
	path string
}

func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

type catalogFile struct {
	Items []domain.Item `yaml:"items"`
}

func (p *Provider) LoadItems(_ context.Context) (map[int]domain.Item, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return nil, fmt.Errorf("error reading catalog file: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("error parsing catalog file: %w", err)
	}

	items := make(map[int]domain.Item, len(cf.Items))
	for _, item := range cf.Items {
		if item.ID <= 0 {
			return nil, fmt.Errorf("catalog item %q has non-positive id %d", item.Name, item.ID)
		}
		if _, dup := items[item.ID]; dup {
			return nil, fmt.Errorf("catalog item id %d appears twice", item.ID)
		}
		items[item.ID] = item
	}
	return items, nil
}
