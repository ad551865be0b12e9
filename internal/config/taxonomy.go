package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Veraticus/gastos-must-flow/internal/common"
	"github.com/Veraticus/gastos-must-flow/internal/model"
)

type taxonomyFile struct {
	Categories []struct {
		ID            string `json:"id" yaml:"id"`
		Name          string `json:"name" yaml:"name"`
		Subcategories []struct {
			ID       string   `json:"id" yaml:"id"`
			Name     string   `json:"name" yaml:"name"`
			Keywords []string `json:"keywords" yaml:"keywords"`
		} `json:"subcategories" yaml:"subcategories"`
	} `json:"categories" yaml:"categories"`
	PaymentMethods []struct {
		ID   string `json:"id" yaml:"id"`
		Name string `json:"name" yaml:"name"`
	} `json:"payment_methods" yaml:"payment_methods"`
}

// LoadTaxonomy reads a user's categories and payment methods from a YAML or
// JSON file, chosen by extension. Order in the file is preserved.
func LoadTaxonomy(path string) (model.Taxonomy, error) {
	data, err := os.ReadFile(ExpandPath(path)) // #nosec G304
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
	}

	var file taxonomyFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = json.Unmarshal(data, &file)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &file)
	default:
		return model.Taxonomy{}, fmt.Errorf("%w: unsupported taxonomy file %q", common.ErrInvalidConfig, path)
	}
	if err != nil {
		return model.Taxonomy{}, fmt.Errorf("parse taxonomy file: %w", err)
	}

	var tax model.Taxonomy
	for _, c := range file.Categories {
		if strings.TrimSpace(c.ID) == "" {
			return model.Taxonomy{}, fmt.Errorf("%w: category without id", common.ErrInvalidConfig)
		}
		category := model.Category{ID: c.ID, Name: c.Name}
		for _, s := range c.Subcategories {
			if strings.TrimSpace(s.ID) == "" {
				return model.Taxonomy{}, fmt.Errorf("%w: subcategory without id in %s", common.ErrInvalidConfig, c.ID)
			}
			category.Subcategories = append(category.Subcategories, model.Subcategory{
				ID:       s.ID,
				Name:     s.Name,
				Keywords: s.Keywords,
			})
		}
		tax.Categories = append(tax.Categories, category)
	}
	for _, pm := range file.PaymentMethods {
		if strings.TrimSpace(pm.ID) == "" {
			return model.Taxonomy{}, fmt.Errorf("%w: payment method without id", common.ErrInvalidConfig)
		}
		tax.PaymentMethods = append(tax.PaymentMethods, model.PaymentMethod{ID: pm.ID, Name: pm.Name})
	}
	return tax, nil
}
