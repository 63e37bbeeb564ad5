// Package seed holds the reference data a fresh store starts from: the
// category/part/alias taxonomy and the known retailers.
package seed

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/msrptw/backend/internal/domain"
)

// Part is one seedable part with its alias keywords
type Part struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases,omitempty"`
	Anti    []string `yaml:"anti,omitempty"`
}

// Category is one seedable category; part order is classification order
type Category struct {
	Name  string `yaml:"name"`
	Parts []Part `yaml:"parts"`
}

// File is the layout of a taxonomy seed file
type File struct {
	Categories []Category `yaml:"categories"`
	Sources    []string   `yaml:"sources,omitempty"`
}

// LoadFile reads a YAML seed file. Sources default to the built-in retailers
// when the file lists none.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read seed file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse seed file %s: %w", path, err)
	}
	if err := f.Validate(); err != nil {
		return File{}, fmt.Errorf("seed file %s: %w", path, err)
	}
	if len(f.Sources) == 0 {
		f.Sources = Default().Sources
	}
	return f, nil
}

// Validate rejects empty and duplicate names
func (f File) Validate() error {
	categories := make(map[string]bool, len(f.Categories))
	for _, c := range f.Categories {
		if c.Name == "" {
			return fmt.Errorf("%w: category without name", domain.ErrInvalidRequest)
		}
		if categories[c.Name] {
			return fmt.Errorf("%w: duplicate category %q", domain.ErrInvalidRequest, c.Name)
		}
		categories[c.Name] = true

		parts := make(map[string]bool, len(c.Parts))
		for _, p := range c.Parts {
			if p.Name == "" {
				return fmt.Errorf("%w: part without name in %q", domain.ErrInvalidRequest, c.Name)
			}
			if parts[p.Name] {
				return fmt.Errorf("%w: duplicate part %q in %q", domain.ErrInvalidRequest, p.Name, c.Name)
			}
			parts[p.Name] = true
		}
	}
	return nil
}

// Taxonomy converts the seed into domain categories with sequential ids
// starting at 1, the way a freshly migrated store numbers them.
func (f File) Taxonomy() []domain.Category {
	var partID, aliasID int64
	categories := make([]domain.Category, 0, len(f.Categories))

	for ci, c := range f.Categories {
		category := domain.Category{ID: int64(ci + 1), Name: c.Name, Position: ci}
		for pi, p := range c.Parts {
			partID++
			part := domain.Part{ID: partID, CategoryID: category.ID, Name: p.Name, Position: pi}
			for _, name := range p.Aliases {
				aliasID++
				part.Aliases = append(part.Aliases, domain.Alias{ID: aliasID, PartID: partID, Name: name})
			}
			for _, name := range p.Anti {
				aliasID++
				part.Aliases = append(part.Aliases, domain.Alias{ID: aliasID, PartID: partID, Name: name, Anti: true})
			}
			category.Parts = append(category.Parts, part)
		}
		categories = append(categories, category)
	}
	return categories
}

// Default returns the built-in taxonomy and retailers
func Default() File {
	return File{
		Categories: []Category{
			{
				Name: "雞肉",
				Parts: []Part{
					{Name: "全雞"},
					{Name: "雞切塊", Aliases: []string{"切塊"}},
					{Name: "雞胸肉", Aliases: []string{"雞胸", "清肉"}},
					{Name: "里肌", Aliases: []string{"雞柳"}, Anti: []string{"豬"}},
					{Name: "骨腿"},
					{Name: "腿肉", Aliases: []string{"去骨腿"}},
					{Name: "棒腿", Aliases: []string{"小腿"}},
					{Name: "腿排"},
				},
			},
			{
				Name: "豬肉",
				Parts: []Part{
					{Name: "五花肉", Aliases: []string{"三層肉"}},
					{Name: "梅花肉", Aliases: []string{"梅花"}},
					{Name: "豬小排", Aliases: []string{"小排"}},
					{Name: "里肌肉", Aliases: []string{"大里肌", "小里肌"}},
					{Name: "豬腿肉", Aliases: []string{"後腿", "前腿"}},
					{Name: "絞肉"},
					{Name: "肉片"},
					{Name: "肉絲"},
					{Name: "軟骨"},
					{Name: "肋骨"},
					{Name: "排骨", Anti: []string{"小排"}},
				},
			},
			{
				Name: "豆類",
				Parts: []Part{
					{Name: "紅豆"},
					{Name: "黃豆", Anti: []string{"豆漿", "豆腐"}},
				},
			},
			{
				Name: "蔬菜",
				Parts: []Part{
					{Name: "紅蘿蔔", Aliases: []string{"胡蘿蔔"}},
					{Name: "高麗菜", Aliases: []string{"甘藍"}},
					{Name: "洋蔥"},
					{Name: "馬鈴薯", Aliases: []string{"土豆"}},
				},
			},
			{
				Name: "水果",
				Parts: []Part{
					{Name: "香蕉"},
					{Name: "蘋果", Anti: []string{"蘋果汁", "蘋果醋"}},
					{Name: "芭樂"},
				},
			},
		},
		Sources: []string{"愛買", "頂好", "大潤發", "楓康"},
	}
}
