package generation

import (
	_ "embed"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed styles.yaml
var defaultCatalog []byte

// Style describes one transformation variant.
type Style struct {
	Name          string   `yaml:"-"`
	Prompt        string   `yaml:"prompt"`
	Popularity    float64  `yaml:"popularity"`
	Compatibility float64  `yaml:"compatibility"`
	Audience      string   `yaml:"audience"`
	Notes         string   `yaml:"notes"`
	SellingPoints []string `yaml:"selling_points"`
}

// Catalog holds every known style and the category weights used for scoring.
type Catalog struct {
	DefaultCategoryPopularity float64            `yaml:"default_category_popularity"`
	CategoryPopularity        map[string]float64 `yaml:"category_popularity"`
	DefaultStyles             []string           `yaml:"default_styles"`
	Styles                    map[string]Style   `yaml:"styles"`
}

// DefaultCatalog returns the built-in catalog.
func DefaultCatalog() *Catalog {
	c, err := ParseCatalog(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded style catalog is invalid: %v", err))
	}
	return c
}

// LoadCatalog returns the built-in catalog, or the one at path when path is
// not empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading style catalog: %v", ErrInvalidConfig, err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%w: parsing style catalog: %v", ErrInvalidConfig, err)
	}
	if len(c.Styles) == 0 {
		return nil, fmt.Errorf("%w: style catalog defines no styles", ErrInvalidConfig)
	}

	normalized := make(map[string]Style, len(c.Styles))
	for name, s := range c.Styles {
		key := strings.ToLower(strings.TrimSpace(name))
		s.Name = key
		if strings.TrimSpace(s.Prompt) == "" {
			return nil, fmt.Errorf("%w: style %q has no prompt", ErrInvalidConfig, key)
		}
		if !inUnit(s.Popularity) || !inUnit(s.Compatibility) {
			return nil, fmt.Errorf("%w: style %q scores must be within [0, 1]", ErrInvalidConfig, key)
		}
		normalized[key] = s
	}
	c.Styles = normalized

	if c.DefaultCategoryPopularity == 0 {
		c.DefaultCategoryPopularity = 0.5
	}
	for _, name := range c.DefaultStyles {
		if _, ok := c.Styles[name]; !ok {
			return nil, fmt.Errorf("%w: default style %q is not defined", ErrInvalidConfig, name)
		}
	}
	return &c, nil
}

// Style looks up a style by name, case-insensitively.
func (c *Catalog) Style(name string) (Style, error) {
	s, ok := c.Styles[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Style{}, fmt.Errorf("%w: %q", ErrUnknownStyle, name)
	}
	return s, nil
}

// Resolve validates a list of style names, falling back to the catalog
// defaults when names is empty. Duplicates are dropped.
func (c *Catalog) Resolve(names []string) ([]Style, error) {
	if len(names) == 0 {
		names = c.DefaultStyles
	}
	seen := make(map[string]bool, len(names))
	out := make([]Style, 0, len(names))
	for _, n := range names {
		s, err := c.Style(n)
		if err != nil {
			return nil, err
		}
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out, nil
}

// Names returns every style name in sorted order.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.Styles))
	for n := range c.Styles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// CategoryWeight returns the popularity of a category.
func (c *Catalog) CategoryWeight(category string) float64 {
	if p, ok := c.CategoryPopularity[strings.ToLower(category)]; ok {
		return p
	}
	return c.DefaultCategoryPopularity
}

// Marketability scores how sellable a style variant of a category is:
// 0.5 + categoryPopularity×0.3 + stylePopularity×0.2, capped at 1.
func (c *Catalog) Marketability(category string, s Style) float64 {
	score := 0.5 + c.CategoryWeight(category)*0.3 + s.Popularity*0.2
	return round(math.Min(score, 1.0))
}

// DesignNotes returns the modeling notes for a style variant of category.
func (c *Catalog) DesignNotes(category string, s Style) string {
	return fmt.Sprintf("%s Optimized for the %q category.", strings.TrimSpace(s.Notes), category)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

// round trims float noise so scores compare and print cleanly.
func round(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
