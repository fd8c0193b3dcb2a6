// Package document renders the per-item modeling guide: a markdown file
// that shows the original and every successful style variant, their
// scores, and a suggested sales strategy.
package document

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/phrazzld/stylebatch/internal/domain"
	"github.com/phrazzld/stylebatch/internal/generation"
	"github.com/phrazzld/stylebatch/internal/storage"
)

//go:embed guide.md.tmpl
var guideTemplate string

// ErrNoVariants is returned when Render is called without a successful variant.
var ErrNoVariants = errors.New("no successful variants to document")

var basePrices = map[string]float64{
	"chair":   50,
	"table":   75,
	"bed":     100,
	"sofa":    125,
	"storage": 60,
}

const defaultBasePrice = 75

var categoryPoints = map[string]string{
	"chair":   "Comfortable seating with a stylish silhouette",
	"table":   "Practical and good-looking table design",
	"bed":     "Sets a calm, cozy bedroom scene",
	"sofa":    "A centerpiece for any living room",
	"storage": "Keeps builds tidy without sacrificing looks",
}

// Renderer writes modeling guides into the documents area.
type Renderer struct {
	store   *storage.Store
	catalog *generation.Catalog
	tmpl    *template.Template
	logger  *slog.Logger
	now     func() time.Time
}

// NewRenderer creates a Renderer using the built-in guide template.
func NewRenderer(store *storage.Store, catalog *generation.Catalog, logger *slog.Logger) *Renderer {
	tmpl := template.Must(template.New("guide").Funcs(template.FuncMap{
		"percent": func(v float64) int { return int(math.Round(v * 100)) },
		"date":    func(t time.Time) string { return t.Format("2006-01-02") },
		"title":   title,
	}).Parse(guideTemplate))

	return &Renderer{
		store:   store,
		catalog: catalog,
		tmpl:    tmpl,
		logger:  logger,
		now:     time.Now,
	}
}

type styleView struct {
	Name          string
	Link          string
	Compatibility float64
	Marketability float64
	Notes         string
}

type guideView struct {
	Record         domain.Record
	GeneratedAt    time.Time
	OriginalLink   string
	Dimensions     string
	Materials      string
	Price          string
	Description    string
	Styles         []styleView
	SuggestedPrice int
	TargetAudience string
	SellingPoints  []string
}

// Render writes the guide for r and returns its path. download may be nil
// when the original is unknown. Only successful variants are listed.
func (rn *Renderer) Render(ctx context.Context, r domain.Record, download *domain.StageResult, variants []domain.StageResult) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	view := guideView{
		Record:      r,
		GeneratedAt: rn.now(),
		Dimensions:  r.MetadataString("dimensions", "N/A"),
		Materials:   r.MetadataString("materials", "N/A"),
		Price:       r.MetadataString("price", "N/A"),
		Description: r.MetadataString("description", "N/A"),
	}
	if download != nil && download.Succeeded {
		view.OriginalLink = rn.link(download.ArtifactRef)
	}

	for _, v := range variants {
		if !v.Succeeded {
			continue
		}
		sv := styleView{Name: v.Variant, Link: rn.link(v.ArtifactRef), Notes: v.Notes}
		if v.Scores != nil {
			sv.Compatibility = v.Scores.Compatibility
			sv.Marketability = v.Scores.Marketability
		}
		view.Styles = append(view.Styles, sv)
	}
	if len(view.Styles) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoVariants, r.ID)
	}

	view.SuggestedPrice = SuggestedPrice(r.Category, meanMarketability(view.Styles))
	view.TargetAudience = rn.audience(view.Styles)
	view.SellingPoints = rn.sellingPoints(r, view.Styles)

	var b strings.Builder
	if err := rn.tmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("failed to render guide for %s: %w", r.ID, err)
	}

	path, err := rn.store.Write(storage.AreaDocuments, storage.DocumentName(r), []byte(b.String()))
	if err != nil {
		return "", err
	}
	rn.logger.InfoContext(ctx, "guide written",
		"item_id", r.ID,
		"path", path,
		"styles", len(view.Styles))
	return path, nil
}

// SuggestedPrice is the category base price scaled by marketability:
// base × (0.5 + 1.5 × marketability), rounded.
func SuggestedPrice(category string, marketability float64) int {
	base, ok := basePrices[strings.ToLower(category)]
	if !ok {
		base = defaultBasePrice
	}
	return int(math.Round(base * (0.5 + marketability*1.5)))
}

// link makes artifact reachable from the documents directory.
func (rn *Renderer) link(artifact string) string {
	rel, err := filepath.Rel(rn.store.Dir(storage.AreaDocuments), artifact)
	if err != nil {
		return filepath.ToSlash(artifact)
	}
	return filepath.ToSlash(rel)
}

func (rn *Renderer) audience(styles []styleView) string {
	best := styles[0]
	for _, s := range styles[1:] {
		if s.Compatibility > best.Compatibility {
			best = s
		}
	}
	if st, err := rn.catalog.Style(best.Name); err == nil && st.Audience != "" {
		return st.Audience
	}
	return "General players"
}

func (rn *Renderer) sellingPoints(r domain.Record, styles []styleView) []string {
	var points []string
	if r.Brand != "" && !strings.EqualFold(r.Brand, "unknown") {
		points = append(points, fmt.Sprintf("High-quality design from %s", r.Brand))
	}
	if p, ok := categoryPoints[strings.ToLower(r.Category)]; ok {
		points = append(points, p)
	}
	if len(styles) >= 3 {
		points = append(points, fmt.Sprintf("%d styles to cover different player tastes", len(styles)))
	}
	for _, s := range styles {
		if s.Compatibility >= 0.8 {
			points = append(points, "Optimized, high-quality asset for the platform")
			break
		}
	}
	for _, s := range styles {
		if st, err := rn.catalog.Style(s.Name); err == nil && len(st.SellingPoints) > 0 {
			points = append(points, st.SellingPoints[0])
		}
	}
	return points
}

func meanMarketability(styles []styleView) float64 {
	if len(styles) == 0 {
		return 0
	}
	var sum float64
	for _, s := range styles {
		sum += s.Marketability
	}
	return sum / float64(len(styles))
}

func title(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
