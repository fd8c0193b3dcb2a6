package generation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/stylebatch/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	assert.Equal(t, []string{"cartoony", "modern", "minimalist"}, c.DefaultStyles)
	assert.Equal(t, []string{"cartoony", "fantasy", "minimalist", "modern", "realistic", "retro"}, c.Names())

	compat := map[string]float64{
		"cartoony": 0.95, "modern": 0.85, "minimalist": 0.90,
		"fantasy": 0.85, "realistic": 0.75, "retro": 0.80,
	}
	for name, want := range compat {
		s, err := c.Style(name)
		require.NoError(t, err)
		assert.Equal(t, want, s.Compatibility, name)
		assert.NotEmpty(t, s.Audience, name)
	}
}

func TestCatalog_Marketability(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	tests := []struct {
		category string
		style    string
		want     float64
	}{
		{"chair", "cartoony", 0.92},
		{"bed", "cartoony", 0.95},
		{"table", "modern", 0.87},
		{"storage", "minimalist", 0.8},
		{"lamp", "minimalist", 0.77},
		{"Sofa", "retro", 0.88},
	}
	for _, tc := range tests {
		s, err := c.Style(tc.style)
		require.NoError(t, err)
		assert.InDelta(t, tc.want, c.Marketability(tc.category, s), 1e-9, "%s/%s", tc.category, tc.style)
	}

	// Capped at 1
	hot := Style{Name: "hot", Popularity: 1}
	c.CategoryPopularity["throne"] = 1
	assert.Equal(t, 1.0, c.Marketability("throne", hot))
}

func TestCatalog_Resolve(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()

	styles, err := c.Resolve(nil)
	require.NoError(t, err)
	require.Len(t, styles, 3)
	assert.Equal(t, "cartoony", styles[0].Name)

	styles, err = c.Resolve([]string{"Retro", "retro", "fantasy"})
	require.NoError(t, err)
	require.Len(t, styles, 2)
	assert.Equal(t, "retro", styles[0].Name)

	_, err = c.Resolve([]string{"vaporwave"})
	assert.ErrorIs(t, err, ErrUnknownStyle)
}

func TestParseCatalog_Invalid(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"not yaml":          "styles: [",
		"no styles":         "category_popularity: {chair: 0.8}",
		"missing prompt":    "styles: {plain: {popularity: 0.5, compatibility: 0.5}}",
		"out of range":      "styles: {loud: {prompt: x, popularity: 1.5, compatibility: 0.5}}",
		"undefined default": "default_styles: [ghost]\nstyles: {plain: {prompt: x, popularity: 0.5, compatibility: 0.5}}",
	}
	for name, doc := range tests {
		_, err := ParseCatalog([]byte(doc))
		assert.ErrorIs(t, err, ErrInvalidConfig, name)
	}
}

func TestLoadCatalog_OverrideFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "styles.yaml")
	doc := "default_styles: [neon]\nstyles:\n  Neon:\n    prompt: glowing edges\n    popularity: 0.4\n    compatibility: 0.6\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	s, err := c.Style("neon")
	require.NoError(t, err)
	assert.Equal(t, 0.6, s.Compatibility)
	assert.Equal(t, 0.5, c.DefaultCategoryPopularity)

	_, err = LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrInvalidConfig)

	def, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Len(t, def.Styles, 6)
}

func TestBuildPrompt(t *testing.T) {
	t.Parallel()

	c := DefaultCatalog()
	s, err := c.Style("fantasy")
	require.NoError(t, err)

	r := domain.Record{
		ID: "1", Name: "Oak Bed", Category: "bed",
		Metadata: map[string]any{"description": "Solid oak frame"},
	}
	prompt, err := BuildPrompt(s, r)
	require.NoError(t, err)
	assert.Contains(t, prompt, "fantasy version")
	assert.Contains(t, prompt, "Oak Bed (bed)")
	assert.Contains(t, prompt, "Brand: unknown")
	assert.Contains(t, prompt, "Solid oak frame")
	assert.Contains(t, prompt, "Magical, enchanted appearance.")

	assert.Contains(t, c.DesignNotes("bed", s), `"bed"`)
}
