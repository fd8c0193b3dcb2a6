package generation

import (
	"strings"
	"text/template"

	"github.com/phrazzld/stylebatch/internal/domain"
)

var promptTemplate = template.Must(template.New("prompt").Parse(
	`Create a game-ready {{.Style.Name}} version of this furniture piece.
Original furniture: {{.Record.Name}} ({{.Record.Category}})
Brand: {{if .Record.Brand}}{{.Record.Brand}}{{else}}unknown{{end}}
Description: {{.Description}}

{{.StyleText}}

Requirements:
- Keep the core function and recognizable features of the original
- Optimize for avatar scale in a block-based game world
- Use colors and materials that fit the {{.Style.Name}} aesthetic
- Keep geometric forms simple but attractive
Generate a high-quality image that 3D modelers can use as reference.`))

// BuildPrompt renders the generation prompt for one style variant of r.
func BuildPrompt(s Style, r domain.Record) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Style       Style
		Record      domain.Record
		Description string
		StyleText   string
	}{
		Style:       s,
		Record:      r,
		Description: r.MetadataString("description", "N/A"),
		StyleText:   strings.TrimSpace(s.Prompt),
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}
