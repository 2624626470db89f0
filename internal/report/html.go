package report

import (
	"embed"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed "templates"
var templateFS embed.FS

// Renderer writes one report artifact per actor plus a manager digest
// covering the whole project, returning the written file path.
type Renderer interface {
	Extension() string
	RenderActor(rep *ProjectReport, actor, outputDir string) (string, error)
	RenderManager(rep *ProjectReport, outputDir string) (string, error)
}

type HTMLRenderer struct {
	tmpl *template.Template
}

func NewHTMLRenderer() (*HTMLRenderer, error) {
	funcMap := template.FuncMap{
		"title": cases.Title(language.English).String,
	}
	tmpl, err := template.New("report.tmpl").Funcs(funcMap).ParseFS(templateFS, "templates/report.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return &HTMLRenderer{tmpl: tmpl}, nil
}

func (r *HTMLRenderer) Extension() string { return "html" }

func (r *HTMLRenderer) RenderActor(rep *ProjectReport, actor, outputDir string) (string, error) {
	dig, ok := rep.Digest(actor)
	if !ok {
		return "", fmt.Errorf("no digest for actor %q", actor)
	}
	return r.render(rep, []ActorDigest{dig}, actor, outputDir)
}

func (r *HTMLRenderer) RenderManager(rep *ProjectReport, outputDir string) (string, error) {
	var digests []ActorDigest
	for _, actor := range rep.Actors() {
		dig, _ := rep.Digest(actor)
		digests = append(digests, dig)
	}
	return r.render(rep, digests, "manager", outputDir)
}

func (r *HTMLRenderer) render(rep *ProjectReport, digests []ActorDigest, recipient, outputDir string) (string, error) {
	loc := rep.Window.Start.Location()
	now := time.Now().In(loc)

	data := map[string]any{
		"Project":     rep.Project.Key,
		"Window":      rep.Window,
		"Digests":     digests,
		"Recipient":   recipient,
		"PublishDate": now.Format("02-Jan-2006"),
		"PublishTime": now.Format("15:04:05 MST"),
		"Timezone":    now.Format("MST"),
	}

	path := filepath.Join(outputDir, reportFilename(rep.Project.Key, recipient, now, "html"))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create HTML file: %w", err)
	}
	defer f.Close()

	if err := r.tmpl.Execute(f, data); err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return path, nil
}

func reportFilename(project, recipient string, now time.Time, ext string) string {
	return fmt.Sprintf("%s_dsr-report-%s_%s.%s", project, sanitizeRecipient(recipient), now.Format("02-Jan-2006"), ext)
}

func sanitizeRecipient(recipient string) string {
	out := make([]rune, 0, len(recipient))
	for _, r := range recipient {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
