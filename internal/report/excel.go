package report

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"
)

type ExcelRenderer struct{}

func NewExcelRenderer() *ExcelRenderer {
	return &ExcelRenderer{}
}

func (r *ExcelRenderer) Extension() string { return "xlsx" }

func (r *ExcelRenderer) RenderActor(rep *ProjectReport, actor, outputDir string) (string, error) {
	dig, ok := rep.Digest(actor)
	if !ok {
		return "", fmt.Errorf("no digest for actor %q", actor)
	}
	return r.render(rep, []ActorDigest{dig}, actor, outputDir)
}

// RenderManager builds the full workbook: a Dashboard sheet with per-actor
// activity counts by kind, then one sheet per actor.
func (r *ExcelRenderer) RenderManager(rep *ProjectReport, outputDir string) (string, error) {
	var digests []ActorDigest
	for _, actor := range rep.Actors() {
		dig, _ := rep.Digest(actor)
		digests = append(digests, dig)
	}
	return r.render(rep, digests, "manager", outputDir)
}

func (r *ExcelRenderer) render(rep *ProjectReport, digests []ActorDigest, recipient, outputDir string) (string, error) {
	loc := rep.Window.Start.Location()
	now := time.Now().In(loc)
	path := filepath.Join(outputDir, reportFilename(rep.Project.Key, recipient, now, "xlsx"))

	f := excelize.NewFile()
	defer f.Close()

	if err := r.createDashboardSheet(f, rep, digests); err != nil {
		return "", fmt.Errorf("failed to create dashboard: %w", err)
	}
	for _, dig := range digests {
		if err := r.createActorSheet(f, dig); err != nil {
			return "", fmt.Errorf("failed to create sheet for %s: %w", dig.Actor, err)
		}
	}

	_ = f.DeleteSheet("Sheet1")

	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save excel file: %w", err)
	}
	return path, nil
}

func (r *ExcelRenderer) createDashboardSheet(f *excelize.File, rep *ProjectReport, digests []ActorDigest) error {
	index, err := f.NewSheet("Dashboard")
	if err != nil {
		return err
	}
	f.SetActiveSheet(index)

	rows := [][]any{
		{"Project", rep.Project.Key},
		{"Window", rep.Window.String()},
		{},
		{"Actor", "Worklogs", "Comments", "Transitions", "Resolutions", "Total"},
	}
	for _, dig := range digests {
		counts := map[Kind]int{}
		for _, rec := range dig.Records {
			counts[rec.Kind]++
		}
		rows = append(rows, []any{
			dig.Actor,
			counts[KindWorklog],
			counts[KindComment],
			counts[KindTransition],
			counts[KindResolution],
			dig.TotalCount,
		})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow("Dashboard", cell, &row); err != nil {
			return err
		}
	}
	return nil
}

func (r *ExcelRenderer) createActorSheet(f *excelize.File, dig ActorDigest) error {
	sheet := sanitizeSheetName(dig.Actor)
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []any{"Time", "Issue", "Activity", "Detail", "Commits"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	for i, rec := range dig.Records {
		commits := ""
		for j, ref := range rec.CommitRefs {
			if j > 0 {
				commits += " "
			}
			commits += ref
		}
		row := []any{
			rec.Timestamp.Format("02-Jan-2006 15:04"),
			rec.IssueKey,
			string(rec.Kind),
			rec.Detail,
			commits,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// sanitizeSheetName keeps sheet names inside Excel's 31-char limit and
// strips characters the format forbids.
func sanitizeSheetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, c := range name {
		switch c {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, '_')
		default:
			out = append(out, c)
		}
		if len(out) >= 31 {
			break
		}
	}
	if len(out) == 0 {
		return "Sheet"
	}
	return string(out)
}
