package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type CSVRenderer struct{}

func NewCSVRenderer() *CSVRenderer {
	return &CSVRenderer{}
}

func (r *CSVRenderer) Extension() string { return "csv" }

func (r *CSVRenderer) RenderActor(rep *ProjectReport, actor, outputDir string) (string, error) {
	dig, ok := rep.Digest(actor)
	if !ok {
		return "", fmt.Errorf("no digest for actor %q", actor)
	}
	return r.render(rep, []ActorDigest{dig}, actor, outputDir)
}

func (r *CSVRenderer) RenderManager(rep *ProjectReport, outputDir string) (string, error) {
	var digests []ActorDigest
	for _, actor := range rep.Actors() {
		dig, _ := rep.Digest(actor)
		digests = append(digests, dig)
	}
	return r.render(rep, digests, "manager", outputDir)
}

func (r *CSVRenderer) render(rep *ProjectReport, digests []ActorDigest, recipient, outputDir string) (string, error) {
	loc := rep.Window.Start.Location()
	now := time.Now().In(loc)

	path := filepath.Join(outputDir, reportFilename(rep.Project.Key, recipient, now, "csv"))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{
		"#",
		"Published",
		"Actor",
		"Issue",
		"Activity",
		"Time",
		"Detail",
		"Commits",
	}
	if err := writer.Write(header); err != nil {
		return "", err
	}

	published := now.Format(time.RFC3339)
	row := 0
	for _, dig := range digests {
		for _, rec := range dig.Records {
			row++
			record := []string{
				strconv.Itoa(row),
				published,
				dig.Actor,
				rec.IssueKey,
				string(rec.Kind),
				rec.Timestamp.Format("02-Jan-2006 15:04"),
				rec.Detail,
				strings.Join(rec.CommitRefs, " "),
			}
			if err := writer.Write(record); err != nil {
				return "", err
			}
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return "", err
	}
	return path, nil
}
