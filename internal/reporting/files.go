package reporting

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"wallet-risk-lab/internal/domain"
)

// FileTimestampLayout formats the timestamp suffix of output file names.
const FileTimestampLayout = "20060102_150405"

// Files lists the paths written by WriteFiles.
type Files struct {
	ScoresCSV   string
	DetailedCSV string // empty when no detailed rows were given
	Report      string
}

// FileNames returns the scores CSV and report names for ts.
func FileNames(ts time.Time) (scoresCSV, report string) {
	suffix := ts.Format(FileTimestampLayout)
	return fmt.Sprintf("wallet_risk_scores_%s.csv", suffix),
		fmt.Sprintf("risk_analysis_report_%s.md", suffix)
}

// WriteFiles writes the scores CSV, the detailed CSV (when details is
// non-empty) and the Markdown report into dir, creating it if needed.
func WriteFiles(dir string, ts time.Time, r *Report, scores []domain.Score, details []DetailRow) (Files, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Files{}, err
	}

	scoresName, reportName := FileNames(ts)
	files := Files{
		ScoresCSV: filepath.Join(dir, scoresName),
		Report:    filepath.Join(dir, reportName),
	}

	if err := os.WriteFile(files.ScoresCSV, []byte(RenderCSV(scores)), 0644); err != nil {
		return Files{}, fmt.Errorf("write scores csv: %w", err)
	}

	if len(details) > 0 {
		files.DetailedCSV = filepath.Join(dir, fmt.Sprintf("wallet_risk_details_%s.csv", ts.Format(FileTimestampLayout)))
		if err := os.WriteFile(files.DetailedCSV, []byte(RenderDetailedCSV(details)), 0644); err != nil {
			return Files{}, fmt.Errorf("write detailed csv: %w", err)
		}
	}

	if err := os.WriteFile(files.Report, []byte(RenderMarkdown(r)), 0644); err != nil {
		return Files{}, fmt.Errorf("write report: %w", err)
	}
	return files, nil
}
