// Package export renders assignment analytics as CSV or JSON files.
package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"kb-diagnosis-service/internal/domain"
)

// Format selects the export encoding.
type Format string

const (
	FormatTabular    Format = "csv"
	FormatStructured Format = "json"
)

// ParseFormat accepts the format names and their aliases.
func ParseFormat(raw string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "csv", "tabular":
		return FormatTabular, nil
	case "json", "structured":
		return FormatStructured, nil
	default:
		return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, raw)
	}
}

// isoLayout is UTC ISO-8601 with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z"

// Header lists the fixed CSV columns.
var Header = []string{
	"UserID", "UserName", "LearnerMapID", "Status", "Attempt", "Score",
	"Correct", "Missing", "Excessive", "TotalGoalEdges", "SubmittedAt", "AssignmentTitle",
}

// File is a rendered export.
type File struct {
	Name        string
	ContentType string
	Body        []byte
}

// Document is the structured export envelope.
type Document struct {
	Assignment domain.AssignmentInfo   `json:"assignment"`
	GoalMap    domain.GoalMapInfo      `json:"goalMap"`
	Learners   []domain.LearnerRow     `json:"learners"`
	Summary    domain.AnalyticsSummary `json:"summary"`
	ExportedAt string                  `json:"exportedAt"`
}

// Export renders payload in the given format. now stamps the file name and,
// for JSON, the exportedAt field.
func Export(payload domain.AssignmentAnalytics, format Format, now time.Time) (File, error) {
	switch format {
	case FormatTabular:
		body, err := renderCSV(payload)
		if err != nil {
			return File{}, err
		}
		return File{Name: Filename(now, "csv"), ContentType: "text/csv", Body: body}, nil
	case FormatStructured:
		body, err := renderJSON(payload, now)
		if err != nil {
			return File{}, err
		}
		return File{Name: Filename(now, "json"), ContentType: "application/json", Body: body}, nil
	default:
		return File{}, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
	}
}

// Filename builds "KB-Analytics-<token>.<ext>" where token is the ISO instant
// without ':' and '.', cut to date, hour and minute.
func Filename(now time.Time, ext string) string {
	stamp := strings.NewReplacer(":", "", ".", "").Replace(now.UTC().Format(isoLayout))
	if len(stamp) > 15 {
		stamp = stamp[:15]
	}
	return "KB-Analytics-" + stamp + "." + ext
}

func renderCSV(payload domain.AssignmentAnalytics) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write(Header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for _, row := range payload.Learners {
		score := "0"
		if row.Score != nil {
			score = strconv.FormatFloat(*row.Score, 'f', -1, 64)
		}
		submittedAt := ""
		if row.SubmittedAt != nil {
			submittedAt = row.SubmittedAt.UTC().Format(isoLayout)
		}
		record := []string{
			row.UserID,
			row.UserName,
			row.LearnerMapID,
			string(row.Status),
			strconv.Itoa(row.Attempt),
			score,
			strconv.Itoa(row.Correct),
			strconv.Itoa(row.Missing),
			strconv.Itoa(row.Excessive),
			strconv.Itoa(row.TotalGoalEdges),
			submittedAt,
			payload.Assignment.Title,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderJSON(payload domain.AssignmentAnalytics, now time.Time) ([]byte, error) {
	learners := payload.Learners
	if learners == nil {
		learners = []domain.LearnerRow{}
	}
	doc := Document{
		Assignment: payload.Assignment,
		GoalMap:    payload.GoalMap,
		Learners:   learners,
		Summary:    payload.Summary,
		ExportedAt: now.UTC().Format(isoLayout),
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return data, nil
}
