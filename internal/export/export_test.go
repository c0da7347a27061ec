package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kb-diagnosis-service/internal/domain"
)

var exportTime = time.Date(2026, 10, 16, 9, 30, 12, 345000000, time.UTC)

func samplePayload() domain.AssignmentAnalytics {
	score := 0.5
	submitted := time.Date(2026, 10, 15, 8, 0, 0, 0, time.UTC)
	avg := 0.5
	return domain.AssignmentAnalytics{
		Assignment: domain.AssignmentInfo{ID: "a-1", Title: "Week 1, \"Cells\""},
		GoalMap:    domain.GoalMapInfo{ID: "gm-1", Title: "Cells", Direction: domain.DirectionUni, NodeCount: 3, EdgeCount: 2},
		Learners: []domain.LearnerRow{
			{
				UserID: "u1", UserName: "Alice", LearnerMapID: "lm-1", Status: domain.StatusSubmitted,
				Score: &score, Attempt: 1, SubmittedAt: &submitted, Correct: 1, Missing: 1, Excessive: 1, TotalGoalEdges: 2,
			},
			{
				UserID: "u2", UserName: "Bob", LearnerMapID: "lm-2", Status: domain.StatusDraft,
				Attempt: 1, TotalGoalEdges: 2,
			},
		},
		Summary: domain.AnalyticsSummary{
			TotalLearners: 2, SubmittedCount: 1, DraftCount: 1,
			ScoreStats: domain.ScoreStats{AvgScore: &avg, MedianScore: &avg, HighestScore: &avg, LowestScore: &avg},
		},
	}
}

func TestExportCSV(t *testing.T) {
	file, err := Export(samplePayload(), FormatTabular, exportTime)
	require.NoError(t, err)
	assert.Equal(t, "KB-Analytics-2026-10-16T0930.csv", file.Name)
	assert.Equal(t, "text/csv", file.ContentType)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, []string{
		"u1", "Alice", "lm-1", "submitted", "1", "0.5", "1", "1", "1", "2",
		"2026-10-15T08:00:00.000Z", "Week 1, \"Cells\"",
	}, records[1])

	bob := records[2]
	assert.Equal(t, "0", bob[5], "null score renders as 0")
	assert.Equal(t, "", bob[10], "missing submittedAt renders empty")
}

func TestExportCSVHeaderOnly(t *testing.T) {
	payload := samplePayload()
	payload.Learners = nil

	file, err := Export(payload, FormatTabular, exportTime)
	require.NoError(t, err)

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Len(t, records[0], 12)
	for _, col := range Header {
		assert.Contains(t, string(file.Body), col)
	}
}

func TestExportJSONRoundTrip(t *testing.T) {
	file, err := Export(samplePayload(), FormatStructured, exportTime)
	require.NoError(t, err)
	assert.Equal(t, "KB-Analytics-2026-10-16T0930.json", file.Name)

	var doc Document
	require.NoError(t, json.Unmarshal(file.Body, &doc))
	assert.Len(t, doc.Learners, 2)
	assert.Equal(t, "a-1", doc.Assignment.ID)
	assert.Equal(t, 2, doc.Summary.TotalLearners)
	assert.Equal(t, "2026-10-16T09:30:12.345Z", doc.ExportedAt)
	assert.Nil(t, doc.Learners[1].Score)
}

func TestExportJSONEmptyLearnersIsArray(t *testing.T) {
	payload := samplePayload()
	payload.Learners = nil

	file, err := Export(payload, FormatStructured, exportTime)
	require.NoError(t, err)
	assert.Contains(t, string(file.Body), `"learners": []`)
}

func TestExportUnsupportedFormat(t *testing.T) {
	_, err := Export(samplePayload(), Format("xml"), exportTime)
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	_, err = ParseFormat("xlsx")
	assert.ErrorIs(t, err, domain.ErrUnsupportedFormat)

	f, err := ParseFormat(" Structured ")
	require.NoError(t, err)
	assert.Equal(t, FormatStructured, f)
}

func TestFilenameIsFilesystemSafe(t *testing.T) {
	name := Filename(time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)), "csv")
	assert.Equal(t, "KB-Analytics-2026-01-02T0204.csv", name)
	token := strings.TrimSuffix(strings.TrimPrefix(name, "KB-Analytics-"), ".csv")
	assert.NotContains(t, token, ":")
	assert.NotContains(t, token, ".")
	assert.Len(t, token, 15)
}
