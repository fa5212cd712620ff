package export

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"video-parser/internal/batch"
	"video-parser/pkg/models"
)

func sampleJob() *batch.BatchJob {
	video := models.NewVideoInfo()
	video.VideoURL = "https://cdn/play/x.mp4"
	video.CoverURL = "https://cdn/cover.jpeg"
	video.Title = "a video"
	video.Author = models.Author{UID: "MS4w", DisplayName: "someone"}

	post := models.NewVideoInfo()
	post.Title = "an album"
	post.Images = []models.ImageAsset{
		{URL: "https://cdn/1.jpeg", LivePhotoURL: "https://cdn/1.mp4"},
		{URL: "https://cdn/2.jpeg"},
	}

	return &batch.BatchJob{
		ID:     "job-1",
		Status: batch.JobStatusPartial,
		Progress: batch.BatchProgress{
			Total: 3, Completed: 3, Failed: 1, Percentage: 100,
		},
		Results: []batch.BatchResult{
			{Index: 0, URL: "https://v.douyin.com/a/", Status: batch.ResultSuccess, VideoInfo: video, Duration: 120 * time.Millisecond},
			{Index: 1, URL: "https://v.douyin.com/b/", Status: batch.ResultSuccess, VideoInfo: post},
			{Index: 2, URL: "https://example.com/c", Status: batch.ResultFailed, Error: "unsupported host: example.com", Kind: models.KindUnsupportedHost},
		},
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want ExportFormat
	}{
		{"out.csv", FormatCSV},
		{"out.XLSX", FormatXLSX},
		{"out.txt", FormatTXT},
		{"out.json", FormatJSON},
		{"out", FormatJSON},
	}

	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", tt.path, got, tt.want)
		}
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(ExportConfig{Format: FormatCSV}); err == nil {
		t.Error("Expected error for missing path")
	}
	if err := ValidateConfig(ExportConfig{Format: "pdf", FilePath: "x"}); err == nil {
		t.Error("Expected error for unsupported format")
	}
	if err := ValidateConfig(ExportConfig{Format: FormatXLSX, FilePath: "x"}); err != nil {
		t.Errorf("Expected valid config, got %v", err)
	}
}

func TestExportCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report", "out.csv")
	if err := NewDataExporter(ExportConfig{FilePath: path}).ExportResults(sampleJob()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open CSV: %v", err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to read CSV: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("Expected header plus 3 rows, got %d", len(records))
	}

	header := records[0]
	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("Missing column %q", name)
		return -1
	}

	if got := records[1][col("Type")]; got != "video" {
		t.Errorf("Expected video type, got %q", got)
	}
	if got := records[1][col("Duration (ms)")]; got != "120" {
		t.Errorf("Expected duration 120, got %q", got)
	}
	if got := records[2][col("Type")]; got != "images" {
		t.Errorf("Expected images type, got %q", got)
	}
	if got := records[2][col("Image URLs")]; got != "https://cdn/1.jpeg\nhttps://cdn/2.jpeg" {
		t.Errorf("Unexpected image URLs %q", got)
	}
	if got := records[3][col("Kind")]; got != models.KindUnsupportedHost {
		t.Errorf("Expected kind on failed row, got %q", got)
	}
	if got := records[3][col("Title")]; got != "" {
		t.Errorf("Expected empty title on failed row, got %q", got)
	}
}

func TestExportXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if err := NewDataExporter(ExportConfig{FilePath: path}).ExportResults(sampleJob()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("Failed to open XLSX: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows("Results")
	if err != nil {
		t.Fatalf("Failed to read rows: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(rows))
	}
	if rows[0][0] != "Index" || rows[1][1] != "https://v.douyin.com/a/" {
		t.Errorf("Unexpected content %v", rows[:2])
	}
}

func TestExportJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	if err := NewDataExporter(ExportConfig{FilePath: path}).ExportResults(sampleJob()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read JSON: %v", err)
	}

	var decoded struct {
		JobID   string `json:"job_id"`
		Status  string `json:"status"`
		Results []struct {
			URL  string            `json:"url"`
			Data *models.VideoInfo `json:"data"`
		} `json:"results"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Failed to decode JSON: %v", err)
	}
	if decoded.JobID != "job-1" || decoded.Status != string(batch.JobStatusPartial) {
		t.Errorf("Unexpected header %+v", decoded)
	}
	if len(decoded.Results) != 3 || decoded.Results[1].Data == nil || len(decoded.Results[1].Data.Images) != 2 {
		t.Errorf("Unexpected results %+v", decoded.Results)
	}
	if decoded.Results[2].Data != nil {
		t.Error("Expected no data for a failed item")
	}
}

func TestExportTXT(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := NewDataExporter(ExportConfig{FilePath: path}).ExportResults(sampleJob()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read TXT: %v", err)
	}
	for _, want := range []string{"Job: job-1 (partial)", "Live: https://cdn/1.mp4", "(UnsupportedHost)"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("Expected report to contain %q", want)
		}
	}
}
