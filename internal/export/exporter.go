package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"video-parser/internal/batch"
)

// ExportFormat represents different export formats
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatJSON ExportFormat = "json"
	FormatTXT  ExportFormat = "txt"
)

// ExportConfig holds configuration for data export
type ExportConfig struct {
	Format     ExportFormat
	FilePath   string
	Columns    []string
	DateFormat string
	Delimiter  rune
}

// DataExporter writes batch results to a report file
type DataExporter struct {
	config ExportConfig
}

// NewDataExporter creates a new data exporter
func NewDataExporter(config ExportConfig) *DataExporter {
	// Set defaults
	if config.Format == "" {
		config.Format = FormatFromPath(config.FilePath)
	}
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02 15:04:05"
	}
	if config.Delimiter == 0 {
		config.Delimiter = ','
	}
	if len(config.Columns) == 0 {
		config.Columns = getDefaultColumns()
	}

	return &DataExporter{
		config: config,
	}
}

// FormatFromPath infers the format from the file extension, defaulting to JSON
func FormatFromPath(path string) ExportFormat {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "csv":
		return FormatCSV
	case "xlsx":
		return FormatXLSX
	case "txt":
		return FormatTXT
	default:
		return FormatJSON
	}
}

// ExportResults exports one row per batch item
func (de *DataExporter) ExportResults(job *batch.BatchJob) error {
	if err := ValidateConfig(de.config); err != nil {
		return err
	}

	// Create directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(de.config.FilePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	switch de.config.Format {
	case FormatCSV:
		return de.exportToCSV(job.Results)
	case FormatXLSX:
		return de.exportToXLSX(job.Results)
	case FormatJSON:
		return de.exportToJSON(job)
	case FormatTXT:
		return de.exportToTXT(job)
	default:
		return fmt.Errorf("unsupported export format: %s", de.config.Format)
	}
}

// exportToCSV exports data to CSV format
func (de *DataExporter) exportToCSV(results []batch.BatchResult) error {
	file, err := os.Create(de.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	writer.Comma = de.config.Delimiter

	if err := writer.Write(de.config.Columns); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, result := range results {
		if err := writer.Write(de.resultToRow(result)); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// exportToXLSX exports data to Excel format
func (de *DataExporter) exportToXLSX(results []batch.BatchResult) error {
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Results"
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
			Size: 12,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6E6FA"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	for i, column := range de.config.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheetName, cell, column)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)

		colName, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, colName, colName, columnWidth(column))
	}

	for i, result := range results {
		for j, value := range de.resultToRow(result) {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	lastCell, _ := excelize.CoordinatesToCellName(len(de.config.Columns), len(results)+1)
	if err := f.AutoFilter(sheetName, "A1:"+lastCell, []excelize.AutoFilterOptions{}); err != nil {
		return fmt.Errorf("failed to set auto filter: %w", err)
	}

	// Freeze first row
	f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	if err := f.SaveAs(de.config.FilePath); err != nil {
		return fmt.Errorf("failed to save XLSX file: %w", err)
	}

	return nil
}

func columnWidth(column string) float64 {
	switch column {
	case "URL", "Video URL", "Cover URL", "Image URLs":
		return 60
	case "Title", "Error":
		return 40
	case "Index", "Status", "Type", "Images", "Duration (ms)":
		return 12
	default:
		return 20
	}
}

// exportToJSON exports data to JSON format
func (de *DataExporter) exportToJSON(job *batch.BatchJob) error {
	exportData := struct {
		ExportedAt time.Time           `json:"exported_at"`
		JobID      string              `json:"job_id"`
		Status     batch.JobStatus     `json:"status"`
		Progress   batch.BatchProgress `json:"progress"`
		Results    []batch.BatchResult `json:"results"`
	}{
		ExportedAt: time.Now(),
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		Results:    job.Results,
	}

	data, err := json.MarshalIndent(exportData, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if err := os.WriteFile(de.config.FilePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	return nil
}

// exportToTXT exports data to plain text format
func (de *DataExporter) exportToTXT(job *batch.BatchJob) error {
	file, err := os.Create(de.config.FilePath)
	if err != nil {
		return fmt.Errorf("failed to create TXT file: %w", err)
	}
	defer file.Close()

	fmt.Fprintf(file, "Batch Resolution Report\n")
	fmt.Fprintf(file, "Generated: %s\n", time.Now().Format(de.config.DateFormat))
	fmt.Fprintf(file, "Job: %s (%s)\n", job.ID, job.Status)
	fmt.Fprintf(file, "Items: %d, failed: %d\n", job.Progress.Total, job.Progress.Failed)
	fmt.Fprintf(file, "%s\n\n", strings.Repeat("=", 50))

	for _, r := range job.Results {
		fmt.Fprintf(file, "#%d %s\n", r.Index+1, r.URL)
		fmt.Fprintf(file, "  Status: %s\n", r.Status)
		if r.Error != "" {
			fmt.Fprintf(file, "  Error: %s (%s)\n", r.Error, r.Kind)
		}
		if info := r.VideoInfo; info != nil {
			fmt.Fprintf(file, "  Title: %s\n", info.Title)
			fmt.Fprintf(file, "  Author: %s\n", info.Author.DisplayName)
			if info.VideoURL != "" {
				fmt.Fprintf(file, "  Video: %s\n", info.VideoURL)
			}
			for i, img := range info.Images {
				fmt.Fprintf(file, "  Image %d: %s\n", i+1, img.URL)
				if img.LivePhotoURL != "" {
					fmt.Fprintf(file, "    Live: %s\n", img.LivePhotoURL)
				}
			}
		}
		fmt.Fprintf(file, "\n")
	}

	return nil
}

// resultToRow converts a result to a row following the configured columns
func (de *DataExporter) resultToRow(r batch.BatchResult) []string {
	row := make([]string, len(de.config.Columns))

	for i, column := range de.config.Columns {
		switch column {
		case "Index":
			row[i] = strconv.Itoa(r.Index + 1)
		case "URL":
			row[i] = r.URL
		case "Status":
			row[i] = r.Status
		case "Kind":
			row[i] = r.Kind
		case "Error":
			row[i] = r.Error
		case "Duration (ms)":
			row[i] = strconv.FormatInt(r.Duration.Milliseconds(), 10)
		}

		info := r.VideoInfo
		if info == nil {
			continue
		}

		switch column {
		case "Type":
			switch {
			case info.IsImagePost():
				row[i] = "images"
			case info.IsVideo():
				row[i] = "video"
			}
		case "Title":
			row[i] = info.Title
		case "Author":
			row[i] = info.Author.DisplayName
		case "Author UID":
			row[i] = info.Author.UID
		case "Video URL":
			row[i] = info.VideoURL
		case "Cover URL":
			row[i] = info.CoverURL
		case "Images":
			row[i] = strconv.Itoa(len(info.Images))
		case "Image URLs":
			urls := make([]string, 0, len(info.Images))
			for _, img := range info.Images {
				urls = append(urls, img.URL)
			}
			row[i] = strings.Join(urls, "\n")
		}
	}

	return row
}

// getDefaultColumns returns default columns for export
func getDefaultColumns() []string {
	return []string{
		"Index",
		"URL",
		"Status",
		"Kind",
		"Error",
		"Type",
		"Title",
		"Author",
		"Author UID",
		"Video URL",
		"Cover URL",
		"Images",
		"Image URLs",
		"Duration (ms)",
	}
}

// GetSupportedFormats returns list of supported export formats
func GetSupportedFormats() []ExportFormat {
	return []ExportFormat{FormatCSV, FormatXLSX, FormatJSON, FormatTXT}
}

// ValidateConfig validates export configuration
func ValidateConfig(config ExportConfig) error {
	if config.FilePath == "" {
		return fmt.Errorf("file path is required")
	}

	for _, format := range GetSupportedFormats() {
		if config.Format == format {
			return nil
		}
	}

	return fmt.Errorf("unsupported format: %s", config.Format)
}
