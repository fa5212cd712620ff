package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"video-parser/internal/batch"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

var (
	labelStyle    = lipgloss.NewStyle().Bold(true).Width(12)
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	progressStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
)

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintln(w, labelStyle.Render(label)+value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printVideoInfo(w io.Writer, info *models.VideoInfo, elapsed time.Duration) error {
	if jsonOutput {
		return writeJSON(w, info)
	}

	kind := "Video"
	if info.IsImagePost() {
		kind = fmt.Sprintf("Image post (%d images)", len(info.Images))
	}
	fmt.Fprintln(w, titleStyle.Render(kind)+" resolved in "+utils.FormatDuration(elapsed))

	printField(w, "Title", info.Title)
	printField(w, "Author", info.Author.DisplayName)
	if info.Author.UID != "" {
		printField(w, "Author UID", info.Author.UID)
	}
	printField(w, "Cover", info.CoverURL)
	if info.VideoURL != "" {
		printField(w, "Video", info.VideoURL)
	}
	for i, img := range info.Images {
		printField(w, fmt.Sprintf("Image %d", i+1), img.URL)
		if img.LivePhotoURL != "" {
			printField(w, "  Live", img.LivePhotoURL)
		}
	}
	return nil
}

func printBatchSummary(w io.Writer, job *batch.BatchJob) {
	for _, r := range job.Results {
		switch r.Status {
		case batch.ResultSuccess:
			target := r.VideoInfo.VideoURL
			if r.VideoInfo.IsImagePost() {
				target = fmt.Sprintf("%d images", len(r.VideoInfo.Images))
			}
			fmt.Fprintf(w, "%s %s -> %s\n", okStyle.Render("ok  "), r.URL, target)
		default:
			fmt.Fprintf(w, "%s %s: %s\n", errStyle.Render("fail"), r.URL, r.Error)
		}
	}

	succeeded := job.Progress.Total - job.Progress.Failed
	fmt.Fprintf(w, "\nBatch %s: %d succeeded, %d failed\n", job.Status, succeeded, job.Progress.Failed)
}
