package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"video-parser/internal/batch"
	"video-parser/pkg/models"
)

func TestReadURLsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := strings.Join([]string{
		"# share links",
		"https://v.douyin.com/abc/",
		"",
		"7.43 copy this https://v.douyin.com/def/ open the app",
		"   https://www.douyin.com/video/123   ",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	urls, err := readURLsFromFile(path)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	expected := []string{
		"https://v.douyin.com/abc/",
		"https://v.douyin.com/def/",
		"https://www.douyin.com/video/123",
	}
	if len(urls) != len(expected) {
		t.Fatalf("Expected %d URLs, got %v", len(expected), urls)
	}
	for i := range expected {
		if urls[i] != expected[i] {
			t.Errorf("URL %d: expected %q, got %q", i, expected[i], urls[i])
		}
	}
}

func TestReadURLsFromFile_Missing(t *testing.T) {
	if _, err := readURLsFromFile(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for a missing file")
	}
}

func TestRedact(t *testing.T) {
	cfg := &models.Config{}
	cfg.Platforms.Douyin.Cookie = "sessionid=1"
	cfg.Auth.SecretToken = "token"
	cfg.Auth.BasicUsername = "user"

	redact(cfg)

	if cfg.Platforms.Douyin.Cookie != "********" || cfg.Auth.SecretToken != "********" {
		t.Error("Expected secrets to be masked")
	}
	if cfg.Auth.BasicPassword != "" {
		t.Error("Expected empty secrets to stay empty")
	}
	if cfg.Auth.BasicUsername != "user" {
		t.Error("Expected non-secret fields to be kept")
	}
}

func TestResolutionError(t *testing.T) {
	err := resolutionError(fmt.Errorf("%w: example.com", models.ErrUnsupportedHost))

	if !strings.HasPrefix(err.Error(), models.KindUnsupportedHost+": ") {
		t.Errorf("Expected kind prefix, got %q", err.Error())
	}
	if !errors.Is(err, models.ErrUnsupportedHost) {
		t.Error("Expected the cause to stay wrapped")
	}
}

func TestPrintBatchSummary(t *testing.T) {
	info := models.NewVideoInfo()
	info.VideoURL = "https://cdn/play/x.mp4"

	job := &batch.BatchJob{
		Status:   batch.JobStatusPartial,
		Progress: batch.BatchProgress{Total: 2, Completed: 2, Failed: 1},
		Results: []batch.BatchResult{
			{URL: "https://v.douyin.com/a/", Status: batch.ResultSuccess, VideoInfo: info},
			{URL: "https://example.com/b", Status: batch.ResultFailed, Error: "unsupported host"},
		},
	}

	var buf bytes.Buffer
	printBatchSummary(&buf, job)

	out := buf.String()
	for _, want := range []string{"https://cdn/play/x.mp4", "unsupported host", "1 succeeded, 1 failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected summary to contain %q, got:\n%s", want, out)
		}
	}
}

func TestPrintVideoInfo_ImagePost(t *testing.T) {
	info := models.NewVideoInfo()
	info.Title = "note"
	info.Images = []models.ImageAsset{
		{URL: "https://cdn/1.jpeg", LivePhotoURL: "https://cdn/1.mp4"},
		{URL: "https://cdn/2.jpeg"},
	}

	var buf bytes.Buffer
	if err := printVideoInfo(&buf, info, 1500*time.Millisecond); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	out := buf.String()
	for _, want := range []string{"2 images", "https://cdn/1.jpeg", "https://cdn/1.mp4", "https://cdn/2.jpeg"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}
