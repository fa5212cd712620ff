package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"video-parser/internal/app"
	"video-parser/internal/batch"
	"video-parser/internal/tui"
	"video-parser/pkg/models"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "video-parser-tui",
		Short:        "Interactive Video Parser",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file or directory")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Console logs would draw over the alternate screen
	a, err := app.New(configPath, func(cfg *models.Config) {
		switch cfg.Log.Output {
		case "", "stdout", "stderr":
			cfg.Log.Level = "disabled"
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	bm := batch.NewBatchManager(a.Registry, batch.Config{
		MaxConcurrent: a.Config.Batch.MaxConcurrent,
		MaxItems:      a.Config.Batch.MaxItems,
	})
	bm.SetLogger(a.Logger)
	defer bm.Close()

	p := tea.NewProgram(tui.InitialModel(a.Registry, bm), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
