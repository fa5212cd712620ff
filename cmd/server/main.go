package main

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"video-parser/internal/app"
	"video-parser/internal/server"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:          "video-parser-server",
		Short:        "Video Parser HTTP API",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file or directory")

	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Server exited")
	}
}

func run(configPath string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	// Load configuration and wire components
	a, err := app.New(configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.Config.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	srv, err := server.NewServer(a.Config, server.Options{
		Registry:    a.Registry,
		Credentials: a.Credentials,
		Monitor:     a.Monitor,
		Logger:      &a.Logger,
	})
	if err != nil {
		return err
	}

	a.Monitor.Start()
	defer a.Monitor.Stop()

	if !a.SignerReady() {
		a.Logger.Warn().Msg("Signed API disabled, resolving through share pages only")
	}

	return srv.Run()
}
