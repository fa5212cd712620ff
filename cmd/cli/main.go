package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"video-parser/internal/app"
	"video-parser/internal/batch"
	"video-parser/internal/config"
	"video-parser/internal/credential"
	"video-parser/internal/export"
	"video-parser/internal/server"
	"video-parser/internal/utils"
	"video-parser/pkg/models"
)

var (
	configPath  string
	verbose     bool
	jsonOutput  bool
	timeout     time.Duration
	source      string
	exportPath  string
	concurrency int
	cookieFile  string
	force       bool
)

var rootCmd = &cobra.Command{
	Use:   "video-parser",
	Short: "Resolve Douyin share links into watermark-free media URLs",
	Long: `Video Parser turns Douyin share links (short links, video pages, note pages or a
whole pasted share message) into direct, watermark-free media URLs.

Features:
- Video posts and image posts with live photo clips
- Signed API strategy with automatic share page fallback
- Batch resolution with CSV, XLSX, JSON and TXT reports
- HTTP API server
- Proxy support`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// newApp loads the configuration and wires the components. CLI commands log
// warnings only unless --verbose is set, so stdout stays readable.
func newApp() (*app.App, error) {
	return app.New(configPath, func(cfg *models.Config) {
		switch {
		case verbose:
			cfg.Log.Level = "debug"
		case cfg.Log.Output == "" || cfg.Log.Output == "stdout":
			cfg.Log.Level = "warn"
			cfg.Log.Output = "stderr"
		}
	})
}

// signalContext is canceled on SIGINT, SIGTERM or after the timeout
func signalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [share text or url]",
	Short: "Resolve a share link or pasted share text",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		start := time.Now()
		info, err := a.Registry.Resolve(ctx, strings.Join(args, " "))
		if err != nil {
			return resolutionError(err)
		}
		return printVideoInfo(cmd.OutOrStdout(), info, time.Since(start))
	},
}

var idCmd = &cobra.Command{
	Use:   "id [video id]",
	Short: "Resolve an already known content ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := signalContext()
		defer cancel()

		start := time.Now()
		info, err := a.Registry.ParseVideoID(ctx, models.VideoSource(source), args[0])
		if err != nil {
			return resolutionError(err)
		}
		return printVideoInfo(cmd.OutOrStdout(), info, time.Since(start))
	},
}

var batchCmd = &cobra.Command{
	Use:   "batch [urls-file]",
	Short: "Resolve every share link in a file (one per line, # comments)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		urls, err := readURLsFromFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading URLs file: %w", err)
		}
		if len(urls) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No URLs found in file")
			return nil
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		cfg := batch.Config{
			MaxConcurrent: a.Config.Batch.MaxConcurrent,
			MaxItems:      0,
		}
		if concurrency > 0 {
			cfg.MaxConcurrent = concurrency
		}
		bm := batch.NewBatchManager(a.Registry, cfg)
		bm.SetLogger(a.Logger)
		defer bm.Close()

		ctx, cancel := signalContext()
		defer cancel()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Resolving %d URLs with %d workers\n", len(urls), cfg.MaxConcurrent)

		job, err := bm.Run(ctx, urls, func(p batch.BatchProgress) {
			if !jsonOutput {
				fmt.Fprintf(out, "\r%s %d/%d (%d failed)", progressStyle.Render("progress"), p.Completed, p.Total, p.Failed)
			}
		})
		if err != nil {
			return err
		}
		if !jsonOutput {
			fmt.Fprintln(out)
		}

		if jsonOutput {
			return writeJSON(out, job)
		}
		printBatchSummary(out, job)

		if exportPath != "" {
			exporter := export.NewDataExporter(export.ExportConfig{FilePath: exportPath})
			if err := exporter.ExportResults(job); err != nil {
				return fmt.Errorf("error exporting results: %w", err)
			}
			fmt.Fprintf(out, "%s %s\n", okStyle.Render("Report written:"), exportPath)
		}
		return nil
	},
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the API server",
	RunE: func(cmd *cobra.Command, args []string) error {
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

		fmt.Fprintf(cmd.OutOrStdout(), "Server listening on http://%s:%d (Ctrl+C to stop)\n", a.Config.Server.Host, a.Config.Server.Port)
		return srv.Run()
	},
}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage the stored session credential",
}

var credentialSetCmd = &cobra.Command{
	Use:   "set [cookie]",
	Short: "Store the session cookie used by the signed API",
	Long: `Store the session cookie used by the signed API. The value is read from the
argument, from --file (a JSON cookie export or a raw header line) or, when
neither is given, from the terminal without echo or from stdin.

Requires database.enabled so the value survives restarts.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := readCookie(cmd, args)
		if err != nil {
			return err
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Storage == nil {
			return errors.New("credential persistence requires database.enabled in the configuration")
		}

		if err := a.Credentials.Set(value); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Credential stored"))
		return nil
	},
}

var credentialStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a credential is configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		configured := a.Credentials.Get() != ""

		origin := "none"
		var updatedAt time.Time
		if a.Storage != nil {
			if stored, err := a.Storage.GetCredential(string(models.SourceDouyin)); err == nil && stored != nil {
				origin = "database"
				updatedAt = stored.UpdatedAt
			}
		}
		if origin == "none" && configured {
			origin = "configuration"
		}

		if jsonOutput {
			return writeJSON(out, map[string]interface{}{
				"configured":   configured,
				"origin":       origin,
				"updated_at":   updatedAt,
				"signer_ready": a.SignerReady(),
			})
		}

		printField(out, "Configured", yesNo(configured))
		printField(out, "Origin", origin)
		if !updatedAt.IsZero() {
			printField(out, "Updated", updatedAt.Format("2006-01-02 15:04:05"))
		}
		printField(out, "Signer", yesNo(a.SignerReady()))
		return nil
	},
}

var credentialClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if a.Storage == nil {
			return errors.New("credential persistence requires database.enabled in the configuration")
		}
		if err := a.Storage.DeleteCredential(string(models.SourceDouyin)); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render("Stored credential deleted"))
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var initConfigCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := filepath.Join("config", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}

		if err := config.WriteDefault(path, force); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", okStyle.Render("Configuration written:"), path)
		return nil
	},
}

var showConfigCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		manager := config.NewManager()
		cfg, err := manager.Load(configPath)
		if err != nil {
			return fmt.Errorf("error loading configuration: %w", err)
		}

		redact(cfg)
		data, err := config.Marshal(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if file := manager.ConfigFile(); file != "" {
			fmt.Fprintf(out, "# %s\n", file)
		} else {
			fmt.Fprintln(out, "# defaults and environment")
		}
		_, err = out.Write(data)
		return err
	},
}

// redact hides secrets in printed configuration
func redact(cfg *models.Config) {
	mask := func(s *string) {
		if *s != "" {
			*s = "********"
		}
	}
	mask(&cfg.Platforms.Douyin.Cookie)
	mask(&cfg.Auth.SecretToken)
	mask(&cfg.Auth.BasicPassword)
	mask(&cfg.Auth.JWTSecret)
	mask(&cfg.Auth.AdminPassword)
	mask(&cfg.Proxy.Password)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file or directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of text")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", 2*time.Minute, "Overall deadline for the command (0 disables)")

	idCmd.Flags().StringVarP(&source, "source", "s", string(models.SourceDouyin), "Platform of the ID")

	batchCmd.Flags().StringVarP(&exportPath, "export", "e", "", "Write a report (.csv, .xlsx, .json or .txt)")
	batchCmd.Flags().IntVarP(&concurrency, "concurrency", "n", 0, "Parallel resolutions (default from batch.max_concurrent)")

	credentialSetCmd.Flags().StringVarP(&cookieFile, "file", "f", "", "Read the cookie from a JSON export or header file")
	initConfigCmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	// Add commands
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(idCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(credentialCmd)
	rootCmd.AddCommand(configCmd)

	credentialCmd.AddCommand(credentialSetCmd)
	credentialCmd.AddCommand(credentialStatusCmd)
	credentialCmd.AddCommand(credentialClearCmd)

	configCmd.AddCommand(initConfigCmd)
	configCmd.AddCommand(showConfigCmd)
}

// readCookie resolves the cookie from args, --file, the terminal or stdin
func readCookie(cmd *cobra.Command, args []string) (string, error) {
	var raw string

	switch {
	case len(args) == 1:
		raw = args[0]
	case cookieFile != "":
		return credential.LoadFile(cookieFile, models.SourceDouyin)
	case term.IsTerminal(int(os.Stdin.Fd())):
		fmt.Fprint(cmd.ErrOrStderr(), "Cookie: ")
		data, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("error reading cookie: %w", err)
		}
		raw = string(data)
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("error reading cookie: %w", err)
		}
		raw = string(data)
	}

	value, err := credential.Normalize(raw)
	if err != nil {
		return "", models.ErrEmptyCredential
	}
	return value, nil
}

func readURLsFromFile(filename string) ([]string, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		// share messages carry text around the link
		urls = append(urls, utils.ExtractURL(line))
	}
	return urls, scanner.Err()
}

// resolutionError prefixes the taxonomy kind so scripts can match on it
func resolutionError(err error) error {
	return fmt.Errorf("%s: %w", models.ErrorKind(err), err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errStyle.Render("Error:"), err)
		os.Exit(1)
	}
}
