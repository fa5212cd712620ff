package sign

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"video-parser/pkg/models"
)

// ScriptName is the file name searched for when no path is configured
const ScriptName = "a_bogus.js"

// Candidates lists the script locations in lookup order: the configured path,
// the working directory, then the directory of the executable
func Candidates(configured string) []string {
	var paths []string
	if configured != "" {
		paths = append(paths, configured)
	}

	dirs := []string{"."}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}

	for _, dir := range dirs {
		paths = append(paths,
			filepath.Join(dir, ScriptName),
			filepath.Join(dir, "assets", ScriptName),
			filepath.Join(dir, "static", ScriptName),
		)
	}
	return paths
}

// Locate returns the first candidate that is a regular file
func Locate(candidates []string) (string, bool) {
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err == nil && info.Mode().IsRegular() {
			return path, true
		}
	}
	return "", false
}

// Load finds and compiles the signature script. It never fails: a missing or
// broken script yields a Disabled signer and a warning.
func Load(scriptPath, function string, logger zerolog.Logger) models.Signer {
	path, ok := Locate(Candidates(scriptPath))
	if !ok {
		logger.Warn().Str("script", ScriptName).Msg("Signature script not found, signed API disabled")
		return Disabled{Reason: "signature script not found"}
	}

	signer, err := NewScriptSigner(path, function)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Signature script unusable, signed API disabled")
		return Disabled{Reason: err.Error()}
	}

	logger.Info().Str("path", signer.Path()).Msg("Signature script loaded")
	return signer
}
