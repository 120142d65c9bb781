// Package download saves a resolved link to disk with ffmpeg. Arguments are
// passed as an explicit slice and the output path is checked against
// directory traversal.
package download

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"scrapecast/internal/httputil"
	"scrapecast/internal/media"
)

// Download fetches link to outputDir/<title>.mkv and returns the file path.
func Download(ctx context.Context, link media.ResolvedLink, title, outputDir, subFile string) (string, error) {
	ffmpegPath, err := exec.LookPath("ffmpeg")
	if err != nil {
		return "", fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	outputPath, err := OutputPath(outputDir, title)
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, ffmpegPath, Args(link, title, outputPath, subFile)...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	log.Info().Str("path", outputPath).Str("url", link.URL).Msg("downloading")

	if err := cmd.Run(); err != nil {
		// Clean up partial download on failure
		os.Remove(outputPath)
		return "", fmt.Errorf("ffmpeg download failed: %w", err)
	}
	return outputPath, nil
}

// OutputPath creates outputDir if needed and returns a safe file path in it.
func OutputPath(outputDir, title string) (string, error) {
	absDir, err := filepath.Abs(outputDir)
	if err != nil {
		return "", fmt.Errorf("resolving output directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0755); err != nil {
		return "", fmt.Errorf("creating output directory: %w", err)
	}
	outputPath, err := httputil.SafeDownloadPath(absDir, httputil.SanitizeFilename(title)+".mkv")
	if err != nil {
		return "", fmt.Errorf("invalid output path: %w", err)
	}
	return outputPath, nil
}

// Args builds the ffmpeg command line. Request headers must come before the
// input they apply to.
func Args(link media.ResolvedLink, title, outputPath, subFile string) []string {
	args := []string{"-y"}

	if ua := link.Headers["User-Agent"]; ua != "" {
		args = append(args, "-user_agent", ua)
	}
	var headers []string
	if link.Referer != "" {
		headers = append(headers, "Referer: "+link.Referer)
	}
	var extra []string
	for k, v := range link.Headers {
		if v != "" && k != "User-Agent" && k != "Referer" {
			extra = append(extra, k+": "+v)
		}
	}
	sort.Strings(extra)
	headers = append(headers, extra...)
	if len(headers) > 0 {
		args = append(args, "-headers", strings.Join(headers, "\r\n")+"\r\n")
	}
	args = append(args, "-i", link.URL)

	if subFile != "" {
		args = append(args, "-i", subFile, "-c:s", "srt")
	}
	args = append(args, "-c:v", "copy", "-c:a", "copy")
	if subFile != "" {
		args = append(args, "-map", "0:v", "-map", "0:a", "-map", "1:s")
	}
	return append(args, "-metadata", "title="+title, outputPath)
}
