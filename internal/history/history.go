// Package history records resolved episodes in a TSV file.
// Writes are atomic (temp+rename) so a crash never leaves a torn file.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"scrapecast/internal/config"
	"scrapecast/internal/media"
)

// TSV columns: provider, title, data, kind, season, episode, link, watched_at
const numColumns = 8

// Load reads the history file and returns all entries in file order.
func Load() ([]media.HistoryEntry, error) {
	path, err := config.HistoryPath()
	if err != nil {
		return nil, err
	}
	return loadFile(path)
}

func loadFile(path string) ([]media.HistoryEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer f.Close()

	var entries []media.HistoryEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		entry, err := parseLine(line)
		if err != nil {
			continue // Skip malformed lines
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Save writes or updates an entry. Entries are keyed by provider and data.
func Save(entry media.HistoryEntry) error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("creating history dir: %w", err)
	}
	if entry.WatchedAt.IsZero() {
		entry.WatchedAt = time.Now()
	}

	entries, _ := loadFile(path)
	found := false
	for i, e := range entries {
		if e.Provider == entry.Provider && e.Data == entry.Data {
			entries[i] = entry
			found = true
			break
		}
	}
	if !found {
		entries = append(entries, entry)
	}
	return writeFile(path, entries)
}

// Remove deletes the entry for provider and data.
func Remove(provider, data string) error {
	path, err := config.HistoryPath()
	if err != nil {
		return err
	}
	entries, err := loadFile(path)
	if err != nil {
		return err
	}

	var filtered []media.HistoryEntry
	for _, e := range entries {
		if !(e.Provider == provider && e.Data == data) {
			filtered = append(filtered, e)
		}
	}
	return writeFile(path, filtered)
}

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
func Recent(n int) ([]media.HistoryEntry, error) {
	entries, err := Load()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].WatchedAt.After(entries[j].WatchedAt) })
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	return entries, nil
}

func writeFile(path string, entries []media.HistoryEntry) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "history-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	writer := bufio.NewWriter(tmpFile)
	for _, e := range entries {
		if _, err := writer.WriteString(formatLine(e) + "\n"); err != nil {
			tmpFile.Close()
			os.Remove(tmpPath)
			return fmt.Errorf("writing history: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("flushing history: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming history file: %w", err)
	}
	return nil
}

// FormatForDisplay creates one menu line per entry.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	var items []string
	for _, e := range entries {
		display := e.Title
		if e.Season > 0 && e.Episode > 0 {
			display = fmt.Sprintf("%s S%02dE%02d", e.Title, e.Season, e.Episode)
		} else if e.Episode > 0 {
			display = fmt.Sprintf("%s #%d", e.Title, e.Episode)
		}
		items = append(items, fmt.Sprintf("%s [%s]", display, e.Provider))
	}
	return items
}

// parseLine parses a TSV line into a HistoryEntry.
func parseLine(line string) (media.HistoryEntry, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < numColumns {
		return media.HistoryEntry{}, fmt.Errorf("expected %d columns, got %d", numColumns, len(fields))
	}
	if fields[0] == "" || fields[2] == "" {
		return media.HistoryEntry{}, fmt.Errorf("missing provider or data")
	}

	season, _ := strconv.Atoi(fields[4])
	episode, _ := strconv.Atoi(fields[5])
	watched, _ := strconv.ParseInt(fields[7], 10, 64)

	return media.HistoryEntry{
		Provider:  fields[0],
		Title:     fields[1],
		Data:      fields[2],
		Kind:      media.ParseKind(fields[3]),
		Season:    season,
		Episode:   episode,
		LinkURL:   fields[6],
		WatchedAt: time.Unix(watched, 0),
	}, nil
}

// formatLine converts a HistoryEntry to a TSV line. Tabs and newlines in
// titles would break the format, so they are flattened to spaces.
func formatLine(e media.HistoryEntry) string {
	clean := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
	return strings.Join([]string{
		clean.Replace(e.Provider),
		clean.Replace(e.Title),
		clean.Replace(e.Data),
		e.Kind.String(),
		strconv.Itoa(e.Season),
		strconv.Itoa(e.Episode),
		clean.Replace(e.LinkURL),
		strconv.FormatInt(e.WatchedAt.Unix(), 10),
	}, "\t")
}
