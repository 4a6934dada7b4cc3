// Package imgw downloads monthly telemetry archives from the IMGW public
// data service. Each archive is a zip of per-parameter CSV files named
// Meteo_YYYY-MM.zip; the client extracts it into the local data directory the
// loader reads from.
package imgw

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultBaseURL is the IMGW "dane pomiarowo-obserwacyjne" telemetry root.
const DefaultBaseURL = "https://danepubliczne.imgw.pl/datastore/getfiledown/Arch/Telemetria/Meteo"

// Client fetches and extracts monthly archives.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates an archive client. An empty baseURL selects the public
// IMGW endpoint.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// ArchiveName returns the zip file name for one month.
func ArchiveName(year, month int) string {
	return fmt.Sprintf("Meteo_%04d-%02d.zip", year, month)
}

// FetchMonth downloads one monthly archive and extracts its CSV files into
// destDir/YYYY-MM/. It returns the extracted file paths.
func (c *Client) FetchMonth(ctx context.Context, year, month int, destDir string) ([]string, error) {
	name := ArchiveName(year, month)
	u := c.baseURL + "/" + name

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", name, resp.StatusCode)
	}

	// Monthly archives stay in the tens of megabytes, so buffering the
	// whole body is acceptable and lets archive/zip seek.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	monthDir := filepath.Join(destDir, fmt.Sprintf("%04d-%02d", year, month))
	files, err := extract(body, monthDir)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}

	c.logger.Info("archive fetched", "archive", name, "files", len(files), "dir", monthDir)
	return files, nil
}

// extract unpacks the CSV entries of a zip archive into dir. Entries that
// would escape dir are rejected.
func extract(archive []byte, dir string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create month directory: %w", err)
	}

	var files []string
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(entry.Name), ".csv") {
			continue
		}

		dest := filepath.Join(dir, filepath.Base(entry.Name))
		rel, err := filepath.Rel(dir, dest)
		if err != nil || strings.HasPrefix(rel, "..") {
			return nil, fmt.Errorf("archive entry %q escapes destination", entry.Name)
		}

		if err := extractEntry(entry, dest); err != nil {
			return nil, err
		}
		files = append(files, dest)
	}
	return files, nil
}

func extractEntry(entry *zip.File, dest string) error {
	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("open archive entry %q: %w", entry.Name, err)
	}
	defer src.Close()

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("write %s: %w", dest, err)
	}
	return nil
}
