package request

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// maxLineBytes bounds a single request line. Prompts can run long, so
// this is far above bufio.Scanner's default.
const maxLineBytes = 4 * 1024 * 1024

// LoadFile reads newline-delimited JSON request documents from path.
// Blank lines are skipped; malformed lines are logged and skipped
// rather than failing the load. Order is preserved.
func LoadFile(path string, logger *slog.Logger) ([]Request, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	requests, err := Load(f, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return requests, nil
}

// Load reads newline-delimited JSON request documents from r.
func Load(r io.Reader, logger *slog.Logger) ([]Request, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var requests []Request
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var req Request
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			logger.Warn("skipping malformed request line",
				slog.Int("line", lineNum),
				slog.String("error", err.Error()))
			continue
		}
		requests = append(requests, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return requests, nil
}
