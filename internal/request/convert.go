package request

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
)

// Convert rewrites a third-party benchmark document into the request
// shape the run command expects: "text" becomes "prompt",
// "token_length" becomes "max_tokens", and a sampling temperature in
// [0.2, 0.7) is injected when the document has none.
func Convert(req Request, rng *rand.Rand) Request {
	out := make(Request, len(req)+1)
	for k, v := range req {
		switch k {
		case "text":
			out["prompt"] = v
		case "token_length":
			out["max_tokens"] = v
		default:
			out[k] = v
		}
	}
	if _, ok := out["temperature"]; !ok {
		temp := 0.2 + 0.5*rng.Float64()
		out["temperature"] = float64(int(temp*100)) / 100
	}
	return out
}

// ConvertFile converts every request in inPath and writes the result to
// outPath as JSONL. Malformed input lines are skipped with a warning,
// the same policy LoadFile applies.
func ConvertFile(inPath, outPath string, logger *slog.Logger) (int, error) {
	requests, err := LoadFile(inPath, logger)
	if err != nil {
		return 0, err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	w := bufio.NewWriter(f)
	for _, req := range requests {
		line, err := json.Marshal(Convert(req, rng))
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		w.Write(line)
		w.WriteByte('\n')
	}
	if err := w.Flush(); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", outPath, err)
	}
	return len(requests), nil
}
