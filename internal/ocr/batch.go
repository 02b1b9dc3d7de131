package ocr

import (
	"context"
	"fmt"
)

// BatchResult is the outcome for one image in a batch.
type BatchResult struct {
	Path string
	Text string // Model output, or "ERROR: <msg>" on failure
	Err  error
}

// BatchRecognize recognizes each image in order. A failed image is recorded
// in its result and does not stop the batch; cancellation does.
func (s *Service) BatchRecognize(ctx context.Context, paths []string, opts Options) []BatchResult {
	results := make([]BatchResult, 0, len(paths))
	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			for _, rest := range paths[i:] {
				results = append(results, failed(rest, err))
			}
			break
		}
		text, err := s.Recognize(ctx, path, opts)
		if err != nil {
			s.logger.Warn("batch image failed", "path", path, "error", err)
			results = append(results, failed(path, err))
			continue
		}
		results = append(results, BatchResult{Path: path, Text: text})
	}
	return results
}

func failed(path string, err error) BatchResult {
	return BatchResult{Path: path, Text: fmt.Sprintf("ERROR: %v", err), Err: err}
}
