package ocr

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"golang.org/x/sync/errgroup"

	"github.com/agent-tools/modelkit/internal/providers"
)

// renderDPI matches reasonable quality for OCR.
const renderDPI = 300

// PageCount returns the number of pages in the PDF at path.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", path, err)
	}
	return n, nil
}

// RenderPage renders one page (1-indexed) to PNG bytes using pdftoppm.
// pdftoppm renders the page as laid out, where extracting embedded images
// would not follow page order.
func RenderPage(ctx context.Context, pdfPath string, page int) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "modelkit-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, "pdftoppm",
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(renderDPI),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// -singlefile writes <prefix>.png
	data, err := os.ReadFile(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	return data, nil
}

// pageRenderer is swapped in tests.
var pageRenderer = RenderPage

// RecognizePDF returns one result per page in page order. Providers that
// take whole documents get the PDF in one request; otherwise every page is
// rendered and recognized concurrently and the first failure cancels the rest.
func (s *Service) RecognizePDF(ctx context.Context, pdfPath string, opts Options) ([]string, error) {
	pages, err := PageCount(pdfPath)
	if err != nil {
		return nil, err
	}
	return s.recognizePDF(ctx, pdfPath, pages, opts)
}

func (s *Service) recognizePDF(ctx context.Context, pdfPath string, pages int, opts Options) ([]string, error) {
	if doc, ok := s.provider.(providers.DocumentOCRProvider); ok {
		return s.recognizeDocument(ctx, doc, pdfPath, pages, opts)
	}
	return s.recognizePages(ctx, pdfPath, pages, opts)
}

func (s *Service) recognizeDocument(ctx context.Context, doc providers.DocumentOCRProvider, pdfPath string, pages int, opts Options) ([]string, error) {
	data, err := os.ReadFile(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	req := &providers.OCRRequest{Prompt: opts.resolvedPrompt(), RequestID: uuid.NewString()}
	logger := s.logger.With("request_id", req.RequestID, "path", pdfPath)
	logger.Info("recognizing pdf as one document", "pages", pages)

	start := time.Now()
	result, err := providers.Call(ctx, s.provider, logger, func(ctx context.Context) (*providers.OCRDocumentResult, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		res, err := doc.ProcessDocument(ctx, data, req)
		if rle, ok := providers.IsRateLimitError(err); ok {
			s.limiter.Record429(rle.RetryAfter)
		}
		return res, err
	})
	if err != nil {
		logger.Error("ocr failed", "duration", time.Since(start), "error", err)
		return nil, fmt.Errorf("ocr %s: %w", s.provider.Name(), err)
	}
	if result == nil || len(result.Pages) == 0 {
		return nil, fmt.Errorf("ocr %s: %w", s.provider.Name(), providers.ErrEmptyResult)
	}
	if len(result.Pages) != pages {
		logger.Warn("provider returned a different page count", "want", pages, "got", len(result.Pages))
	}
	logger.Info("ocr complete", "duration", time.Since(start), "pages", len(result.Pages))
	return result.Pages, nil
}

func (s *Service) recognizePages(ctx context.Context, pdfPath string, pages int, opts Options) ([]string, error) {
	s.logger.Info("recognizing pdf", "path", pdfPath, "pages", pages, "workers", s.workers)

	results := make([]string, pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i := 0; i < pages; i++ {
		page := i + 1
		g.Go(func() error {
			img, err := pageRenderer(gctx, pdfPath, page)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			text, err := s.RecognizeImage(gctx, img, page, opts)
			if err != nil {
				return fmt.Errorf("page %d: %w", page, err)
			}
			results[i] = text
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// PageFileName names the output for a page, e.g. page_0001.md.
func PageFileName(page int, ext string) string {
	return fmt.Sprintf("page_%04d%s", page, ext)
}
