package providers

import "errors"

const TesseractName = "tesseract"

// ErrTesseractNotEnabled is returned when Tesseract support was not compiled in.
var ErrTesseractNotEnabled = errors.New("tesseract support not enabled; rebuild with -tags tesseract")

// TesseractConfig configures the local Tesseract provider.
type TesseractConfig struct {
	// Languages is a "+"-separated list of traineddata names (e.g., "eng+chi_sim").
	Languages string
}
