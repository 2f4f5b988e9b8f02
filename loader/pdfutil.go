package loader

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// ValidatePDF checks that path is a readable PDF and returns its page count.
func ValidatePDF(path string) (int, error) {
	if err := api.ValidateFile(path, pdfConfig()); err != nil {
		return 0, fmt.Errorf("invalid pdf: %w", err)
	}
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("count pages: %w", err)
	}
	return n, nil
}

// RemoveHeaderFooterCrop writes a copy of inputPath to outputPath with top and bottom margins cut away.
// top and bottom are in points (1 pt = 1/72 inch).
func RemoveHeaderFooterCrop(inputPath, outputPath string, top, bottom float64) error {
	box, err := model.ParseBox(fmt.Sprintf("%.2f 0 %.2f 0", top, bottom), types.POINTS)
	if err != nil {
		return fmt.Errorf("failed to parse crop box: %w", err)
	}

	if err := api.CropFile(inputPath, outputPath, []string{"1-"}, box, pdfConfig()); err != nil {
		return fmt.Errorf("failed to crop PDF: %w", err)
	}
	return nil
}
