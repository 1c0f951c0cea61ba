package upload

import (
	"fmt"
	"io"

	pdfapi "github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// countPages parses the PDF with relaxed validation, as scanned documents
// are often slightly malformed.
func countPages(rs io.ReadSeeker) (n int, err error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	// pdfcpu can panic on badly broken cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("parse pdf: %v", r)
		}
	}()
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return pdfapi.PageCount(rs, conf)
}
