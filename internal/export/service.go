package export

import (
	"context"
	"os/exec"
	"time"

	"journeymap/api/internal/store"
)

const pdfTimeout = 30 * time.Second

// Service renders board exports.
type Service struct {
	lookPath func(string) (string, error)
	print    func(ctx context.Context, chromePath, html string) ([]byte, error)
	now      func() time.Time
}

func NewService() *Service {
	return &Service{lookPath: exec.LookPath, print: printPDF, now: time.Now}
}

// PDFAvailable reports whether a Chrome binary can be found.
func (s *Service) PDFAvailable() bool {
	_, err := findChrome(s.lookPath)
	return err == nil
}

// Export renders tree in the requested format. PDF output needs Chrome on
// PATH; without it ErrPDFDependencyMissing is returned.
func (s *Service) Export(ctx context.Context, tree store.BoardTree, projectName string, format Format) (*Result, error) {
	html, err := RenderBoardHTML(BuildView(tree, projectName, s.now().UTC()))
	if err != nil {
		return nil, err
	}
	name := sanitizeFilename(tree.Board.Name)

	switch format {
	case FormatHTML:
		return &Result{Data: []byte(html), Filename: name + ".html", MimeType: "text/html; charset=utf-8"}, nil
	case FormatPDF:
		chromePath, err := findChrome(s.lookPath)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(ctx, pdfTimeout)
		defer cancel()
		data, err := s.print(ctx, chromePath, html)
		if err != nil {
			return nil, err
		}
		return &Result{Data: data, Filename: name + ".pdf", MimeType: "application/pdf"}, nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
