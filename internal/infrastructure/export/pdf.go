package export

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// PDFWriter renders the session as a research report: one section per
// exchange with the question, the synthesized answer, and numbered
// source citations.
type PDFWriter struct{}

func NewPDFWriter() *PDFWriter {
	return &PDFWriter{}
}

func (p *PDFWriter) Write(w io.Writer, snapshot domain.SessionSnapshot) error {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetAutoPageBreak(true, 15)
	doc.AddPage()

	doc.SetFont("Helvetica", "B", 16)
	doc.MultiCell(0, 8, "Newspaper Archive Research Report", "", "L", false)
	doc.SetFont("Helvetica", "", 10)
	doc.MultiCell(0, 5, fmt.Sprintf("Session %s, started %s",
		snapshot.SessionID, snapshot.CreatedAt.Format("January 2, 2006 15:04")), "", "L", false)
	doc.Ln(4)

	for i, exchange := range snapshot.Exchanges {
		doc.SetFont("Helvetica", "B", 12)
		doc.MultiCell(0, 6, fmt.Sprintf("%d. %s", i+1, exchange.Query), "", "L", false)

		if exchange.Answer != "" {
			doc.SetFont("Helvetica", "", 10)
			doc.MultiCell(0, 5, exchange.Answer, "", "L", false)
		}

		if len(exchange.Results) > 0 {
			doc.Ln(2)
			doc.SetFont("Helvetica", "I", 9)
			doc.MultiCell(0, 5, "Sources:", "", "L", false)
			doc.SetFont("Helvetica", "", 9)
			for n, result := range exchange.Results {
				line := fmt.Sprintf("[Source %d] %s (relevance %.2f)", n+1, result.Citation(), result.Score)
				doc.MultiCell(0, 5, line, "", "L", false)
			}
		}
		doc.Ln(5)
	}

	if err := doc.Output(w); err != nil {
		return fmt.Errorf("render pdf report: %w", err)
	}
	return nil
}
