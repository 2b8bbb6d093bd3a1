// Package export renders session transcripts as downloadable reports.
// Writers take the snapshot as-is; ordering and scores were fixed at
// search time and are reproduced, not recomputed.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

const (
	transcriptSheet = "Transcript"
	resultsSheet    = "Results"
)

// ExcelWriter produces a two-sheet workbook: the conversation
// transcript and the full per-exchange result table.
type ExcelWriter struct{}

func NewExcelWriter() *ExcelWriter {
	return &ExcelWriter{}
}

func (e *ExcelWriter) Write(w io.Writer, snapshot domain.SessionSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", transcriptSheet); err != nil {
		return fmt.Errorf("rename transcript sheet: %w", err)
	}
	if _, err := f.NewSheet(resultsSheet); err != nil {
		return fmt.Errorf("create results sheet: %w", err)
	}

	if err := writeTranscript(f, snapshot); err != nil {
		return err
	}
	if err := writeResults(f, snapshot); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeTranscript(f *excelize.File, snapshot domain.SessionSnapshot) error {
	header := []any{"Exchange", "Timestamp", "Query", "Answer", "Sources"}
	if err := f.SetSheetRow(transcriptSheet, "A1", &header); err != nil {
		return fmt.Errorf("write transcript header: %w", err)
	}

	for i, exchange := range snapshot.Exchanges {
		row := []any{
			i + 1,
			exchange.Timestamp.Format("2006-01-02 15:04:05"),
			exchange.Query,
			exchange.Answer,
			len(exchange.Results),
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(transcriptSheet, cell, &row); err != nil {
			return fmt.Errorf("write transcript row %d: %w", i+1, err)
		}
	}
	return nil
}

func writeResults(f *excelize.File, snapshot domain.SessionSnapshot) error {
	header := []any{"Exchange", "Rank", "Score", "Newspaper", "Date", "Page", "Chunk ID", "Excerpt"}
	if err := f.SetSheetRow(resultsSheet, "A1", &header); err != nil {
		return fmt.Errorf("write results header: %w", err)
	}

	rowIdx := 2
	for i, exchange := range snapshot.Exchanges {
		for rank, result := range exchange.Results {
			meta := result.Chunk.Metadata
			row := []any{
				i + 1,
				rank + 1,
				result.Score,
				meta.NewspaperName,
				meta.PublicationDate.Format("2006-01-02"),
				meta.PageNumber,
				result.Chunk.ChunkID,
				excerpt(result.Chunk.Content, 500),
			}
			cell := fmt.Sprintf("A%d", rowIdx)
			if err := f.SetSheetRow(resultsSheet, cell, &row); err != nil {
				return fmt.Errorf("write results row %d: %w", rowIdx-1, err)
			}
			rowIdx++
		}
	}
	return nil
}

func excerpt(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	return text[:limit] + "..."
}
