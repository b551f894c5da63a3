package planning

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
)

// SavePDF writes content to <baseDir>/<projectFolder>/<name>.pdf with a
// generation timestamp header, creating directories as needed. Returns
// the written file path.
func SavePDF(content, name, projectFolder, baseDir string) (string, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "", 12)

	pdf.CellFormat(0, 10, "Generated: "+time.Now().Format("2006-01-02 15:04:05"), "", 1, "", false, 0, "")
	pdf.Ln(10)

	// fpdf's core fonts only cover latin-1
	for _, line := range strings.Split(content, "\n") {
		pdf.MultiCell(0, 10, toLatin1(line), "", "", false)
	}

	projectDir := filepath.Join(baseDir, projectFolder)
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create project directory: %w", err)
	}

	path := filepath.Join(projectDir, name+".pdf")
	if err := pdf.OutputFileAndClose(path); err != nil {
		return "", fmt.Errorf("failed to write PDF: %w", err)
	}

	return path, nil
}

// toLatin1 replaces characters outside latin-1 with '?', matching the
// core font's coverage.
func toLatin1(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r > 0xFF {
			b.WriteByte('?')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
