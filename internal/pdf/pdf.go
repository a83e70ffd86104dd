// Package pdf renders decks as printable documents.
package pdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mandolyte/mdtopdf"

	"github.com/at-ishikawa/studydeck/internal/card"
)

// DeckMarkdown renders cards as a markdown document with one section per
// card. Answers are listed after every question so the printout can be
// folded.
func DeckMarkdown(title string, cards []card.Card) []byte {
	var b bytes.Buffer
	if title == "" {
		title = "All courses"
	}
	fmt.Fprintf(&b, "# %s\n\n", escape(title))

	for i, c := range cards {
		fmt.Fprintf(&b, "## %d. %s\n\n", i+1, escape(c.Question))
		if c.Course != "" && c.Course != title {
			fmt.Fprintf(&b, "*%s*\n\n", escape(c.Course))
		}
		if c.Type == card.TypeMCQ {
			for j, option := range c.Options {
				fmt.Fprintf(&b, "%c. %s\n", 'A'+rune(j%26), escape(option))
			}
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "**Answer:** %s\n\n", escape(c.Back()))
	}
	return b.Bytes()
}

// markdown characters that would change the layout of card text
var escaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	"`", "\\`",
	`#`, `\#`,
)

func escape(s string) string {
	return escaper.Replace(strings.TrimSpace(s))
}

// WriteDeck writes cards to pdfPath and returns its absolute path.
func WriteDeck(pdfPath, title string, cards []card.Card) (string, error) {
	if !strings.HasSuffix(pdfPath, ".pdf") {
		return "", fmt.Errorf("output file must have .pdf extension: %s", pdfPath)
	}
	if len(cards) == 0 {
		return "", fmt.Errorf("no cards to print")
	}
	return render(pdfPath, DeckMarkdown(title, cards))
}

// ConvertMarkdownToPDF converts a markdown file to PDF using mdtopdf package
// The PDF file will be created in the same directory as the markdown file
func ConvertMarkdownToPDF(markdownPath string) (string, error) {
	if !strings.HasSuffix(markdownPath, ".md") {
		return "", fmt.Errorf("input file must have .md extension: %s", markdownPath)
	}

	content, err := os.ReadFile(markdownPath)
	if err != nil {
		return "", fmt.Errorf("os.ReadFile(%s) > %w", markdownPath, err)
	}
	return render(strings.TrimSuffix(markdownPath, ".md")+".pdf", content)
}

func render(pdfPath string, content []byte) (string, error) {
	if err := os.MkdirAll(filepath.Dir(pdfPath), 0o755); err != nil {
		return "", fmt.Errorf("os.MkdirAll(%s) > %w", filepath.Dir(pdfPath), err)
	}

	renderer := mdtopdf.NewPdfRenderer("P", "A4", pdfPath, "", nil, mdtopdf.LIGHT)
	if err := renderer.Process(content); err != nil {
		return "", fmt.Errorf("renderer.Process() > %w", err)
	}

	absPath, err := filepath.Abs(pdfPath)
	if err != nil {
		return pdfPath, nil
	}
	return absPath, nil
}
