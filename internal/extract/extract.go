// Package extract turns attached files into plain text suitable for a
// model prompt.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ErrUnsupportedType reports a file extension with no extractor.
type ErrUnsupportedType struct {
	Ext string
}

func (e *ErrUnsupportedType) Error() string {
	return fmt.Sprintf("unsupported file type %q", e.Ext)
}

// Text reads the file at path and returns its textual content. Plain
// text comes back verbatim; markdown is parsed and flattened so
// formatting syntax does not leak into the prompt.
func Text(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt":
		return string(data), nil
	case ".md", ".markdown":
		return Markdown(data), nil
	default:
		return "", &ErrUnsupportedType{Ext: ext}
	}
}

// Markdown flattens markdown source into plain text, one block element
// per line.
func Markdown(source []byte) string {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var sb strings.Builder
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.Text:
			sb.Write(node.Segment.Value(source))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.AutoLink:
			sb.Write(node.URL(source))
		case *ast.CodeBlock, *ast.FencedCodeBlock:
			lines := n.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				sb.Write(line.Value(source))
			}
			return ast.WalkSkipChildren, nil
		default:
			if n.Type() == ast.TypeBlock && sb.Len() > 0 {
				sb.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(sb.String())
}
