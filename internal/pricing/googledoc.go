package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	docs "google.golang.org/api/docs/v1"
	"google.golang.org/api/option"
)

// GoogleDoc reads the price list from a Google Docs document.
type GoogleDoc struct {
	srv   *docs.Service
	docID string
}

func NewGoogleDoc(ctx context.Context, ts oauth2.TokenSource, docID string) (*GoogleDoc, error) {
	if strings.TrimSpace(docID) == "" {
		return nil, errors.New("pricing: document id is required")
	}
	srv, err := docs.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("pricing: failed to create docs service: %w", err)
	}
	return &GoogleDoc{srv: srv, docID: docID}, nil
}

func (g *GoogleDoc) Prices(ctx context.Context, treatment string) (string, error) {
	doc, err := g.srv.Documents.Get(g.docID).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("pricing: failed to fetch document: %w", err)
	}
	var b strings.Builder
	if doc.Body != nil {
		writeElements(&b, doc.Body.Content)
	}
	return Filter(b.String(), treatment), nil
}

func writeElements(b *strings.Builder, elems []*docs.StructuralElement) {
	for _, el := range elems {
		switch {
		case el.Paragraph != nil:
			for _, pe := range el.Paragraph.Elements {
				if pe.TextRun != nil {
					b.WriteString(pe.TextRun.Content)
				}
			}
		case el.Table != nil:
			for _, row := range el.Table.TableRows {
				cells := make([]string, 0, len(row.TableCells))
				for _, cell := range row.TableCells {
					var cb strings.Builder
					writeElements(&cb, cell.Content)
					cells = append(cells, strings.TrimSpace(cb.String()))
				}
				b.WriteString(strings.Join(cells, ": "))
				b.WriteString("\n")
			}
		}
	}
}
