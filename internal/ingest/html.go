package ingest

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/tidyloom-cli/internal/frame"
	"github.com/PuerkitoBio/goquery"
)

type htmlLoader struct{}

func (htmlLoader) CanLoad(filename string) bool {
	name := strings.ToLower(filename)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

// Load reads the opt.Table-th <table>. The header is the first row of
// <thead>, or the first row of the table when there is none.
func (htmlLoader) Load(r io.Reader, _ string, opt Options) (*frame.Frame, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	tables := doc.Find("table")
	if opt.Table < 0 || opt.Table >= tables.Length() {
		return nil, fmt.Errorf("table %d not found (document has %d)", opt.Table, tables.Length())
	}
	table := tables.Eq(opt.Table)

	var rows [][]string
	if head := table.Find("thead tr").First(); head.Length() > 0 {
		rows = append(rows, rowCells(head))
	}
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if tr.ParentsFiltered("thead").Length() > 0 {
			return
		}
		rows = append(rows, rowCells(tr))
	})
	return toFrame(rows, opt), nil
}

func rowCells(tr *goquery.Selection) []string {
	var out []string
	tr.Children().Filter("th, td").Each(func(_ int, cell *goquery.Selection) {
		out = append(out, strings.TrimSpace(cell.Text()))
	})
	return out
}
