package cli

import (
	"context"
	"fmt"
	"io"
	"pagedb/pkg/memory"
	"pagedb/pkg/storage/page"
	"pagedb/pkg/table"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
)

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

const splash = `
 ____   __    ___  ____  ____  ____
(  _ \ /__\  / __)( ___)(  _ \(  _ \
 )___//(__)\( (_-. )__)  )(_) )) _ <
(__) (__)(__)\___/(____)(____/(____/
`

// PrintSplash writes the banner shown when the REPL starts.
func PrintSplash(w io.Writer) {
	fmt.Fprintln(w, titleStyle.Render(splash))
	fmt.Fprintln(w, mutedStyle.Render("  sort-merge joins and hash aggregation over a paged buffer pool"))
	fmt.Fprintln(w)
}

type tableInfo struct {
	name   string
	schema string
	pages  int
}

func renderTableList(w io.Writer, infos []tableInfo) {
	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader([]string{"table", "schema", "pages", "size"})
	for _, info := range infos {
		tw.Append([]string{
			info.name,
			info.schema,
			strconv.Itoa(info.pages),
			humanize.IBytes(uint64(info.pages) * page.PageSize),
		})
	}
	tw.Render()
	fmt.Fprintf(w, "(%d table%s)\n", len(infos), plural(len(infos)))
}

// renderRecords prints up to limit records of t as a table.
func renderRecords(ctx context.Context, w io.Writer, t *table.Table, limit int) error {
	td := t.TupleDesc()
	header := make([]string, td.NumFields())
	for i := range header {
		name, _ := td.GetFieldName(i)
		if name == "" {
			name = fmt.Sprintf("c%d", i)
		}
		header[i] = name
	}

	tw := tablewriter.NewWriter(w)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	tw.SetHeader(header)

	scan := t.Scan(ctx)
	defer scan.Close()

	rec := t.NewRecord()
	shown, total := 0, 0
	for {
		ok, err := scan.Advance()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		total++
		if limit > 0 && shown >= limit {
			continue
		}
		if err := scan.Current(rec); err != nil {
			return err
		}
		row := make([]string, td.NumFields())
		for i := range row {
			f, err := rec.GetField(i)
			if err != nil {
				return err
			}
			row[i] = f.String()
		}
		tw.Append(row)
		shown++
	}
	tw.Render()

	if shown < total {
		fmt.Fprintf(w, "(%s of %s rows)\n", humanize.Comma(int64(shown)), humanize.Comma(int64(total)))
	} else {
		fmt.Fprintf(w, "(%s row%s)\n", humanize.Comma(int64(total)), plural(total))
	}
	return nil
}

func renderPoolStats(w io.Writer, st memory.Stats) {
	tw := tablewriter.NewWriter(w)
	tw.SetHeader([]string{"pinned", "capacity", "cache hits", "cache misses", "page writes"})
	tw.Append([]string{
		strconv.Itoa(st.Pinned),
		strconv.Itoa(st.Capacity),
		humanize.Comma(int64(st.Hits)),
		humanize.Comma(int64(st.Misses)),
		humanize.Comma(int64(st.Writes)),
	})
	tw.Render()
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
