package export

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
)

// Markdown writes a human-readable summary followed by one table row per listing.
func (s *Service) Markdown(w io.Writer, rep Report) error {
	md := markdown.NewMarkdown(w)

	title := rep.Title
	if title == "" {
		title = "Listing Verification Report"
	}
	md.H1(title)
	md.PlainText("")

	sum := rep.Summarize()
	generated := rep.GeneratedAt
	if generated.IsZero() {
		generated = time.Now()
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Generated", generated.Format("2006-01-02 15:04:05 MST")},
			{"Listings", strconv.Itoa(sum.Total)},
			{"Likely real", strconv.Itoa(sum.LikelyReal)},
			{"Likely fake", strconv.Itoa(sum.LikelyFake)},
			{"Failed", strconv.Itoa(sum.Failed)},
		},
	})
	md.PlainText("")

	if sum.LikelyFake > 0 {
		md.Warningf("%d listing(s) scored below 0.5 real probability.", sum.LikelyFake)
		md.PlainText("")
	}

	md.H2("Results")
	md.PlainText("")
	if len(rep.Rows) == 0 {
		md.PlainText("No listings analyzed.")
		md.PlainText("")
		return md.Build()
	}

	rows := make([][]string, len(rep.Rows))
	for i, r := range rep.Rows {
		if r.Failed() {
			rows[i] = []string{strconv.Itoa(r.Seq), cell(r.CarID), cell(r.VIN), "-", "-", "-", "error: " + cell(truncate(r.Error, 80))}
			continue
		}
		match := "no"
		if r.VinFoundInDoc {
			match = "yes"
		}
		rows[i] = []string{
			strconv.Itoa(r.Seq),
			cell(r.CarID),
			cell(r.VIN),
			match,
			strconv.Itoa(r.CarDetections),
			fmt.Sprintf("%.4f", r.RealProbability),
			cell(truncate(r.Reason, 80)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Car ID", "VIN", "VIN Match", "Cars", "Real", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
	return md.Build()
}

// cell keeps a value from breaking the table layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.ReplaceAll(s, "\n", " ")
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
