package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"property-underwriter/models"
)

// PDFRenderer prints the markdown report through headless Chromium.
type PDFRenderer struct {
	chromePath string
	timeout    time.Duration
}

// NewPDFRenderer uses chromeBin, or the first Chromium found on the host when empty.
func NewPDFRenderer(chromeBin string) *PDFRenderer {
	if chromeBin == "" {
		chromeBin = detectChromePath()
	}
	return &PDFRenderer{chromePath: chromeBin, timeout: 30 * time.Second}
}

// LookupPDFRenderer is NewPDFRenderer for hosts that may lack a browser: it
// returns nil when chromeBin (or the detected Chromium) is not an executable file.
func LookupPDFRenderer(chromeBin string) *PDFRenderer {
	r := NewPDFRenderer(chromeBin)
	if !r.Available() {
		return nil
	}
	if info, err := os.Stat(r.chromePath); err != nil || info.IsDir() || info.Mode()&0o111 == 0 {
		return nil
	}
	return r
}

// Available reports whether a browser binary was found.
func (r *PDFRenderer) Available() bool { return r.chromePath != "" }

func (r *PDFRenderer) Format() string      { return FormatPDF }
func (r *PDFRenderer) ContentType() string { return "application/pdf" }

func (r *PDFRenderer) Export(ctx context.Context, rep *models.Report) ([]byte, error) {
	doc, err := buildHTML(rep)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	pdf, err := r.print(ctx, doc, footerTemplate(rep.Analysis.ID))
	if err != nil {
		return nil, fmt.Errorf("pdf: print %s: %w", rep.Analysis.ID, err)
	}
	return pdf, nil
}

// print loads doc into a fresh headless browser and returns it as a
// letter-size PDF.
func (r *PDFRenderer) print(ctx context.Context, doc, footer string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(r.chromePath))
	}
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	params := page.PrintToPDF().
		WithPaperWidth(8.5).
		WithPaperHeight(11).
		WithMarginTop(0.5).
		WithMarginBottom(0.75).
		WithPrintBackground(true).
		WithDisplayHeaderFooter(true).
		WithHeaderTemplate("<span></span>").
		WithFooterTemplate(footer)

	var out []byte
	err := chromedp.Run(browserCtx,
		chromedp.Navigate("data:text/html;base64,"+base64.StdEncoding.EncodeToString([]byte(doc))),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) (err error) {
			out, _, err = params.Do(ctx)
			return err
		}),
	)
	return out, err
}

func footerTemplate(analysisID string) string {
	return `<div style="width:100%;font-size:8px;color:#78716c;padding:0 0.5in;display:flex;justify-content:space-between;">` +
		`<span>Analysis ` + html.EscapeString(analysisID) + `</span>` +
		`<span><span class="pageNumber"></span>/<span class="totalPages"></span></span></div>`
}

// ReportMarkdown renders the report body as GitHub-flavoured markdown.
func ReportMarkdown(rep *models.Report) string {
	a := rep.Analysis
	var b strings.Builder
	fmt.Fprintf(&b, "# Underwriting Report\n\n")
	fmt.Fprintf(&b, "**Source:** %s  \n**Analysis:** %s  \n**Date:** %s\n\n",
		mdEscape(a.Source), a.ID, a.CreatedAt.Format("January 2, 2006 15:04 MST"))
	if len(a.MissingColumns) > 0 {
		fmt.Fprintf(&b, "> Missing required columns, treated as 0: %s\n\n", mdEscape(strings.Join(a.MissingColumns, ", ")))
	}

	b.WriteString("## Metrics\n\n| Metric | Value |\n|---|---:|\n")
	for _, m := range a.Metrics.Entries() {
		if m.Value == 0 && !m.Undefined && !models.IsDerivedMetric(m.Name) {
			continue
		}
		fmt.Fprintf(&b, "| %s | %s |\n", mdEscape(m.Name), m.Display())
	}

	var text []string
	for _, f := range models.Fields {
		if f.Kind == models.Text {
			if v := a.Inputs.TextValue(f.Name); v != "" {
				text = append(text, fmt.Sprintf("| %s | %s |", f.Label, mdEscape(v)))
			}
		}
	}
	if len(text) > 0 {
		b.WriteString("\n## Property Details\n\n| Field | Value |\n|---|---|\n")
		b.WriteString(strings.Join(text, "\n"))
		b.WriteString("\n")
	}

	if rep.Insight != "" {
		title := "Insights"
		if rep.InsightKind != "" {
			title = fmt.Sprintf("Insights (%s)", rep.InsightKind)
		}
		fmt.Fprintf(&b, "\n## %s\n\n%s\n", title, rep.Insight)
	}
	return b.String()
}

func buildHTML(rep *models.Report) (string, error) {
	var content strings.Builder
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	if err := md.Convert([]byte(ReportMarkdown(rep)), &content); err != nil {
		return "", fmt.Errorf("markdown convert: %w", err)
	}

	chart := ""
	if len(rep.Chart) > 0 {
		chart = "<h2>Chart</h2><img class='chart' alt='" + html.EscapeString(rep.ChartKind) + " chart' src='data:image/png;base64," +
			base64.StdEncoding.EncodeToString(rep.Chart) + "'>"
	}

	return "<!doctype html><html><head><meta charset='utf-8'><title>Underwriting Report</title>" +
		"<style>" +
		"html,body,*{-webkit-print-color-adjust:exact !important;print-color-adjust:exact !important;} " +
		"body{font-family:Helvetica,Arial,sans-serif;color:#1c1917;padding:0.6rem;} " +
		"h1{border-bottom:3px solid #6d28d9;padding-bottom:0.3rem;} " +
		"table{width:100%;border-collapse:collapse;border:1px solid #a8a29e;font-size:0.85rem;} " +
		"th,td{border:1px solid #a8a29e;padding:0.35rem 0.45rem;} thead th{background:#f1f5f9;} " +
		"blockquote{background:#fef3c7;border-left:4px solid #f59e0b;margin:0;padding:0.4rem 0.8rem;} " +
		"img.chart{max-width:100%;break-inside:avoid;} " +
		"</style></head><body>" + content.String() + chart + "</body></html>", nil
}

var mdReplacer = strings.NewReplacer("|", `\|`, "\n", " ")

func mdEscape(s string) string { return mdReplacer.Replace(s) }

func detectChromePath() string {
	candidates := []string{
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/usr/bin/google-chrome",
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, name := range []string{"chromium", "google-chrome", "chrome"} {
		if p, err := exec.LookPath(name); err == nil {
			return p
		}
	}
	return ""
}
