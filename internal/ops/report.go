package ops

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/recall/internal/capture"
	"github.com/hpungsan/recall/internal/errors"
	"github.com/hpungsan/recall/internal/imagestore"
)

// Report formats
const (
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

// DefaultReportTimeline is the number of timeline rows when no limit is given.
const DefaultReportTimeline = 100

var nowFunc = time.Now

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// ReportInput contains parameters for the Report operation.
type ReportInput struct {
	Format string // markdown (default) or html; a Path extension overrides it
	Limit  int    // timeline rows, default 100
	Path   string // optional output file
}

// ReportOutput is a rendered forensic summary.
type ReportOutput struct {
	ID          string `json:"id"`
	GeneratedAt int64  `json:"generated_at"`
	Format      string `json:"format"`
	Markdown    string `json:"markdown"`
	HTML        string `json:"html,omitempty"`
	Path        string `json:"path,omitempty"`
}

type appCount struct {
	Name  string
	Count int
}

// Report builds a markdown summary of the database: counts, the deletion
// check, captures per app, missing screenshots and a timeline. HTML is
// rendered from the markdown with goldmark. With input.Path the report is
// also written to disk, never over the evidence.
func Report(ctx context.Context, v *Viewer, input ReportInput) (*ReportOutput, error) {
	format := strings.ToLower(strings.TrimSpace(input.Format))
	if format == "" {
		format = FormatMarkdown
	}
	if format != FormatMarkdown && format != FormatHTML {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown report format %q", input.Format))
	}
	if input.Path != "" {
		f, err := ValidateReportPath(input.Path, v)
		if err != nil {
			return nil, err
		}
		format = f
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultReportTimeline
	}

	status, err := Status(ctx, v)
	if err != nil {
		return nil, err
	}
	all, err := v.Repo.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	b, _, err := Load(ctx, v, RangeInput{})
	if err != nil {
		return nil, err
	}

	now := nowFunc()
	id := ulid.MustNew(ulid.Timestamp(now), ulid.Monotonic(rand.Reader, 0)).String()

	var md strings.Builder
	fmt.Fprintf(&md, "# Recall capture report\n\n")
	fmt.Fprintf(&md, "- Report ID: `%s`\n", id)
	fmt.Fprintf(&md, "- Generated: %s (%s)\n", v.Codec.Format(now.UnixMilli()), status.Zone)
	fmt.Fprintf(&md, "- Database: `%s`\n", status.DBPath)
	fmt.Fprintf(&md, "- Image store: `%s` (%s)\n\n", status.ImageRoot, foundWord(status.ImageRootFound))

	md.WriteString("## Summary\n\n| Metric | Value |\n|---|---|\n")
	fmt.Fprintf(&md, "| Captures | %d |\n", status.Stats.Captures)
	fmt.Fprintf(&md, "| With images | %d |\n", status.Stats.WithImages)
	fmt.Fprintf(&md, "| Apps | %d |\n", status.Stats.Apps)
	fmt.Fprintf(&md, "| First capture | %s |\n", orDash(status.FirstCapture))
	fmt.Fprintf(&md, "| Last capture | %s |\n\n", orDash(status.LastCapture))

	md.WriteString("## Deletion check\n\n")
	fmt.Fprintf(&md, "%s\n\n", status.Status.Text)

	md.WriteString("## Applications\n\n")
	apps := countApps(all)
	if len(apps) == 0 {
		md.WriteString("No app relations recorded.\n\n")
	} else {
		md.WriteString("| App | Captures |\n|---|---|\n")
		for _, a := range apps {
			fmt.Fprintf(&md, "| %s | %d |\n", cell(a.Name), a.Count)
		}
		md.WriteString("\n")
	}

	md.WriteString("## Timeline\n\n")
	missing := 0
	if b.Empty() {
		md.WriteString("No captures with images.\n\n")
	} else {
		md.WriteString("| # | ID | Time | Window | Image |\n|---|---|---|---|---|\n")
		for i, c := range b.Slice(0, b.Len()) {
			path, rerr := v.Images.Resolve(c.ImageToken)
			present := rerr == nil && imagestore.Exists(path)
			if !present {
				missing++
			}
			if i < limit {
				fmt.Fprintf(&md, "| %d | %d | %s | %s | %s |\n",
					i, c.ID, v.Codec.Format(c.Timestamp), cell(c.WindowTitle), presentWord(present))
			}
		}
		if b.Len() > limit {
			fmt.Fprintf(&md, "\n%d more captures not shown.\n", b.Len()-limit)
		}
		md.WriteString("\n")
	}

	md.WriteString("## Image store\n\n")
	fmt.Fprintf(&md, "%d of %d referenced screenshots are missing from the image store.\n", missing, b.Len())

	out := &ReportOutput{
		ID:          id,
		GeneratedAt: now.UnixMilli(),
		Format:      format,
		Markdown:    md.String(),
	}
	if format == FormatHTML {
		body, err := RenderMarkdown(out.Markdown)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		out.HTML = body
	}

	if input.Path != "" {
		content := out.Markdown
		if format == FormatHTML {
			content = htmlDocument("Recall capture report "+id, out.HTML)
		}
		if err := writeReport(input.Path, content); err != nil {
			return nil, err
		}
		out.Path = input.Path
	}

	return out, nil
}

// RenderMarkdown converts markdown to an HTML fragment using goldmark with
// GFM tables.
func RenderMarkdown(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// DefaultReportPath returns ~/.recall/reports/<db name>-<timestamp>.md.
func DefaultReportPath(v *Viewer, format string) (string, error) {
	dir, err := DefaultReportsDir()
	if err != nil {
		return "", err
	}
	ext := ".md"
	if format == FormatHTML {
		ext = ".html"
	}
	base := SanitizeForFilename(strings.TrimSuffix(filepath.Base(v.Repo.Path()), filepath.Ext(v.Repo.Path())))
	name := fmt.Sprintf("%s-%s%s", base, nowFunc().UTC().Format("20060102T150405Z"), ext)
	return filepath.Join(dir, name), nil
}

// writeReport writes content to a temp file and links it into place. An
// existing file at path is never replaced.
func writeReport(path, content string) error {
	if _, err := os.Lstat(path); err == nil {
		return errors.NewInvalidRequest(fmt.Sprintf("report file already exists: %s", path))
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create report directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0600)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create report file: %w", err))
	}
	defer os.Remove(tempPath)

	if _, err := file.WriteString(content); err != nil {
		file.Close()
		return errors.NewInternal(fmt.Errorf("failed to write report: %w", err))
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return errors.NewInternal(fmt.Errorf("failed to sync report: %w", err))
	}
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close report: %w", err))
	}
	if err := os.Link(tempPath, path); err != nil {
		if os.IsExist(err) {
			return errors.NewInvalidRequest(fmt.Sprintf("report file already exists: %s", path))
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize report: %w", err))
	}
	return nil
}

func htmlDocument(title, body string) string {
	return "<!doctype html>\n<html><head><meta charset=\"utf-8\"><title>" +
		html.EscapeString(title) + "</title></head>\n<body>\n" + body + "</body></html>\n"
}

func countApps(all []capture.Capture) []appCount {
	counts := make(map[string]int)
	for _, c := range all {
		name := "(none)"
		if c.AppName != nil && *c.AppName != "" {
			name = *c.AppName
		}
		counts[name]++
	}
	out := make([]appCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, appCount{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// cell makes s safe inside a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func foundWord(ok bool) string {
	if ok {
		return "found"
	}
	return "missing"
}

func presentWord(ok bool) string {
	if ok {
		return "O"
	}
	return "X"
}
