// Package intake turns files on disk into ingestion requests. Text files
// (.md, .txt) carry their metadata as YAML frontmatter; other formats take
// it from a "<file>.meta.yaml" sidecar. The title falls back to the first
// level-1 Markdown heading and then to the file name.
package intake

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/adrian-1-cardona/DocPulse/internal/ingestion"
)

// SidecarSuffix names the metadata file that accompanies binary documents.
const SidecarSuffix = ".meta.yaml"

var frontmatterDelim = []byte("---")

// Frontmatter is the metadata block a document may start with.
type Frontmatter struct {
	Title               string `yaml:"title"`
	Team                string `yaml:"team"`
	System              string `yaml:"system"`
	DocType             string `yaml:"docType"`
	Criticality         int    `yaml:"criticality"`
	Owner               string `yaml:"owner"`
	LastReviewedAt      string `yaml:"lastReviewedAt"`
	Views30d            *int   `yaml:"views30d"`
	ReleasesSinceReview *int   `yaml:"releasesSinceReview"`
}

var md = goldmark.New()

// IsText reports whether path is read for frontmatter and headings.
func IsText(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".txt":
		return true
	}
	return false
}

// ReadFile builds the ingestion request for path. Validation of the
// metadata itself is left to the ingestion pipeline.
func ReadFile(path string) (ingestion.IngestRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return ingestion.IngestRequest{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return ingestion.IngestRequest{}, fmt.Errorf("%s is a directory", path)
	}

	var fm Frontmatter
	var body []byte
	if IsText(path) {
		data, err := os.ReadFile(path)
		if err != nil {
			return ingestion.IngestRequest{}, fmt.Errorf("reading %s: %w", path, err)
		}
		fm, body, err = SplitFrontmatter(data)
		if err != nil {
			return ingestion.IngestRequest{}, fmt.Errorf("%s: %w", path, err)
		}
	} else {
		fm, err = readSidecar(path + SidecarSuffix)
		if err != nil {
			return ingestion.IngestRequest{}, err
		}
	}

	if fm.Title == "" && body != nil {
		fm.Title = HeadingTitle(body)
	}
	if fm.Title == "" {
		base := filepath.Base(path)
		fm.Title = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return ingestion.IngestRequest{
		Title:               fm.Title,
		Team:                fm.Team,
		System:              fm.System,
		DocType:             fm.DocType,
		Criticality:         fm.Criticality,
		Owner:               fm.Owner,
		LastReviewedAt:      fm.LastReviewedAt,
		Views30d:            fm.Views30d,
		ReleasesSinceReview: fm.ReleasesSinceReview,
		SourceFile:          filepath.ToSlash(path),
		File: &ingestion.FileInfo{
			Name:         filepath.Base(path),
			Size:         info.Size(),
			LastModified: info.ModTime().UTC(),
		},
	}, nil
}

// SplitFrontmatter separates a leading "---" YAML block from the body. A
// document without one yields empty Frontmatter and the whole input.
func SplitFrontmatter(data []byte) (Frontmatter, []byte, error) {
	var fm Frontmatter
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	first, rest, ok := cutLine(data)
	if !ok || !bytes.Equal(bytes.TrimSpace(first), frontmatterDelim) {
		return fm, data, nil
	}

	var block []byte
	for len(rest) > 0 {
		var line []byte
		line, rest, _ = cutLine(rest)
		if bytes.Equal(bytes.TrimSpace(line), frontmatterDelim) {
			if err := yaml.Unmarshal(block, &fm); err != nil {
				return Frontmatter{}, nil, fmt.Errorf("parsing frontmatter: %w", err)
			}
			return fm, rest, nil
		}
		block = append(block, line...)
		block = append(block, '\n')
	}
	return Frontmatter{}, nil, errors.New("frontmatter is not terminated by ---")
}

func cutLine(b []byte) (line, rest []byte, found bool) {
	if len(b) == 0 {
		return nil, nil, false
	}
	line, rest, found = bytes.Cut(b, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r")), rest, true
}

// HeadingTitle returns the text of the first level-1 heading in a Markdown
// body, or "".
func HeadingTitle(body []byte) string {
	doc := md.Parser().Parse(text.NewReader(body))
	var title string
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if h, ok := n.(*ast.Heading); ok && entering && h.Level == 1 {
			title = strings.TrimSpace(inlineText(h, body))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

func inlineText(n ast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch t := c.(type) {
		case *ast.Text:
			b.Write(t.Segment.Value(src))
			if t.SoftLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(t.Value)
		default:
			b.WriteString(inlineText(c, src))
		}
	}
	return b.String()
}

func readSidecar(path string) (Frontmatter, error) {
	var fm Frontmatter
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fm, nil
	}
	if err != nil {
		return fm, fmt.Errorf("reading sidecar %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fm); err != nil {
		return fm, fmt.Errorf("parsing sidecar %s: %w", path, err)
	}
	return fm, nil
}
