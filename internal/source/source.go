// Package source loads transcripts from files, standard input and URLs.
package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
)

// MaxSize caps how much of a source is read.
const MaxSize = 10 << 20

var (
	ErrDirectory   = errors.New("source is a directory")
	ErrUnsupported = errors.New("unsupported protocol")
	ErrTooLarge    = errors.New("source exceeds maximum size")
)

var markdownExts = []string{".md", ".mdown", ".mkdn", ".mkd", ".markdown"}

// Source is a loaded transcript.
type Source struct {
	// Name is the path or URL the text came from, "-" for stdin.
	Name string
	// Path is the local file, if any. Only local files can be watched.
	Path string
	Text string
}

// Load reads a transcript from arg: "-" for stdin, an http(s) URL, or a
// file path. Markdown documents are flattened to plain lines.
func Load(ctx context.Context, arg string) (*Source, error) {
	if arg == "-" {
		return Read(os.Stdin, "-")
	}

	if u, err := url.ParseRequestURI(arg); err == nil && strings.Contains(arg, "://") {
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("%s: %w", u.Scheme, ErrUnsupported)
		}
		return fetch(ctx, u)
	}

	path, err := homedir.Expand(arg)
	if err != nil {
		return nil, fmt.Errorf("unable to expand path: %w", err)
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%s: %w", arg, ErrDirectory)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	src, err := Read(f, path)
	if err != nil {
		return nil, err
	}
	if abs, err := filepath.Abs(path); err == nil {
		src.Path = abs
	} else {
		src.Path = path
	}
	return src, nil
}

func fetch(ctx context.Context, u *url.URL) (*Source, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("unable to build request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("unable to get url: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP status %d", resp.StatusCode)
	}
	return Read(resp.Body, u.String())
}

// Read loads a transcript from r. name decides whether the content is
// treated as markdown.
func Read(r io.Reader, name string) (*Source, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("unable to read from reader: %w", err)
	}
	if len(b) > MaxSize {
		return nil, ErrTooLarge
	}

	content := string(b)
	if IsMarkdown(name) {
		content = Flatten(b)
	}
	return &Source{Name: name, Text: content}, nil
}

// IsMarkdown reports whether name has a markdown extension.
func IsMarkdown(name string) bool {
	if u, err := url.Parse(name); err == nil && u.Scheme != "" {
		name = u.Path
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, v := range markdownExts {
		if ext == v {
			return true
		}
	}
	return false
}

// Flatten reduces a markdown document to the raw text of its headings and
// paragraphs, one block per line group. Front matter, code and HTML blocks
// are dropped. Inline syntax is left as written so speaker tags such as
// "[Castillo]:" survive untouched.
func Flatten(md []byte) string {
	md = RemoveFrontmatter(md)

	// block parsing only: no inline parsers and no link reference
	// definitions
	p := parser.NewParser(parser.WithBlockParsers(parser.DefaultBlockParsers()...))
	reader := text.NewReader(md)
	doc := p.Parse(reader)

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch n.Kind() {
		case ast.KindCodeBlock, ast.KindFencedCodeBlock, ast.KindHTMLBlock, ast.KindThematicBreak:
			return ast.WalkSkipChildren, nil
		case ast.KindHeading, ast.KindParagraph, ast.KindTextBlock:
			if s := blockText(n, md); s != "" {
				blocks = append(blocks, s)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, "\n")
}

func blockText(n ast.Node, source []byte) string {
	lines := n.Lines()
	parts := make([]string, 0, lines.Len())
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		if line := strings.TrimSpace(string(seg.Value(source))); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "\n")
}

// RemoveFrontmatter strips a leading YAML front matter block.
func RemoveFrontmatter(content []byte) []byte {
	normalized := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(normalized, []byte("---\n")) {
		return content
	}
	rest := normalized[4:]
	for off := 0; off < len(rest); {
		end := bytes.IndexByte(rest[off:], '\n')
		line := rest[off:]
		next := len(rest)
		if end >= 0 {
			line = rest[off : off+end]
			next = off + end + 1
		}
		if string(bytes.TrimRight(line, " \t")) == "---" {
			return rest[next:]
		}
		off = next
	}
	return content
}
