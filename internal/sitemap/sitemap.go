// Package sitemap renders sitemap.xml from the posts table and writes it into the public directory.
package sitemap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/logging"
	"github.com/go-while/go-dailyprophet/internal/posts"
)

const (
	FileName = "sitemap.xml"
	xmlNS    = "http://www.sitemaps.org/schemas/sitemap/0.9"
)

// ErrWrite marks a failure to put the rendered document on disk.
// Query failures never carry it.
var ErrWrite = errors.New("sitemap write failed")

// Build renders the sitemap document: the home page first, then one <url> per post in query order.
func Build(domain string, rows []posts.Post) string {
	base := strings.TrimRight(strings.TrimSpace(domain), "/")

	lines := make([]string, 0, len(rows))
	for _, p := range rows {
		lines = append(lines, urlEntry(base+posts.RoutePath(p.ID)))
	}

	var builder strings.Builder
	builder.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	builder.WriteString(`<urlset xmlns="` + xmlNS + `">` + "\n")
	builder.WriteString(urlEntry(base+"/") + "\n")
	builder.WriteString(strings.Join(lines, "\n") + "\n")
	builder.WriteString(`</urlset>`)
	return builder.String()
}

func urlEntry(location string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(location))
	return "<url><loc>" + buf.String() + "</loc></url>"
}

// Robots renders a permissive robots.txt that points crawlers at the sitemap.
func Robots(domain string) string {
	base := strings.TrimRight(strings.TrimSpace(domain), "/")
	return fmt.Sprintf("User-agent: *\nAllow: /\n\nSitemap: %s/%s\n", base, FileName)
}

// Result describes a written sitemap.
type Result struct {
	Path        string
	URLCount    int
	Bytes       int
	GeneratedAt time.Time
}

// Writer queries the posts source and overwrites <PublicDir>/sitemap.xml.
type Writer struct {
	source    posts.Source
	domain    string
	publicDir string
	logger    *zap.Logger
	now       func() time.Time
}

func NewWriter(source posts.Source, domain, publicDir string, logger *zap.Logger) *Writer {
	return &Writer{
		source:    source,
		domain:    domain,
		publicDir: publicDir,
		logger:    logging.OrNop(logger),
		now:       time.Now,
	}
}

// Path returns the file the writer produces.
func (w *Writer) Path() string {
	return filepath.Join(w.publicDir, FileName)
}

// Generate runs the query, renders the document and replaces the file atomically.
func (w *Writer) Generate(ctx context.Context) (*Result, error) {
	if w.source == nil {
		return nil, posts.ErrBackendUnavailable
	}
	rows, err := w.source.ListPostIDs(ctx)
	if err != nil {
		w.logger.Error("sitemap query failed", zap.String("source", w.source.Name()), zap.Error(err))
		return nil, fmt.Errorf("sitemap query: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content := Build(w.domain, rows)
	dest := w.Path()
	if err := writeFileAtomic(dest, []byte(content)); err != nil {
		w.logger.Error("sitemap write failed", zap.String("path", dest), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrWrite, err)
	}

	res := &Result{
		Path:        dest,
		URLCount:    len(rows) + 1,
		Bytes:       len(content),
		GeneratedAt: w.now(),
	}
	w.logger.Info("sitemap written",
		zap.String("path", res.Path),
		zap.Int("urls", res.URLCount),
		zap.Int("bytes", res.Bytes))
	return res, nil
}

// writeFileAtomic writes into a temp file in the same directory and renames it over dest.
func writeFileAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create public directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpName := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to chmod %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", dest, err)
	}
	return nil
}
