package linkverify

import (
	"context"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"git.home.luguber.info/inful/spectra/internal/foundation/errors"
	"git.home.luguber.info/inful/spectra/internal/logfields"
)

// Broken describes a link whose target is missing from the output.
type Broken struct {
	Page   string `json:"page"` // output-relative, slash separated
	URL    string `json:"url"`
	Tag    string `json:"tag"`
	Target string `json:"target"` // output-relative file that was expected
}

// Report summarizes one verification run.
type Report struct {
	Pages  int
	Links  int
	Broken []Broken
}

// OK reports whether every checked link resolved.
func (r *Report) OK() bool { return len(r.Broken) == 0 }

// Verifier checks the site-internal links of every HTML page in OutputDir.
type Verifier struct {
	OutputDir   string
	Concurrency int
	Logger      *slog.Logger
}

// New returns a Verifier for outputDir.
func New(outputDir string) *Verifier {
	return &Verifier{OutputDir: outputDir, Concurrency: 4}
}

// Verify walks the output and checks every page. Pages that cannot be parsed
// are logged and skipped.
func (v *Verifier) Verify(ctx context.Context) (*Report, error) {
	pages, err := v.pages()
	if err != nil {
		return nil, err
	}

	report := &Report{Pages: len(pages)}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, max(v.Concurrency, 1))
	)
	for _, page := range pages {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func(page string) {
			defer wg.Done()
			defer func() { <-sem }()
			checked, broken := v.verifyPage(page)
			mu.Lock()
			report.Links += checked
			report.Broken = append(report.Broken, broken...)
			mu.Unlock()
		}(page)
	}
	wg.Wait()

	sort.Slice(report.Broken, func(i, j int) bool {
		a, b := report.Broken[i], report.Broken[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.URL < b.URL
	})
	v.logger().Debug("Link verification finished", logfields.Count(report.Links), slog.Int("broken", len(report.Broken)))
	return report, nil
}

// pages lists the output-relative paths of all HTML files.
func (v *Verifier) pages() ([]string, error) {
	var pages []string
	err := filepath.WalkDir(v.OutputDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(p), ".html") {
			return nil
		}
		rel, err := filepath.Rel(v.OutputDir, p)
		if err != nil {
			return err
		}
		pages = append(pages, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to list generated pages").
			WithContext("output_dir", v.OutputDir).Build()
	}
	sort.Strings(pages)
	return pages, nil
}

func (v *Verifier) verifyPage(page string) (int, []Broken) {
	links, err := ExtractLinks(filepath.Join(v.OutputDir, filepath.FromSlash(page)))
	if err != nil {
		v.logger().Warn("Failed to extract links from page", logfields.Path(page), logfields.Error(err))
		return 0, nil
	}

	checked := 0
	var broken []Broken
	for _, link := range links {
		if !ShouldVerify(link) {
			continue
		}
		checked++
		target, ok := v.Resolve(page, link.URL)
		if !ok {
			broken = append(broken, Broken{Page: page, URL: link.URL, Tag: link.Tag, Target: target})
		}
	}
	return checked, broken
}

// Resolve maps a link found on page to the output file it refers to and
// reports whether that file exists. Directory targets resolve to their
// index.html.
func (v *Verifier) Resolve(page, link string) (string, bool) {
	base := &url.URL{Path: "/" + page}
	ref, err := url.Parse(strings.TrimSpace(link))
	if err != nil {
		return link, false
	}
	resolved := base.ResolveReference(ref)

	target := strings.TrimPrefix(path.Clean(resolved.Path), "/")
	if strings.HasSuffix(resolved.Path, "/") || target == "" || target == "." {
		target = path.Join(target, "index.html")
	}

	full := filepath.Join(v.OutputDir, filepath.FromSlash(target))
	info, err := os.Stat(full)
	if err != nil {
		return target, false
	}
	if info.IsDir() {
		target = path.Join(target, "index.html")
		_, err = os.Stat(filepath.Join(full, "index.html"))
		return target, err == nil
	}
	return target, true
}

func (v *Verifier) logger() *slog.Logger {
	if v.Logger != nil {
		return v.Logger
	}
	return slog.Default()
}
