// Package nav builds the site navigation tree from a content directory.
package nav

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/spectra/internal/logfields"
	"git.home.luguber.info/inful/spectra/internal/sitepath"
)

// IndexTitle labels the navigation entry of the content root's index document.
const IndexTitle = "Page index"

// Node is one entry of the navigation tree.
type Node struct {
	SourcePath string  `json:"source_path"`
	Title      string  `json:"title"`
	Link       string  `json:"link"`
	Linked     bool    `json:"linked"` // false for a directory without an index document
	Children   []*Node `json:"children,omitempty"`
}

// Builder turns a content directory into navigation nodes. A Builder holds no
// per-build state; Build may be called concurrently.
type Builder struct {
	Rules sitepath.Rules
	// OutputDir is the build output directory. It is excluded from the tree
	// when it lives inside the content root.
	OutputDir string
	// IncludeAssets adds non-document files as leaf nodes.
	IncludeAssets bool
	Logger        *slog.Logger
}

// NewBuilder returns a Builder that includes asset leaves and logs to the
// default logger.
func NewBuilder(rules sitepath.Rules, outputDir string) *Builder {
	return &Builder{Rules: rules, OutputDir: outputDir, IncludeAssets: true}
}

// Build lists root recursively. It returns nil when root is empty or cannot be
// read; failures below the root only drop the affected subtree.
func (b *Builder) Build(root string) []*Node {
	return b.level(root, root, b.outputRel(root), nil)
}

// level lists one directory. parent is the node representing dir, nil at the
// content root. skip is the root-relative path of the output directory.
func (b *Builder) level(root, dir, skip string, parent *Node) []*Node {
	entries, err := os.ReadDir(dir)
	if err != nil {
		b.logger().Warn("Failed to read directory; omitting it from navigation", logfields.Path(dir), logfields.Error(err))
		return nil
	}
	if len(entries) == 0 {
		if parent == nil {
			b.logger().Warn("Content directory is empty", logfields.Path(dir))
		} else {
			b.logger().Debug("Empty directory", logfields.Path(dir))
		}
		return nil
	}

	var res []*Node
	seen := map[string]*Node{}
	hasRootIndex := false
	for _, entry := range entries {
		name := entry.Name()
		p := filepath.Join(dir, name)
		if sitepath.IsHidden(name) || b.isOutput(root, p, skip) {
			continue
		}

		if !entry.IsDir() && b.Rules.IsIndexDocument(name) {
			if parent != nil {
				parent.Linked = true
				continue
			}
			if hasRootIndex {
				b.logger().Debug("Ignoring additional index document", logfields.Path(p))
				continue
			}
			hasRootIndex = true
			index := &Node{SourcePath: p, Title: IndexTitle, Link: sitepath.RootLink, Linked: true}
			res = append([]*Node{index}, res...)
			continue
		}

		info, err := os.Stat(p)
		if err != nil {
			b.logger().Warn("Failed to stat entry; skipping", logfields.Path(p), logfields.Error(err))
			continue
		}

		var node *Node
		switch {
		case info.IsDir():
			if entry.Type()&fs.ModeSymlink != 0 {
				b.logger().Debug("Skipping symlinked directory", logfields.Path(p))
				continue
			}
			node = &Node{SourcePath: p, Title: name, Link: b.Rules.ToDirectoryLink(p, root)}
		case sitepath.IsDocument(name):
			node = b.newNode(root, p, sitepath.StripKnownExtension(name))
			node.Linked = true
		case b.IncludeAssets && sitepath.HasFileExtension(name):
			node = b.newNode(root, p, strings.TrimSuffix(name, filepath.Ext(name)))
			node.Linked = true
		default:
			continue
		}

		if prev, ok := seen[node.Link]; ok {
			b.merge(root, skip, prev, node, info.IsDir())
			continue
		}
		seen[node.Link] = node
		if info.IsDir() {
			node.Children = b.level(root, p, skip, node)
		}
		res = append(res, node)
	}
	return res
}

// merge folds node into prev, an earlier sibling with the same link. A page
// and a directory sharing a link become one linked directory entry; any other
// duplicate is dropped and the first entry kept.
func (b *Builder) merge(root, skip string, prev, node *Node, nodeIsDir bool) {
	prevIsDir := isDir(prev.SourcePath)
	switch {
	case nodeIsDir && !prevIsDir:
		prev.Children = b.level(root, node.SourcePath, skip, prev)
		b.logger().Debug("Merged directory into page with the same link", logfields.Path(node.SourcePath), logfields.Link(prev.Link))
	case !nodeIsDir && prevIsDir && !prev.Linked:
		prev.Linked = true
		b.logger().Debug("Merged page into directory with the same link", logfields.Path(node.SourcePath), logfields.Link(prev.Link))
	default:
		b.logger().Warn("Duplicate navigation link; keeping first entry",
			logfields.Path(node.SourcePath), logfields.Link(node.Link), slog.String("kept", prev.SourcePath))
	}
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}

func (b *Builder) newNode(root, p, title string) *Node {
	return &Node{
		SourcePath: p,
		Title:      title,
		Link:       b.Rules.ToCanonicalLink(p, root),
	}
}

// outputRel returns the output directory relative to root, or "" when it is
// unset or lies outside root.
func (b *Builder) outputRel(root string) string {
	if b.OutputDir == "" {
		return ""
	}
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ""
	}
	absOut, err := filepath.Abs(b.OutputDir)
	if err != nil {
		return ""
	}
	rel, err := filepath.Rel(absRoot, absOut)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ""
	}
	return rel
}

func (b *Builder) isOutput(root, p, skip string) bool {
	if skip == "" {
		return false
	}
	rel, err := filepath.Rel(root, p)
	return err == nil && rel == skip
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

// Walk visits every node depth-first, parents before children.
func Walk(nodes []*Node, fn func(n *Node, depth int)) {
	var visit func([]*Node, int)
	visit = func(ns []*Node, depth int) {
		for _, n := range ns {
			fn(n, depth)
			visit(n.Children, depth+1)
		}
	}
	visit(nodes, 0)
}

// Count returns the number of nodes in the tree.
func Count(nodes []*Node) int {
	total := 0
	Walk(nodes, func(*Node, int) { total++ })
	return total
}
