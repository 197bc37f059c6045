package sitepath

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripKnownExtension(t *testing.T) {
	names := []string{"guide", "About", "chapter-1", "v1.2", "Ünïcode"}
	for _, n := range names {
		for _, ext := range DocumentExtensions {
			for _, variant := range []string{ext, strings.ToUpper(ext), strings.ToUpper(ext[:1]) + ext[1:]} {
				assert.Equal(t, n, StripKnownExtension(n+"."+variant), "name %q ext %q", n, variant)
			}
		}
	}
}

func TestStripKnownExtension_NoMatch(t *testing.T) {
	cases := []string{"logo.png", "notes.txt", "README", "archive.md.zip", ".md", ""}
	for _, c := range cases {
		assert.Equal(t, c, StripKnownExtension(c))
	}
}

func TestPredicates(t *testing.T) {
	assert.True(t, IsDocument("index.MMD"))
	assert.False(t, IsDocument("logo.png"))
	assert.True(t, IsHidden(".spectra"))
	assert.True(t, IsHidden("docs/.git"))
	assert.False(t, IsHidden("docs/guide"))

	assert.True(t, HasFileExtension("img/logo.png"))
	assert.True(t, HasFileExtension("img/logo.png#x"))
	assert.False(t, HasFileExtension("guide/intro"))
	assert.False(t, HasFileExtension("guide.v2/"))
	assert.False(t, HasFileExtension(""))

	assert.True(t, IsOutbound("https://example.com/x"))
	assert.True(t, IsOutbound("//cdn.example.com/y"))
	assert.True(t, IsOutbound("mailto:someone@example.com"))
	assert.False(t, IsOutbound("/guide/"))
	assert.False(t, IsOutbound("guide/intro.md"))

	assert.True(t, IsSamePage("#top"))
	assert.True(t, IsSamePage(""))
	assert.False(t, IsSamePage("a#top"))

	assert.True(t, IsRootAbsolute("/guide/"))
	assert.False(t, IsRootAbsolute("//cdn"))
}

func TestIsIndexDocument(t *testing.T) {
	r := Default()
	assert.True(t, r.IsIndexDocument("index.md"))
	assert.True(t, r.IsIndexDocument("docs/INDEX.mmd"))
	assert.True(t, r.IsIndexDocument(filepath.Join("docs", "guide", "index.markdown")))
	assert.False(t, r.IsIndexDocument("docs/chapter1.md"))
	assert.False(t, r.IsIndexDocument("docs/index"))
	assert.False(t, r.IsIndexDocument("docs/readme.md"))

	withReadme := Rules{IndexNames: []string{"index", "readme"}}
	assert.True(t, withReadme.IsIndexDocument("docs/README.md"))
}

func TestNormalizeLink(t *testing.T) {
	r := Default()
	cases := []struct{ in, want string }{
		{"About.MD", "about/"},
		{"guide/Intro.mmd", "guide/intro/"},
		{"guide/intro.md#Setup", "guide/intro/#setup"},
		{"guide/intro?tab=1", "guide/intro/?tab=1"},
		{"guide/", "guide/"},
		{"guide/#x", "guide/#x"},
		{"Images/Logo.PNG", "images/logo.png"},
		{"release-1.2.md", "release-1.2/"},
		{"docs/a.b.md#Top", "docs/a.b/#top"},
		{"index.md", "./"},
		{"guide/index.md", "guide/"},
		{"../index.md", "../"},
		{"/index.md", "/"},
		{"/", "/"},
		{"#Section", "#section"},
		{"", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, r.NormalizeLink(c.in), "input %q", c.in)
	}
}

func TestToCanonicalLink(t *testing.T) {
	r := Default()
	base := filepath.Join("tmp", "content")
	cases := []struct{ in, want string }{
		{filepath.Join(base, "index.md"), "/"},
		{base, "/"},
		{filepath.Join(base, "guide"), "guide/"},
		{filepath.Join(base, "guide", "index.md"), "guide/"},
		{filepath.Join(base, "guide", "Intro.md"), "guide/intro/"},
		{filepath.Join(base, "logo.png"), "logo.png"},
		{filepath.Join(base, "Notes", "Paper.MMD"), "notes/paper/"},
		{filepath.Join(base, "docs", "release-1.2.md"), "docs/release-1.2/"},
		{filepath.Join(base, "a.b.md"), "a.b/"},
		{filepath.Join(base, "v1.2", "index.md"), "v1.2/"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, r.ToCanonicalLink(c.in, base), "input %q", c.in)
	}
}

func TestToCanonicalLink_Idempotent(t *testing.T) {
	r := Rules{IndexNames: []string{"index", "readme"}}
	base := "/srv/content"
	inputs := []string{
		"/srv/content/index.md",
		"/srv/content/Guide/README.md",
		"/srv/content/Guide/Intro.md",
		"/srv/content/img/Logo.PNG",
		"/srv/content/v1.2/notes.mkd",
		"/srv/content/Index",
		"/srv/content/a/b/c.markdown",
		"/srv/content/docs/release-1.2.md",
	}
	for _, in := range inputs {
		once := r.ToCanonicalLink(in, base)
		require.NotEmpty(t, once)
		assert.Equal(t, once, r.ToCanonicalLink(once, base), "input %q", in)
		assert.NotContains(t, strings.ToLower(once), ".md")
	}
}

func TestToCanonicalLink_NFC(t *testing.T) {
	r := Default()
	decomposed := "cafe\u0301.md"
	composed := "caf\u00e9/"
	assert.Equal(t, composed, r.ToCanonicalLink(decomposed, ""))
}

func TestSiteURLAndOutputPath(t *testing.T) {
	assert.Equal(t, "/", SiteURL("/"))
	assert.Equal(t, "/", SiteURL(""))
	assert.Equal(t, "/guide/", SiteURL("guide/"))

	assert.Equal(t, "index.html", OutputPath("/"))
	assert.Equal(t, "guide/index.html", OutputPath("guide/"))
	assert.Equal(t, "guide/intro/index.html", OutputPath("/guide/intro/#top"))
	assert.Equal(t, "logo.png", OutputPath("logo.png"))
}

func TestToDirectoryLink(t *testing.T) {
	r := Default()
	base := filepath.Join("tmp", "content")
	cases := []struct{ in, want string }{
		{base, "/"},
		{filepath.Join(base, "Guide"), "guide/"},
		{filepath.Join(base, "v1.2"), "v1.2/"},
		{filepath.Join(base, "docs", "Release-2.0"), "docs/release-2.0/"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, r.ToDirectoryLink(c.in, base), "input %q", c.in)
	}

	dir := filepath.Join(base, "v1.2")
	assert.Equal(t, r.ToCanonicalLink(filepath.Join(dir, "index.md"), base), r.ToDirectoryLink(dir, base))
}

func TestOutputPath_DottedPage(t *testing.T) {
	r := Default()
	link := r.ToCanonicalLink("docs/release-1.2.md", "")
	assert.Equal(t, "docs/release-1.2/index.html", OutputPath(link))
}
