package linkverify

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLinksFromReader(t *testing.T) {
	page := `<html><head><link rel="stylesheet" href="/style.css"><script src="app.js"></script></head>
<body><a href="../guide/"> <b>Guide</b> </a><img src="logo.png" alt="Logo"><a name="anchor"></a>
<video src="clip.mp4"></video><p>text</p></body></html>`

	links, err := ExtractLinksFromReader(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, links, 5)

	assert.Equal(t, &Link{URL: "/style.css", Text: "stylesheet", Tag: "link", Attribute: "href"}, links[0])
	assert.Equal(t, "script", links[1].Tag)
	assert.Equal(t, &Link{URL: "../guide/", Text: "Guide", Tag: "a", Attribute: "href"}, links[2])
	assert.Equal(t, "Logo", links[3].Text)
	assert.Equal(t, "video", links[4].Tag)
}

func TestShouldVerify(t *testing.T) {
	cases := map[string]bool{
		"guide/":               true,
		"/logo.png":            true,
		"../intro/#setup":      true,
		"#top":                 false,
		"":                     false,
		"https://example.com/": false,
		"//cdn.example.com/x":  false,
		"mailto:a@example.com": false,
		"javascript:void(0)":   false,
	}
	for u, want := range cases {
		assert.Equal(t, want, ShouldVerify(&Link{URL: u}), "url %q", u)
	}
}
