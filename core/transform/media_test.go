package transform

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResizeURL(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		want   string
		wantOK bool
	}{
		{"w parameter", "https://img.example.com/a.jpg?w=1200&q=80", "https://img.example.com/a.jpg?q=80&w=500", true},
		{"width parameter", "https://img.example.com/a.jpg?width=1024", "https://img.example.com/a.jpg?width=500", true},
		{"resize keeps aspect", "https://blog.example.com/a.jpg?resize=1000,600", "https://blog.example.com/a.jpg?resize=500%2C300", true},
		{"cloudinary path", "https://res.example.com/image/upload/w_1400,q_auto/pic.jpg", "https://res.example.com/image/upload/w_500,q_auto/pic.jpg", true},
		{"non numeric width", "https://img.example.com/a.jpg?w=auto", "https://img.example.com/a.jpg?w=auto", false},
		{"plain image", "https://img.example.com/a.jpg", "https://img.example.com/a.jpg", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := resizeURL(tt.src, 500)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRewriteMedia(t *testing.T) {
	t.Run("no images", func(t *testing.T) {
		assert.Equal(t, "<p>text</p>", rewriteMedia("<p>text</p>", 500))
	})

	t.Run("lazy without width", func(t *testing.T) {
		out := rewriteMedia(`<img src="https://img.example.com/a.jpg?w=1200" srcset="a 2x">`, 0)
		assert.Contains(t, out, `loading="lazy"`)
		assert.Contains(t, out, "w=1200")
		assert.Contains(t, out, "srcset")
	})

	t.Run("every image", func(t *testing.T) {
		out := rewriteMedia(`<p><img src="a.png"> and <IMG src="b.png"></p>`, 0)
		assert.Equal(t, 2, strings.Count(out, `loading="lazy"`))
	})

	t.Run("unrecognized url keeps srcset", func(t *testing.T) {
		out := rewriteMedia(`<img src="https://img.example.com/a.jpg" srcset="a 2x">`, 300)
		assert.Contains(t, out, "srcset")
	})
}
