package paths

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelative(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		root     string
		want     string
	}{
		{
			name:     "nested notebook",
			filename: "/home/u/proj/sub/nb.ipynb",
			root:     "/home/u/proj",
			want:     "sub/nb.ipynb",
		},
		{
			name:     "root with trailing slash",
			filename: "/home/u/proj/nb.ipynb",
			root:     "/home/u/proj/",
			want:     "nb.ipynb",
		},
		{
			name:     "filesystem root",
			filename: "/nb.ipynb",
			root:     "/",
			want:     "nb.ipynb",
		},
		{
			name:     "windows separators",
			filename: `C:\Users\u\proj\sub\nb.ipynb`,
			root:     `C:\Users\u\proj`,
			want:     "sub/nb.ipynb",
		},
		{
			name:     "windows drive letter case",
			filename: `c:\proj\nb.ipynb`,
			root:     `C:\proj`,
			want:     "nb.ipynb",
		},
		{
			name:     "unclean input",
			filename: "/home/u/proj/./sub/../sub/nb.ipynb",
			root:     "/home/u/proj",
			want:     "sub/nb.ipynb",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Relative(tt.filename, tt.root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, `\`)
			assert.NotEqual(t, '/', rune(got[0]))
		})
	}
}

func TestRelativeRoundTrip(t *testing.T) {
	files := []string{
		"/home/u/proj/a.ipynb",
		"/home/u/proj/a/b/c.ipynb",
		"/home/u/proj/with space/nb.ipynb",
	}

	for _, f := range files {
		rel, err := Relative(f, "/home/u/proj")
		require.NoError(t, err)
		assert.Equal(t, Normalize(f), Join("/home/u/proj", rel))
	}
}

func TestRelativeOutsideRoot(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		root     string
	}{
		{"sibling directory", "/home/u/other/nb.ipynb", "/home/u/proj"},
		{"shared prefix", "/home/u/project2/nb.ipynb", "/home/u/proj"},
		{"parent escape", "/home/u/proj/../nb.ipynb", "/home/u/proj"},
		{"root itself", "/home/u/proj", "/home/u/proj"},
		{"relative filename", "nb.ipynb", "/home/u/proj"},
		{"empty filename", "", "/home/u/proj"},
		{"other drive", `D:\proj\nb.ipynb`, `C:\proj`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Relative(tt.filename, tt.root)
			require.Error(t, err)
			assert.Empty(t, got)

			var mErr *MappingError
			require.True(t, errors.As(err, &mErr))
			assert.Equal(t, tt.filename, mErr.Filename)
			assert.Equal(t, tt.root, mErr.RootDir)
		})
	}
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("/srv", "/srv/a/b.ipynb"))
	assert.False(t, Contains("/srv", "/srv"))
	assert.False(t, Contains("/srv", "/srvx/a.ipynb"))
}
