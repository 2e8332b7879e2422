package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseReadyLine(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		ok    bool
		base  string
		token string
		root  string
	}{
		{
			name:  "jupyter server banner",
			line:  "[I 2024-05-01 10:00:00.000 ServerApp] http://localhost:8888/tree?token=abc123",
			ok:    true,
			base:  "http://localhost:8888",
			token: "abc123",
		},
		{
			name:  "lab route with base url",
			line:  "    http://127.0.0.1:9000/prefix/lab?token=t0k",
			ok:    true,
			base:  "http://127.0.0.1:9000/prefix",
			token: "t0k",
		},
		{
			name:  "classic notebook banner",
			line:  "    or http://127.0.0.1:8890/?token=xyz",
			ok:    true,
			base:  "http://127.0.0.1:8890",
			token: "xyz",
		},
		{
			name: "local server without token",
			line: "[I ServerApp] http://127.0.0.1:8888/tree",
			ok:   true,
			base: "http://127.0.0.1:8888",
		},
		{
			name:  "pty carriage return and ansi reset",
			line:  "http://localhost:8888/tree?token=abc\x1b[0m\r",
			ok:    true,
			base:  "http://localhost:8888",
			token: "abc",
		},
		{
			name:  "json info line",
			line:  `{"url": "http://localhost:8889/", "base_url": "/", "token": "j50n", "root_dir": "/home/u/proj"}`,
			ok:    true,
			base:  "http://localhost:8889",
			token: "j50n",
			root:  "/home/u/proj",
		},
		{
			name:  "json info line with base url",
			line:  `{"url": "http://localhost:8889/", "base_url": "/nb/", "token": "t", "notebook_dir": "/srv"}`,
			ok:    true,
			base:  "http://localhost:8889/nb",
			token: "t",
			root:  "/srv",
		},
		{
			name: "documentation link",
			line: "[W ServerApp] see https://jupyter-server.readthedocs.io/en/latest/",
		},
		{
			name: "remote host without token",
			line: "fetching http://example.com:8080/index",
		},
		{
			name: "plain log line",
			line: "[I ServerApp] Serving notebooks from local directory: /tmp",
		},
		{
			name: "empty",
			line: "   ",
		},
		{
			name: "broken json",
			line: `{"url": `,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := ParseReadyLine(tt.line)

			assert.Equal(t, tt.ok, ok)
			if !tt.ok {
				return
			}
			assert.Equal(t, tt.base, info.BaseURL)
			assert.Equal(t, tt.token, info.Token)
			assert.Equal(t, tt.root, info.RootDir)
		})
	}
}
