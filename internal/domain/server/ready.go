package server

import (
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// ConnectionInfo is what a server announces once it accepts requests
type ConnectionInfo struct {
	BaseURL string
	Token   string
	RootDir string
}

// serverInfo mirrors the JSON document jupyter prints with --json / list --json
type serverInfo struct {
	URL     string `json:"url"`
	BaseURL string `json:"base_url"`
	Token   string `json:"token"`
	RootDir string `json:"root_dir"`
	// Classic notebook server
	NotebookDir string `json:"notebook_dir"`
}

var urlPattern = regexp.MustCompile(`https?://[^\s'"<>\x1b]+`)

// UI routes printed after the base URL in the startup banner
var uiSegments = []string{"tree", "lab", "notebooks", "nbclassic"}

// ParseReadyLine extracts connection details from one line of server output.
// It accepts a JSON info document or a banner line carrying the server URL.
func ParseReadyLine(line string) (ConnectionInfo, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return ConnectionInfo{}, false
	}

	if strings.HasPrefix(line, "{") {
		if info, ok := parseInfoJSON(line); ok {
			return info, true
		}
	}

	for _, candidate := range urlPattern.FindAllString(line, -1) {
		if info, ok := parseBannerURL(candidate); ok {
			return info, true
		}
	}
	return ConnectionInfo{}, false
}

func parseInfoJSON(line string) (ConnectionInfo, bool) {
	var si serverInfo
	if err := sonic.UnmarshalString(line, &si); err != nil || si.URL == "" {
		return ConnectionInfo{}, false
	}

	u, err := url.Parse(si.URL)
	if err != nil || u.Host == "" {
		return ConnectionInfo{}, false
	}
	if si.BaseURL != "" && strings.Trim(u.Path, "/") == "" {
		u.Path = si.BaseURL
	}

	root := si.RootDir
	if root == "" {
		root = si.NotebookDir
	}
	return ConnectionInfo{
		BaseURL: baseOf(u),
		Token:   si.Token,
		RootDir: root,
	}, true
}

func parseBannerURL(raw string) (ConnectionInfo, bool) {
	raw = strings.TrimRight(raw, ".,;)")
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ConnectionInfo{}, false
	}

	token := u.Query().Get("token")
	// Doc links in log lines carry neither a port nor a token.
	if token == "" && u.Port() == "" {
		return ConnectionInfo{}, false
	}
	if host := u.Hostname(); host != "" && token == "" && !isLocalHost(host) {
		return ConnectionInfo{}, false
	}

	p := strings.TrimSuffix(u.Path, "/")
	for _, seg := range uiSegments {
		if strings.HasSuffix(p, "/"+seg) {
			p = strings.TrimSuffix(p, "/"+seg)
			break
		}
	}
	u.Path = p
	return ConnectionInfo{BaseURL: baseOf(u), Token: token}, true
}

func baseOf(u *url.URL) string {
	return u.Scheme + "://" + u.Host + strings.TrimSuffix(u.Path, "/")
}

func isLocalHost(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && (ip.IsLoopback() || ip.IsUnspecified())
}
