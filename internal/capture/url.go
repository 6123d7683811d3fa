package capture

import (
	"net"
	"net/url"
	"strconv"
	"strings"
)

// StreamURL beschreibt eine IP-Kamera
type StreamURL struct {
	Protocol string `json:"protocol"` // http, https, rtsp, rtmp
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Path     string `json:"path"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// BuildStreamURL setzt die URL einer IP-Kamera zusammen.
// Zugangsdaten werden nur verwendet, wenn Benutzer und Passwort gesetzt sind.
func BuildStreamURL(s StreamURL) string {
	protocol := strings.ToLower(strings.TrimSpace(s.Protocol))
	if protocol == "" {
		protocol = "rtsp"
	}

	path := strings.TrimSpace(s.Path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	host := strings.TrimSpace(s.Host)
	if s.Port > 0 {
		host = net.JoinHostPort(host, strconv.Itoa(s.Port))
	}

	u := url.URL{Scheme: protocol, Host: host, Path: path}
	if s.Username != "" && s.Password != "" {
		u.User = url.UserPassword(s.Username, s.Password)
	}
	return u.String()
}
