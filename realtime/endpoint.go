package realtime

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNoHost indicates no endpoint host could be determined from
// configuration.
var ErrNoHost = errors.New("no realtime host configured")

// ResolveEndpoint derives the realtime endpoint URL.
// Host priority: explicit override, else the host of apiBaseURL, else
// fallbackHost. The scheme is wss when secure is set or when apiBaseURL
// is served over https, ws otherwise.
func ResolveEndpoint(hostOverride, apiBaseURL, fallbackHost, path string, secure bool) (string, error) {
	host := hostOverride
	if host == "" && apiBaseURL != "" {
		u, err := url.Parse(apiBaseURL)
		if err != nil {
			return "", fmt.Errorf("parse api base url: %w", err)
		}
		host = u.Host
		if u.Scheme == "https" {
			secure = true
		}
	}
	if host == "" {
		host = fallbackHost
	}
	if host == "" {
		return "", ErrNoHost
	}

	scheme := "ws"
	if secure {
		scheme = "wss"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return scheme + "://" + host + path, nil
}
