package plex

import (
	"encoding/xml"
	"fmt"
	"os"
	"strings"
)

// preferences mirrors the root element of Plex's Preferences.xml. Only the
// online token attribute matters here.
type preferences struct {
	XMLName         xml.Name `xml:"Preferences"`
	PlexOnlineToken string   `xml:"PlexOnlineToken,attr"`
}

// TokenFromPreferences reads the server token out of a Plex Preferences.xml
// file. Returns an empty token without error when the file does not exist,
// since a co-located Plex install is optional.
func TokenFromPreferences(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read plex preferences: %w", err)
	}
	var prefs preferences
	if err := xml.Unmarshal(data, &prefs); err != nil {
		return "", fmt.Errorf("parse plex preferences: %w", err)
	}
	return strings.TrimSpace(prefs.PlexOnlineToken), nil
}
