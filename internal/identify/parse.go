package identify

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	seasonEpisodeRx = regexp.MustCompile(`(?i)(?:^|[\s._-])S(\d{1,2})[\s._-]?E(\d{1,3})(?:[\s._-]|$)`)
	altEpisodeRx    = regexp.MustCompile(`(?i)(?:^|[\s._-])(\d{1,2})x(\d{2,3})(?:[\s._-]|$)`)
	airDateRx       = regexp.MustCompile(`(?:^|[\s._-])((?:19|20)\d{2})[._-](\d{2})[._-](\d{2})(?:[\s._-]|$)`)
	yearParenRx     = regexp.MustCompile(`[(\[]((?:19|20)\d{2})[)\]]`)
	yearTokenRx     = regexp.MustCompile(`(?:^|[\s._-])((?:19|20)\d{2})(?:[\s._-]|$)`)
)

// Release-name noise stripped before a title is accepted. Anything from the
// first junk token onward is discarded.
var junkTokens = map[string]struct{}{
	"480p": {}, "576p": {}, "720p": {}, "1080p": {}, "1080i": {}, "2160p": {}, "4k": {},
	"x264": {}, "x265": {}, "h264": {}, "h265": {}, "hevc": {}, "avc": {}, "10bit": {},
	"aac": {}, "ac3": {}, "eac3": {}, "dts": {}, "truehd": {}, "atmos": {}, "flac": {},
	"bluray": {}, "bdrip": {}, "brrip": {}, "dvdrip": {}, "hdtv": {}, "pdtv": {},
	"web": {}, "webrip": {}, "webdl": {}, "web-dl": {},
	"remux": {}, "proper": {}, "repack": {}, "internal": {}, "limited": {},
	"multi": {}, "subbed": {}, "dubbed": {},
}

var titleCaser = cases.Title(language.Und)

// ParseFilename extracts an identity candidate from a recording filename
// using local heuristics only. The returned confidence reflects how much
// structure the name carried; callers decide whether it is good enough or a
// TMDB lookup is needed.
func ParseFilename(name string) MediaIdentity {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))

	if m := seasonEpisodeRx.FindStringSubmatchIndex(base); m != nil {
		return episodicIdentity(base, m, 0.95)
	}
	if m := altEpisodeRx.FindStringSubmatchIndex(base); m != nil {
		return episodicIdentity(base, m, 0.9)
	}
	if m := airDateRx.FindStringSubmatchIndex(base); m != nil {
		identity := MediaIdentity{
			Title:      cleanTitle(base[:m[0]]),
			AirDate:    base[m[2]:m[3]] + "-" + base[m[4]:m[5]] + "-" + base[m[6]:m[7]],
			Confidence: 0.85,
			Source:     SourceLocal,
		}
		if identity.Title == "" {
			identity.Confidence = 0.4
		}
		return identity
	}

	if m := yearParenRx.FindStringSubmatchIndex(base); m != nil {
		year, _ := strconv.Atoi(base[m[2]:m[3]])
		return MediaIdentity{
			Title:      cleanTitle(base[:m[0]]),
			Year:       year,
			Movie:      true,
			Confidence: 0.9,
			Source:     SourceLocal,
		}
	}
	if m := yearTokenRx.FindStringSubmatchIndex(base); m != nil && m[0] > 0 {
		year, _ := strconv.Atoi(base[m[2]:m[3]])
		return MediaIdentity{
			Title:      cleanTitle(base[:m[0]]),
			Year:       year,
			Movie:      true,
			Confidence: 0.7,
			Source:     SourceLocal,
		}
	}

	// No structure at all: a bare title is a weak candidate that forces a
	// TMDB lookup under any sensible threshold.
	return MediaIdentity{
		Title:      cleanTitle(base),
		Confidence: 0.3,
		Source:     SourceLocal,
	}
}

// episodicIdentity builds a TV identity from a season/episode match. The
// text before the match is the show title; text after it may carry the
// episode title.
func episodicIdentity(base string, m []int, confidence float64) MediaIdentity {
	season, _ := strconv.Atoi(base[m[2]:m[3]])
	episode, _ := strconv.Atoi(base[m[4]:m[5]])
	identity := MediaIdentity{
		Season:     season,
		Episode:    episode,
		Confidence: confidence,
		Source:     SourceLocal,
	}
	identity.Title = cleanTitle(base[:m[0]])
	identity.EpisodeTitle = cleanEpisodeTitle(base[m[1]:])
	if identity.Title == "" {
		// A season/episode marker with no show name cannot be placed.
		identity.Confidence = 0.4
	}
	if y := yearParenRx.FindStringSubmatch(base[:m[0]]); y != nil {
		identity.Year, _ = strconv.Atoi(y[1])
	}
	return identity
}

// cleanTitle normalizes a raw filename fragment into a display title:
// separators become spaces, junk tokens truncate the name, and the result is
// title-cased.
func cleanTitle(fragment string) string {
	fragment = yearParenRx.ReplaceAllString(fragment, " ")
	words := splitWords(fragment)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if _, junk := junkTokens[strings.ToLower(word)]; junk {
			break
		}
		kept = append(kept, word)
	}
	if len(kept) == 0 {
		return ""
	}
	return titleCaser.String(strings.Join(kept, " "))
}

func cleanEpisodeTitle(fragment string) string {
	words := splitWords(fragment)
	kept := make([]string, 0, len(words))
	for _, word := range words {
		if _, junk := junkTokens[strings.ToLower(word)]; junk {
			break
		}
		kept = append(kept, word)
	}
	return strings.Join(kept, " ")
}

func splitWords(fragment string) []string {
	return strings.FieldsFunc(fragment, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '\'' && r != '&'
	})
}
