package identify

import "testing"

func TestParseFilenameSeasonEpisode(t *testing.T) {
	cases := []struct {
		name    string
		file    string
		title   string
		season  int
		episode int
		minConf float64
		epTitle string
	}{
		{"dotted", "the.expanse.s01e02.1080p.web.mkv", "The Expanse", 1, 2, 0.9, ""},
		{"underscored", "show_name_S03E11.ts", "Show Name", 3, 11, 0.9, ""},
		{"spaced with episode title", "Show Name - S01E02 - Pilot Part Two.mkv", "Show Name", 1, 2, 0.9, "Pilot Part Two"},
		{"alt marker", "Show.Name.3x07.HDTV.mkv", "Show Name", 3, 7, 0.85, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			identity := ParseFilename(tc.file)
			if identity.Title != tc.title {
				t.Fatalf("title: got %q want %q", identity.Title, tc.title)
			}
			if identity.Season != tc.season || identity.Episode != tc.episode {
				t.Fatalf("season/episode: got S%02dE%02d", identity.Season, identity.Episode)
			}
			if identity.Confidence < tc.minConf {
				t.Fatalf("confidence too low: %v", identity.Confidence)
			}
			if tc.epTitle != "" && identity.EpisodeTitle != tc.epTitle {
				t.Fatalf("episode title: got %q want %q", identity.EpisodeTitle, tc.epTitle)
			}
			if identity.Movie {
				t.Fatal("expected TV identity")
			}
			if identity.Source != SourceLocal {
				t.Fatalf("unexpected source %q", identity.Source)
			}
		})
	}
}

func TestParseFilenameAirDate(t *testing.T) {
	identity := ParseFilename("Evening News 2024-05-01.ts")
	if identity.Title != "Evening News" {
		t.Fatalf("title: got %q", identity.Title)
	}
	if identity.AirDate != "2024-05-01" {
		t.Fatalf("air date: got %q", identity.AirDate)
	}
	if !identity.Episodic() {
		t.Fatal("expected date-based identity to be episodic")
	}
}

func TestParseFilenameMovieYear(t *testing.T) {
	identity := ParseFilename("Some Great Film (2019).mkv")
	if !identity.Movie {
		t.Fatal("expected movie identity")
	}
	if identity.Title != "Some Great Film" || identity.Year != 2019 {
		t.Fatalf("unexpected identity: %#v", identity)
	}
	if identity.Confidence < 0.85 {
		t.Fatalf("confidence too low: %v", identity.Confidence)
	}

	dotted := ParseFilename("some.great.film.2019.1080p.bluray.x264.mkv")
	if !dotted.Movie || dotted.Year != 2019 {
		t.Fatalf("unexpected identity: %#v", dotted)
	}
	if dotted.Title != "Some Great Film" {
		t.Fatalf("junk tokens not stripped: %q", dotted.Title)
	}
	if dotted.Confidence >= identity.Confidence {
		t.Fatal("expected dotted year to score below parenthesized year")
	}
}

func TestParseFilenameBareTitleIsWeak(t *testing.T) {
	identity := ParseFilename("recording0042.ts")
	if identity.Confidence > 0.5 {
		t.Fatalf("expected weak confidence, got %v", identity.Confidence)
	}
	if identity.Episodic() || identity.Movie {
		t.Fatalf("expected unstructured identity: %#v", identity)
	}
}

func TestEpisodicRequiresStructure(t *testing.T) {
	if (MediaIdentity{Title: "X", Season: 1}).Episodic() {
		t.Fatal("season without episode must not be episodic")
	}
	if !(MediaIdentity{Title: "X", Season: 2, Episode: 3}).Episodic() {
		t.Fatal("expected episodic")
	}
}
