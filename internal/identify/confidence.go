package identify

import (
	"strings"
	"unicode"

	"dvrmanager/internal/identify/tmdb"
)

// scoredResult pairs a TMDB match with its computed score so the resolver
// can detect near-ties and record the ambiguity.
type scoredResult struct {
	result tmdb.Result
	score  float64
}

// rankResults scores every TMDB match against the query and returns them
// best first. Results with empty titles are dropped.
func rankResults(query string, response *tmdb.Response) []scoredResult {
	if response == nil || len(response.Results) == 0 {
		return nil
	}
	queryLower := strings.ToLower(query)
	ranked := make([]scoredResult, 0, len(response.Results))
	for _, res := range response.Results {
		if pickTitle(res) == "" {
			continue
		}
		score := scoreResult(queryLower, res)
		inserted := false
		for i := range ranked {
			if score > ranked[i].score {
				ranked = append(ranked[:i], append([]scoredResult{{res, score}}, ranked[i:]...)...)
				inserted = true
				break
			}
		}
		if !inserted {
			ranked = append(ranked, scoredResult{res, score})
		}
	}
	return ranked
}

// acceptable reports whether the best-scored result is trustworthy enough to
// adopt. Exact title matches get a lower bar than partial ones.
func acceptable(query string, best scoredResult) bool {
	title := pickTitle(best.result)
	titleLower := strings.ToLower(title)
	queryLower := strings.ToLower(query)
	exact := titleLower == queryLower ||
		normalizeForComparison(title) == normalizeForComparison(query)
	if exact {
		return true
	}
	return strings.Contains(titleLower, queryLower) || best.score >= 1.0
}

func scoreResult(query string, result tmdb.Result) float64 {
	title := pickTitle(result)
	if title == "" {
		return 0
	}
	titleLower := strings.ToLower(title)
	match := 0.0
	if titleLower == query || normalizeForComparison(title) == normalizeForComparison(query) {
		match = 2.0
	} else if strings.Contains(titleLower, query) {
		match = 1.0
	}
	return match + (result.VoteAverage / 10.0) + float64(result.VoteCount)/1000.0
}

func pickTitle(result tmdb.Result) string {
	if result.Title != "" {
		return result.Title
	}
	return result.Name
}

func resultYear(result tmdb.Result) string {
	if result.ReleaseDate != "" {
		return result.ReleaseDate
	}
	return result.FirstAirDate
}

func normalizeForComparison(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	normalized := strings.ToLower(input)
	normalized = strings.ReplaceAll(normalized, "&", "and")
	normalized = strings.ReplaceAll(normalized, "+", "and")

	var builder strings.Builder
	for _, r := range normalized {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}
