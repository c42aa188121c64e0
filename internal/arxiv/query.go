package arxiv

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// tokenRe matches quoted phrases or single words.
var tokenRe = regexp.MustCompile(`"[^"]+"|\S+`)

// queryOperators are the boolean operators the arXiv API understands.
var queryOperators = map[string]bool{"AND": true, "OR": true, "ANDNOT": true}

// NormalizeQuery rewrites a free-text query into arXiv API syntax:
// bare terms are joined with AND, quoted phrases stay intact, and
// lowercase boolean operators are normalized to uppercase.
//
//	NormalizeQuery(`attention "state space" or mamba`)
//	// => `attention AND "state space" OR mamba`
func NormalizeQuery(query string) string {
	tokens := tokenRe.FindAllString(query, -1)

	var result []string
	for _, token := range tokens {
		upper := strings.ToUpper(token)
		isOp := queryOperators[upper]
		if isOp {
			token = upper
		}

		if len(result) > 0 {
			prevIsOp := queryOperators[result[len(result)-1]]
			if !isOp && !prevIsOp {
				result = append(result, "AND")
			}
		}
		result = append(result, token)
	}

	return strings.Join(result, " ")
}

var whenParser *when.Parser

func init() {
	whenParser = when.New(nil)
	whenParser.Add(en.All...)
	whenParser.Add(common.All...)
}

// SinceFilter parses a natural-language time expression ("last week",
// "3 days ago", "january") and returns a submittedDate range clause that
// can be ANDed onto a query. Returns an error when the expression cannot
// be understood.
func SinceFilter(expr string, now time.Time) (string, error) {
	result, err := whenParser.Parse(expr, now)
	if err != nil {
		return "", fmt.Errorf("failed to parse time expression %q: %w", expr, err)
	}
	if result == nil {
		return "", fmt.Errorf("could not understand time expression %q", expr)
	}

	// arXiv expects submittedDate:[YYYYMMDDHHMM TO YYYYMMDDHHMM].
	const layout = "200601021504"
	return fmt.Sprintf("submittedDate:[%s TO %s]",
		result.Time.Format(layout), now.Format(layout)), nil
}

// WithSince appends a SinceFilter clause to an already-normalized query.
func WithSince(query, clause string) string {
	if clause == "" {
		return query
	}
	if query == "" {
		return clause
	}
	return query + " AND " + clause
}
