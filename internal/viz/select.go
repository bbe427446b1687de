package viz

import (
	"strings"
	"unicode"

	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

const (
	// MsgNotEnoughData is shown for empty or single-row results.
	MsgNotEnoughData = "Not enough data to visualize"
	// MsgNoChart is shown when no template fits the columns.
	MsgNoChart = "No appropriate visualization available for this data"
)

var (
	comparisonKeywords   = []string{"compare", "comparison", "versus", "vs", "against", "difference", "distribution"}
	timeKeywords         = []string{"time", "year", "month", "day", "date", "trend", "growth", "decline", "increase", "decrease"}
	relationshipKeywords = []string{"relation", "relationship", "correlation", "affect", "impact", "influence", "between"}
)

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// columns groups result columns by analyzer kind, in result order.
type columns struct {
	numeric, categorical, temporal []int
}

func classify(rs *datasource.ResultSet) columns {
	var c columns
	for i := range rs.Columns {
		switch analysis.Classify(rs.Values(i)) {
		case analysis.KindNumeric:
			c.numeric = append(c.numeric, i)
		case analysis.KindTemporal:
			c.temporal = append(c.temporal, i)
		default:
			c.categorical = append(c.categorical, i)
		}
	}
	return c
}

// Select chooses a chart template from question keywords and column kinds.
func Select(question string, rs *datasource.ResultSet) *Figure {
	if rs == nil || len(rs.Rows) <= 1 {
		return messageFigure(MsgNotEnoughData, 20)
	}
	c := classify(rs)
	q := strings.ToLower(question)
	isComparison := containsAny(q, comparisonKeywords)
	isTime := containsAny(q, timeKeywords)
	isRelationship := containsAny(q, relationshipKeywords)

	firstCat := -1
	if len(c.categorical) > 0 {
		firstCat = c.categorical[0]
	}
	switch {
	case isTime && len(c.temporal) > 0 && len(c.numeric) > 0:
		return timeSeries(rs, c.temporal[0], c.numeric[0], firstCat)
	case isComparison && len(c.categorical) > 0 && len(c.numeric) > 0:
		return comparison(rs, firstCat, c.numeric[0])
	case isRelationship && len(c.numeric) >= 2:
		return scatter(rs, c.numeric[0], c.numeric[1], firstCat)
	case len(c.numeric) >= 1 && len(c.categorical) >= 1:
		return bar(rs, firstCat, c.numeric[0])
	case len(c.numeric) >= 2:
		return scatter(rs, c.numeric[0], c.numeric[1], -1)
	case len(c.categorical) >= 1:
		return pie(rs, firstCat)
	case len(c.numeric) >= 1:
		return histogram(rs, c.numeric[0])
	}
	return messageFigure(MsgNoChart, 16)
}

// Label turns a column name into an axis label: underscores become spaces and
// each word is title-cased.
func Label(col string) string {
	s := strings.ReplaceAll(col, "_", " ")
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
