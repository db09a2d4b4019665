package reshape

import (
	"strings"

	"github.com/fortuna/gridiron/internal/table"
)

// compoundStat describes a "success-total" category and where its parts
// land after decomposition. An empty ratio means no ratio column.
type compoundStat struct {
	source  string
	success string
	total   string
	ratio   string
}

var compoundStats = []compoundStat{
	{source: "completionAttempts", success: "completionSuccess", total: "completionAttempts", ratio: "completionPercentage"},
	{source: "totalPenaltiesYards", success: "totalPenalties", total: "totalPenaltiesYards"},
	{source: "thirdDownEff", success: "thirdDownSuccess", total: "thirdDownAttempts", ratio: "thirdDownEff"},
	{source: "fourthDownEff", success: "fourthDownSuccess", total: "fourthDownAttempts", ratio: "fourthDownEff"},
}

// SplitCompound splits a compound stat such as "18-29" on its first '-'.
// Numeric parts become numbers and other text is kept as is. A value
// that is not text (the filled 0, a null) yields two null parts; text
// without a separator yields the whole text and a null total.
func SplitCompound(v table.Value) (success, total table.Value) {
	if v.Kind() != table.KindString {
		return table.Null(), table.Null()
	}
	head, tail, found := strings.Cut(v.Text(), "-")
	success = part(head)
	if !found {
		return success, table.Null()
	}
	return success, part(tail)
}

// Ratio divides success by total. If either side is not numeric the
// result is the NaN sentinel.
func Ratio(success, total table.Value) table.Value {
	s, ok := success.Number()
	if !ok {
		return table.NaN()
	}
	t, ok := total.Number()
	if !ok {
		return table.NaN()
	}
	return table.Float(s / t)
}

func part(s string) table.Value {
	if n, ok := table.ParseNumber(s); ok {
		return n
	}
	if strings.TrimSpace(s) == "" {
		return table.Null()
	}
	return table.String(s)
}
