package configbackup

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// computeDiff builds the unified diff and +/- line counts between two
// snapshot bodies, then scores the changed lines for drift risk.
func computeDiff(before, after ConfigSnapshot, cfg RiskConfig) (diffText string, linesAdded, linesRemoved int, riskScore float64, changeType string) {
	unified := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before.Content),
		B:        difflib.SplitLines(after.Content),
		FromFile: before.ID,
		ToFile:   after.ID,
		Context:  3,
	}
	diffText, _ = difflib.GetUnifiedDiffString(unified)

	changedLines := make([]string, 0)
	for _, line := range strings.Split(diffText, "\n") {
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			continue
		case strings.HasPrefix(line, "+"):
			linesAdded++
			changedLines = append(changedLines, line[1:])
		case strings.HasPrefix(line, "-"):
			linesRemoved++
			changedLines = append(changedLines, line[1:])
		}
	}

	riskScore, changeType = ComputeRiskScore(changedLines, before.Content, after.Content, cfg)
	return diffText, linesAdded, linesRemoved, riskScore, changeType
}
