package validate

import (
	"regexp"
	"strings"
)

// Statements are rejected before execution when they contain any data-mutating
// keyword. Word-boundary matching keeps column names like "updated_at" from
// tripping the guard.
var mutatingSQLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\binsert\b`),
	regexp.MustCompile(`(?i)\bupdate\b`),
	regexp.MustCompile(`(?i)\bdelete\b`),
	regexp.MustCompile(`(?i)\bdrop\b`),
	regexp.MustCompile(`(?i)\balter\b`),
	regexp.MustCompile(`(?i)\btruncate\b`),
}

// CheckSQL reports whether the statement is safe to execute, returning the
// offending keyword when it is not.
func CheckSQL(sqlText string) (keyword string, ok bool) {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return "", true
	}
	for _, re := range mutatingSQLPatterns {
		if m := re.FindString(trimmed); m != "" {
			return strings.ToLower(m), false
		}
	}
	return "", true
}

// LintSQL returns advisory warnings for queries that are safe but likely to
// misbehave against the urban schema. These never block execution.
func LintSQL(sqlText string) []string {
	q := strings.ToLower(sqlText)
	if strings.TrimSpace(q) == "" {
		return nil
	}

	var warnings []string
	if !strings.Contains(q, "geographical_unit_view") {
		for _, table := range []string{"districts", "neighborhoods", "cities"} {
			if strings.Contains(q, table) {
				warnings = append(warnings, "consider using geographical_unit_view instead of individual spatial tables")
				break
			}
		}
	}
	if strings.Contains(q, "geographical_unit_view") && !strings.Contains(q, "geo_level_id") {
		warnings = append(warnings, "missing geo_level_id filter - results may be ambiguous")
	}
	if strings.Contains(q, "select *") {
		warnings = append(warnings, "SELECT * may return unnecessary data - consider selecting specific columns")
	}
	return warnings
}
