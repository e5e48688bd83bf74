// Package compare contains the pure comparison rules for cross-run drift
// detection: normalized document equality and the three-stage ranked-output
// comparison (identity, scores, full row).
package compare

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"github.com/example/runvault/internal/core/canonical"
)

// identityFields are tried in order to extract a job's identity. The first
// non-empty value wins; a job with none falls back to its canonical JSON.
var identityFields = []string{"job_id", "id", "apply_url", "detail_url", "url"}

// scoreFields are compared positionally between rows that share them.
var scoreFields = []string{"score", "total_score", "blended_score", "semantic_score"}

// listFields are searched in order for the job array when a ranked document
// is not itself a top-level array.
var listFields = []string{"jobs", "ranked_jobs", "items", "results"}

// NormalizedEqual reports whether two documents are equal after volatile-key
// stripping and canonical serialization.
func NormalizedEqual(left, right any, dropRunID bool) (bool, error) {
	l, err := canonical.NormalizedJSON(left, dropRunID)
	if err != nil {
		return false, err
	}
	r, err := canonical.NormalizedJSON(right, dropRunID)
	if err != nil {
		return false, err
	}
	return l == r, nil
}

// ExtractJobList returns the comparable job list of a ranked JSON document:
// the top-level array, or the first array found under a known list field.
func ExtractJobList(doc any) ([]any, bool) {
	if list, ok := doc.([]any); ok {
		return list, true
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, field := range listFields {
		if list, ok := obj[field].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// JobIdentity extracts a job's identity: the first non-empty identity field,
// else the canonical JSON of the normalized row.
func JobIdentity(job any) string {
	if obj, ok := job.(map[string]any); ok {
		for _, field := range identityFields {
			if s, ok := obj[field].(string); ok && s != "" {
				return s
			}
		}
	}
	s, err := canonical.NormalizedJSON(job, true)
	if err != nil {
		return fmt.Sprintf("%v", job)
	}
	return s
}

// RankedJSON compares two ranked JSON documents and returns every issue
// found, prefixed with label. Stages: length, then order by identity, then
// shared score fields positionally, then the full normalized row. An
// identity mismatch stops further row comparison for the artifact.
func RankedJSON(label string, left, right any, dropRunID bool) []string {
	leftList, leftOK := ExtractJobList(left)
	rightList, rightOK := ExtractJobList(right)

	if !leftOK || !rightOK {
		if leftOK != rightOK {
			return []string{fmt.Sprintf("%s: job list present on one side only", label)}
		}
		// Neither side has a list shape; fall back to whole-document equality.
		equal, err := NormalizedEqual(left, right, dropRunID)
		if err != nil {
			return []string{fmt.Sprintf("%s: %v", label, err)}
		}
		if !equal {
			return []string{fmt.Sprintf("%s: document differs after normalization", label)}
		}
		return nil
	}

	if len(leftList) != len(rightList) {
		return []string{fmt.Sprintf("%s: job count differs: left=%d right=%d", label, len(leftList), len(rightList))}
	}

	for i := range leftList {
		if JobIdentity(leftList[i]) != JobIdentity(rightList[i]) {
			return []string{fmt.Sprintf("%s: job order differs at index %d", label, i)}
		}
	}

	var issues []string
	for i := range leftList {
		issues = append(issues, compareScores(label, i, leftList[i], rightList[i])...)
	}
	for i := range leftList {
		equal, err := NormalizedEqual(leftList[i], rightList[i], dropRunID)
		if err != nil {
			issues = append(issues, fmt.Sprintf("%s: row %d: %v", label, i, err))
			continue
		}
		if !equal {
			issues = append(issues, fmt.Sprintf("%s: row %d differs after normalization", label, i))
		}
	}
	return issues
}

func compareScores(label string, index int, left, right any) []string {
	leftObj, lok := left.(map[string]any)
	rightObj, rok := right.(map[string]any)
	if !lok || !rok {
		return nil
	}
	var issues []string
	for _, field := range scoreFields {
		lv, lHas := leftObj[field]
		rv, rHas := rightObj[field]
		if !lHas || !rHas {
			continue
		}
		ls, err := canonical.JSON(lv)
		if err != nil {
			continue
		}
		rs, err := canonical.JSON(rv)
		if err != nil {
			continue
		}
		if ls != rs {
			issues = append(issues, fmt.Sprintf("%s: score field %s differs at index %d: left=%s right=%s", label, field, index, ls, rs))
		}
	}
	return issues
}

// RankedCSV compares two ranked CSV artifacts under the same three-stage
// rule as ranked JSON: exact header match, order by identity column when one
// exists, shared score columns, then the full row.
func RankedCSV(label string, left, right []byte) []string {
	leftRows, err := parseCSV(left)
	if err != nil {
		return []string{fmt.Sprintf("%s: failed to parse left csv: %v", label, err)}
	}
	rightRows, err := parseCSV(right)
	if err != nil {
		return []string{fmt.Sprintf("%s: failed to parse right csv: %v", label, err)}
	}

	if len(leftRows) == 0 || len(rightRows) == 0 {
		if len(leftRows) != len(rightRows) {
			return []string{fmt.Sprintf("%s: csv empty on one side only", label)}
		}
		return nil
	}

	header := leftRows[0]
	if !equalStrings(header, rightRows[0]) {
		return []string{fmt.Sprintf("%s: csv header differs", label)}
	}
	leftBody, rightBody := leftRows[1:], rightRows[1:]
	if len(leftBody) != len(rightBody) {
		return []string{fmt.Sprintf("%s: row count differs: left=%d right=%d", label, len(leftBody), len(rightBody))}
	}

	idCol := columnIndex(header, identityFields)
	if idCol >= 0 {
		for i := range leftBody {
			if cell(leftBody[i], idCol) != cell(rightBody[i], idCol) {
				return []string{fmt.Sprintf("%s: job order differs at index %d", label, i)}
			}
		}
	}

	var issues []string
	for _, field := range scoreFields {
		col := columnIndex(header, []string{field})
		if col < 0 {
			continue
		}
		for i := range leftBody {
			if cell(leftBody[i], col) != cell(rightBody[i], col) {
				issues = append(issues, fmt.Sprintf("%s: score field %s differs at index %d: left=%s right=%s", label, field, i, cell(leftBody[i], col), cell(rightBody[i], col)))
			}
		}
	}
	for i := range leftBody {
		if !equalStrings(leftBody[i], rightBody[i]) {
			issues = append(issues, fmt.Sprintf("%s: row %d differs", label, i))
		}
	}
	return issues
}

func parseCSV(data []byte) ([][]string, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	return reader.ReadAll()
}

func columnIndex(header []string, names []string) int {
	for _, name := range names {
		for i, col := range header {
			if col == name {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col >= len(row) {
		return ""
	}
	return row[col]
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
