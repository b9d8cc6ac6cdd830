// Package classify turns comparison tabs into semantic diff types and
// resolves the file tab a comparison is a version of.
package classify

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"pkt.systems/sidetabs/schema"
)

var (
	editCountsRe = regexp.MustCompile(`\+(\d+)\s*-(\d+)\s*\)?\s*$`)
	dateRe       = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	hexTokenRe   = regexp.MustCompile(`\b[0-9a-f]{7,40}\b`)
	indexRe      = regexp.MustCompile(`\(index\)|\bindex\s*(?:↔|vs\b)|(?:↔|\bvs)\s*index\b`)

	snapshotKeywords = []string{"snapshot", "timeline", "history", "checkpoint"}
	conflictKeywords = []string{"conflict", "merging"}
	compareMarkers   = []string{"↔", "⟷", " vs ", " vs. ", "compare"}
)

// ClassifyDiffType maps a comparison tab to a diff type. It is total and
// deterministic: equal inputs always give the same tag and it never panics.
func ClassifyDiffType(label, originalURI, modifiedURI string) schema.DiffType {
	lower := strings.ToLower(strings.TrimSpace(label))
	origScheme := Scheme(originalURI)
	modScheme := Scheme(modifiedURI)

	if strings.Contains(lower, "working tree") {
		return schema.DiffWorkingTree
	}
	if strings.Contains(lower, "staged") || indexRe.MatchString(lower) {
		return schema.DiffStaged
	}
	if editCountsRe.MatchString(lower) {
		return schema.DiffEdit
	}
	if (slices.Contains(snapshotModelSchemes, origScheme) || slices.Contains(snapshotModelSchemes, modScheme)) &&
		!strings.Contains(lower, "snapshot") {
		return schema.DiffEdit
	}
	if containsAny(lower, snapshotKeywords) || dateRe.MatchString(lower) {
		return schema.DiffSnapshot
	}
	if hasCommitHash(lower) {
		return schema.DiffCommit
	}
	if slices.Contains(timelineSchemes, origScheme) || slices.Contains(timelineSchemes, modScheme) ||
		slices.Contains(gitSchemes, origScheme) || slices.Contains(gitSchemes, modScheme) {
		return schema.DiffSnapshot
	}
	if containsAny(lower, conflictKeywords) {
		return schema.DiffMergeConflict
	}
	incoming := strings.Contains(lower, "incoming")
	current := strings.Contains(lower, "current")
	switch {
	case incoming && current:
		return schema.DiffIncomingCurrent
	case incoming:
		return schema.DiffIncoming
	case current:
		return schema.DiffCurrent
	}
	if containsAny(lower, compareMarkers) {
		if originalURI != "" && modifiedURI != "" && !SamePath(originalURI, modifiedURI) {
			return schema.DiffUnknown
		}
		return schema.DiffSnapshot
	}
	return schema.DiffUnknown
}

// ParseEditCounts extracts the "+N-M" line counts of an edit label.
func ParseEditCounts(label string) (added, removed int, ok bool) {
	m := editCountsRe.FindStringSubmatch(strings.TrimSpace(label))
	if m == nil {
		return 0, 0, false
	}
	added, errAdded := strconv.Atoi(m[1])
	removed, errRemoved := strconv.Atoi(m[2])
	if errAdded != nil || errRemoved != nil {
		return 0, 0, false
	}
	return added, removed, true
}

// DetermineParentID returns the id of the file tab a comparison belongs to,
// or "" when no locator is known. Derived schemes map back to file:. For
// unknown comparisons between two different files the original (left) side
// owns the comparison.
func DetermineParentID(diffType schema.DiffType, uri string, group schema.GroupID, originalURI, modifiedURI string) schema.TabID {
	base := ParentLocator(diffType, uri, originalURI, modifiedURI)
	if base == "" {
		return ""
	}
	return schema.FileTabID(base, group)
}

// ParentLocator returns the normalised locator of the parent file.
func ParentLocator(diffType schema.DiffType, uri, originalURI, modifiedURI string) string {
	base := uri
	if base == "" {
		base = modifiedURI
	}
	if base == "" {
		base = originalURI
	}
	if diffType == schema.DiffUnknown && originalURI != "" && modifiedURI != "" && !SamePath(originalURI, modifiedURI) {
		base = originalURI
	}
	return NormalizeLocator(base)
}

func hasCommitHash(lower string) bool {
	for _, token := range hexTokenRe.FindAllString(lower, -1) {
		if strings.ContainsAny(token, "0123456789") {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
