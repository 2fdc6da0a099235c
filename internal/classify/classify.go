// Package classify implements the semantic mutation classifier: a
// structural line-diff that tags a (before, after) file content pair with a
// coarse-grained set of mutation classes. It deliberately avoids parsing any
// source grammar — the diff is line-set based and pattern-matched, which
// makes it language-tolerant and robust to formatter churn at the cost of
// precision. It is a classifier, not a semantic diff.
package classify

import (
	"regexp"
	"sort"
)

// MutationClass is one tag from the closed set the classifier may emit.
type MutationClass string

const (
	AddFunction    MutationClass = "ADD_FUNCTION"
	ModifyFunction MutationClass = "MODIFY_FUNCTION"
	DeleteFunction MutationClass = "DELETE_FUNCTION"
	AddClass       MutationClass = "ADD_CLASS"
	ModifyClass    MutationClass = "MODIFY_CLASS"
	DeleteClass    MutationClass = "DELETE_CLASS"
	AddImport      MutationClass = "ADD_IMPORT"
	ModifyImport   MutationClass = "MODIFY_IMPORT"
	DeleteImport   MutationClass = "DELETE_IMPORT"
	AddExport      MutationClass = "ADD_EXPORT"
	DeleteExport   MutationClass = "DELETE_EXPORT"
	AddType        MutationClass = "ADD_TYPE"
	ModifyType     MutationClass = "MODIFY_TYPE"
	RefactorBlock  MutationClass = "REFACTOR_BLOCK"
)

// Set is an unordered collection of mutation classes.
type Set map[MutationClass]struct{}

// Add inserts c into the set.
func (s Set) Add(c MutationClass) {
	s[c] = struct{}{}
}

// Has reports whether c is present in the set.
func (s Set) Has(c MutationClass) bool {
	_, ok := s[c]
	return ok
}

// Slice returns the set's members in a stable, sorted order, useful for
// serialization and test assertions.
func (s Set) Slice() []MutationClass {
	out := make([]MutationClass, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

var (
	reFunctionDecl  = regexp.MustCompile(`^(export\s+)?(async\s+)?function\s+\w+\s*\(`)
	reFunctionArrow = regexp.MustCompile(`^(export\s+)?(const|let)\s+\w+\s*=\s*(async\s+)?\([^)]*\)\s*=>`)
	reMethod        = regexp.MustCompile(`^(async\s+)?\w+\s*\([^)]*\)\s*:\s*\S+`)
	reClass         = regexp.MustCompile(`^(export\s+)?class\s+\w+`)
	reImport        = regexp.MustCompile(`^import\s+.+from\s+["'].+["']`)
	reExport        = regexp.MustCompile(`^export\s+(default|type|const|function|class)\b`)
	reTypeAlias     = regexp.MustCompile(`^(export\s+)?type\s+\w+\s*=`)
	reInterface     = regexp.MustCompile(`^(export\s+)?interface\s+\w+`)
)

func isFunctionLine(line string) bool {
	return reFunctionDecl.MatchString(line) || reFunctionArrow.MatchString(line) || reMethod.MatchString(line)
}

func isClassLine(line string) bool {
	return reClass.MatchString(line)
}

func isImportLine(line string) bool {
	return reImport.MatchString(line)
}

func isExportLine(line string) bool {
	return reExport.MatchString(line)
}

func isTypeLine(line string) bool {
	return reTypeAlias.MatchString(line) || reInterface.MatchString(line)
}

// categoryHits records which pattern categories matched anywhere in one of
// the two line sets (added or removed).
type categoryHits struct {
	function bool
	class    bool
	imprt    bool
	export   bool
	typ      bool
}

func scan(lines map[string]struct{}) categoryHits {
	var hits categoryHits
	for line := range lines {
		if isFunctionLine(line) {
			hits.function = true
		}
		if isClassLine(line) {
			hits.class = true
		}
		if isImportLine(line) {
			hits.imprt = true
		}
		if isExportLine(line) {
			hits.export = true
		}
		if isTypeLine(line) {
			hits.typ = true
		}
	}
	return hits
}

// Classify maps a (before, after) file content pair to its set of mutation
// classes per the structural line-diff algorithm: split into trimmed,
// deduplicated line sets; diff to added/removed; pattern-match each set
// against the category table; collapse symmetric add/delete pairs into
// their modify form for function, class, and import categories (and for
// type/interface, whose delete form does not exist in the closed set); fall
// back to REFACTOR_BLOCK when the diff is non-empty but matches no pattern.
func Classify(before, after string) Set {
	beforeLines := splitLines(before)
	afterLines := splitLines(after)

	added := difference(afterLines, beforeLines)
	removed := difference(beforeLines, afterLines)

	addHits := scan(added)
	removeHits := scan(removed)

	result := Set{}

	switch {
	case addHits.function && removeHits.function:
		result.Add(ModifyFunction)
	case addHits.function:
		result.Add(AddFunction)
	case removeHits.function:
		result.Add(DeleteFunction)
	}

	switch {
	case addHits.class && removeHits.class:
		result.Add(ModifyClass)
	case addHits.class:
		result.Add(AddClass)
	case removeHits.class:
		result.Add(DeleteClass)
	}

	switch {
	case addHits.imprt && removeHits.imprt:
		result.Add(ModifyImport)
	case addHits.imprt:
		result.Add(AddImport)
	case removeHits.imprt:
		result.Add(DeleteImport)
	}

	// Type/interface has no standalone delete tag in the closed set: a
	// removal with no matching addition collapses to nothing here and
	// falls through to the REFACTOR_BLOCK catch-all below.
	switch {
	case addHits.typ && removeHits.typ:
		result.Add(ModifyType)
	case addHits.typ:
		result.Add(AddType)
	}

	if addHits.export {
		result.Add(AddExport)
	}
	if removeHits.export {
		result.Add(DeleteExport)
	}

	if len(result) == 0 && (len(added) > 0 || len(removed) > 0) {
		result.Add(RefactorBlock)
	}

	return result
}
