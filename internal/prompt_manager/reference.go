package prompt_manager

import (
	"regexp"
	"strconv"
	"strings"
)

// RefKind classifies how the current message refers to a prior upload.
type RefKind int

// Reference kinds.
const (
	RefNone RefKind = iota
	RefLast
	RefOrdinal
	RefID
)

// Reference is the result of classifying a message for prior-upload
// references. Ordinal is 1-indexed from the most recent upload.
type Reference struct {
	Kind    RefKind
	Ordinal int
	ID      int64
}

var (
	reExplicitID = regexp.MustCompile(`(?i)\bfile\s*#(\d+)\b`)
	reUploadsAgo = regexp.MustCompile(`(?i)\b(\d+)\s+(?:files?|uploads?|documents?)\s+ago\b`)
	rePageRef    = regexp.MustCompile(`(?i)\bpage\s+\d+\b`)
)

// Cue substrings that point at the single most recent upload.
var lastCues = []string{
	"previous",
	"last file",
	"last upload",
	"last document",
	"last pdf",
	"last image",
	"my file",
	"my upload",
	"my document",
	"my pdf",
	"my image",
	"that file",
	"that upload",
	"that document",
	"the file i",
	"the pdf",
	"the document",
	"the image",
	"earlier upload",
	"earlier file",
}

// Ordinal words mapped to kth-most-recent positions. A slice, not a
// map: classification must be a pure function of the text, and when a
// message carries two ordinal cues the one appearing first wins.
var ordinalWords = []struct {
	word string
	k    int
}{
	{"second", 2}, {"third", 3}, {"fourth", 4}, {"fifth", 5},
	{"sixth", 6}, {"seventh", 7}, {"eighth", 8}, {"ninth", 9}, {"tenth", 10},
}

// Noun suffixes that make an ordinal word an upload reference.
var ordinalSuffixes = []string{" file", " upload", " document"}

// ClassifyReference maps message text to a prior-upload reference. It
// is a pure function over the text, so the classification heuristics
// can evolve without touching the assembler's contract.
func ClassifyReference(text string) Reference {
	lower := strings.ToLower(text)

	if m := reExplicitID.FindStringSubmatch(lower); m != nil {
		id, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil {
			return Reference{Kind: RefID, ID: id}
		}
	}

	if m := reUploadsAgo.FindStringSubmatch(lower); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil && n > 0 {
			return Reference{Kind: RefOrdinal, Ordinal: n}
		}
	}

	if k, ok := earliestOrdinal(lower); ok {
		return Reference{Kind: RefOrdinal, Ordinal: k}
	}

	if rePageRef.MatchString(lower) {
		return Reference{Kind: RefLast}
	}

	for _, cue := range lastCues {
		if strings.Contains(lower, cue) {
			return Reference{Kind: RefLast}
		}
	}

	return Reference{Kind: RefNone}
}

// earliestOrdinal returns the ordinal whose cue appears first in the
// text, so messages mentioning several uploads always resolve the same
// way.
func earliestOrdinal(lower string) (int, bool) {
	best, k := -1, 0
	for _, ow := range ordinalWords {
		for _, suffix := range ordinalSuffixes {
			idx := strings.Index(lower, ow.word+suffix)
			if idx >= 0 && (best < 0 || idx < best) {
				best, k = idx, ow.k
			}
		}
	}
	return k, best >= 0
}
