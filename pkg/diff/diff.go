// Package diff computes and renders differences between two minutes
// versions. It wraps go-diff's diff-match-patch with semantic cleanup so
// edits group into readable chunks rather than character noise.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Op is the kind of a diff segment.
type Op int

const (
	// OpEqual is text present in both versions.
	OpEqual Op = iota
	// OpDelete is text present only in the old version.
	OpDelete
	// OpInsert is text present only in the new version.
	OpInsert
)

// Segment is one run of text with a single diff operation.
type Segment struct {
	Op   Op
	Text string
}

// Compute diffs old against new and returns the cleaned segment list.
func Compute(oldText, newText string) []Segment {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	segments := make([]Segment, 0, len(diffs))
	for _, d := range diffs {
		var op Op
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			op = OpDelete
		case diffmatchpatch.DiffInsert:
			op = OpInsert
		default:
			op = OpEqual
		}
		segments = append(segments, Segment{Op: op, Text: d.Text})
	}
	return segments
}

// Stats summarises a diff.
type Stats struct {
	// Inserted is the number of inserted characters.
	Inserted int
	// Deleted is the number of deleted characters.
	Deleted int
}

// Changed reports whether the diff contains any edits.
func (s Stats) Changed() bool {
	return s.Inserted > 0 || s.Deleted > 0
}

// Summarize counts inserted and deleted characters.
func Summarize(segments []Segment) Stats {
	var stats Stats
	for _, seg := range segments {
		switch seg.Op {
		case OpInsert:
			stats.Inserted += len([]rune(seg.Text))
		case OpDelete:
			stats.Deleted += len([]rune(seg.Text))
		}
	}
	return stats
}

// Sides splits a diff into the two texts a side-by-side viewer shows: the
// left side carries equals and deletions, the right side equals and
// insertions.
func Sides(segments []Segment) (left, right []Segment) {
	for _, seg := range segments {
		switch seg.Op {
		case OpEqual:
			left = append(left, seg)
			right = append(right, seg)
		case OpDelete:
			left = append(left, seg)
		case OpInsert:
			right = append(right, seg)
		}
	}
	return left, right
}

// RenderText renders a diff as plain text with [-...-] and {+...+} markers,
// suitable for non-TTY output.
func RenderText(segments []Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		switch seg.Op {
		case OpDelete:
			b.WriteString("[-")
			b.WriteString(seg.Text)
			b.WriteString("-]")
		case OpInsert:
			b.WriteString("{+")
			b.WriteString(seg.Text)
			b.WriteString("+}")
		default:
			b.WriteString(seg.Text)
		}
	}
	return b.String()
}
