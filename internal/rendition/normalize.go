// Package rendition turns raw extractor renditions into the catalog offered to clients.
package rendition

import (
	"cmp"
	"slices"
	"strconv"

	"tubedrop/internal/consts"
	"tubedrop/internal/entity"
	"tubedrop/pkg/ptr"
)

const (
	labelUnknown = "N/A"
	// fallbackKey groups renditions that have neither a height nor a note.
	fallbackKey = "Video"
	vcodecNone  = "none"
)

// qualityKey groups renditions of the same effective quality.
// A numeric height and a note that happens to read the same are different keys,
// Normalize folds them together again by rendered label.
type qualityKey struct {
	height    int
	hasHeight bool
	text      string
}

func keyOf(r entity.RawRendition) qualityKey {
	switch {
	case r.Height != nil:
		return qualityKey{height: *r.Height, hasHeight: true}
	case r.FormatNote != nil:
		return qualityKey{text: *r.FormatNote}
	default:
		return qualityKey{text: fallbackKey}
	}
}

// label renders the user-facing quality of a kept rendition.
func (k qualityKey) label(r entity.RawRendition) string {
	switch {
	case k.hasHeight:
		return strconv.Itoa(k.height) + "p"
	case k.text == "":
		return labelUnknown
	}

	if note := ptr.Deref(r.FormatNote); note != "" {
		return note
	}

	return k.text
}

// Normalize filters raw renditions down to usable mp4 video renditions and keeps,
// per quality, the one with the largest size. Ties keep the first seen.
// Distinct qualities that render the same label collapse the same way.
// Output follows the order in which each label was first seen.
func Normalize(raw []entity.RawRendition) []entity.VideoOption {
	type candidate struct {
		pos int
		r   entity.RawRendition
	}

	// wins reports whether c replaces cur: larger size, or same size seen earlier.
	wins := func(c, cur candidate) bool {
		return *c.r.FileSize > *cur.r.FileSize ||
			*c.r.FileSize == *cur.r.FileSize && c.pos < cur.pos
	}

	var (
		order []qualityKey
		best  = make(map[qualityKey]candidate)
	)

	for pos, r := range raw {
		if !isUsableVideo(r) {
			continue
		}

		key := keyOf(r)
		c := candidate{pos: pos, r: r}

		cur, seen := best[key]
		if !seen {
			order = append(order, key)
			best[key] = c

			continue
		}

		if wins(c, cur) {
			best[key] = c
		}
	}

	var (
		labels  []string
		byLabel = make(map[string]candidate, len(order))
	)

	for _, key := range order {
		c := best[key]
		label := key.label(c.r)

		cur, seen := byLabel[label]
		if !seen {
			labels = append(labels, label)
			byLabel[label] = c

			continue
		}

		if wins(c, cur) {
			byLabel[label] = c
		}
	}

	options := make([]entity.VideoOption, 0, len(labels))

	for _, label := range labels {
		r := byLabel[label].r
		options = append(options, entity.VideoOption{
			FormatID:     r.FormatID,
			Ext:          r.Ext,
			Note:         ptr.Deref(r.FormatNote),
			SizeBytes:    *r.FileSize,
			QualityLabel: label,
		})
	}

	return options
}

func isUsableVideo(r entity.RawRendition) bool {
	if r.Ext != consts.VideoContainer {
		return false
	}

	if vcodec := ptr.Deref(r.VCodec); vcodec == "" || vcodec == vcodecNone {
		return false
	}

	return r.FileSize != nil && *r.FileSize > 0
}

// SortByHeight orders options by descending pixel height, stable for equal or
// non-numeric labels, which go last.
func SortByHeight(options []entity.VideoOption) {
	slices.SortStableFunc(options, func(a, b entity.VideoOption) int {
		return cmp.Compare(heightOf(b), heightOf(a))
	})
}

func heightOf(o entity.VideoOption) int {
	label := o.QualityLabel
	if len(label) < 2 || label[len(label)-1] != 'p' {
		return -1
	}

	h, err := strconv.Atoi(label[:len(label)-1])
	if err != nil {
		return -1
	}

	return h
}
