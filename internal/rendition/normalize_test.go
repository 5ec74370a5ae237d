package rendition_test

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"strconv"
	"testing"

	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
	"tubedrop/internal/rendition"
	"tubedrop/pkg/ptr"
)

func mp4(id string, height int, size int64) entity.RawRendition {
	return entity.RawRendition{
		FormatID: id,
		Ext:      "mp4",
		VCodec:   ptr.Of("avc1.64001F"),
		Height:   ptr.Of(height),
		FileSize: ptr.Of(size),
	}
}

func note(id string, formatNote *string, size int64) entity.RawRendition {
	return entity.RawRendition{
		FormatID:   id,
		Ext:        "mp4",
		VCodec:     ptr.Of("avc1"),
		FormatNote: formatNote,
		FileSize:   ptr.Of(size),
	}
}

// wantLabel is the label a lone rendition would get.
func wantLabel(r entity.RawRendition) string {
	switch {
	case r.Height != nil:
		return strconv.Itoa(*r.Height) + "p"
	case r.FormatNote == nil:
		return "Video"
	case *r.FormatNote == "":
		return "N/A"
	default:
		return *r.FormatNote
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  []entity.RawRendition
		want []entity.VideoOption
	}{
		{
			name: "larger size wins on same height",
			raw: []entity.RawRendition{
				mp4("136", 720, 5_000_000),
				mp4("398", 720, 8_000_000),
			},
			want: []entity.VideoOption{
				{FormatID: "398", Ext: "mp4", SizeBytes: 8_000_000, QualityLabel: "720p"},
			},
		},
		{
			name: "tie keeps first",
			raw: []entity.RawRendition{
				mp4("a", 480, 1000),
				mp4("b", 480, 1000),
			},
			want: []entity.VideoOption{
				{FormatID: "a", Ext: "mp4", SizeBytes: 1000, QualityLabel: "480p"},
			},
		},
		{
			name: "order follows first appearance of each quality",
			raw: []entity.RawRendition{
				mp4("360", 360, 100),
				mp4("1080", 1080, 900),
				mp4("360b", 360, 200),
				mp4("720", 720, 500),
			},
			want: []entity.VideoOption{
				{FormatID: "360b", Ext: "mp4", SizeBytes: 200, QualityLabel: "360p"},
				{FormatID: "1080", Ext: "mp4", SizeBytes: 900, QualityLabel: "1080p"},
				{FormatID: "720", Ext: "mp4", SizeBytes: 500, QualityLabel: "720p"},
			},
		},
		{
			name: "filters container codec and size",
			raw: []entity.RawRendition{
				{FormatID: "webm", Ext: "webm", VCodec: ptr.Of("vp9"), Height: ptr.Of(720), FileSize: ptr.Of(int64(10))},
				{FormatID: "audio", Ext: "mp4", VCodec: ptr.Of("none"), FileSize: ptr.Of(int64(10))},
				{FormatID: "nocodec", Ext: "mp4", Height: ptr.Of(720), FileSize: ptr.Of(int64(10))},
				{FormatID: "nosize", Ext: "mp4", VCodec: ptr.Of("avc1"), Height: ptr.Of(720)},
				{FormatID: "zerosize", Ext: "mp4", VCodec: ptr.Of("avc1"), Height: ptr.Of(720), FileSize: ptr.Of(int64(0))},
			},
			want: []entity.VideoOption{},
		},
		{
			name: "note and fallback labels",
			raw: []entity.RawRendition{
				{FormatID: "n", Ext: "mp4", VCodec: ptr.Of("avc1"), FormatNote: ptr.Of("DASH video"), FileSize: ptr.Of(int64(5))},
				{FormatID: "f", Ext: "mp4", VCodec: ptr.Of("avc1"), FileSize: ptr.Of(int64(7))},
				{FormatID: "e", Ext: "mp4", VCodec: ptr.Of("avc1"), FormatNote: ptr.Of(""), FileSize: ptr.Of(int64(9))},
			},
			want: []entity.VideoOption{
				{FormatID: "n", Ext: "mp4", Note: "DASH video", SizeBytes: 5, QualityLabel: "DASH video"},
				{FormatID: "f", Ext: "mp4", SizeBytes: 7, QualityLabel: "Video"},
				{FormatID: "e", Ext: "mp4", SizeBytes: 9, QualityLabel: "N/A"},
			},
		},
		{
			name: "numeric height and same-looking note are different qualities",
			raw: []entity.RawRendition{
				mp4("h", 720, 10),
				{FormatID: "n", Ext: "mp4", VCodec: ptr.Of("avc1"), FormatNote: ptr.Of("720"), FileSize: ptr.Of(int64(20))},
			},
			want: []entity.VideoOption{
				{FormatID: "h", Ext: "mp4", SizeBytes: 10, QualityLabel: "720p"},
				{FormatID: "n", Ext: "mp4", Note: "720", SizeBytes: 20, QualityLabel: "720"},
			},
		},
		{
			name: "qualities rendering the same label collapse",
			raw: []entity.RawRendition{
				mp4("136", 720, 10),
				note("22", ptr.Of("720p"), 20),
				note("a", ptr.Of(""), 5),
				note("b", ptr.Of("N/A"), 6),
			},
			want: []entity.VideoOption{
				{FormatID: "22", Ext: "mp4", Note: "720p", SizeBytes: 20, QualityLabel: "720p"},
				{FormatID: "b", Ext: "mp4", Note: "N/A", SizeBytes: 6, QualityLabel: "N/A"},
			},
		},
		{
			name: "label tie keeps earliest input across qualities",
			raw: []entity.RawRendition{
				mp4("h-small", 480, 1),
				note("n", ptr.Of("480p"), 9),
				mp4("h-big", 480, 9),
			},
			want: []entity.VideoOption{
				{FormatID: "n", Ext: "mp4", Note: "480p", SizeBytes: 9, QualityLabel: "480p"},
			},
		},
		{
			name: "nil input",
			raw:  nil,
			want: []entity.VideoOption{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rendition.Normalize(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Normalize() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalizeProperties(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	heights := []int{144, 360, 720, 1080}
	notes := []*string{nil, ptr.Of(""), ptr.Of("N/A"), ptr.Of("720p"), ptr.Of("Video"), ptr.Of("DASH video")}

	for iter := range 500 {
		raw := make([]entity.RawRendition, rng.IntN(20))

		for i := range raw {
			id := strconv.Itoa(iter) + "-" + strconv.Itoa(i)
			size := int64(rng.IntN(5))

			r := mp4(id, heights[rng.IntN(len(heights))], size)
			if rng.IntN(3) == 0 {
				r = note(id, notes[rng.IntN(len(notes))], size)
			}

			if rng.IntN(5) == 0 {
				r.FileSize = nil
			}

			if rng.IntN(5) == 0 {
				r.VCodec = nil
			}

			raw[i] = r
		}

		got := rendition.Normalize(raw)

		labels := make(map[string]bool)
		for _, opt := range got {
			if labels[opt.QualityLabel] {
				t.Fatalf("duplicate quality %q in %+v", opt.QualityLabel, got)
			}

			labels[opt.QualityLabel] = true

			var (
				maxSize int64 = -1
				firstID string
			)

			for _, r := range raw {
				if r.FileSize == nil || r.VCodec == nil || *r.FileSize == 0 {
					if r.FormatID == opt.FormatID {
						t.Fatalf("unusable rendition %q in output", r.FormatID)
					}

					continue
				}

				if wantLabel(r) != opt.QualityLabel {
					continue
				}

				if *r.FileSize > maxSize {
					maxSize = *r.FileSize
					firstID = r.FormatID
				}
			}

			if opt.SizeBytes != maxSize || opt.FormatID != firstID {
				t.Fatalf("quality %s kept %s/%d, want %s/%d", opt.QualityLabel, opt.FormatID, opt.SizeBytes, firstID, maxSize)
			}
		}

		for _, r := range raw {
			if r.FileSize != nil && r.VCodec != nil && *r.FileSize > 0 && !labels[wantLabel(r)] {
				t.Fatalf("quality %q of %s missing from %+v", wantLabel(r), r.FormatID, got)
			}
		}
	}
}

func TestSortByHeight(t *testing.T) {
	options := []entity.VideoOption{
		{FormatID: "a", QualityLabel: "360p"},
		{FormatID: "b", QualityLabel: "DASH video"},
		{FormatID: "c", QualityLabel: "1080p"},
		{FormatID: "d", QualityLabel: "N/A"},
		{FormatID: "e", QualityLabel: "720p"},
	}

	rendition.SortByHeight(options)

	var got []string
	for _, o := range options {
		got = append(got, o.FormatID)
	}

	want := []string{"c", "e", "a", "b", "d"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByHeight() order = %v, want %v", got, want)
	}
}

func TestAudioQualities(t *testing.T) {
	got := rendition.AudioQualities()

	var bitrates []int
	for _, q := range got {
		bitrates = append(bitrates, q.BitrateKbps)

		if q.Description == "" {
			t.Errorf("bitrate %d has no description", q.BitrateKbps)
		}
	}

	if want := []int{320, 192, 128, 96, 32}; !reflect.DeepEqual(bitrates, want) {
		t.Errorf("AudioQualities() bitrates = %v, want %v", bitrates, want)
	}

	got[0].BitrateKbps = 1
	if rendition.AudioQualities()[0].BitrateKbps != 320 {
		t.Error("AudioQualities() exposed the internal slice")
	}
}

func TestValidateBitrate(t *testing.T) {
	for _, kbps := range []int{320, 192, 128, 96, 32} {
		if err := rendition.ValidateBitrate(kbps); err != nil {
			t.Errorf("ValidateBitrate(%d) = %v, want nil", kbps, err)
		}
	}

	for _, kbps := range []int{0, -1, 64, 256, 321, 1000} {
		err := rendition.ValidateBitrate(kbps)
		if !errors.Is(err, errs.ErrInvalidBitrate) || !errors.Is(err, errs.ErrValidation) {
			t.Errorf("ValidateBitrate(%d) = %v, want ErrInvalidBitrate", kbps, err)
		}
	}
}
