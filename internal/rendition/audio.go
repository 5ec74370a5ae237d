package rendition

import (
	"fmt"
	"slices"

	"tubedrop/internal/entity"
	"tubedrop/internal/errs"
)

// audioQualities are the offered mp3 transcode targets, best first.
var audioQualities = []entity.AudioOption{
	{BitrateKbps: 320, Description: "320 kbps – CD-equivalent quality"},
	{BitrateKbps: 192, Description: "192 kbps – no significant loss"},
	{BitrateKbps: 128, Description: "128 kbps – slightly perceptible loss"},
	{BitrateKbps: 96, Description: "96 kbps – FM-radio-like quality"},
	{BitrateKbps: 32, Description: "32 kbps – AM-radio-like quality"},
}

// AudioQualities returns the offered audio qualities in descending bitrate order.
// The returned slice is a copy.
func AudioQualities() []entity.AudioOption {
	return slices.Clone(audioQualities)
}

// ValidateBitrate returns errs.ErrInvalidBitrate unless kbps is an offered quality.
func ValidateBitrate(kbps int) error {
	ok := slices.ContainsFunc(audioQualities, func(q entity.AudioOption) bool {
		return q.BitrateKbps == kbps
	})
	if !ok {
		return fmt.Errorf("%w: %d", errs.ErrInvalidBitrate, kbps)
	}

	return nil
}
