package media

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Tiers holds the classified and ranked stream listing.
type Tiers struct {
	VideoAudio []StreamDescriptor
	VideoOnly  []StreamDescriptor
	AudioOnly  []StreamDescriptor
}

// Classify partitions descriptors by tier keeping input order. Descriptors
// with neither track are dropped.
func Classify(descriptors []StreamDescriptor) Tiers {
	var t Tiers
	for _, d := range descriptors {
		switch d.Tier() {
		case TierVideoAudio:
			t.VideoAudio = append(t.VideoAudio, d)
		case TierVideoOnly:
			t.VideoOnly = append(t.VideoOnly, d)
		case TierAudioOnly:
			t.AudioOnly = append(t.AudioOnly, d)
		}
	}
	return t
}

// Rank sorts every tier best first in place. Sorting is stable so equal
// keys keep the extractor's order, and ranking an already ranked listing
// leaves it unchanged.
func (t *Tiers) Rank() {
	slices.SortStableFunc(t.VideoAudio, func(a, b StreamDescriptor) int {
		return cmp.Compare(Height(b.ResolutionLabel), Height(a.ResolutionLabel))
	})

	slices.SortStableFunc(t.VideoOnly, func(a, b StreamDescriptor) int {
		if c := cmp.Compare(Height(b.ResolutionLabel), Height(a.ResolutionLabel)); c != 0 {
			return c
		}
		return cmp.Compare(valueOrZero(b.FrameRate), valueOrZero(a.FrameRate))
	})

	slices.SortStableFunc(t.AudioOnly, func(a, b StreamDescriptor) int {
		return cmp.Compare(valueOrZero(b.AudioBitrate), valueOrZero(a.AudioBitrate))
	})
}

// ClassifyAndRank classifies descriptors and ranks the result.
func ClassifyAndRank(descriptors []StreamDescriptor) Tiers {
	t := Classify(descriptors)
	t.Rank()
	return t
}

// Best returns the top ranked stream of the richest non-empty tier.
func (t Tiers) Best() (StreamDescriptor, bool) {
	for _, tier := range [][]StreamDescriptor{t.VideoAudio, t.VideoOnly, t.AudioOnly} {
		if len(tier) > 0 {
			return tier[0], true
		}
	}
	return StreamDescriptor{}, false
}

// Height extracts the vertical resolution from a label such as "1080p60":
// the digits before the first 'p'. Labels without a 'p' or without digits
// rank as 0.
func Height(label string) int {
	idx := strings.IndexByte(label, 'p')
	if idx < 0 {
		return 0
	}

	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, label[:idx])

	h, err := strconv.Atoi(digits)
	if err != nil {
		return 0
	}
	return h
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
