package stats

import (
	"fmt"
	"slices"

	"github.com/RyanBlaney/sonido-smooth/algorithms/common"
	"github.com/RyanBlaney/sonido-smooth/algorithms/filters"
	"github.com/RyanBlaney/sonido-smooth/algorithms/spectral"
	"github.com/viterin/vek"
)

// DefaultHighFrequencyCutoff splits the one-sided spectrum in half when
// measuring jitter energy.
const DefaultHighFrequencyCutoff = 0.5

// ChannelSmoothing describes how one channel changed under smoothing
type ChannelSmoothing struct {
	Channel int `json:"channel" yaml:"channel"`

	RMSChange   float64 `json:"rms_change" yaml:"rms_change"`     // RMS of filtered-raw
	MaxChange   float64 `json:"max_change" yaml:"max_change"`     // max |filtered-raw|
	L2Distance  float64 `json:"l2_distance" yaml:"l2_distance"`   // ||filtered-raw||
	Correlation float64 `json:"correlation" yaml:"correlation"`   // Pearson(raw, filtered)

	TotalVariationBefore float64 `json:"total_variation_before" yaml:"total_variation_before"`
	TotalVariationAfter  float64 `json:"total_variation_after" yaml:"total_variation_after"`

	HighFrequencyBefore float64 `json:"high_frequency_before" yaml:"high_frequency_before"`
	HighFrequencyAfter  float64 `json:"high_frequency_after" yaml:"high_frequency_after"`
}

// TotalVariationReduction returns the fraction of frame-to-frame variation
// removed, 0 for channels that had none.
func (c ChannelSmoothing) TotalVariationReduction() float64 {
	if c.TotalVariationBefore <= 0 {
		return 0.0
	}
	return 1.0 - c.TotalVariationAfter/c.TotalVariationBefore
}

// SmoothingReport summarizes the effect of a filter on a whole signal
type SmoothingReport struct {
	Frames   int `json:"frames" yaml:"frames"`
	Channels int `json:"channels" yaml:"channels"`

	PerChannel []ChannelSmoothing `json:"per_channel" yaml:"per_channel"`

	MeanTotalVariationReduction float64 `json:"mean_total_variation_reduction" yaml:"mean_total_variation_reduction"`
	MaxChange                   float64 `json:"max_change" yaml:"max_change"`
	MaxChangeChannel            int     `json:"max_change_channel" yaml:"max_change_channel"`
}

// CompareSmoothing builds a SmoothingReport from a raw signal and its
// filtered counterpart. Both must have the same shape.
func CompareSmoothing(raw, filtered *filters.Signal) (*SmoothingReport, error) {
	return CompareSmoothingWithCutoff(raw, filtered, DefaultHighFrequencyCutoff)
}

// CompareSmoothingWithCutoff is CompareSmoothing with an explicit spectral
// cutoff (fraction of the one-sided spectrum treated as low band).
func CompareSmoothingWithCutoff(raw, filtered *filters.Signal, cutoff float64) (*SmoothingReport, error) {
	if raw == nil || filtered == nil {
		return nil, fmt.Errorf("%w: nil signal", filters.ErrInvalidShape)
	}
	if !slices.Equal(raw.Shape(), filtered.Shape()) {
		return nil, fmt.Errorf("%w: raw shape %v differs from filtered shape %v",
			filters.ErrInvalidShape, raw.Shape(), filtered.Shape())
	}

	report := &SmoothingReport{
		Frames:     raw.Frames(),
		Channels:   raw.Channels(),
		PerChannel: make([]ChannelSmoothing, raw.Channels()),
	}

	reductionSum := 0.0
	for d := range report.PerChannel {
		before := raw.Channel(d)
		after := filtered.Channel(d)
		diff := vek.Sub(after, before)

		ch := ChannelSmoothing{
			Channel:              d,
			RMSChange:            common.RMS(diff),
			MaxChange:            common.MaxAbsDifference(after, before),
			L2Distance:           vek.Distance(after, before),
			Correlation:          common.Correlation(before, after),
			TotalVariationBefore: common.TotalVariation(before),
			TotalVariationAfter:  common.TotalVariation(after),
			HighFrequencyBefore:  spectral.HighFrequencyRatio(before, cutoff),
			HighFrequencyAfter:   spectral.HighFrequencyRatio(after, cutoff),
		}
		report.PerChannel[d] = ch

		reductionSum += ch.TotalVariationReduction()
		if ch.MaxChange > report.MaxChange {
			report.MaxChange = ch.MaxChange
			report.MaxChangeChannel = d
		}
	}
	report.MeanTotalVariationReduction = reductionSum / float64(report.Channels)

	return report, nil
}
