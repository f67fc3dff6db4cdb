package ephys

import (
	"errors"
	"fmt"
)

// ErrUnknownPick indicates a channel-selection keyword outside the closed set
var ErrUnknownPick = errors.New("unknown pick")

// ChannelKind identifies what a channel physically records
type ChannelKind string

const (
	KindMag  ChannelKind = "mag"  // magnetometer
	KindGrad ChannelKind = "grad" // gradiometer
	KindEEG  ChannelKind = "eeg"
	KindEOG  ChannelKind = "eog"
	KindECG  ChannelKind = "ecg"
	KindEMG  ChannelKind = "emg"
	KindMisc ChannelKind = "misc"
)

// ValidateChannelKind checks that a kind is one of the known channel types
func ValidateChannelKind(k ChannelKind) error {
	switch k {
	case KindMag, KindGrad, KindEEG, KindEOG, KindECG, KindEMG, KindMisc:
		return nil
	}
	return fmt.Errorf("unknown channel kind %q", string(k))
}

// Pick is a channel-selection keyword. "meg" selects magnetometers and
// gradiometers together; every other pick selects its matching kind.
type Pick string

const (
	PickMag  Pick = "mag"
	PickGrad Pick = "grad"
	PickMEG  Pick = "meg"
	PickEEG  Pick = "eeg"
	PickEOG  Pick = "eog"
	PickECG  Pick = "ecg"
	PickEMG  Pick = "emg"
	PickMisc Pick = "misc"
)

// ParsePick converts a keyword into a Pick, failing fast on unknown values
func ParsePick(s string) (Pick, error) {
	p := Pick(s)
	if err := p.Validate(); err != nil {
		return "", err
	}
	return p, nil
}

// Validate checks the pick against the closed keyword set
func (p Pick) Validate() error {
	switch p {
	case PickMag, PickGrad, PickMEG, PickEEG, PickEOG, PickECG, PickEMG, PickMisc:
		return nil
	}
	return fmt.Errorf("%w: picks=%q not available", ErrUnknownPick, string(p))
}

// Matches reports whether a channel of the given kind is selected by the pick
func (p Pick) Matches(k ChannelKind) bool {
	switch p {
	case PickMEG:
		return k == KindMag || k == KindGrad
	default:
		return string(p) == string(k)
	}
}

// String returns the keyword form
func (p Pick) String() string { return string(p) }
