package artefact

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Phrases emitted by the hardware-synchronization stage into its log
const (
	bufferCountOpen  = "("
	bufferCountClose = " data buffers)"
	skipPrefix       = "Time "
	skipSuffix       = ": cont HPI is off, data block is skipped!"
)

// ErrZeroLogUnusable indicates the log lines did not contain the expected
// buffer-count line
var ErrZeroLogUnusable = errors.New("zero log unusable")

// ParseZeroLog reads hardware-log lines describing zeroed data blocks and
// returns a per-sample mask over nSamples, true where a block was zeroed.
// firstTime is the recording-clock time of sample 0 in seconds.
//
// The log states the total buffer count once, e.g. "(27 data buffers)", and
// one line per skipped block, e.g. "Time 112.5: cont HPI is off, data block
// is skipped!". Each skipped block spans nSamples/bufferCount samples.
func ParseZeroLog(lines []string, sampleRate, firstTime float64, nSamples int) ([]bool, error) {
	bufferCount := 0.0
	gotCount := false
	var zeroedAt []float64

	for _, line := range lines {
		if !gotCount && strings.Contains(line, bufferCountClose) {
			raw := line[strings.Index(line, bufferCountOpen)+1:]
			raw = raw[:strings.Index(raw, bufferCountClose)]
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad buffer count %q", ErrZeroLogUnusable, raw)
			}
			bufferCount = v
			gotCount = true
		}
		if strings.Contains(line, skipSuffix) {
			raw := line[strings.Index(line, skipPrefix)+len(skipPrefix):]
			raw = raw[:strings.Index(raw, skipSuffix)]
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad skip time %q", ErrZeroLogUnusable, raw)
			}
			zeroedAt = append(zeroedAt, v)
		}
	}

	if !gotCount || bufferCount <= 0 {
		return nil, fmt.Errorf("%w: no data buffer count found", ErrZeroLogUnusable)
	}

	blockLen := float64(nSamples) / bufferCount
	mask := make([]bool, nSamples)
	for _, z := range zeroedAt {
		start := int((z - firstTime) * sampleRate)
		stop := int((z-firstTime)*sampleRate + blockLen)
		if start < 0 {
			start = 0
		}
		if stop > nSamples {
			stop = nSamples
		}
		for i := start; i < stop; i++ {
			mask[i] = true
		}
	}
	return mask, nil
}
