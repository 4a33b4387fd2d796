package audio

import (
	"fmt"
	"slices"
	"time"
)

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func GetDefaultEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: DefaultSampleRate, Format: encodingFormat(DefaultFormat)}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// Validate checks that the format is known and that the sample rate suits
// it. When sampleRates is not empty the rate must also be one of them.
func (e EncodingInfo) Validate(sampleRates ...int) error {
	if _, err := ParseFormat(e.Format.Name()); err != nil {
		return err
	}
	if e.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", e.SampleRate)
	}
	if len(sampleRates) > 0 && !slices.Contains(sampleRates, e.SampleRate) {
		return fmt.Errorf("unsupported sample rate %d", e.SampleRate)
	}

	switch e.Format {
	case EncodingALaw, EncodingMulaw:
		if e.SampleRate != 8000 {
			return fmt.Errorf("unsupported sample rate %d for %s encoding", e.SampleRate, e.Format.Name())
		}
	}
	return nil
}

func (e EncodingInfo) SilenceValue() byte {
	switch e.Format {
	case EncodingALaw:
		return 0x55
	case EncodingMulaw:
		return 0xFF
	case EncodingLinear16:
		return 0
	}

	return 0
}

// Duration reports how long n bytes of mono audio play for.
func (e EncodingInfo) Duration(n int) time.Duration {
	bytesPerSecond := e.SampleRate * e.Format.ByteSize()
	if bytesPerSecond <= 0 {
		return 0
	}

	return time.Duration(n) * time.Second / time.Duration(bytesPerSecond)
}

type encodingFormat string

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	switch e {
	case EncodingMulaw, EncodingALaw:
		return 1
	case EncodingLinear16:
		return 2
	}
	return -1
}

const (
	EncodingMulaw    encodingFormat = "mulaw"
	EncodingALaw     encodingFormat = "alaw"
	EncodingLinear16 encodingFormat = "linear16"
)

// ParseFormat maps a configuration value onto a supported encoding.
func ParseFormat(name string) (encodingFormat, error) {
	switch format := encodingFormat(name); format {
	case EncodingMulaw, EncodingALaw, EncodingLinear16:
		return format, nil
	}

	return "", fmt.Errorf("unsupported audio encoding %q", name)
}
