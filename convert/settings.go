package convert

import (
	"github.com/lepinkainen/flac2opus/audio"
	"github.com/lepinkainen/flac2opus/utils"
)

// Settings configure scanning and conversion
type Settings struct {
	InputDir          string
	OutputDir         string
	Encode            audio.EncodeOptions
	Workers           int
	PreserveStructure bool
	Overwrite         bool
}

// DefaultSettings returns the settings used when nothing is configured
func DefaultSettings() Settings {
	return Settings{
		Encode:            audio.DefaultEncodeOptions(),
		Workers:           utils.DefaultWorkers(),
		PreserveStructure: true,
	}
}

func (s Settings) normalized() Settings {
	if s.Workers < 1 {
		s.Workers = 1
	}
	return s
}
