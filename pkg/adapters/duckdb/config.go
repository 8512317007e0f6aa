package duckdb

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Params holds DuckDB-specific configuration.
// Parsed from core.AdapterConfig.Options using mapstructure.
type Params struct {
	// MemoryLimit caps the engine's memory (e.g. "2GB").
	MemoryLimit string `mapstructure:"memory_limit"`

	// Threads sets the worker thread count. Zero keeps the engine default.
	Threads int `mapstructure:"threads"`

	// SampleSize is the number of rows read_csv_auto samples for type
	// detection. -1 scans the whole file.
	SampleSize int `mapstructure:"sample_size"`
}

func parseParams(options map[string]string) (*Params, error) {
	p := &Params{SampleSize: -1}
	if len(options) == 0 {
		return p, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(options); err != nil {
		return nil, fmt.Errorf("failed to decode duckdb options: %w", err)
	}
	return p, nil
}

// settingsSQL returns the session SET statements for the params.
func (p *Params) settingsSQL() []string {
	var stmts []string
	if p.MemoryLimit != "" {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = %s", quoteLiteral(p.MemoryLimit)))
	}
	if p.Threads > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", p.Threads))
	}
	return stmts
}
