package persist

import (
	"context"
	"fmt"
	"sort"

	"github.com/mitchellh/mapstructure"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQL    = "sql"
	BackendS3     = "s3"
)

type fileParams struct {
	Dir string `mapstructure:"dir"`
}

type sqlParams struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type s3Params struct {
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type opener func(ctx context.Context, params map[string]any) (SlotStore, error)

var openers = map[string]opener{
	BackendMemory: func(_ context.Context, params map[string]any) (SlotStore, error) {
		if err := decodeParams(params, &struct{}{}); err != nil {
			return nil, err
		}
		return NewMemorySlots(), nil
	},
	BackendFile: func(_ context.Context, params map[string]any) (SlotStore, error) {
		var fileConf fileParams
		if err := decodeParams(params, &fileConf); err != nil {
			return nil, err
		}
		if fileConf.Dir == "" {
			dir, err := DefaultDir()
			if err != nil {
				return nil, err
			}
			fileConf.Dir = dir
		}
		return NewFileSlots(fileConf.Dir)
	},
	BackendSQL: func(ctx context.Context, params map[string]any) (SlotStore, error) {
		var sqlConf sqlParams
		if err := decodeParams(params, &sqlConf); err != nil {
			return nil, err
		}
		return OpenSQLSlots(ctx, sqlConf.Driver, sqlConf.DSN)
	},
	BackendS3: func(ctx context.Context, params map[string]any) (SlotStore, error) {
		var s3Conf s3Params
		if err := decodeParams(params, &s3Conf); err != nil {
			return nil, err
		}
		return OpenS3Slots(ctx, s3Conf.Bucket, s3Conf.Prefix, s3Conf.Region, s3Conf.Endpoint)
	},
}

// decodeParams fills `out` from `params`, rejecting keys `out` doesn't know about.
func decodeParams(params map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create params decoder: %w", err)
	}
	if err := decoder.Decode(params); err != nil {
		return fmt.Errorf("invalid slot store params: %w", err)
	}
	return nil
}

// Backends returns the sorted list of backend names accepted by Open.
func Backends() []string {
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open builds the slot store of `backend` configured by `params`, e.g.
// Open(ctx, "sql", map[string]any{"driver": "sqlite3", "dsn": "/tmp/fig.db"}).
func Open(ctx context.Context, backend string, params map[string]any) (SlotStore, error) {
	open, found := openers[backend]
	if !found {
		return nil, fmt.Errorf("unknown slot store backend %q, expected one of %v", backend, Backends())
	}
	slots, err := open(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s slot store: %w", backend, err)
	}
	return slots, nil
}
