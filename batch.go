package sdohload

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tordrt/sdohload/internal/fetch"
	"github.com/tordrt/sdohload/internal/ingest"
	"github.com/tordrt/sdohload/internal/metrics"
	"github.com/tordrt/sdohload/internal/registry"
	"github.com/tordrt/sdohload/internal/schema"
	"github.com/tordrt/sdohload/internal/workarea"
)

// BatchOptions configures RunBatch
type BatchOptions struct {
	// WorkDir is where staged files live for the duration of the batch.
	// Empty uses the system temporary directory.
	WorkDir string

	// Fetcher stages each dataset's files. Required.
	Fetcher fetch.Fetcher

	// Logger receives one entry per dataset. Nil discards.
	Logger logrus.FieldLogger

	// Metrics records every outcome. Nil records nothing.
	Metrics *metrics.Recorder
}

// RunBatch loads datasets one after another and returns one result per
// dataset, in order. A failed dataset does not stop the batch. The work area
// is removed on every exit path; the returned error only reports work area
// problems.
func (e *Engine) RunBatch(ctx context.Context, datasets []registry.Dataset, opts BatchOptions) ([]schema.LoadResult, error) {
	log := opts.Logger
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}

	results := make([]schema.LoadResult, 0, len(datasets))
	err := workarea.With(opts.WorkDir, func(area *workarea.Area) error {
		for _, ds := range datasets {
			res := e.runOne(ctx, area, ds, opts.Fetcher)
			results = append(results, res)
			opts.Metrics.Observe(res)

			entry := log.WithFields(logrus.Fields{
				"dataset":   res.Name,
				"table":     res.Table,
				"state":     res.State,
				"rows":      res.Rows,
				"variables": res.Variables,
				"duration":  res.Duration.Round(time.Millisecond),
			})
			if res.Success {
				entry.Info(res.Message)
			} else {
				entry.Error(res.Message)
			}
		}
		return nil
	})
	return results, err
}

func (e *Engine) runOne(ctx context.Context, area *workarea.Area, ds registry.Dataset, f fetch.Fetcher) schema.LoadResult {
	start := time.Now()
	res := schema.LoadResult{Name: ds.Name, Table: ds.Key().TableName()}
	finish := func(o Outcome) schema.LoadResult {
		res.Success = o.Success()
		res.State = o.State.String()
		res.Message = o.Message()
		res.Variables = o.Variables
		res.Rows = o.Rows
		res.Duration = time.Since(start)
		return res
	}
	stageFailed := func(err error) schema.LoadResult {
		return finish(Outcome{Key: ds.Key(), State: ingest.StateRolledBack, Err: err})
	}

	if f == nil {
		return stageFailed(&Error{Kind: ingest.KindStorage, Detail: "no fetcher configured"})
	}
	dir, err := area.Subdir(ds.Name)
	if err != nil {
		return stageFailed(&Error{Kind: ingest.KindStorage, Detail: "failed to stage " + ds.Name, Err: err})
	}
	files, err := f.Fetch(ctx, ds, dir)
	if err != nil {
		return stageFailed(&Error{Kind: ingest.KindSchema, Detail: "failed to fetch " + ds.Name, Err: err})
	}

	return finish(e.Load(ctx, Params{
		Source:         ds.Source,
		Version:        ds.Version,
		CensusYear:     ds.CensusYear,
		Granularity:    ds.Granularity,
		GeoIDColumn:    ds.GeoIDColumn,
		URL:            ds.URL,
		Description:    ds.Description,
		DescriptorPath: files.Descriptor,
		DataPath:       files.Data,
	}))
}

// LoadRegistry reads a dataset registry file
func LoadRegistry(path string) (*registry.Registry, error) {
	return registry.Load(path)
}
