package property

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
)

// ============================================================
// Asset hydration
// ============================================================

const DefaultAssetConcurrency = 8

// LoadOptions настраивает LoadAssets.
type LoadOptions struct {
	// Concurrency ограничивает число одновременных загрузок (<=0 = DefaultAssetConcurrency).
	Concurrency int
	// Timeout ограничивает каждую загрузку отдельно (0 = без ограничения).
	Timeout time.Duration
	// OnResult вызывается последовательно для каждого результата после завершения всех загрузок.
	OnResult func(AssetResult)
}

// AssetResult: итог загрузки модели одного предмета мебели.
type AssetResult struct {
	Room           string        `json:"room"`
	RoomIndex      int           `json:"roomIndex"`
	Furniture      string        `json:"furniture"`
	FurnitureIndex int           `json:"furnitureIndex"`
	Ref            string        `json:"ref"`
	Err            error         `json:"-"`
	Duration       time.Duration `json:"duration"`
	ScaleFactor    float64       `json:"scaleFactor,omitempty"`
	Digest         string        `json:"digest,omitempty"`
	Size           int64         `json:"size,omitempty"`
}

func (r AssetResult) OK() bool { return r.Err == nil }

func (r AssetResult) MarshalJSON() ([]byte, error) {
	type plain AssetResult
	out := struct {
		plain
		OK    bool   `json:"ok"`
		Error string `json:"error,omitempty"`
	}{plain: plain(r), OK: r.OK()}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// AssetReport: сводный отчёт LoadAssets.
type AssetReport struct {
	Results []AssetResult `json:"results"`
	Elapsed time.Duration `json:"elapsed"`
}

func (r *AssetReport) Loaded() int {
	n := 0
	for _, res := range r.Results {
		if res.OK() {
			n++
		}
	}
	return n
}

func (r *AssetReport) Failed() int {
	return len(r.Results) - r.Loaded()
}

func (r *AssetReport) Failures() []AssetResult {
	var out []AssetResult
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Err объединяет все ошибки загрузки; nil, если всё загрузилось.
func (r *AssetReport) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errors.Join(errs...)
}

type assetTask struct {
	room      *Room
	roomIndex int
	furniture *Furniture
	index     int
}

// LoadAssets параллельно загружает модели всей мебели со ссылкой на модель
// и ждёт завершения каждой попытки. Ошибки отдельных загрузок попадают
// в отчёт и не прерывают остальные.
func (l *Layout) LoadAssets(ctx context.Context, loader AssetLoader, opts LoadOptions) *AssetReport {
	started := time.Now()

	var tasks []assetTask
	for ri, room := range l.rooms {
		for fi, f := range room.furniture {
			if _, ok := f.ModelURL(); ok {
				tasks = append(tasks, assetTask{room: room, roomIndex: ri, furniture: f, index: fi})
			}
		}
	}

	report := &AssetReport{Results: make([]AssetResult, len(tasks))}
	if len(tasks) == 0 {
		report.Elapsed = time.Since(started)
		return report
	}

	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultAssetConcurrency
	}

	var g errgroup.Group
	g.SetLimit(limit)
	for i, task := range tasks {
		g.Go(func() error {
			report.Results[i] = hydrateOne(ctx, loader, task, opts.Timeout)
			return nil
		})
	}
	_ = g.Wait()

	report.Elapsed = time.Since(started)
	if opts.OnResult != nil {
		for _, res := range report.Results {
			opts.OnResult(res)
		}
	}
	return report
}

func hydrateOne(ctx context.Context, loader AssetLoader, task assetTask, timeout time.Duration) AssetResult {
	ref, _ := task.furniture.ModelURL()
	res := AssetResult{
		Room:           task.room.name,
		RoomIndex:      task.roomIndex,
		Furniture:      task.furniture.name,
		FurnitureIndex: task.index,
		Ref:            ref,
	}

	taskCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	asset, norm, err := task.furniture.HydrateAsset(taskCtx, loader)
	res.Duration = time.Since(started)
	if err != nil {
		res.Err = err
		return res
	}
	res.ScaleFactor = norm.ScaleFactor
	if asset != nil {
		res.Digest = asset.Digest
		res.Size = asset.Size
	}
	return res
}
