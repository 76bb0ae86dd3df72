// Package batch runs the compressor or the converter over a list of files,
// one item at a time in input order, and packages the successful outputs
// into a single ZIP archive.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-converter/internal/convert"
	"github.com/tendant/simple-converter/internal/media"
	"github.com/tendant/simple-converter/internal/process"
	"github.com/tendant/simple-converter/pkg/schema"
)

type Operation string

const (
	OpCompress Operation = "compress"
	OpConvert  Operation = "convert"
)

func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpCompress, OpConvert:
		return Operation(s), nil
	}
	return "", media.Errorf(media.KindValidation, nil, "unknown operation %q (compress, convert)", s)
}

// ErrRunning is returned when a batch is modified or started while it runs.
var ErrRunning = errors.New("batch is running")

// Engine does the per-item work. *convert.Pipeline implements it.
type Engine interface {
	Convert(ctx context.Context, req convert.Request, obs convert.Observer) convert.Result
	Compress(ctx context.Context, src media.File, itemID string, obs convert.Observer) (*convert.Compression, error)
}

// Options configure a batch. Format, Page and Scale apply to conversions.
type Options struct {
	ID             string
	Operation      Operation
	Format         string
	Page           int
	Scale          float64
	MaxSourceBytes int64
}

// Item is a snapshot of one batch entry.
type Item struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	MimeType    string             `json:"mime_type"`
	Size        int64              `json:"size"`
	Status      process.JobStatus  `json:"status"`
	Error       string             `json:"error,omitempty"`
	FailureType schema.FailureType `json:"failure_type,omitempty"`
	Progress    int                `json:"progress"`

	Output      *media.File `json:"-"`
	OutputName  string      `json:"output_name,omitempty"`
	OutputSize  int64       `json:"output_size,omitempty"`
	Quality     float64     `json:"quality,omitempty"`
	Attempts    int         `json:"attempts,omitempty"`
	TagsRemoved int         `json:"tags_removed,omitempty"`
}

type entry struct {
	source media.File
	job    *process.Job
	item   Item
}

func (e *entry) snapshot() Item {
	it := e.item
	it.Status = e.job.Status
	it.Error = e.job.Error
	if e.item.Output != nil {
		out := *e.item.Output
		it.Output = &out
	}
	return it
}

// Batch is an ordered list of items. Only the running loop mutates an
// item while it is processed; readers get copies.
type Batch struct {
	ID        string
	Operation Operation
	Format    media.Format
	Page      int
	Scale     float64
	CreatedAt time.Time

	allow media.AllowList

	mu       sync.RWMutex
	entries  []*entry
	rejected int
	running  bool
	started  time.Time
	finished time.Time
}

// Intake creates a batch from the files that pass the operation's
// allow-list. Rejected files never become items and are only counted. A
// batch with no accepted file is a validation error.
func Intake(opts Options, files []media.File) (*Batch, error) {
	op, err := ParseOperation(string(opts.Operation))
	if err != nil {
		return nil, err
	}

	b := &Batch{
		ID:        opts.ID,
		Operation: op,
		Page:      opts.Page,
		Scale:     opts.Scale,
		CreatedAt: time.Now(),
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}

	switch op {
	case OpConvert:
		format, err := media.ParseFormat(opts.Format)
		if err != nil {
			return nil, err
		}
		b.Format = format
		b.allow = media.ConverterAllowList(opts.MaxSourceBytes)
	case OpCompress:
		b.allow = media.CompressorAllowList()
	}

	accepted, rejected := b.Add(files)
	if accepted == 0 {
		return nil, media.Errorf(media.KindValidation, nil, "no acceptable files (%d rejected)", rejected)
	}
	return b, nil
}

// Add appends files that pass the allow-list and reports how many were
// accepted and rejected.
func (b *Batch) Add(files []media.File) (accepted, rejected int) {
	ok, rejected := b.allow.Filter(files)

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, f := range ok {
		id := uuid.NewString()
		kind := process.KindConvert
		if b.Operation == OpCompress {
			kind = process.KindCompress
		}
		b.entries = append(b.entries, &entry{
			source: f,
			job:    process.NewJob(kind, id, f.Name),
			item: Item{
				ID:       id,
				Name:     f.Name,
				MimeType: f.MimeType,
				Size:     f.Size(),
			},
		})
	}
	b.rejected += rejected
	return len(ok), rejected
}

// Items returns copies of all items in input order.
func (b *Batch) Items() []Item {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Item, 0, len(b.entries))
	for _, e := range b.entries {
		out = append(out, e.snapshot())
	}
	return out
}

func (b *Batch) Item(id string) (Item, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, e := range b.entries {
		if e.item.ID == id {
			return e.snapshot(), true
		}
	}
	return Item{}, false
}

func (b *Batch) Rejected() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.rejected
}

func (b *Batch) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

// Remove drops a pending item. Items already processed or in flight stay.
func (b *Batch) Remove(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.item.ID != id {
			continue
		}
		if e.job.Status != process.JobStatusPending {
			return media.Errorf(media.KindValidation, nil, "item %s is %s, only pending items can be removed", id, e.job.Status)
		}
		b.entries = append(b.entries[:i], b.entries[i+1:]...)
		return nil
	}
	return media.Errorf(media.KindValidation, nil, "item %s not found", id)
}

// Clear drops every item and its output.
func (b *Batch) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.running {
		return ErrRunning
	}
	for _, e := range b.entries {
		e.item.Output = nil
		e.source.Data = nil
	}
	b.entries = nil
	return nil
}

// Summary is reported once a run ends.
type Summary struct {
	BatchID  string        `json:"batch_id"`
	Stats    Stats         `json:"stats"`
	Elapsed  time.Duration `json:"elapsed"`
	Canceled bool          `json:"canceled"`
}

// Hooks receive notifications from Run. All fields are optional.
type Hooks struct {
	Progress convert.Observer
	OnItem   func(Item)
	OnDone   func(Summary)
}

// Run processes every pending item sequentially in input order. A failed
// item is recorded and the loop continues. Cancelling ctx stops the loop
// and leaves the remaining items pending; ctx.Err() is returned then.
func (b *Batch) Run(ctx context.Context, eng Engine, hooks Hooks) (Summary, error) {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return Summary{}, ErrRunning
	}
	b.running = true
	b.started = time.Now()
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.running = false
		b.finished = time.Now()
		b.mu.Unlock()
	}()

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		e := b.next()
		if e == nil {
			break
		}
		b.process(ctx, eng, e, hooks)
	}

	summary := Summary{
		BatchID:  b.ID,
		Stats:    b.Stats(),
		Elapsed:  b.Elapsed(),
		Canceled: runErr != nil,
	}
	if runErr == nil && hooks.OnDone != nil {
		hooks.OnDone(summary)
	}
	return summary, runErr
}

// next marks the first pending entry as running.
func (b *Batch) next() *entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.job.Status != process.JobStatusPending {
			continue
		}
		if err := process.MarkRunning(e.job); err != nil {
			continue
		}
		return e
	}
	return nil
}

func (b *Batch) process(ctx context.Context, eng Engine, e *entry, hooks Hooks) {
	notify := func() {
		if hooks.OnItem != nil {
			b.mu.RLock()
			it := e.snapshot()
			b.mu.RUnlock()
			hooks.OnItem(it)
		}
	}
	notify()

	obs := convert.Observers{
		convert.ObserverFunc(func(ev convert.Event) {
			b.mu.Lock()
			e.item.Progress = ev.Percent
			b.mu.Unlock()
		}),
		hooks.Progress,
	}

	output, extra, err := b.runOne(ctx, eng, e, obs)

	b.mu.Lock()
	if err != nil {
		_ = process.MarkFailed(e.job, errors.New(convert.Reason(err)))
		e.item.FailureType = convert.ClassifyError(err)
	} else {
		_ = process.MarkSucceeded(e.job)
		e.item.Output = output
		e.item.OutputName = output.Name
		e.item.OutputSize = output.Size()
		e.item.Progress = 100
		if extra != nil {
			e.item.Quality = extra.Quality
			e.item.Attempts = extra.Attempts
			e.item.TagsRemoved = extra.MetadataTagsRemoved
		}
	}
	b.mu.Unlock()
	notify()
}

func (b *Batch) runOne(ctx context.Context, eng Engine, e *entry, obs convert.Observer) (*media.File, *convert.Compression, error) {
	switch b.Operation {
	case OpCompress:
		c, err := eng.Compress(ctx, e.source, e.item.ID, obs)
		if err != nil {
			return nil, nil, err
		}
		return &c.Output, c, nil
	default:
		res := eng.Convert(ctx, convert.Request{
			Source: e.source,
			Format: string(b.Format),
			Page:   b.Page,
			Scale:  b.Scale,
			ItemID: e.item.ID,
		}, obs)
		if res.Err != nil {
			return nil, nil, res.Err
		}
		if res.Output == nil {
			return nil, nil, fmt.Errorf("%s: conversion produced no output", e.source.Name)
		}
		return res.Output, nil, nil
	}
}

// Elapsed is the duration of the last run, or of the current one.
func (b *Batch) Elapsed() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.started.IsZero():
		return 0
	case b.running || b.finished.IsZero():
		return time.Since(b.started)
	}
	return b.finished.Sub(b.started)
}
