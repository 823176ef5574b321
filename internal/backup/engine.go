package backup

import (
	"context"
	"fmt"
	"threadmark/internal/services"
	"time"

	json "github.com/goccy/go-json"
)

type Mode string

const (
	// ModeReplace makes the imported table the entire store.
	ModeReplace Mode = "replace"
	// ModeMerge overlays imported records onto the store by thread id.
	// An imported record replaces the stored one wholesale.
	ModeMerge Mode = "merge"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeReplace, ModeMerge:
		return Mode(s), nil
	case "":
		return ModeMerge, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

type ImportResult struct {
	Mode     Mode `json:"mode"`
	Imported int  `json:"imported"`
	Total    int  `json:"total"`
}

type EngineInterface interface {
	Export(ctx context.Context) (*Document, error)
	ExportJSON(ctx context.Context) ([]byte, error)
	Import(ctx context.Context, data []byte, mode Mode) (*ImportResult, error)
}

type Engine struct {
	service services.ProgressServiceInterface
	now     func() time.Time
}

func NewEngine(service services.ProgressServiceInterface) EngineInterface {
	return &Engine{service: service, now: time.Now}
}

func (e *Engine) Export(ctx context.Context) (*Document, error) {
	table, err := e.service.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Document{
		SchemaVersion: CurrentSchemaVersion,
		ExportedAt:    e.now().UnixMilli(),
		ThreadsByID:   table,
	}, nil
}

func (e *Engine) ExportJSON(ctx context.Context) ([]byte, error) {
	doc, err := e.Export(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Import validates the whole document before touching the store.
func (e *Engine) Import(ctx context.Context, data []byte, mode Mode) (*ImportResult, error) {
	if mode != ModeReplace && mode != ModeMerge {
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}

	if mode == ModeReplace {
		err = e.service.ReplaceAll(ctx, doc.ThreadsByID)
	} else {
		err = e.service.MergeAll(ctx, doc.ThreadsByID)
	}
	if err != nil {
		return nil, err
	}
	return &ImportResult{
		Mode:     mode,
		Imported: len(doc.ThreadsByID),
		Total:    e.service.Count(),
	}, nil
}
