// Package file loads the system graph from a YAML or JSON document:
//
//	systems: [checkout, billing]
//	edges:
//	  - {from: billing, to: checkout, protocol: HTTP}
//	  - {from: billing, to: ledger, protocal: KAFKA}
package file

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/efebarandurmaz/impactgraph/internal/graph"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type document struct {
	Systems []string  `yaml:"systems"`
	Edges   []edgeDoc `yaml:"edges"`
}

type edgeDoc struct {
	From     string `yaml:"from"`
	To       string `yaml:"to"`
	Protocol any    `yaml:"protocol"`
	Protocal any    `yaml:"protocal"`
}

// Source reads the document from disk on every Load.
type Source struct {
	path     string
	watching atomic.Bool
}

// New returns a Source for path. The file is not read until Load.
func New(path string) *Source {
	return &Source{path: path}
}

// Load implements graph.Source.
func (s *Source) Load(ctx context.Context) (*graph.MemoryStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read graph file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a graph document. JSON input is accepted as YAML.
func Parse(data []byte) (*graph.MemoryStore, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse graph file: %w", err)
	}

	edges := make([]graph.Edge, 0, len(doc.Edges))
	for i, e := range doc.Edges {
		if e.From == "" || e.To == "" {
			return nil, fmt.Errorf("parse graph file: edge %d: from and to are required", i)
		}
		edges = append(edges, graph.Edge{
			From:     e.From,
			To:       e.To,
			Protocol: graph.NormalizeProtocol(e.Protocol, e.Protocal),
		})
	}
	return graph.NewMemoryStore(doc.Systems, edges), nil
}

// Ping reports whether the file is readable.
func (s *Source) Ping(ctx context.Context) error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	return f.Close()
}

// Close implements graph.Source.
func (s *Source) Close(ctx context.Context) error {
	return nil
}

// Watch calls onChange whenever the file is written, created, renamed or
// removed, until ctx is cancelled. The parent directory is watched so
// editors that replace the file atomically are still seen.
func (s *Source) Watch(ctx context.Context, onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	abs, err := filepath.Abs(s.path)
	if err != nil {
		_ = w.Close()
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		_ = w.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	s.watching.Store(true)
	go func() {
		defer s.watching.Store(false)
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != abs {
					continue
				}
				if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove) {
					slog.Debug("graph file changed", "path", abs, "op", ev.Op.String())
					onChange()
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				slog.Warn("graph file watcher error", "path", abs, "error", err)
			}
		}
	}()
	return nil
}

// Watching reports whether a Watch loop is running.
func (s *Source) Watching() bool {
	return s.watching.Load()
}

var _ graph.Source = (*Source)(nil)
