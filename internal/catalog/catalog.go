// Package catalog supplies the static enumerations (insurance types and
// tones) the wizard offers. They are fetched once and cached; a failed load
// is logged and left for a later retry rather than shown to the user.
package catalog

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kingrea/insurecontent/internal/content"
	"github.com/kingrea/insurecontent/internal/logbook"
)

// Source fetches the enumerations.
type Source interface {
	ListInsuranceTypes(ctx context.Context) (content.Options, error)
	ListTones(ctx context.Context) (content.Options, error)
}

// Provider caches the enumerations after the first successful load.
type Provider struct {
	source Source
	book   *logbook.Logbook

	mu     sync.RWMutex
	types  content.Options
	tones  content.Options
	loaded bool
}

// New creates a provider backed by source. book may be nil.
func New(source Source, book *logbook.Logbook) *Provider {
	return &Provider{source: source, book: book}
}

// Load fetches both lists in parallel unless they are already cached.
func (p *Provider) Load(ctx context.Context) error {
	if p.Loaded() {
		return nil
	}
	var types, tones content.Options
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		types, err = p.source.ListInsuranceTypes(gctx)
		if err != nil {
			return fmt.Errorf("catalog: insurance types: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		tones, err = p.source.ListTones(gctx)
		if err != nil {
			return fmt.Errorf("catalog: tones: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		p.book.Warn("Failed to load options: %v", err)
		return err
	}
	p.mu.Lock()
	p.types = types
	p.tones = tones
	p.loaded = true
	p.mu.Unlock()
	p.book.Info("Loaded %d insurance types and %d tones", len(types), len(tones))
	return nil
}

// Loaded reports whether both lists are cached.
func (p *Provider) Loaded() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.loaded
}

// InsuranceTypes returns the cached insurance types.
func (p *Provider) InsuranceTypes() content.Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append(content.Options(nil), p.types...)
}

// Tones returns the cached tones.
func (p *Provider) Tones() content.Options {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append(content.Options(nil), p.tones...)
}

// InsuranceTypeLabel resolves a display label, humanizing unknown values.
func (p *Provider) InsuranceTypeLabel(value string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.types.Label(value)
}

// ToneLabel resolves a display label, humanizing unknown values.
func (p *Provider) ToneLabel(value string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tones.Label(value)
}
