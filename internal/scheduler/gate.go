package scheduler

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/parlcrawl/internal/crawler"
)

// profileGate makes Exists, Fetch and Save effectively atomic per profile.
// Profiles are keyed by document type and entity id together. Within a run
// each key is resolved once; concurrent or later duplicates are reported as
// such and skipped by the caller.
type profileGate struct {
	store crawler.ProfileStore
	fetch func(ctx context.Context, req crawler.Request) (crawler.Document, error)

	group   singleflight.Group
	mu      sync.Mutex
	handled map[string]struct{}
}

func newProfileGate(
	store crawler.ProfileStore,
	fetch func(ctx context.Context, req crawler.Request) (crawler.Document, error),
) *profileGate {
	return &profileGate{
		store:   store,
		fetch:   fetch,
		handled: make(map[string]struct{}),
	}
}

// resolve returns the profile document, loading it from the store when it
// was persisted earlier and fetching and saving it otherwise. duplicate is
// true when another request for the same id owns the work.
func (g *profileGate) resolve(ctx context.Context, req crawler.Request) (doc crawler.Document, duplicate bool, err error) {
	id := crawler.ProfileID(req.Type, req.Context.EntityID)
	if g.alreadyHandled(id) {
		return crawler.Document{}, true, nil
	}

	leader := false
	v, err, _ := g.group.Do(id, func() (any, error) {
		leader = true
		if g.markHandled(id) {
			return nil, errDuplicate
		}
		return g.load(ctx, id, req)
	})
	if !leader || err == errDuplicate {
		return crawler.Document{}, true, nil
	}
	if err != nil {
		return crawler.Document{}, false, err
	}
	return v.(crawler.Document), false, nil
}

func (g *profileGate) load(ctx context.Context, id string, req crawler.Request) (crawler.Document, error) {
	exists, err := g.store.Exists(ctx, id)
	if err != nil {
		return crawler.Document{}, fmt.Errorf("check profile %s: %w", id, err)
	}
	if exists {
		blob, err := g.store.Load(ctx, id)
		if err != nil {
			return crawler.Document{}, fmt.Errorf("load profile %s: %w", id, err)
		}
		return crawler.Document{
			Request:   req,
			URL:       req.URL,
			Body:      blob,
			FromStore: true,
		}, nil
	}

	doc, err := g.fetch(ctx, req)
	if err != nil {
		return crawler.Document{}, err
	}
	key := crawler.ProfileKey{EntityID: id, DisplayName: req.Context.DisplayName}
	// The document is already fetched; persist it even if the run is stopping.
	if err := g.store.Save(context.WithoutCancel(ctx), key, doc.Body); err != nil {
		return crawler.Document{}, fmt.Errorf("save profile %s: %w", id, err)
	}
	return doc, nil
}

func (g *profileGate) alreadyHandled(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.handled[id]
	return ok
}

// markHandled records id and reports whether it was already present.
func (g *profileGate) markHandled(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.handled[id]; ok {
		return true
	}
	g.handled[id] = struct{}{}
	return false
}
