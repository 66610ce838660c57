package engine

import (
	"context"
	"testing"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

func TestNarratorNode_CacheHit(t *testing.T) {
	store := cache.NewMockStore()
	store.GetCachedFunc = func(ctx context.Context, ns cache.Namespace, key string) ([]byte, bool, error) {
		if ns == cache.NamespaceCachedSections && key == "3" {
			return []byte("<p>cached content</p>"), true, nil
		}
		return nil, false, nil
	}

	n := NewNarratorNode(store, discardLogger())
	update, err := n.Run(context.Background(), &state.GameState{SectionNumber: 3})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if update.Narrative.Content != "<p>cached content</p>" {
		t.Errorf("narrative.content = %q", update.Narrative.Content)
	}
	if update.Narrative.SourceType != state.SourceProcessed {
		t.Errorf("narrative.source_type = %v", update.Narrative.SourceType)
	}
	if len(store.LoadRawCalls) != 0 {
		t.Errorf("expected no raw load on a cache hit, got %+v", store.LoadRawCalls)
	}
}

func TestNarratorNode_MissingSection(t *testing.T) {
	store := cache.NewMockStore()
	n := NewNarratorNode(store, discardLogger())

	update, err := n.Run(context.Background(), &state.GameState{SectionNumber: 999})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if update.Narrative.SourceType != state.SourceError {
		t.Errorf("narrative.source_type = %v, want error", update.Narrative.SourceType)
	}
	if update.Narrative.Error == "" {
		t.Errorf("expected narrative.error to be set")
	}
	if len(store.SaveCachedCalls) != 0 {
		t.Errorf("expected a missing section not to populate the cache, got %+v", store.SaveCachedCalls)
	}
}

func TestNarratorNode_FormatsAndCachesRawContent(t *testing.T) {
	store := cache.NewMockStore()
	store.LoadRawFunc = func(ctx context.Context, ns cache.Namespace, key string) (string, bool, error) {
		if ns == cache.NamespaceSections && key == "5.md" {
			return "# A Dark Room\n\nYou see **nothing**.", true, nil
		}
		return "", false, nil
	}

	n := NewNarratorNode(store, discardLogger())
	update, err := n.Run(context.Background(), &state.GameState{SectionNumber: 5})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if update.Narrative.SourceType != state.SourceProcessed {
		t.Errorf("narrative.source_type = %v, want processed", update.Narrative.SourceType)
	}
	if update.Narrative.Content == "" {
		t.Errorf("expected formatted content, got empty string")
	}
	if len(store.SaveCachedCalls) != 1 || store.SaveCachedCalls[0].Namespace != cache.NamespaceCachedSections {
		t.Errorf("expected a cached_sections save, got %+v", store.SaveCachedCalls)
	}
}
