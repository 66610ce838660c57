package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/branchtale/gamebook-engine/pkg/cache"
	"github.com/branchtale/gamebook-engine/pkg/markdown"
	"github.com/branchtale/gamebook-engine/pkg/state"
)

// NarratorNode produces the Narrative for the current section, grounded on
// spec §4.2 and the original's narrator_agent (cache-hit / raw-load /
// format / cache-save) and on the teacher's internal/storage/narrator.go
// file-lookup-with-miss-handling shape.
type NarratorNode struct {
	store  cache.Store
	logger *slog.Logger
}

func NewNarratorNode(store cache.Store, logger *slog.Logger) *NarratorNode {
	return &NarratorNode{store: store, logger: logger}
}

var _ Node = (*NarratorNode)(nil)

func (n *NarratorNode) Run(ctx context.Context, s *state.GameState) (*state.GameState, error) {
	section := s.SectionNumber
	key := strconv.Itoa(section)

	if cached, ok, err := n.store.GetCached(ctx, cache.NamespaceCachedSections, key); err != nil {
		n.logger.Warn("narrator cache read failed, treating as miss", "section", section, "error", err)
	} else if ok {
		narrative := (&state.Narrative{
			SectionNumber: section,
			Content:       string(cached),
			SourceType:    state.SourceProcessed,
			Timestamp:     nowUTC(),
		}).WithTag(state.TagNarrator)
		return &state.GameState{SectionNumber: section, Narrative: narrative}, nil
	}

	raw, ok, err := n.store.LoadRaw(ctx, cache.NamespaceSections, key+".md")
	if err != nil {
		return nil, fmt.Errorf("engine: narrator load raw section %d: %w", section, err)
	}
	if !ok {
		narrative := (&state.Narrative{
			SectionNumber: section,
			SourceType:    state.SourceError,
			Error:         fmt.Sprintf("section %d not found", section),
			Timestamp:     nowUTC(),
		}).WithTag(state.TagNarrator)
		return &state.GameState{SectionNumber: section, Narrative: narrative}, nil
	}

	formatted, usedFallback := markdown.FormatNarrative(raw)
	if usedFallback {
		n.logger.Debug("narrator used manual formatting fallback", "section", section)
	}

	if err := n.store.SaveCached(ctx, cache.NamespaceCachedSections, key, []byte(formatted)); err != nil {
		n.logger.Warn("narrator cache save failed", "section", section, "error", err)
	}

	narrative := (&state.Narrative{
		SectionNumber: section,
		Content:       formatted,
		SourceType:    state.SourceProcessed,
		Timestamp:     nowUTC(),
	}).WithTag(state.TagNarrator)

	return &state.GameState{SectionNumber: section, Narrative: narrative}, nil
}

func nowUTC() time.Time { return time.Now().UTC() }
