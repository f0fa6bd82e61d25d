package rag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/ragflow/types"
)

// ContextBuilderConfig bounds the assembled context.
type ContextBuilderConfig struct {
	// MaxContextChars caps the concatenated context text. Zero means 16000.
	MaxContextChars int
}

// ContextBuilder turns search matches into the bounded context bundle handed
// to the response generator. FormatContext is a pure function of its input;
// the builder holds only configuration.
type ContextBuilder struct {
	cfg ContextBuilderConfig
}

func NewContextBuilder(cfg ContextBuilderConfig) *ContextBuilder {
	if cfg.MaxContextChars <= 0 {
		cfg.MaxContextChars = 16000
	}
	return &ContextBuilder{cfg: cfg}
}

// FormatContext deduplicates matches by ID, orders them best first and
// concatenates their contents under the character budget. Matches with no
// content are skipped. An empty input yields an empty bundle, never an error.
func (b *ContextBuilder) FormatContext(matches []types.SearchMatch) types.ContextBundle {
	bundle := types.ContextBundle{
		Analysis: types.SourceAnalysis{ByType: map[string]int{}},
		Sources:  []string{},
	}
	if len(matches) == 0 {
		return bundle
	}

	deduped := make([]types.SearchMatch, 0, len(matches))
	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m.ID == "" || seen[m.ID] {
			continue
		}
		seen[m.ID] = true
		deduped = append(deduped, m)
	}
	sort.SliceStable(deduped, func(i, j int) bool { return deduped[i].Score > deduped[j].Score })

	var ctx strings.Builder
	seenSource := make(map[string]bool)
	for _, m := range deduped {
		if m.Content == "" {
			continue
		}

		section := b.renderSection(m)
		if ctx.Len() > 0 && ctx.Len()+len(section) > b.cfg.MaxContextChars {
			break
		}

		if ctx.Len() > 0 {
			ctx.WriteString("\n\n")
		}
		ctx.WriteString(section)

		fileType := matchFileType(m)
		bundle.Analysis.Total++
		bundle.Analysis.ByType[fileType]++

		if src := matchSource(m); src != "" && !seenSource[src] {
			seenSource[src] = true
			bundle.Sources = append(bundle.Sources, src)
		}
	}

	bundle.Context = ctx.String()
	return bundle
}

// renderSection labels each excerpt with its origin so the model can cite it.
func (b *ContextBuilder) renderSection(m types.SearchMatch) string {
	header := matchSource(m)
	if header == "" {
		header = m.ID
	}
	if unit, ok := m.Metadata["unit_name"].(string); ok && unit != "" {
		header = fmt.Sprintf("%s (%s)", header, unit)
	}
	return fmt.Sprintf("--- %s ---\n%s", header, m.Content)
}

func matchSource(m types.SearchMatch) string {
	if src, ok := m.Metadata["source"].(string); ok {
		return src
	}
	return ""
}

func matchFileType(m types.SearchMatch) string {
	if ft, ok := m.Metadata["file_type"].(string); ok && ft != "" {
		return ft
	}
	return string(FileTypeCode)
}
