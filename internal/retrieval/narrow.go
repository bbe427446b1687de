package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

// Narrow keeps the topK tables closest to the question, plus the tables they
// reference through foreign keys so joins remain possible. A topK of zero, or
// one covering every table, returns s unchanged.
func Narrow(ctx context.Context, emb ai.Embedder, s *datasource.Schema, question string, topK int, opts BuildOptions) (*datasource.Schema, error) {
	if s == nil || topK <= 0 || topK >= len(s.Tables) {
		return s, nil
	}
	idx, err := BuildIndex(ctx, emb, s, opts)
	if err != nil {
		return nil, err
	}
	qv, err := emb.Embed(ctx, opts.EmbedModel, []string{question})
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}
	if len(qv) == 0 {
		return nil, fmt.Errorf("embed question: empty response")
	}
	var names []string
	seen := map[string]bool{}
	keep := func(name string) {
		k := strings.ToLower(name)
		if !seen[k] {
			seen[k] = true
			names = append(names, name)
		}
	}
	for _, r := range idx.Search(qv[0], topK, -1) {
		keep(r.Table)
		t, _ := s.Table(r.Table)
		for _, c := range t.Columns {
			if c.References != nil {
				keep(c.References.Table)
			}
		}
	}
	return s.Subset(names), nil
}
