// Package retrieval narrows a large schema to the tables most relevant to a
// question, using embeddings cached per schema fingerprint.
package retrieval

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
	"github.com/KaramelBytes/sqlquest-cli/internal/utils"
)

const indexVersion = 1

// Record is one embedded table description.
type Record struct {
	Table  string    `json:"table"`
	Hash   string    `json:"hash"`
	Text   string    `json:"text"`
	Vector []float32 `json:"vector"`
}

type Index struct {
	Records []Record  `json:"records"`
	Meta    IndexMeta `json:"meta"`
}

type IndexMeta struct {
	IndexVersion  int       `json:"index_version"`
	Fingerprint   string    `json:"fingerprint"`
	EmbedProvider string    `json:"embed_provider"`
	EmbedModel    string    `json:"embed_model"`
	EmbedDim      int       `json:"embed_dim"`
	CreatedAt     time.Time `json:"created_at"`
}

func (idx *Index) Save(path string) error {
	if idx == nil {
		return errors.New("nil index")
	}
	b, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(path, b)
}

func Load(path string) (*Index, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var idx Index
	if err := json.Unmarshal(b, &idx); err != nil {
		return nil, err
	}
	return &idx, nil
}

// IndexPath names the cache file for a schema fingerprint.
func IndexPath(cacheDir, fingerprint string) string {
	if len(fingerprint) > 16 {
		fingerprint = fingerprint[:16]
	}
	return filepath.Join(cacheDir, "schema-"+fingerprint+".json")
}

// metaCompatible reports whether a cached index can serve the current request.
func metaCompatible(prev, cur IndexMeta) bool {
	if prev.IndexVersion != cur.IndexVersion || prev.Fingerprint != cur.Fingerprint {
		return false
	}
	if prev.EmbedProvider != "" && cur.EmbedProvider != "" && prev.EmbedProvider != cur.EmbedProvider {
		return false
	}
	if prev.EmbedModel != "" && cur.EmbedModel != "" && prev.EmbedModel != cur.EmbedModel {
		return false
	}
	return true
}

// DescribeTable renders the text that gets embedded for a table.
func DescribeTable(t datasource.Table) string {
	var sb strings.Builder
	sb.WriteString("Table ")
	sb.WriteString(t.Name)
	sb.WriteString(" with columns: ")
	for i, c := range t.Columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(strings.ReplaceAll(c.Name, "_", " "))
		sb.WriteString(" (")
		sb.WriteString(c.Type)
		if c.PrimaryKey {
			sb.WriteString(", primary key")
		}
		if c.References != nil {
			fmt.Fprintf(&sb, ", references %s", c.References.Table)
		}
		sb.WriteString(")")
	}
	return sb.String()
}

func hash(s string) string {
	sum := sha1.Sum([]byte(s))
	return fmt.Sprintf("%x", sum[:])
}

// Fingerprint identifies a schema by dialect and table descriptions.
func Fingerprint(s *datasource.Schema) string {
	var sb strings.Builder
	sb.WriteString(s.Dialect)
	for _, t := range s.Tables {
		sb.WriteString("\n")
		sb.WriteString(DescribeTable(t))
	}
	return hash(sb.String())
}

// Cosine similarity between two vectors. Returns 0 if dimensions mismatch.
func CosineSim(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	var na, nb float64
	for i := range a {
		fa := float64(a[i])
		fb := float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type BuildOptions struct {
	Force         bool
	CacheDir      string
	EmbedProvider string
	EmbedModel    string
}

// BuildIndex embeds every table description, or loads the cached index when
// the schema fingerprint and embedding settings match.
func BuildIndex(ctx context.Context, emb ai.Embedder, s *datasource.Schema, opts BuildOptions) (*Index, error) {
	if s == nil || len(s.Tables) == 0 {
		return nil, errors.New("schema has no tables")
	}
	cur := IndexMeta{
		IndexVersion:  indexVersion,
		Fingerprint:   Fingerprint(s),
		EmbedProvider: opts.EmbedProvider,
		EmbedModel:    opts.EmbedModel,
		CreatedAt:     time.Now(),
	}
	path := ""
	if opts.CacheDir != "" {
		path = IndexPath(opts.CacheDir, cur.Fingerprint)
		if !opts.Force {
			if prev, err := Load(path); err == nil && metaCompatible(prev.Meta, cur) && len(prev.Records) == len(s.Tables) {
				return prev, nil
			}
		}
	}

	texts := make([]string, len(s.Tables))
	for i, t := range s.Tables {
		texts[i] = DescribeTable(t)
	}
	vecs, err := emb.Embed(ctx, opts.EmbedModel, texts)
	if err != nil {
		return nil, fmt.Errorf("embed tables: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed tables: got %d vectors for %d tables", len(vecs), len(texts))
	}
	idx := &Index{Meta: cur}
	for i, t := range s.Tables {
		idx.Records = append(idx.Records, Record{Table: t.Name, Hash: hash(texts[i]), Text: texts[i], Vector: vecs[i]})
	}
	if len(vecs[0]) > 0 {
		idx.Meta.EmbedDim = len(vecs[0])
	}
	sort.Slice(idx.Records, func(i, j int) bool { return idx.Records[i].Table < idx.Records[j].Table })
	if path != "" {
		if err := idx.Save(path); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

// Search returns top-k records above the minScore threshold, sorted by descending score.
func (idx *Index) Search(query []float32, topK int, minScore float64) []Record {
	type scored struct {
		rec   Record
		score float64
	}
	scoredRecs := make([]scored, 0, len(idx.Records))
	for _, r := range idx.Records {
		s := CosineSim(query, r.Vector)
		if s >= minScore {
			scoredRecs = append(scoredRecs, scored{rec: r, score: s})
		}
	}
	sort.SliceStable(scoredRecs, func(i, j int) bool { return scoredRecs[i].score > scoredRecs[j].score })
	if topK > 0 && len(scoredRecs) > topK {
		scoredRecs = scoredRecs[:topK]
	}
	out := make([]Record, len(scoredRecs))
	for i, s := range scoredRecs {
		out[i] = s.rec
	}
	return out
}
