package narrative

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sqlquest-cli/internal/ai"
	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

type fakeRuntime struct {
	reply string
	err   error
	got   ai.GenerateRequest
}

func (f *fakeRuntime) Generate(_ context.Context, req ai.GenerateRequest) (*ai.GenerateResponse, error) {
	f.got = req
	if f.err != nil {
		return nil, f.err
	}
	return &ai.GenerateResponse{
		Choices: []ai.Choice{{Message: ai.Message{Content: f.reply}}},
		Usage:   ai.Usage{TotalTokens: 42},
	}, nil
}

type fakeStreamer struct {
	fakeRuntime
	chunks []string
}

func (f *fakeStreamer) GenerateStream(_ context.Context, req ai.GenerateRequest, onDelta func(string)) error {
	f.got = req
	for _, c := range f.chunks {
		onDelta(c)
	}
	return f.err
}

func sampleInput(tone Tone) Input {
	rs := &datasource.ResultSet{Columns: []string{"region", "revenue"}}
	for i, r := range []string{"North", "South", "East", "West", "Central", "Islands"} {
		rs.Rows = append(rs.Rows, []any{r, float64(100 * (i + 1))})
	}
	frame := &analysis.Frame{Columns: rs.Columns, Rows: rs.Rows}
	return Input{
		Question: "Show me the total revenue by region",
		SQL:      "SELECT region, SUM(total_amount) AS revenue FROM sales GROUP BY region",
		Result:   rs,
		Analysis: analysis.Analyze(frame),
		Tone:     tone,
	}
}

func TestParseTone(t *testing.T) {
	tone, err := ParseTone(" Casual ")
	require.NoError(t, err)
	assert.Equal(t, ToneCasual, tone)
	_, err = ParseTone("pirate")
	require.ErrorIs(t, err, ErrUnknownTone)
}

func TestToneInstructions(t *testing.T) {
	assert.Equal(t, "Use a professional, concise, and formal tone with precise language.", ToneFormal.Instructions())
	assert.Equal(t, "Use a conversational, friendly, and easy-to-understand tone.", ToneCasual.Instructions())
}

func TestBuildPromptSections(t *testing.T) {
	p, err := BuildPrompt(sampleInput(ToneFormal))
	require.NoError(t, err)
	order := []string{
		"Original question: Show me the total revenue by region",
		"SQL query: SELECT region",
		"Data shape: 6 rows, 2 columns",
		"Columns: region, revenue",
		"Sample data:",
		"Analysis:\n{",
		"Use a professional, concise, and formal tone",
		"The narrative should be 3-5 paragraphs",
	}
	last := -1
	for _, s := range order {
		i := strings.Index(p, s)
		require.GreaterOrEqual(t, i, 0, "missing %q", s)
		assert.Greater(t, i, last, "%q out of order", s)
		last = i
	}
	assert.Contains(t, p, "Central")
	assert.NotContains(t, p, "Islands", "only the first 5 rows are sampled")
	assert.Contains(t, p, `"numerical_stats"`)
}

func TestGenerate(t *testing.T) {
	rt := &fakeRuntime{reply: "\n## Revenue\nWest leads.\n"}
	g := NewGenerator(rt, Options{Model: "mistral-large-latest"})
	res, err := g.Generate(context.Background(), sampleInput(ToneCasual))
	require.NoError(t, err)
	assert.Equal(t, "## Revenue\nWest leads.", res.Text)
	assert.Equal(t, 42, res.Usage.TotalTokens)
	require.Len(t, rt.got.Messages, 2)
	assert.Equal(t, SystemMessage, rt.got.Messages[0].Content)
	assert.Contains(t, rt.got.Messages[1].Content, "conversational")
	assert.Equal(t, 2048, rt.got.MaxTokens)
	require.NotNil(t, rt.got.Temperature)
	assert.InDelta(t, 0.1, *rt.got.Temperature, 1e-9)
}

func TestGenerateKeepsZeroTemperature(t *testing.T) {
	rt := &fakeRuntime{reply: "Flat."}
	_, err := NewGenerator(rt, Options{Temperature: ai.Temp(0)}).Generate(context.Background(), sampleInput(ToneFormal))
	require.NoError(t, err)
	require.NotNil(t, rt.got.Temperature)
	assert.Zero(t, *rt.got.Temperature)
}

func TestGenerateErrorAndFallback(t *testing.T) {
	g := NewGenerator(&fakeRuntime{err: errors.New("boom")}, Options{})
	_, err := g.Generate(context.Background(), sampleInput(ToneFormal))
	require.Error(t, err)
	assert.Equal(t, "Unable to generate insights due to an error: generate narrative: boom", FallbackText(err))

	_, err = NewGenerator(&fakeRuntime{reply: "   "}, Options{}).Generate(context.Background(), sampleInput(ToneFormal))
	require.Error(t, err)
}

func TestStreamUsesStreamingRuntime(t *testing.T) {
	rt := &fakeStreamer{chunks: []string{"West ", "leads ", "revenue."}}
	var got []string
	res, err := NewGenerator(rt, Options{}).Stream(context.Background(), sampleInput(ToneFormal), func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, []string{"West ", "leads ", "revenue."}, got)
	assert.Equal(t, "West leads revenue.", res.Text)
	assert.Positive(t, res.Usage.TotalTokens)
}

func TestStreamFallsBackToGenerate(t *testing.T) {
	var got []string
	res, err := NewGenerator(&fakeRuntime{reply: "done"}, Options{}).Stream(context.Background(), sampleInput(ToneFormal), func(d string) { got = append(got, d) })
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)
	assert.Equal(t, []string{"done"}, got)
}

func TestBuildPromptNoRows(t *testing.T) {
	in := Input{Question: "q", SQL: "SELECT 1", Result: &datasource.ResultSet{Columns: []string{"x"}}, Analysis: analysis.Analyze(nil), Tone: ToneFormal}
	p, err := BuildPrompt(in)
	require.NoError(t, err)
	assert.Contains(t, p, "Data shape: 0 rows, 1 columns")
	assert.Contains(t, p, `"error": "No data to analyze"`)
}
