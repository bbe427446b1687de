package viz

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

func rs(cols []string, rows ...[]any) *datasource.ResultSet {
	return &datasource.ResultSet{Columns: cols, Rows: rows}
}

func TestNotEnoughData(t *testing.T) {
	for _, r := range []*datasource.ResultSet{nil, rs([]string{"a"}), rs([]string{"a"}, []any{int64(1)})} {
		fig := Select("compare anything", r)
		want := &Figure{
			Kind: KindMessage,
			Data: []Trace{},
			Layout: Layout{Annotations: []Annotation{{
				Text: MsgNotEnoughData, XRef: "paper", YRef: "paper", X: 0.5, Y: 0.5, Font: Font{Size: 20},
			}}},
		}
		if diff := cmp.Diff(want, fig); diff != "" {
			t.Fatalf("figure mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestNoAppropriateChart(t *testing.T) {
	fig := Select("which dates", rs([]string{"d"}, []any{"2024-01-01"}, []any{"2024-02-01"}))
	assert.Equal(t, KindMessage, fig.Kind)
	assert.Equal(t, MsgNoChart, fig.Title())
	assert.Equal(t, 16, fig.Layout.Annotations[0].Font.Size)
}

func TestGroupedBarComparison(t *testing.T) {
	r := rs([]string{"gender", "salary"},
		[]any{"F", 100.0}, []any{"M", 80.0}, []any{"F", 50.0}, []any{"M", 120.0})
	fig := Select("Compare salary by gender", r)
	want := &Figure{
		Kind: KindGroupedBar,
		Data: []Trace{
			{Type: "bar", Name: "F", X: []any{"Mean", "Minimum", "Maximum"}, Y: []any{75.0, 50.0, 100.0},
				Text: []string{"75.00", "50.00", "100.00"}, TextPosition: "auto"},
			{Type: "bar", Name: "M", X: []any{"Mean", "Minimum", "Maximum"}, Y: []any{100.0, 80.0, 120.0},
				Text: []string{"100.00", "80.00", "120.00"}, TextPosition: "auto"},
		},
		Layout: Layout{
			Title:   &Title{Text: "Comparison of salary by gender"},
			XAxis:   &Axis{Title: &Title{Text: "Statistic"}},
			YAxis:   &Axis{Title: &Title{Text: "Salary"}},
			BarMode: "group",
		},
	}
	if diff := cmp.Diff(want, fig); diff != "" {
		t.Fatalf("figure mismatch (-want +got):\n%s", diff)
	}
}

func TestBoxComparison(t *testing.T) {
	r := rs([]string{"department", "salary"},
		[]any{"Sales", 1.0}, []any{"Eng", 2.0}, []any{"Finance", 3.0}, []any{"Sales", 4.0})
	fig := Select("salary distribution across departments", r)
	require.Equal(t, KindBox, fig.Kind)
	assert.Equal(t, "Distribution of salary by department", fig.Title())
	require.Len(t, fig.Data, 3)
	assert.Equal(t, "Sales", fig.Data[0].Name)
	assert.Equal(t, []any{1.0, 4.0}, fig.Data[0].Y)
	assert.Equal(t, "all", fig.Data[0].BoxPoints)
}

func TestTimeSeriesSortsByDate(t *testing.T) {
	r := rs([]string{"month", "revenue"},
		[]any{"2023-03-01", int64(30)}, []any{"2023-01-01", int64(10)}, []any{"2023-02-01", int64(20)})
	fig := Select("How did revenue trend?", r)
	require.Equal(t, KindTimeSeries, fig.Kind)
	assert.Equal(t, "revenue over time", fig.Title())
	require.Len(t, fig.Data, 1)
	assert.Equal(t, []any{"2023-01-01", "2023-02-01", "2023-03-01"}, fig.Data[0].X)
	assert.Equal(t, []any{10.0, 20.0, 30.0}, fig.Data[0].Y)
	assert.Equal(t, "lines+markers", fig.Data[0].Mode)
	require.NotNil(t, fig.Layout.XAxis.RangeSlider)
	assert.True(t, fig.Layout.XAxis.RangeSlider.Visible)
	assert.Equal(t, "Month", fig.Layout.XAxis.Title.Text)
}

func TestTimeSeriesByCategory(t *testing.T) {
	r := rs([]string{"sale_date", "region", "total_amount"},
		[]any{"2023-01-02", "South", 5.0},
		[]any{"2023-01-01", "North", 1.0},
		[]any{"2023-01-03", "North", 2.0},
	)
	fig := Select("sales growth per day", r)
	require.Equal(t, KindTimeSeries, fig.Kind)
	assert.Equal(t, "total_amount over time by region", fig.Title())
	require.Len(t, fig.Data, 2)
	assert.Equal(t, "North", fig.Data[0].Name)
	assert.Equal(t, []any{"2023-01-01", "2023-01-03"}, fig.Data[0].X)
	assert.Equal(t, "South", fig.Data[1].Name)
}

func TestTimeSeriesManyCategoriesIsSingleLine(t *testing.T) {
	var rows [][]any
	for i := 0; i < 6; i++ {
		rows = append(rows, []any{fmt.Sprintf("2023-01-%02d", i+1), fmt.Sprintf("r%d", i), float64(i)})
	}
	fig := Select("daily trend", rs([]string{"d", "r", "v"}, rows...))
	require.Equal(t, KindTimeSeries, fig.Kind)
	assert.Len(t, fig.Data, 1)
	assert.Equal(t, "v over time", fig.Title())
}

func TestRelationshipScatter(t *testing.T) {
	r := rs([]string{"quantity", "total_amount", "region"},
		[]any{int64(1), 10.0, "North"}, []any{int64(3), 30.0, "South"}, []any{int64(2), 25.0, "East"})
	fig := Select("Is there a relationship between quantity and total amount?", r)
	require.Equal(t, KindScatter, fig.Kind)
	assert.Equal(t, "Relationship between quantity and total_amount", fig.Title())
	assert.Len(t, fig.Data, 3)
	assert.InDelta(t, 0.7, fig.Data[0].Opacity, 1e-9)
	want := []Shape{{Type: "line", X0: 1, Y0: 10, X1: 3, Y1: 30, Line: Line{Color: "rgba(255, 0, 0, 0.5)", Width: 1, Dash: "dot"}}}
	if diff := cmp.Diff(want, fig.Layout.Shapes); diff != "" {
		t.Fatalf("trend line mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "Total Amount", fig.Layout.YAxis.Title.Text)
}

func TestScatterWithoutKeyword(t *testing.T) {
	r := rs([]string{"price", "stock"}, []any{1.0, 2.0}, []any{3.0, 4.0})
	fig := Select("list products", r)
	require.Equal(t, KindScatter, fig.Kind)
	require.Len(t, fig.Data, 1)
	require.NotNil(t, fig.Data[0].Marker)
	assert.Equal(t, primaryColor, fig.Data[0].Marker.Color)
}

func TestBarTopTen(t *testing.T) {
	var rows [][]any
	for i := 1; i <= 12; i++ {
		rows = append(rows, []any{fmt.Sprintf("c%02d", i), float64(i)})
	}
	rows = append(rows, []any{"c01", 100.0})
	fig := Select("sales per product", rs([]string{"product", "revenue"}, rows...))
	require.Equal(t, KindBar, fig.Kind)
	assert.Equal(t, "Top 10 product by revenue", fig.Title())
	tr := fig.Data[0]
	require.Len(t, tr.X, 10)
	assert.Equal(t, "c04", tr.X[0])
	assert.Equal(t, 4.0, tr.Y[0])
	assert.Equal(t, "c01", tr.X[9])
	assert.Equal(t, 101.0, tr.Y[9])
	assert.Equal(t, "outside", tr.TextPosition)
}

func TestBarFewCategories(t *testing.T) {
	r := rs([]string{"region", "revenue"},
		[]any{"North", 5.0}, []any{"South", 2.0}, []any{"North", 1.0}, []any{nil, 9.0})
	fig := Select("revenue per region", r)
	require.Equal(t, KindBar, fig.Kind)
	assert.Equal(t, "revenue by region", fig.Title())
	assert.Equal(t, []any{"South", "North"}, fig.Data[0].X)
	assert.Equal(t, []any{2.0, 6.0}, fig.Data[0].Y)
}

func TestPieGroupsOthers(t *testing.T) {
	var rows [][]any
	for i := 0; i < 5; i++ {
		rows = append(rows, []any{"a"})
	}
	for i := 0; i < 4; i++ {
		rows = append(rows, []any{"b"})
	}
	for _, c := range []string{"c", "d", "e", "f", "g", "h", "i", "j"} {
		rows = append(rows, []any{c})
	}
	fig := Select("which categories", rs([]string{"category"}, rows...))
	require.Equal(t, KindPie, fig.Kind)
	tr := fig.Data[0]
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "Others"}, tr.Labels)
	assert.Equal(t, []float64{5, 4, 1, 1, 1, 1, 1, 3}, tr.Values)
	assert.InDelta(t, 0.4, tr.Hole, 1e-9)
	assert.Equal(t, "percent+label", tr.TextInfo)
	assert.Equal(t, "Distribution of category", fig.Title())
}

func TestHistogram(t *testing.T) {
	fig := Select("salaries", rs([]string{"salary"}, []any{1.0}, []any{nil}, []any{int64(3)}))
	require.Equal(t, KindHistogram, fig.Kind)
	assert.Equal(t, 20, fig.Data[0].NBinsX)
	assert.Equal(t, []any{1.0, 3.0}, fig.Data[0].X)
	assert.InDelta(t, 0.05, fig.Layout.BarGap, 1e-9)
	assert.Equal(t, "Distribution of salary", fig.Title())
}

func TestLabel(t *testing.T) {
	cases := map[string]string{
		"total_amount": "Total Amount",
		"sale_ID":      "Sale Id",
		"q1_revenue":   "Q1 Revenue",
		"region":       "Region",
	}
	for in, want := range cases {
		assert.Equal(t, want, Label(in), in)
	}
}

func TestRenderHTML(t *testing.T) {
	r := rs([]string{"region", "revenue"}, []any{"<script>", 1.0}, []any{"b", 2.0})
	fig := Select("revenue per region", r)
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, fig))
	page := buf.String()
	assert.Contains(t, page, PlotlyCDN)
	assert.Contains(t, page, "<title>revenue by region</title>")
	assert.Contains(t, page, `Plotly.newPlot("chart"`)
	assert.NotContains(t, page, `"<script>"`)
	assert.Contains(t, page, `\u003cscript\u003e`)
}

func TestFigureJSONShape(t *testing.T) {
	fig := Select("which categories", rs([]string{"c"}, []any{"x"}, []any{"y"}))
	b, err := json.Marshal(fig)
	require.NoError(t, err)
	s := string(b)
	assert.True(t, strings.HasPrefix(s, `{"kind":"pie","data":[{"type":"pie"`), s)
	assert.Contains(t, s, `"hole":0.4`)
}
