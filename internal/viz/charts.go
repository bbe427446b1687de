package viz

import (
	"fmt"
	"math"
	"sort"

	"github.com/KaramelBytes/sqlquest-cli/internal/analysis"
	"github.com/KaramelBytes/sqlquest-cli/internal/datasource"
)

const nullLabel = "(null)"

func key(v any) string {
	if v == nil {
		return nullLabel
	}
	return analysis.FormatValue(v)
}

// distinct counts non-null distinct values of column i.
func distinct(rs *datasource.ResultSet, i int) int {
	seen := map[string]bool{}
	for _, row := range rs.Rows {
		if row[i] != nil {
			seen[key(row[i])] = true
		}
	}
	return len(seen)
}

// groupOrder returns the distinct keys of column i in order of first appearance.
func groupOrder(rows [][]any, i int) []string {
	var out []string
	seen := map[string]bool{}
	for _, row := range rows {
		k := key(row[i])
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

func num(v any) (float64, bool) { return analysis.AsFloat(v) }

func timeSeries(rs *datasource.ResultSet, dateCol, valueCol, catCol int) *Figure {
	type point struct {
		row  []any
		x    string
		sort int64
		ok   bool
	}
	pts := make([]point, len(rs.Rows))
	for i, row := range rs.Rows {
		p := point{row: row}
		if t, ok := analysis.AsTime(row[dateCol]); ok {
			p.x, p.sort, p.ok = analysis.FormatValue(t), t.UnixNano(), true
		}
		pts[i] = p
	}
	// missing dates sort last
	sort.SliceStable(pts, func(i, j int) bool {
		if pts[i].ok != pts[j].ok {
			return pts[i].ok
		}
		return pts[i].sort < pts[j].sort
	})

	dateName, valueName := rs.Columns[dateCol], rs.Columns[valueCol]
	fig := &Figure{Kind: KindTimeSeries}
	fig.Layout.XAxis = axis(Label(dateName))
	fig.Layout.XAxis.RangeSlider = &RangeSlider{Visible: true}
	fig.Layout.YAxis = axis(Label(valueName))

	trace := func(name string) Trace {
		return Trace{Type: "scatter", Mode: "lines+markers", Name: name, X: []any{}, Y: []any{}}
	}
	add := func(t *Trace, p point) {
		var x any
		if p.ok {
			x = p.x
		}
		t.X = append(t.X, x)
		t.Y = append(t.Y, yValue(p.row[valueCol]))
	}

	if catCol >= 0 && distinct(rs, catCol) <= 5 {
		catName := rs.Columns[catCol]
		fig.Layout.Title = title(fmt.Sprintf("%s over time by %s", valueName, catName))
		fig.Layout.LegendTitle = title(Label(catName))
		sorted := make([][]any, len(pts))
		for i, p := range pts {
			sorted[i] = p.row
		}
		idx := map[string]int{}
		for _, k := range groupOrder(sorted, catCol) {
			idx[k] = len(fig.Data)
			fig.Data = append(fig.Data, trace(k))
		}
		for _, p := range pts {
			add(&fig.Data[idx[key(p.row[catCol])]], p)
		}
		return fig
	}
	fig.Layout.Title = title(fmt.Sprintf("%s over time", valueName))
	t := trace("")
	for _, p := range pts {
		add(&t, p)
	}
	fig.Data = []Trace{t}
	return fig
}

func yValue(v any) any {
	if f, ok := num(v); ok {
		return f
	}
	return nil
}

func comparison(rs *datasource.ResultSet, catCol, valueCol int) *Figure {
	catName, valueName := rs.Columns[catCol], rs.Columns[valueCol]
	if distinct(rs, catCol) <= 2 {
		type agg struct {
			sum, min, max float64
			n             int
		}
		groups := map[string]*agg{}
		for _, row := range rs.Rows {
			if row[catCol] == nil {
				continue
			}
			f, ok := num(row[valueCol])
			if !ok {
				continue
			}
			k := key(row[catCol])
			g := groups[k]
			if g == nil {
				g = &agg{min: math.Inf(1), max: math.Inf(-1)}
				groups[k] = g
			}
			g.sum += f
			g.n++
			g.min = math.Min(g.min, f)
			g.max = math.Max(g.max, f)
		}
		keys := make([]string, 0, len(groups))
		for k := range groups {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fig := &Figure{Kind: KindGroupedBar, Data: []Trace{}}
		for _, k := range keys {
			g := groups[k]
			mean := g.sum / float64(g.n)
			fig.Data = append(fig.Data, Trace{
				Type:         "bar",
				Name:         k,
				X:            []any{"Mean", "Minimum", "Maximum"},
				Y:            []any{mean, g.min, g.max},
				Text:         []string{fmt.Sprintf("%.2f", mean), fmt.Sprintf("%.2f", g.min), fmt.Sprintf("%.2f", g.max)},
				TextPosition: "auto",
			})
		}
		fig.Layout = Layout{
			Title:   title(fmt.Sprintf("Comparison of %s by %s", valueName, catName)),
			XAxis:   axis("Statistic"),
			YAxis:   axis(Label(valueName)),
			BarMode: "group",
		}
		return fig
	}

	fig := &Figure{Kind: KindBox, Data: []Trace{}}
	idx := map[string]int{}
	for _, k := range groupOrder(rs.Rows, catCol) {
		idx[k] = len(fig.Data)
		fig.Data = append(fig.Data, Trace{Type: "box", Name: k, BoxPoints: "all", X: []any{}, Y: []any{}})
	}
	for _, row := range rs.Rows {
		t := &fig.Data[idx[key(row[catCol])]]
		t.X = append(t.X, key(row[catCol]))
		t.Y = append(t.Y, yValue(row[valueCol]))
	}
	fig.Layout = Layout{
		Title:       title(fmt.Sprintf("Distribution of %s by %s", valueName, catName)),
		XAxis:       axis(Label(catName)),
		YAxis:       axis(Label(valueName)),
		LegendTitle: title(Label(catName)),
	}
	return fig
}

func scatter(rs *datasource.ResultSet, xCol, yCol, colorCol int) *Figure {
	xName, yName := rs.Columns[xCol], rs.Columns[yCol]
	fig := &Figure{Kind: KindScatter, Data: []Trace{}}
	fig.Layout = Layout{
		Title: title(fmt.Sprintf("Relationship between %s and %s", xName, yName)),
		XAxis: axis(Label(xName)),
		YAxis: axis(Label(yName)),
	}
	newTrace := func(name string) Trace {
		return Trace{Type: "scatter", Mode: "markers", Name: name, Opacity: 0.7, X: []any{}, Y: []any{}}
	}
	if colorCol >= 0 && distinct(rs, colorCol) <= 10 {
		fig.Layout.LegendTitle = title(Label(rs.Columns[colorCol]))
		idx := map[string]int{}
		for _, k := range groupOrder(rs.Rows, colorCol) {
			idx[k] = len(fig.Data)
			fig.Data = append(fig.Data, newTrace(k))
		}
		for _, row := range rs.Rows {
			t := &fig.Data[idx[key(row[colorCol])]]
			t.X = append(t.X, yValue(row[xCol]))
			t.Y = append(t.Y, yValue(row[yCol]))
		}
	} else {
		t := newTrace("")
		t.Marker = &Marker{Color: primaryColor}
		for _, row := range rs.Rows {
			t.X = append(t.X, yValue(row[xCol]))
			t.Y = append(t.Y, yValue(row[yCol]))
		}
		fig.Data = append(fig.Data, t)
	}

	x0, x1, okX := extent(rs, xCol)
	y0, y1, okY := extent(rs, yCol)
	if okX && okY {
		fig.Layout.Shapes = []Shape{{
			Type: "line", X0: x0, Y0: y0, X1: x1, Y1: y1,
			Line: Line{Color: "rgba(255, 0, 0, 0.5)", Width: 1, Dash: "dot"},
		}}
	}
	return fig
}

func extent(rs *datasource.ResultSet, col int) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, row := range rs.Rows {
		if f, isNum := num(row[col]); isNum {
			lo, hi, ok = math.Min(lo, f), math.Max(hi, f), true
		}
	}
	return lo, hi, ok
}

func bar(rs *datasource.ResultSet, catCol, valueCol int) *Figure {
	catName, valueName := rs.Columns[catCol], rs.Columns[valueCol]
	sums := map[string]float64{}
	for _, row := range rs.Rows {
		if row[catCol] == nil {
			continue
		}
		k := key(row[catCol])
		f, _ := num(row[valueCol])
		sums[k] += f
	}
	type kv struct {
		k string
		v float64
	}
	agg := make([]kv, 0, len(sums))
	for k, v := range sums {
		agg = append(agg, kv{k, v})
	}
	sort.Slice(agg, func(i, j int) bool { return agg[i].k < agg[j].k })

	t := fmt.Sprintf("%s by %s", valueName, catName)
	if len(agg) > 10 {
		sort.SliceStable(agg, func(i, j int) bool { return agg[i].v > agg[j].v })
		agg = agg[:10]
		t = fmt.Sprintf("Top 10 %s by %s", catName, valueName)
	}
	sort.SliceStable(agg, func(i, j int) bool { return agg[i].v < agg[j].v })

	tr := Trace{
		Type:         "bar",
		X:            make([]any, len(agg)),
		Y:            make([]any, len(agg)),
		Text:         make([]string, len(agg)),
		TextTemplate: "%{text:.2s}",
		TextPosition: "outside",
		Marker:       &Marker{Color: primaryColor},
	}
	for i, e := range agg {
		tr.X[i] = e.k
		tr.Y[i] = e.v
		tr.Text[i] = analysis.FormatValue(e.v)
	}
	return &Figure{
		Kind: KindBar,
		Data: []Trace{tr},
		Layout: Layout{
			Title:       title(t),
			XAxis:       axis(Label(catName)),
			YAxis:       axis(Label(valueName)),
			UniformText: &UniformText{MinSize: 8, Mode: "hide"},
		},
	}
}

func pie(rs *datasource.ResultSet, catCol int) *Figure {
	catName := rs.Columns[catCol]
	counts := map[string]int{}
	order := []string{}
	for _, row := range rs.Rows {
		if row[catCol] == nil {
			continue
		}
		k := key(row[catCol])
		if counts[k] == 0 {
			order = append(order, k)
		}
		counts[k]++
	}
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })

	labels := order
	values := make([]float64, 0, len(order)+1)
	if len(order) > 8 {
		labels = append(append([]string(nil), order[:7]...), "Others")
		others := 0
		for _, k := range order[7:] {
			others += counts[k]
		}
		for _, k := range order[:7] {
			values = append(values, float64(counts[k]))
		}
		values = append(values, float64(others))
	} else {
		for _, k := range order {
			values = append(values, float64(counts[k]))
		}
	}
	return &Figure{
		Kind: KindPie,
		Data: []Trace{{
			Type:         "pie",
			Labels:       labels,
			Values:       values,
			Hole:         0.4,
			TextPosition: "inside",
			TextInfo:     "percent+label",
		}},
		Layout: Layout{
			Title:       title(fmt.Sprintf("Distribution of %s", catName)),
			LegendTitle: title(Label(catName)),
		},
	}
}

func histogram(rs *datasource.ResultSet, valueCol int) *Figure {
	name := rs.Columns[valueCol]
	t := Trace{Type: "histogram", NBinsX: 20, Marker: &Marker{Color: primaryColor}, X: []any{}}
	for _, row := range rs.Rows {
		if f, ok := num(row[valueCol]); ok {
			t.X = append(t.X, f)
		}
	}
	return &Figure{
		Kind: KindHistogram,
		Data: []Trace{t},
		Layout: Layout{
			Title:  title(fmt.Sprintf("Distribution of %s", name)),
			XAxis:  axis(Label(name)),
			YAxis:  axis("count"),
			BarGap: 0.05,
		},
	}
}
