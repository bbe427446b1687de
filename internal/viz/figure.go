// Package viz picks a chart for a query result and emits a Plotly-compatible
// figure description.
package viz

// Kind names the chart template chosen by Select.
type Kind string

const (
	KindMessage    Kind = "message"
	KindTimeSeries Kind = "time_series"
	KindGroupedBar Kind = "grouped_bar"
	KindBox        Kind = "box"
	KindScatter    Kind = "scatter"
	KindBar        Kind = "bar"
	KindPie        Kind = "pie"
	KindHistogram  Kind = "histogram"
)

// Primary bar and histogram color.
const primaryColor = "#636EFA"

// Figure mirrors Plotly's {data, layout} JSON.
type Figure struct {
	Kind   Kind    `json:"kind"`
	Data   []Trace `json:"data"`
	Layout Layout  `json:"layout"`
}

// Title returns the layout title text, or the annotation text for messages.
func (f *Figure) Title() string {
	if f.Layout.Title != nil {
		return f.Layout.Title.Text
	}
	if len(f.Layout.Annotations) > 0 {
		return f.Layout.Annotations[0].Text
	}
	return ""
}

type Trace struct {
	Type         string    `json:"type"`
	Name         string    `json:"name,omitempty"`
	Mode         string    `json:"mode,omitempty"`
	X            []any     `json:"x,omitempty"`
	Y            []any     `json:"y,omitempty"`
	Labels       []string  `json:"labels,omitempty"`
	Values       []float64 `json:"values,omitempty"`
	Text         []string  `json:"text,omitempty"`
	TextTemplate string    `json:"texttemplate,omitempty"`
	TextPosition string    `json:"textposition,omitempty"`
	TextInfo     string    `json:"textinfo,omitempty"`
	Hole         float64   `json:"hole,omitempty"`
	NBinsX       int       `json:"nbinsx,omitempty"`
	BoxPoints    string    `json:"boxpoints,omitempty"`
	Opacity      float64   `json:"opacity,omitempty"`
	Marker       *Marker   `json:"marker,omitempty"`
}

type Marker struct {
	Color string `json:"color,omitempty"`
}

type Layout struct {
	Title       *Title       `json:"title,omitempty"`
	XAxis       *Axis        `json:"xaxis,omitempty"`
	YAxis       *Axis        `json:"yaxis,omitempty"`
	BarMode     string       `json:"barmode,omitempty"`
	BarGap      float64      `json:"bargap,omitempty"`
	LegendTitle *Title       `json:"legend_title,omitempty"`
	UniformText *UniformText `json:"uniformtext,omitempty"`
	Shapes      []Shape      `json:"shapes,omitempty"`
	Annotations []Annotation `json:"annotations,omitempty"`
}

type Title struct {
	Text string `json:"text"`
}

type Axis struct {
	Title       *Title       `json:"title,omitempty"`
	RangeSlider *RangeSlider `json:"rangeslider,omitempty"`
}

type RangeSlider struct {
	Visible bool `json:"visible"`
}

type UniformText struct {
	MinSize int    `json:"minsize"`
	Mode    string `json:"mode"`
}

type Shape struct {
	Type string  `json:"type"`
	X0   float64 `json:"x0"`
	Y0   float64 `json:"y0"`
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	Line Line    `json:"line"`
}

type Line struct {
	Color string  `json:"color"`
	Width float64 `json:"width"`
	Dash  string  `json:"dash,omitempty"`
}

type Annotation struct {
	Text      string  `json:"text"`
	XRef      string  `json:"xref"`
	YRef      string  `json:"yref"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	ShowArrow bool    `json:"showarrow"`
	Font      Font    `json:"font"`
}

type Font struct {
	Size int `json:"size"`
}

func title(s string) *Title { return &Title{Text: s} }

func axis(label string) *Axis { return &Axis{Title: title(label)} }

func messageFigure(text string, size int) *Figure {
	return &Figure{
		Kind: KindMessage,
		Data: []Trace{},
		Layout: Layout{Annotations: []Annotation{{
			Text: text, XRef: "paper", YRef: "paper", X: 0.5, Y: 0.5, ShowArrow: false, Font: Font{Size: size},
		}}},
	}
}
