package flatline

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Line
	}{
		{
			name: "bare feature type",
			text: "FeatureType",
			want: Line{Kind: KindFeatureType},
		},
		{
			name: "feature type with name and title",
			text: "FeatureType\troads;Road network",
			want: Line{Kind: KindFeatureType, Name: "roads", Title: "Road network"},
		},
		{
			name: "rule",
			text: "Rule\tR;Title;Abstract",
			want: Line{Kind: KindRule, Name: "R", Title: "Title", Abstract: "Abstract"},
		},
		{
			name: "rule abstract keeps semicolons",
			text: "Rule\tR;T;first; second",
			want: Line{Kind: KindRule, Name: "R", Title: "T", Abstract: "first; second"},
		},
		{
			name: "rule with missing parts",
			text: "Rule\tonly-name",
			want: Line{Kind: KindRule, Name: "only-name"},
		},
		{
			name: "field",
			text: "Field\t\t\t3\tpoint-color\t#ff0000",
			want: Line{Kind: KindField, Offset: 3, Symbolizer: "point-color", Default: "#ff0000"},
		},
		{
			name: "field with empty default",
			text: "Field\t\t\t0\tstroke-width",
			want: Line{Kind: KindField, Offset: 0, Symbolizer: "stroke-width"},
		},
		{
			name: "trailing carriage return",
			text: "Rule\tR;T;A\r",
			want: Line{Kind: KindRule, Name: "R", Title: "T", Abstract: "A"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(1, tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"unknown kind", "Symbolizer\tx", "unknown record kind"},
		{"empty kind", "\tx", "unknown record kind"},
		{"offset not a number", "Field\t\t\tabc\tfill\t#fff", "invalid template offset"},
		{"missing offset", "Field", "invalid template offset"},
		{"negative offset", "Field\t\t\t-2\tfill\t#fff", "negative template offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine(7, tt.text)
			require.Error(t, err)

			var synErr *SyntaxError
			require.True(t, errors.As(err, &synErr))
			assert.Equal(t, 7, synErr.Line)
			assert.Equal(t, tt.reason, synErr.Reason)
		})
	}
}

func TestParse_KeepsOrderAndLineNumbers(t *testing.T) {
	doc := "FeatureType\tA;A title\n" +
		"Rule\tR1;T1;\n" +
		"\n" +
		"Field\t\t\t1\tfill\t#000\n" +
		"Field\t\t\t2\tstroke\t#111\n" +
		"Rule\tR2;T2;\n" +
		"Field\t\t\t3\tfill\t#222\n"

	lines, err := ParseString(doc)
	require.NoError(t, err)
	require.Len(t, lines, 6)

	kinds := make([]Kind, len(lines))
	for i, l := range lines {
		kinds[i] = l.Kind
	}
	assert.Equal(t, []Kind{
		KindFeatureType, KindRule, KindField, KindField, KindRule, KindField,
	}, kinds)

	_, err = ParseString("FeatureType\n\nBogus\n")
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Equal(t, 3, synErr.Line, "blank lines still count")
}

func TestFormat_RoundTrip(t *testing.T) {
	lines := []Line{
		FeatureType("", ""),
		FeatureType("roads", "Roads"),
		Rule("R", "Title", "Abstract"),
		Field(3, "point-color", "#ff0000"),
	}

	for _, l := range lines {
		got, err := ParseLine(1, l.Format())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}
}
