package chunker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitSections(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []Section
	}{
		{
			name: "empty",
			in:   "",
			want: nil,
		},
		{
			name: "no headers",
			in:   "plain text\nmore text\n",
			want: []Section{{Text: "plain text\nmore text", Title: UntitledSection, Preamble: true}},
		},
		{
			name: "h2 and h3 open sections",
			in:   "lead\n## Two\nbody two\n### Three\nbody three\n",
			want: []Section{
				{Text: "lead", Title: UntitledSection, Preamble: true},
				{Text: "## Two\nbody two", Title: "Two"},
				{Text: "### Three\nbody three", Title: "Three"},
			},
		},
		{
			name: "header on first line",
			in:   "## First\nx",
			want: []Section{{Text: "## First\nx", Title: "First"}},
		},
		{
			name: "consecutive headers",
			in:   "## A\n## B\nb",
			want: []Section{
				{Text: "## A", Title: "A"},
				{Text: "## B\nb", Title: "B"},
			},
		},
		{
			name: "h1 and h4 stay inline",
			in:   "## A\n# one\n#### four\n##### five\ntail",
			want: []Section{{Text: "## A\n# one\n#### four\n##### five\ntail", Title: "A"}},
		},
		{
			name: "marker must be followed by whitespace",
			in:   "## A\n##notaheader\n###nope",
			want: []Section{{Text: "## A\n##notaheader\n###nope", Title: "A"}},
		},
		{
			name: "indented marker is content",
			in:   "## A\n  ## indented",
			want: []Section{{Text: "## A\n  ## indented", Title: "A"}},
		},
		{
			name: "crlf line endings",
			in:   "## A\r\nx\r\n## B\r\ny",
			want: []Section{
				{Text: "## A\r\nx", Title: "A"},
				{Text: "## B\r\ny", Title: "B"},
			},
		},
		{
			name: "surrounding blank lines trimmed",
			in:   "\n\n## A\n\nbody\n\n\n## B\n",
			want: []Section{
				{Text: "## A\n\nbody", Title: "A"},
				{Text: "## B", Title: "B"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitSections(tt.in))
		})
	}
}

func TestSectionTitle(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"## Intro\nHello", "Intro"},
		{"### Deep Dive  \nbody", "Deep Dive"},
		{"##\tTabbed", "Tabbed"},
		{"## Closing ##", "Closing ##"},
		{"no header here", UntitledSection},
		{"#### Too deep", UntitledSection},
		{"# Top level", UntitledSection},
		{"##", UntitledSection},
		{"", UntitledSection},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SectionTitle(tt.in))
		})
	}
}

func TestWindows(t *testing.T) {
	tests := []struct {
		name          string
		n, size, over int
		want          []Window
	}{
		{"empty", 0, 800, 100, nil},
		{"fits", 800, 800, 100, []Window{{0, 800}}},
		{"1000 tokens", 1000, 800, 100, []Window{{0, 800}, {700, 1000}}},
		{"no overlap", 10, 4, 0, []Window{{0, 4}, {4, 8}, {8, 10}}},
		{"exact multiple", 12, 4, 1, []Window{{0, 4}, {3, 7}, {6, 10}, {9, 12}}},
		{"invalid size", 10, 0, 0, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Windows(tt.n, tt.size, tt.over))
		})
	}
}

func TestWindows_TerminatesOnDegenerateOverlap(t *testing.T) {
	for _, overlap := range []int{4, 5, 100} {
		got := Windows(10, 4, overlap)
		assert.NotEmpty(t, got)
		assert.Equal(t, 10, got[len(got)-1].End)
		for i := 1; i < len(got); i++ {
			assert.Greater(t, got[i].Start, got[i-1].Start, "start must advance")
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, Config{ChunkSize: 1, Overlap: 0}.Validate())
	assert.ErrorIs(t, Config{ChunkSize: 100, Overlap: 100}.Validate(), ErrInvalidConfig)
}
