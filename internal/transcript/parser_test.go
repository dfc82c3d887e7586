package transcript

import (
	"reflect"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{
			name:  "Two personas",
			input: "[Dr. Castillo] ¿Estudió el tema? [Lic. Rossi] Tranquilo, vamos paso a paso.",
			want: []Segment{
				{Speaker: "Dr. Castillo", Content: "¿Estudió el tema?"},
				{Speaker: "Lic. Rossi", Content: "Tranquilo, vamos paso a paso."},
			},
		},
		{
			name:  "Untagged",
			input: "Sin etiquetas aquí.",
			want:  []Segment{{Speaker: DefaultNarrator, Content: "Sin etiquetas aquí."}},
		},
		{
			name:  "Untagged is trimmed",
			input: "  \n hola \t",
			want:  []Segment{{Speaker: DefaultNarrator, Content: "hola"}},
		},
		{
			name:  "Bold tags",
			input: "**[Dr. Varela]**: Muy **bien**.",
			want:  []Segment{{Speaker: "Dr. Varela", Content: "Muy bien."}},
		},
		{
			name:  "Colon and newlines after tag",
			input: "[A]:\n\n  uno\n[B] :  dos",
			want: []Segment{
				{Speaker: "A", Content: "uno"},
				{Speaker: "B", Content: "dos"},
			},
		},
		{
			name:  "Multiline content",
			input: "[A] primera línea\nsegunda línea [B] fin",
			want: []Segment{
				{Speaker: "A", Content: "primera línea\nsegunda línea"},
				{Speaker: "B", Content: "fin"},
			},
		},
		{
			name:  "Text before first tag is dropped",
			input: "Preámbulo. [A] hola",
			want:  []Segment{{Speaker: "A", Content: "hola"}},
		},
		{
			name:  "Empty content",
			input: "[A] [B] hola",
			want: []Segment{
				{Speaker: "A", Content: ""},
				{Speaker: "B", Content: "hola"},
			},
		},
		{
			name:  "Unclosed bracket ends parsing",
			input: "[A] uno [sin cierre",
			want:  []Segment{{Speaker: "A", Content: "uno"}},
		},
		{
			name:  "Speaker labels are trimmed",
			input: "[  Lic. Rossi  ] hola",
			want:  []Segment{{Speaker: "Lic. Rossi", Content: "hola"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	input := "[A] uno [B] dos [A] tres"
	first := Parse(input)
	for i := 0; i < 5; i++ {
		if got := Parse(input); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d: got %#v, want %#v", i, got, first)
		}
	}
}

func TestParse_SegmentCountMatchesTags(t *testing.T) {
	input := "[S1] a [S2] b [S3] c [S4] d"
	if got := len(Parse(input)); got != 4 {
		t.Errorf("expected 4 segments, got %d", got)
	}
}

func TestStripMarkdown(t *testing.T) {
	tests := map[string]string{
		"**negrita**":      "negrita",
		"# Título":         " Título",
		"snake_case":       "snakecase",
		"usa `go test`":    "usa go test",
		"sin formato":      "sin formato",
		"__doble__ ## x":   "doble  x",
		"*cursiva simple*": "*cursiva simple*",
	}
	for in, want := range tests {
		if got := StripMarkdown(in); got != want {
			t.Errorf("StripMarkdown(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSegment_Speakable(t *testing.T) {
	if got := (Segment{Content: " **`_#`** "}).Speakable(); got != "" {
		t.Errorf("expected empty speakable text, got %q", got)
	}
	if got := (Segment{Content: "## Hola **mundo**"}).Speakable(); got != "Hola mundo" {
		t.Errorf("got %q", got)
	}
}

func TestSpeakers(t *testing.T) {
	segs := Parse("[A] uno [B] dos [A] tres [C] cuatro")
	want := []string{"A", "B", "C"}
	if got := Speakers(segs); !reflect.DeepEqual(got, want) {
		t.Errorf("Speakers() = %v, want %v", got, want)
	}
}
