package transcribe

import (
	"reflect"
	"testing"
)

func TestSegmentsFromWords(t *testing.T) {
	tests := []struct {
		name  string
		words []Word
		want  []Segment
	}{
		{
			name: "sentence_punctuation",
			words: []Word{
				{"Hallo", 0, 0.4}, {"zusammen.", 0.5, 1.0},
				{"Wie", 1.2, 1.4}, {"geht's?", 1.5, 1.9},
			},
			want: []Segment{
				{0, 1.0, "Hallo zusammen."},
				{1.2, 1.9, "Wie geht's?"},
			},
		},
		{
			name:  "long_pause",
			words: []Word{{"erstens", 0, 0.5}, {"zweitens", 3.0, 3.5}},
			want:  []Segment{{0, 0.5, "erstens"}, {3.0, 3.5, "zweitens"}},
		},
		{
			name:  "quoted_end",
			words: []Word{{"„Ende.“", 0, 1}, {"weiter", 1.1, 1.5}},
			want:  []Segment{{0, 1, "„Ende.“"}, {1.1, 1.5, "weiter"}},
		},
		{
			name:  "blank_words",
			words: []Word{{" ", 0, 0.1}},
			want:  nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SegmentsFromWords(tt.words)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	resp := Normalize(&Response{Segments: []Segment{
		{Start: 3, End: 2, Text: " c "},
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: ""},
		{Start: -1, End: 0.5, Text: "b"},
	}})
	want := []Segment{
		{Start: 0, End: 0.5, Text: "b"},
		{Start: 0, End: 1, Text: "a"},
		{Start: 3, End: 3, Text: "c"},
	}
	if !reflect.DeepEqual(resp.Segments, want) {
		t.Errorf("Segments = %+v, want %+v", resp.Segments, want)
	}
	if resp.Text != "b a c" {
		t.Errorf("Text = %q", resp.Text)
	}
}
