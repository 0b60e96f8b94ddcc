package conversation

import "testing"

func TestCleanResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "cjk citation",
			in:   "Answer 【12:3†doc.pdf】 continues",
			want: "Answer continues",
		},
		{
			name: "bracket citation",
			in:   "See [manual.pdf:4] for details",
			want: "See for details",
		},
		{
			name: "multiple citations",
			in:   "A【1:1†a.md】 B【2:2†b.md】 C",
			want: "A B C",
		},
		{
			name: "keeps paragraph breaks",
			in:   "First 【9:9†x】line\n\nSecond line",
			want: "First line\n\nSecond line",
		},
		{
			name: "plain brackets untouched",
			in:   "array[0] stays [like this]",
			want: "array[0] stays [like this]",
		},
		{
			name: "clean text unchanged",
			in:   "nothing to strip",
			want: "nothing to strip",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanResponse(tt.in); got != tt.want {
				t.Errorf("CleanResponse(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsReportTrigger(t *testing.T) {
	triggers := []string{"report", "Reporte", "RESUMEN", "summary", "informe", "dame un resumen por favor"}
	for _, msg := range triggers {
		if !IsReportTrigger(msg) {
			t.Errorf("expected %q to trigger report mode", msg)
		}
	}
	normal := []string{"", "hola", "necesito ayuda", "cuanto cuesta"}
	for _, msg := range normal {
		if IsReportTrigger(msg) {
			t.Errorf("did not expect %q to trigger report mode", msg)
		}
	}
}
