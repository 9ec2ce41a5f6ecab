package journey

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestMoveKeepsPositionsDense(t *testing.T) {
	cases := []struct {
		name     string
		ids      []string
		id       string
		position int
		want     []string
	}{
		{name: "forward", ids: []string{"a", "b", "c", "d"}, id: "a", position: 2, want: []string{"b", "c", "a", "d"}},
		{name: "backward", ids: []string{"a", "b", "c", "d"}, id: "d", position: 0, want: []string{"d", "a", "b", "c"}},
		{name: "same slot", ids: []string{"a", "b", "c"}, id: "b", position: 1, want: []string{"a", "b", "c"}},
		{name: "past end clamps", ids: []string{"a", "b", "c"}, id: "a", position: 99, want: []string{"b", "c", "a"}},
		{name: "negative clamps", ids: []string{"a", "b", "c"}, id: "c", position: -4, want: []string{"c", "a", "b"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Move(tc.ids, tc.id, tc.position)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Move() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestTransferClosesAndOpensGap(t *testing.T) {
	source, target := Transfer([]string{"a", "b", "c"}, []string{"x", "y"}, "b", 1)
	if !reflect.DeepEqual(source, []string{"a", "c"}) {
		t.Fatalf("source = %v", source)
	}
	if !reflect.DeepEqual(target, []string{"x", "b", "y"}) {
		t.Fatalf("target = %v", target)
	}
}

func TestInsertDoesNotAliasInput(t *testing.T) {
	ids := make([]string, 2, 8)
	ids[0], ids[1] = "a", "b"
	got := Insert(ids, "z", 0)
	if ids[0] != "a" || got[0] != "z" || len(got) != 3 {
		t.Fatalf("Insert() mutated input: ids=%v got=%v", ids, got)
	}
}

func TestCheckPermutation(t *testing.T) {
	current := []string{"a", "b", "c"}
	if err := CheckPermutation(current, []string{"c", "a", "b"}); err != nil {
		t.Fatalf("CheckPermutation() error = %v", err)
	}
	for _, ordered := range [][]string{
		{"a", "b"},
		{"a", "b", "b"},
		{"a", "b", "z"},
	} {
		if err := CheckPermutation(current, ordered); !errors.Is(err, ErrNotPermutation) {
			t.Fatalf("CheckPermutation(%v) error = %v", ordered, err)
		}
	}
}

func TestValidBlockType(t *testing.T) {
	for _, kind := range []string{"touchpoint", "pain_point", "metric", "emotion"} {
		if !ValidBlockType(kind) {
			t.Fatalf("expected %q to be valid", kind)
		}
	}
	if ValidBlockType("sticky") {
		t.Fatal("expected sticky to be rejected")
	}
}

func TestNormalizeEmoji(t *testing.T) {
	valid := []string{"", "😀", "👍🏽", "❤️", "👨‍👩‍👧"}
	for _, value := range valid {
		if _, err := NormalizeEmoji(value); err != nil {
			t.Fatalf("NormalizeEmoji(%q) error = %v", value, err)
		}
	}
	invalid := []string{"a", "😀😀", "ok", "1"}
	for _, value := range invalid {
		if _, err := NormalizeEmoji(value); !errors.Is(err, ErrInvalidEmoji) {
			t.Fatalf("NormalizeEmoji(%q) error = %v, want ErrInvalidEmoji", value, err)
		}
	}
}

func TestNormalizeColor(t *testing.T) {
	got, err := NormalizeColor("#a1b2c3")
	if err != nil || got != "#A1B2C3" {
		t.Fatalf("NormalizeColor() = %q, %v", got, err)
	}
	if _, err := NormalizeColor("red"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("NormalizeColor(red) error = %v", err)
	}
}

func TestCheckLengthCountsCharacters(t *testing.T) {
	if err := CheckLength("content", strings.Repeat("é", MaxContentLength), 0, MaxContentLength); err != nil {
		t.Fatalf("CheckLength() error = %v", err)
	}
	if err := CheckLength("content", strings.Repeat("a", MaxContentLength+1), 0, MaxContentLength); err == nil {
		t.Fatal("expected over-long content to fail")
	}
	if err := CheckLength("name", "", 1, 10); err == nil || err.Error() != "name is required" {
		t.Fatalf("CheckLength(empty) error = %v", err)
	}
}

func TestParseVideo(t *testing.T) {
	cases := []struct {
		raw      string
		provider string
		id       string
	}{
		{raw: "https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=10", provider: "youtube", id: "dQw4w9WgXcQ"},
		{raw: "https://youtu.be/dQw4w9WgXcQ", provider: "youtube", id: "dQw4w9WgXcQ"},
		{raw: "https://youtube.com/embed/dQw4w9WgXcQ", provider: "youtube", id: "dQw4w9WgXcQ"},
		{raw: "https://m.youtube.com/shorts/abcDEF12345", provider: "youtube", id: "abcDEF12345"},
		{raw: "https://vimeo.com/76979871", provider: "vimeo", id: "76979871"},
		{raw: "https://player.vimeo.com/video/76979871", provider: "vimeo", id: "76979871"},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			video, err := ParseVideo(tc.raw)
			if err != nil {
				t.Fatalf("ParseVideo() error = %v", err)
			}
			if video.Provider != tc.provider || video.VideoID != tc.id || video.EmbedURL == "" {
				t.Fatalf("unexpected video: %+v", video)
			}
		})
	}

	if _, err := ParseVideo("https://example.com/clip.mp4"); !errors.Is(err, ErrUnsupportedHost) {
		t.Fatalf("ParseVideo(example) error = %v", err)
	}
	if _, err := ParseVideo("https://www.youtube.com/watch"); !errors.Is(err, ErrUnsupportedHost) {
		t.Fatalf("ParseVideo(no id) error = %v", err)
	}
	if _, err := ParseVideo("ftp://youtube.com/watch?v=dQw4w9WgXcQ"); !errors.Is(err, ErrInvalidURL) {
		t.Fatalf("ParseVideo(ftp) error = %v", err)
	}
}

func TestTagColorIsStableAndCaseInsensitive(t *testing.T) {
	if TagColor("Onboarding") != TagColor("  onboarding ") {
		t.Fatal("expected tag color to ignore case and whitespace")
	}
	if _, err := NormalizeColor(TagColor("x")); err != nil {
		t.Fatalf("palette color invalid: %v", err)
	}
}

func TestSummarize(t *testing.T) {
	v := func(n int) *int { return &n }
	summary := Summarize([]*int{v(3), nil, v(-2), v(4)})
	if summary.Count != 3 || *summary.Min != -2 || *summary.Max != 4 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	if *summary.Average != 1.67 {
		t.Fatalf("average = %v, want 1.67", *summary.Average)
	}
	empty := Summarize([]*int{nil})
	if empty.Count != 0 || empty.Average != nil || empty.Min != nil {
		t.Fatalf("unexpected empty summary: %+v", empty)
	}
}

func TestTemplatePhases(t *testing.T) {
	phases, err := TemplatePhases("default")
	if err != nil || len(phases) != 5 || phases[0] != "Awareness" || phases[4] != "Advocacy" {
		t.Fatalf("TemplatePhases(default) = %v, %v", phases, err)
	}
	phases, err = TemplatePhases("")
	if err != nil || len(phases) != 1 {
		t.Fatalf("TemplatePhases(blank) = %v, %v", phases, err)
	}
	if _, err := TemplatePhases("kanban"); err == nil {
		t.Fatal("expected unknown template error")
	}
}
