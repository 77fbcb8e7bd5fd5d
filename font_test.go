package sapling

import (
	"strings"
	"testing"
)

const testFnt = `info face="Tiny" size=8
common lineHeight=10 base=8 scaleW=64 scaleH=64 pages=1
page id=0 file="tiny.png"
chars count=3
char id=65 x=0 y=0 width=5 height=8 xoffset=0 yoffset=1 xadvance=5 page=0
char id=86 x=5 y=0 width=5 height=8 xoffset=0 yoffset=1 xadvance=5 page=0
char id=32 x=0 y=0 width=0 height=0 xoffset=0 yoffset=0 xadvance=3 page=0
kernings count=1
kerning first=65 second=86 amount=-2
`

func TestLoadBitmapFontMetrics(t *testing.T) {
	f, err := LoadBitmapFont([]byte(testFnt), nil)
	if err != nil {
		t.Fatal(err)
	}
	if f.LineHeight() != 10 {
		t.Errorf("LineHeight = %v", f.LineHeight())
	}
	if f.Advance('A') != 5 || f.Advance(' ') != 3 || f.Advance('x') != 0 {
		t.Errorf("advances = %v %v %v", f.Advance('A'), f.Advance(' '), f.Advance('x'))
	}
	if f.Kern('A', 'V') != -2 || f.Kern('V', 'A') != 0 {
		t.Errorf("kerning = %v %v", f.Kern('A', 'V'), f.Kern('V', 'A'))
	}
}

func TestLoadBitmapFontRejectsIncompleteData(t *testing.T) {
	tests := []struct {
		name, data, want string
	}{
		{"no common", "char id=65 xadvance=5\n", "lineHeight"},
		{"no chars", "common lineHeight=10\n", "char"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadBitmapFont([]byte(tt.data), nil)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestPaginateAppliesKerningToSecondGlyph(t *testing.T) {
	f, err := LoadBitmapFont([]byte(testFnt), nil)
	if err != nil {
		t.Fatal(err)
	}
	pages := Paginate(ParseMarkup("AVA"), PageLayout{Font: f, Width: 100})
	if len(pages) != 1 || len(pages[0].Glyphs) != 3 {
		t.Fatalf("pages = %v", pages)
	}
	g := pages[0].Glyphs
	if g[0].Pos.X != 0 || g[1].Pos.X != 3 || g[2].Pos.X != 8 {
		t.Errorf("x = %v %v %v, want 0 3 8", g[0].Pos.X, g[1].Pos.X, g[2].Pos.X)
	}
}

func TestPaginateWrapsWithKernedWidth(t *testing.T) {
	f, err := LoadBitmapFont([]byte(testFnt), nil)
	if err != nil {
		t.Fatal(err)
	}
	// "AV" is 8 wide with kerning, so it fits a width of 8.
	pages := Paginate(ParseMarkup("AV AV"), PageLayout{Font: f, Width: 8})
	if len(pages) != 1 || len(pages[0].Lines) != 2 {
		t.Fatalf("lines = %v", pageTexts(pages))
	}
}
