package sapling

import (
	"testing"
)

func newTestRenderer() (*DialogueRenderer, *DialoguePlayer) {
	r := NewDialogueRenderer(DefaultPanelStyle(), &MonoFont{Width: 6, Height: 8})
	p := NewDialoguePlayer(DialogueOptions{Layout: r.Layout()})
	return r, p
}

func countKind(cmds []GlyphCommand, k CommandKind) int {
	n := 0
	for _, c := range cmds {
		if c.Kind == k {
			n++
		}
	}
	return n
}

func TestDialogueRendererLayoutFitsPanel(t *testing.T) {
	r, _ := newTestRenderer()
	l := r.Layout()
	if l.Width != 192 {
		t.Errorf("Width = %v, want 192", l.Width)
	}
	if l.Lines != 4 {
		t.Errorf("Lines = %d, want 4", l.Lines)
	}
}

func TestDialogueRendererOmitsHiddenGlyphs(t *testing.T) {
	r, p := newTestRenderer()
	if cmds := r.Commands(p); cmds != nil {
		t.Fatalf("idle commands = %v", cmds)
	}
	p.QueueScript("__ab__ c")
	if cmds := r.Commands(p); len(cmds) != 0 {
		t.Fatalf("unrevealed commands = %d, want 0", len(cmds))
	}
	p.Update(DefaultGlyphDelay)
	cmds := r.Commands(p)
	if countKind(cmds, CommandGlyph) != 1 || countKind(cmds, CommandUnderline) != 1 {
		t.Fatalf("commands = %+v", cmds)
	}
	g := cmds[0]
	if g.Char != 'a' || g.X != r.Panel.Padding || g.Y != r.Panel.Padding {
		t.Errorf("first glyph = %+v", g)
	}
	u := cmds[1]
	if u.Y != r.Panel.Padding+8-1 || u.Width != 6 {
		t.Errorf("underline = %+v", u)
	}
	if countKind(cmds, CommandContinue)+countKind(cmds, CommandStop) != 0 {
		t.Error("indicator shown before page complete")
	}
}

func TestDialogueRendererIndicators(t *testing.T) {
	r, p := newTestRenderer()
	p.QueueScript("one{pg}two")
	p.Skip()
	cmds := r.Commands(p)
	if countKind(cmds, CommandContinue) != 1 || countKind(cmds, CommandStop) != 0 {
		t.Fatalf("want continue indicator, got %+v", cmds)
	}
	p.Skip()
	p.Skip()
	cmds = r.Commands(p)
	if countKind(cmds, CommandStop) != 1 || countKind(cmds, CommandContinue) != 0 {
		t.Fatalf("want stop indicator, got %+v", cmds)
	}
	last := cmds[len(cmds)-1]
	if last.X+last.Width > float64(r.Panel.Width) || last.Y+last.Width > float64(r.Panel.Height) {
		t.Errorf("indicator outside panel: %+v", last)
	}
}

func TestDialogueRendererAppliesGlyphStyle(t *testing.T) {
	r, p := newTestRenderer()
	p.QueueScript("{clr=#ff0000}~~x~~")
	p.Skip()
	p.Update(0.1)
	g := p.CurrentPage().Glyphs[0]
	cmds := r.Commands(p)
	if len(cmds) == 0 {
		t.Fatal("no commands")
	}
	if cmds[0].Color != (Color{1, 0, 0, 1}) {
		t.Errorf("color = %v", cmds[0].Color)
	}
	if cmds[0].Y != r.Panel.Padding+g.Offset.Y {
		t.Errorf("Y = %v, want offset applied (%v)", cmds[0].Y, g.Offset.Y)
	}
}

func TestDialogueRendererFade(t *testing.T) {
	r, p := newTestRenderer()
	r.Update(p, 0.1)
	if r.Alpha() != 0 {
		t.Errorf("idle alpha = %v", r.Alpha())
	}
	p.QueueScript("hi")
	r.Update(p, 0.05)
	if a := r.Alpha(); a <= 0 || a >= 1 {
		t.Errorf("mid-fade alpha = %v", a)
	}
	r.Update(p, 0.2)
	if r.Alpha() != 1 {
		t.Errorf("alpha after fade = %v, want 1", r.Alpha())
	}
	p.Cancel()
	r.Update(p, 0.01)
	if r.Alpha() != 0 {
		t.Errorf("alpha after cancel = %v", r.Alpha())
	}
}
