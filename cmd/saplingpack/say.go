package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/pflag"

	"github.com/phanxgames/sapling"
)

// rainbowSpread is the hue step between neighbouring rainbow glyphs.
const rainbowSpread = 20.0

var (
	pageStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	pageFooter = lipgloss.NewStyle().Faint(true)
)

func runSay(_ context.Context, e *env, args []string) error {
	font := sapling.DefaultMonoFont()
	layout := e.cfg.DialogueOptions(font).Layout

	var cols, lines int
	flagSet := pflag.NewFlagSet("say", pflag.ContinueOnError)
	flagSet.IntVar(&cols, "width", int(layout.Width/font.Width), "line width in characters")
	flagSet.IntVar(&lines, "lines", layout.Lines, "lines per page")
	rest, err := parseCommand(e, "say", flagSet, args, -1)
	if err != nil {
		return err
	}
	if len(rest) == 0 {
		flagSet.Usage()
		return errUsage
	}
	if cols <= 0 || lines <= 0 {
		return fmt.Errorf("say: --width and --lines must be positive")
	}

	pages := renderPages(strings.Join(rest, " "), cols, lines)
	for i, p := range pages {
		fmt.Fprintln(e.stdout, p)
		fmt.Fprintln(e.stdout, pageFooter.Render(fmt.Sprintf("page %d/%d", i+1, len(pages))))
	}
	return nil
}

// renderPages paginates script into a grid of cols by lines characters and
// renders each page as a bordered box.
func renderPages(script string, cols, lines int) []string {
	layout := sapling.PageLayout{
		Font:  &sapling.MonoFont{Width: 1, Height: 1},
		Width: float64(cols),
		Lines: lines,
	}
	pages := sapling.Paginate(sapling.ParseMarkup(script), layout)
	out := make([]string, 0, len(pages))
	box := pageStyle.Width(cols + 2)
	for _, pg := range pages {
		rows := make([]string, lines)
		for i, line := range pg.Lines {
			if i >= lines {
				break
			}
			var b strings.Builder
			for _, g := range line {
				b.WriteString(glyphStyle(g).Render(string(g.Char)))
			}
			rows[i] = b.String()
		}
		out = append(out, box.Render(strings.Join(rows, "\n")))
	}
	return out
}

// glyphStyle maps dialogue styles to terminal attributes. Motion styles
// have no terminal equivalent, so shake is bold and wavy is italic.
func glyphStyle(g *sapling.Glyph) lipgloss.Style {
	s := lipgloss.NewStyle()
	c := g.Color
	if g.HasStyle(sapling.StyleRainbow) {
		c = sapling.ColorFromHSV(float64(g.Index)*rainbowSpread, 1, 1)
	}
	if c != sapling.ColorWhite {
		c.A = 1
		s = s.Foreground(lipgloss.Color(c.Hex()))
	}
	if g.HasStyle(sapling.StyleUnderline) {
		s = s.Underline(true)
	}
	if g.HasStyle(sapling.StyleShake) {
		s = s.Bold(true)
	}
	if g.HasStyle(sapling.StyleWavy) {
		s = s.Italic(true)
	}
	return s
}
