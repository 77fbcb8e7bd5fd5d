package sapling

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestCanvas(w, h int, c Color) *Canvas {
	cv := NewCanvas(w, h)
	cv.Fill(c)
	return cv
}

func TestResourceStoreGenerateIDLowestUnused(t *testing.T) {
	s := NewResourceStore(nil)
	if id := s.GenerateID(); id != "0" {
		t.Fatalf("GenerateID = %q, want 0", id)
	}
	s.Set("0", NewCanvas(1, 1), CanvasType)
	s.Set("2", NewCanvas(1, 1), CanvasType)
	if id := s.GenerateID(); id != "1" {
		t.Errorf("GenerateID = %q, want 1", id)
	}
	id := s.Add(NewCanvas(1, 1), CanvasType)
	if id != "1" {
		t.Errorf("Add id = %q, want 1", id)
	}
	if id := s.GenerateID(); id != "3" {
		t.Errorf("GenerateID = %q, want 3", id)
	}
}

func TestResourceStoreGetMissing(t *testing.T) {
	s := NewResourceStore(nil)
	if v, ok := s.Get("nope"); ok || v != nil {
		t.Errorf("Get(missing) = %v, %v", v, ok)
	}
	if _, ok := Lookup[*Canvas](s, "nope"); ok {
		t.Error("Lookup(missing) should report false")
	}
	s.Set("0", NewCanvas(1, 1), CanvasType)
	if _, ok := Lookup[*Atlas](s, "0"); ok {
		t.Error("Lookup with wrong type should report false")
	}
	if tag, ok := s.GetType("0"); !ok || tag != CanvasType {
		t.Errorf("GetType = %q, %v", tag, ok)
	}
}

func TestResourceStoreForkIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewResourceStore(nil)
	orig := newTestCanvas(2, 2, ColorBlack)
	s.Set("0", orig, CanvasType)

	id, inst, err := s.Fork(ctx, "0")
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if id == "0" {
		t.Fatal("Fork reused the original id")
	}
	forked := inst.(*Canvas)
	forked.Set(0, 0, ColorWhite)

	if got := orig.At(0, 0); got != ColorBlack {
		t.Errorf("original pixel = %v, want black", got)
	}

	orig.Set(1, 1, ColorWhite)
	if got := forked.At(1, 1); got != ColorBlack {
		t.Errorf("forked pixel = %v, want black", got)
	}

	stored, ok := Lookup[*Canvas](s, id)
	if !ok || stored != forked {
		t.Error("forked instance not stored under the new id")
	}
}

func TestResourceStoreForkUnknown(t *testing.T) {
	s := NewResourceStore(nil)
	_, _, err := s.Fork(context.Background(), "42")
	if !errors.Is(err, ErrUnknownResource) {
		t.Fatalf("err = %v, want ErrUnknownResource", err)
	}
}

func TestResourceStoreSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewResourceStore(nil)
	c := NewCanvas(3, 2)
	c.Set(0, 0, Color{1, 0, 0, 1})
	c.Set(2, 1, Color{0, 0, 1, 0.5})
	s.Set("0", c, CanvasType)
	s.Set("1", NewCanvas(1, 1), CanvasType)

	bundle, err := s.Save(ctx, []ResourceID{"0", "0", "missing"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(bundle) != 1 {
		t.Fatalf("len(bundle) = %d, want 1", len(bundle))
	}
	rd := bundle["0"]
	if rd.Type != CanvasType {
		t.Errorf("type = %q", rd.Type)
	}
	var uri string
	if err := json.Unmarshal(rd.Data, &uri); err != nil {
		t.Fatalf("data is not a JSON string: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("data = %.30q, want png data uri", uri)
	}

	dst := NewResourceStore(nil)
	dst.Set("7", NewCanvas(1, 1), CanvasType)
	if err := dst.Load(ctx, bundle); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := Lookup[*Canvas](dst, "0")
	if !ok {
		t.Fatal("loaded canvas missing")
	}
	if !got.Equal(c) {
		t.Error("loaded canvas differs from original")
	}
	if _, ok := dst.Get("7"); !ok {
		t.Error("Load removed an unrelated id")
	}
}

func TestResourceStoreLoadFailureLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		bundle ResourceBundle
		target error
	}{
		{
			name:   "unknown type",
			bundle: ResourceBundle{"0": {Type: "sound-wav", Data: json.RawMessage(`""`)}},
			target: ErrUnknownType,
		},
		{
			name:   "bad data uri",
			bundle: ResourceBundle{"0": {Type: CanvasType, Data: json.RawMessage(`"data:text/plain,hi"`)}},
		},
		{
			name:   "not a string",
			bundle: ResourceBundle{"0": {Type: CanvasType, Data: json.RawMessage(`12`)}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewResourceStore(nil)
			prev := NewCanvas(1, 1)
			s.Set("0", prev, CanvasType)
			err := s.Load(ctx, tt.bundle)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("err = %v, want %v", err, tt.target)
			}
			if got, _ := s.Get("0"); got != prev {
				t.Error("store was modified by a failed Load")
			}
		})
	}
}

func TestResourceStoreCopyFromIndependent(t *testing.T) {
	ctx := context.Background()
	src := NewResourceStore(nil)
	src.Set("0", newTestCanvas(2, 2, ColorBlack), CanvasType)
	src.Set("5", newTestCanvas(1, 1, ColorWhite), CanvasType)

	dst := NewResourceStore(nil)
	if err := dst.CopyFrom(ctx, src); err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if dst.Len() != 2 {
		t.Fatalf("Len = %d, want 2", dst.Len())
	}
	a, _ := Lookup[*Canvas](src, "0")
	b, _ := Lookup[*Canvas](dst, "0")
	if a == b {
		t.Fatal("CopyFrom shared an instance")
	}
	b.Set(0, 0, ColorWhite)
	if a.At(0, 0) != ColorBlack {
		t.Error("mutating the copy changed the source")
	}
}

func TestResourceStorePrune(t *testing.T) {
	s := NewResourceStore(nil)
	for i := 0; i < 4; i++ {
		s.Add(NewCanvas(1, 1), CanvasType)
	}
	removed := s.Prune(map[ResourceID]struct{}{"1": {}, "3": {}})
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	ids := s.IDs()
	if len(ids) != 2 || ids[0] != "1" || ids[1] != "3" {
		t.Errorf("IDs = %v, want [1 3]", ids)
	}
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d", s.Len())
	}
}

func TestResourceStoreIDsNumericOrder(t *testing.T) {
	s := NewResourceStore(nil)
	for _, id := range []ResourceID{"10", "2", "x", "1"} {
		s.Set(id, NewCanvas(1, 1), CanvasType)
	}
	got := s.IDs()
	want := []ResourceID{"1", "2", "10", "x"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("IDs = %v, want %v", got, want)
		}
	}
}

func TestRegistryCustomType(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry()
	Register(reg, "text", Handler[*strings.Builder]{
		Load: func(_ context.Context, data json.RawMessage) (*strings.Builder, error) {
			var s string
			if err := json.Unmarshal(data, &s); err != nil {
				return nil, err
			}
			b := &strings.Builder{}
			b.WriteString(s)
			return b, nil
		},
		Copy: func(_ context.Context, b *strings.Builder) (*strings.Builder, error) {
			c := &strings.Builder{}
			c.WriteString(b.String())
			return c, nil
		},
		Save: func(_ context.Context, b *strings.Builder) (json.RawMessage, error) {
			return json.Marshal(b.String())
		},
	})
	if tags := reg.Tags(); len(tags) != 1 || tags[0] != "text" {
		t.Fatalf("Tags = %v", tags)
	}

	s := NewResourceStore(reg)
	b := &strings.Builder{}
	b.WriteString("hello")
	s.Set("0", b, "text")

	_, inst, err := s.Fork(ctx, "0")
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	inst.(*strings.Builder).WriteString(" world")
	if b.String() != "hello" {
		t.Errorf("original = %q, want hello", b.String())
	}

	// An instance of the wrong Go type is reported, not panicked on.
	s.Set("1", 12, "text")
	if _, err := s.Save(ctx, []ResourceID{"1"}); !errors.Is(err, ErrWrongType) {
		t.Errorf("Save wrong type err = %v, want ErrWrongType", err)
	}

	// Canvas is not registered in a bare registry.
	s.Set("2", NewCanvas(1, 1), CanvasType)
	if _, _, err := s.Fork(ctx, "2"); !errors.Is(err, ErrUnknownType) {
		t.Errorf("Fork unregistered err = %v, want ErrUnknownType", err)
	}
}

func TestAtlasHandlerRoundTrip(t *testing.T) {
	ctx := context.Background()
	cv := newTestCanvas(16, 8, ColorWhite)
	a := NewGridAtlas(cv, 8, 8)
	if names := a.RegionNames(); len(names) != 2 {
		t.Fatalf("grid regions = %v, want 2", names)
	}
	a.SetRegion("hero", TextureRegion{X: 2, Y: 1, Width: 4, Height: 5, OriginalW: 6, OriginalH: 6, OffsetX: 1, OffsetY: 1})

	s := NewResourceStore(nil)
	s.Set("0", a, AtlasType)
	bundle, err := s.Save(ctx, []ResourceID{"0"})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	dst := NewResourceStore(nil)
	if err := dst.Load(ctx, bundle); err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, ok := Lookup[*Atlas](dst, "0")
	if !ok {
		t.Fatal("atlas missing after load")
	}
	if got.Region("hero") != a.Region("hero") {
		t.Errorf("hero = %+v, want %+v", got.Region("hero"), a.Region("hero"))
	}
	if got.Region("1").X != 8 {
		t.Errorf("grid cell 1 X = %d, want 8", got.Region("1").X)
	}
	if !got.Canvas.Equal(cv) {
		t.Error("atlas canvas differs after round trip")
	}
}

func TestAtlasRegionMissing(t *testing.T) {
	a := NewAtlas(NewCanvas(4, 4))
	r := a.Region("nope")
	if !r.Missing() {
		t.Error("expected placeholder region")
	}
	if r.Width != 1 || r.Height != 1 {
		t.Errorf("placeholder size = %dx%d, want 1x1", r.Width, r.Height)
	}
}

func TestAtlasParseFrames(t *testing.T) {
	a := NewAtlas(NewCanvas(64, 64))
	err := a.ParseAtlasFrames([]byte(`{
		"trimmed.png": {
			"frame": {"x": 10, "y": 5, "w": 30, "h": 28},
			"rotated": true,
			"trimmed": true,
			"spriteSourceSize": {"x": 2, "y": 3, "w": 30, "h": 28},
			"sourceSize": {"w": 32, "h": 32}
		}
	}`))
	if err != nil {
		t.Fatalf("ParseAtlasFrames: %v", err)
	}
	r := a.Region("trimmed.png")
	if r.X != 10 || r.Y != 5 || r.Width != 30 || r.Height != 28 {
		t.Errorf("rect = %+v", r)
	}
	if r.OffsetX != 2 || r.OffsetY != 3 || !r.Rotated {
		t.Errorf("trim = %+v", r)
	}
	if err := a.ParseAtlasFrames([]byte(`nope`)); err == nil {
		t.Error("expected parse error")
	}
}

func TestColorHexRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#fff", "#ffffff"},
		{"#ff8000", "#ff8000"},
		{"00ff0080", "#00ff0080"},
	}
	for _, tt := range tests {
		c, err := ParseHexColor(tt.in)
		if err != nil {
			t.Fatalf("ParseHexColor(%q): %v", tt.in, err)
		}
		if got := c.Hex(); got != tt.want {
			t.Errorf("Hex(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if _, err := ParseHexColor("#12"); err == nil {
		t.Error("expected error for short hex")
	}
	if _, err := ParseHexColor("#zzzzzz"); err == nil {
		t.Error("expected error for non-hex digits")
	}
}

func TestColorFromHSVPrimaries(t *testing.T) {
	if c := ColorFromHSV(0, 1, 1); c != (Color{1, 0, 0, 1}) {
		t.Errorf("hue 0 = %v", c)
	}
	if c := ColorFromHSV(120, 1, 1); c != (Color{0, 1, 0, 1}) {
		t.Errorf("hue 120 = %v", c)
	}
	if c := ColorFromHSV(-120, 1, 1); c != (Color{0, 0, 1, 1}) {
		t.Errorf("hue -120 = %v", c)
	}
}

// countingRegistry registers a "count" type whose handlers record how often
// they run.
func countingRegistry(calls *atomic.Int32) *Registry {
	reg := NewRegistry()
	Register(reg, "count", Handler[int]{
		Load: func(_ context.Context, data json.RawMessage) (int, error) {
			calls.Add(1)
			var n int
			err := json.Unmarshal(data, &n)
			return n, err
		},
		Copy: func(_ context.Context, n int) (int, error) {
			calls.Add(1)
			return n, nil
		},
		Save: func(_ context.Context, n int) (json.RawMessage, error) {
			return json.Marshal(n)
		},
	})
	return reg
}

func TestResourceStoreUnknownTypeStartsNoWork(t *testing.T) {
	ctx := context.Background()

	t.Run("CopyFrom", func(t *testing.T) {
		var calls atomic.Int32
		srcReg := countingRegistry(&calls)
		rt, _ := srcReg.Lookup("count")
		srcReg.RegisterType("extra", rt)
		src := NewResourceStore(srcReg)
		src.Set("0", 1, "count")
		src.Set("1", 2, "count")
		src.Set("2", 3, "extra")

		dst := NewResourceStore(countingRegistry(&calls))
		if err := dst.CopyFrom(ctx, src); !errors.Is(err, ErrUnknownType) {
			t.Fatalf("err = %v, want ErrUnknownType", err)
		}
		if n := calls.Load(); n != 0 {
			t.Errorf("%d copies ran before the unknown type was reported", n)
		}
		if dst.Len() != 0 {
			t.Errorf("Len = %d, want 0", dst.Len())
		}
	})

	t.Run("Load", func(t *testing.T) {
		var calls atomic.Int32
		s := NewResourceStore(countingRegistry(&calls))
		err := s.Load(ctx, ResourceBundle{
			"0": {Type: "count", Data: json.RawMessage(`1`)},
			"1": {Type: "count", Data: json.RawMessage(`2`)},
			"2": {Type: "sound-wav", Data: json.RawMessage(`""`)},
		})
		if !errors.Is(err, ErrUnknownType) {
			t.Fatalf("err = %v, want ErrUnknownType", err)
		}
		if n := calls.Load(); n != 0 {
			t.Errorf("%d decodes ran before the unknown type was reported", n)
		}
	})
}
