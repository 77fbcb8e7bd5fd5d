package sapling

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// Field is one typed key/value annotation on an event.
type Field struct {
	Key  string `json:"key"`
	Type string `json:"type"`
	Data any    `json:"data"`
}

// FieldHolder is anything a script can read and write fields on.
type FieldHolder interface {
	EventID() int
	Field(key string) (Field, bool)
	SetField(f Field)
	Fields() []Field
}

// PlayerInfo is the runtime state a script sees through PLAYER.
type PlayerInfo interface {
	Room() int
	Position() (x, y int)
}

// ScriptEnv is the capability set handed to one script run. Nil members are
// exposed to Lua as nil.
type ScriptEnv struct {
	Event    FieldHolder
	Avatar   FieldHolder
	Player   PlayerInfo
	Dialogue *DialoguePlayer
}

// DefaultScriptBudget is how long a script may run between suspensions
// before it is stopped and reported as a script error.
const DefaultScriptBudget = 250 * time.Millisecond

// maxFieldDepth bounds table nesting in values stored with SET_FIELD.
const maxFieldDepth = 32

// scriptErrorColor tints the in-band error dialogue.
var scriptErrorColor = Color{R: 1, G: 0.3, B: 0.3, A: 1}

// ScriptHost runs event scripts as Lua coroutines. Each run gets its own
// sandboxed interpreter. Tasks suspend on SAY and DELAY and are resumed by
// Update, so the host must be driven from the game loop.
type ScriptHost struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
	budget time.Duration
	tasks  []*ScriptTask
	logs   Signal[ScriptLog]
}

// ScriptLog is one LOG or print call.
type ScriptLog struct {
	EventID int
	Message string
}

// NewScriptHost creates a host. A nil logger discards output.
func NewScriptHost(logger *slog.Logger) *ScriptHost {
	ctx, cancel := context.WithCancel(context.Background())
	return &ScriptHost{ctx: ctx, cancel: cancel, logger: orDiscard(logger), budget: DefaultScriptBudget}
}

// SetBudget sets how long one resume may run before the task fails.
// Non-positive values restore DefaultScriptBudget.
func (h *ScriptHost) SetBudget(d time.Duration) {
	if d <= 0 {
		d = DefaultScriptBudget
	}
	h.budget = d
}

// OnLog registers fn to receive script log lines.
func (h *ScriptHost) OnLog(fn func(ScriptLog)) CallbackHandle {
	return h.logs.Connect(fn)
}

// Running returns the number of unfinished tasks.
func (h *ScriptHost) Running() int { return len(h.tasks) }

// Run compiles source and runs it until it finishes or first suspends.
// Compile and runtime errors never escape: they are queued as a
// "SCRIPT ERROR:" page on env.Dialogue, logged, and recorded on the task.
func (h *ScriptHost) Run(source string, env ScriptEnv) *ScriptTask {
	t := &ScriptTask{host: h, env: env, done: make(chan struct{})}
	if env.Event != nil {
		t.eventID = env.Event.EventID()
	}
	if err := h.ctx.Err(); err != nil {
		t.finish(err)
		return t
	}

	L := newSandbox()
	L.SetContext(h.ctx)
	t.L = L
	t.install()

	fn, err := L.Load(strings.NewReader(source), "touch")
	if err != nil {
		t.fail(err)
		return t
	}
	t.co, t.stop = L.NewThread()
	t.fn = fn
	h.logger.Debug("script started", "event", t.eventID)
	t.resume()
	if !t.finished {
		h.tasks = append(h.tasks, t)
	}
	return t
}

// Update advances DELAY timers by dt seconds and resumes every task whose
// wait is over.
func (h *ScriptHost) Update(dt float64) {
	if len(h.tasks) == 0 {
		return
	}
	// Resumed scripts may start new tasks; those wait for the next Update.
	tasks := h.tasks
	h.tasks = nil
	kept := tasks[:0]
	for _, t := range tasks {
		if t.finished {
			continue
		}
		if t.delay > 0 {
			t.delay -= dt
			if t.delay > 0 {
				kept = append(kept, t)
				continue
			}
			t.delay = 0
		}
		if t.say != nil && !t.say.Finished() {
			kept = append(kept, t)
			continue
		}
		t.say = nil
		t.resume()
		if !t.finished {
			kept = append(kept, t)
		}
	}
	h.tasks = append(kept, h.tasks...)
}

// Close cancels every running task and releases the interpreters. Run
// after Close returns a task that has already failed with context.Canceled.
func (h *ScriptHost) Close() {
	h.cancel()
	for _, t := range h.tasks {
		t.finish(context.Canceled)
	}
	h.tasks = nil
}

// ScriptTask is one running script.
type ScriptTask struct {
	host    *ScriptHost
	env     ScriptEnv
	eventID int

	L    *lua.LState
	co   *lua.LState
	fn   *lua.LFunction
	stop context.CancelFunc

	delay float64
	say   *DialogueHandle

	done     chan struct{}
	err      error
	finished bool
}

// Done is closed when the script returns, fails or is cancelled.
func (t *ScriptTask) Done() <-chan struct{} { return t.done }

// Finished reports whether Done is closed.
func (t *ScriptTask) Finished() bool { return t.finished }

// Err returns the *ScriptError the script failed with, context.Canceled if
// the host closed first, or nil.
func (t *ScriptTask) Err() error { return t.err }

// resume runs the coroutine until it yields or ends. Each resume gets its
// own deadline, so a script that never yields fails instead of stalling
// the game loop.
func (t *ScriptTask) resume() {
	ctx, cancel := context.WithTimeout(t.host.ctx, t.host.budget)
	defer cancel()
	t.co.SetContext(ctx)
	st, err, _ := t.L.Resume(t.co, t.fn)
	switch st {
	case lua.ResumeOK:
		t.host.logger.Debug("script finished", "event", t.eventID)
		t.finish(nil)
	case lua.ResumeError:
		if errors.Is(err, context.Canceled) || t.host.ctx.Err() != nil {
			t.finish(context.Canceled)
			return
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			t.fail(fmt.Errorf("script ran longer than %v without yielding", t.host.budget))
			return
		}
		t.fail(err)
	}
}

// fail reports err in-band and finishes the task.
func (t *ScriptTask) fail(err error) {
	serr := &ScriptError{EventID: t.eventID, Err: errors.New(luaMessage(err))}
	t.host.logger.Warn("script failed", "event", t.eventID, "err", serr.Err)
	if t.env.Dialogue != nil {
		t.env.Dialogue.QueueScript("SCRIPT ERROR: "+serr.Err.Error(), WithTextColor(scriptErrorColor))
	}
	t.finish(serr)
}

func (t *ScriptTask) finish(err error) {
	if t.finished {
		return
	}
	t.finished = true
	t.err = err
	t.say = nil
	if t.stop != nil {
		t.stop()
	}
	if t.L != nil {
		t.L.Close()
		t.L = nil
	}
	close(t.done)
}

// luaMessage strips the Go stack trace gopher-lua appends to runtime errors.
func luaMessage(err error) string {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}

// newSandbox returns a state with only the base, table, string and math
// libraries, minus everything that reaches the filesystem or loads code.
func newSandbox() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module", "getfenv", "setfenv", "collectgarbage"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

const holderTypeName = "sapling.holder"
const playerTypeName = "sapling.player"

// install binds the capability namespace into the task's globals.
func (t *ScriptTask) install() {
	L := t.L
	L.SetGlobal("SAY", L.NewFunction(t.luaSay))
	L.SetGlobal("DELAY", L.NewFunction(t.luaDelay))
	L.SetGlobal("LOG", L.NewFunction(t.luaLog))
	L.SetGlobal("print", L.NewFunction(t.luaLog))
	L.SetGlobal("FIELD", L.NewFunction(luaField))
	L.SetGlobal("SET_FIELD", L.NewFunction(luaSetField))
	L.SetGlobal("FIELDS", L.NewFunction(luaFields))

	hmt := L.NewTypeMetatable(holderTypeName)
	L.SetField(hmt, "__index", L.NewFunction(holderIndex))
	L.SetField(hmt, "__tostring", L.NewFunction(func(L *lua.LState) int {
		h := checkHolder(L, 1)
		L.Push(lua.LString(fmt.Sprintf("event %d", h.EventID())))
		return 1
	}))
	pmt := L.NewTypeMetatable(playerTypeName)
	L.SetField(pmt, "__index", L.NewFunction(playerIndex))

	L.SetGlobal("EVENT", newHolder(L, t.env.Event))
	L.SetGlobal("AVATAR", newHolder(L, t.env.Avatar))
	if t.env.Player != nil {
		ud := L.NewUserData()
		ud.Value = t.env.Player
		L.SetMetatable(ud, L.GetTypeMetatable(playerTypeName))
		L.SetGlobal("PLAYER", ud)
	} else {
		L.SetGlobal("PLAYER", lua.LNil)
	}
}

func newHolder(L *lua.LState, h FieldHolder) lua.LValue {
	if h == nil {
		return lua.LNil
	}
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, L.GetTypeMetatable(holderTypeName))
	return ud
}

func checkHolder(L *lua.LState, n int) FieldHolder {
	ud := L.CheckUserData(n)
	h, ok := ud.Value.(FieldHolder)
	if !ok {
		L.ArgError(n, "event expected")
	}
	return h
}

// holderIndex serves EVENT.id and EVENT.<field> lookups.
func holderIndex(L *lua.LState) int {
	h := checkHolder(L, 1)
	key := L.CheckString(2)
	if key == "id" {
		L.Push(lua.LNumber(h.EventID()))
		return 1
	}
	f, ok := h.Field(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, f.Data))
	return 1
}

func playerIndex(L *lua.LState) int {
	ud := L.CheckUserData(1)
	p, ok := ud.Value.(PlayerInfo)
	if !ok {
		L.ArgError(1, "player expected")
	}
	x, y := p.Position()
	switch L.CheckString(2) {
	case "room":
		L.Push(lua.LNumber(p.Room()))
	case "x":
		L.Push(lua.LNumber(x))
	case "y":
		L.Push(lua.LNumber(y))
	default:
		L.Push(lua.LNil)
	}
	return 1
}

// SAY(text) queues dialogue and suspends until its last page is passed.
func (t *ScriptTask) luaSay(L *lua.LState) int {
	text := L.CheckString(1)
	if t.env.Dialogue == nil {
		L.RaiseError("SAY: no dialogue player")
		return 0
	}
	h := t.env.Dialogue.QueueScript(text)
	if h.Finished() {
		return 0
	}
	t.say = h
	return L.Yield()
}

// DELAY(seconds) suspends for that much Update time.
func (t *ScriptTask) luaDelay(L *lua.LState) int {
	s := float64(L.CheckNumber(1))
	if s <= 0 {
		return 0
	}
	t.delay = s
	return L.Yield()
}

// LOG(...) joins its arguments with spaces, like print.
func (t *ScriptTask) luaLog(L *lua.LState) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	msg := strings.Join(parts, " ")
	t.host.logger.Info("script log", "event", t.eventID, "msg", msg)
	t.host.logs.Emit(ScriptLog{EventID: t.eventID, Message: msg})
	return 0
}

// FIELD(target, key) returns the field's data or nil.
func luaField(L *lua.LState) int {
	h := checkHolder(L, 1)
	f, ok := h.Field(L.CheckString(2))
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLua(L, f.Data))
	return 1
}

// SET_FIELD(target, key, value[, type]) writes a field. Without a type the
// existing field's type is kept, or inferred from the value.
func luaSetField(L *lua.LState) int {
	h := checkHolder(L, 1)
	key := L.CheckString(2)
	v := L.Get(3)
	typ := L.OptString(4, "")
	if typ == "" {
		if old, ok := h.Field(key); ok {
			typ = old.Type
		} else if v.Type() == lua.LTString {
			typ = "text"
		} else {
			typ = "json"
		}
	}
	data, err := fromLua(v, map[*lua.LTable]bool{}, 0)
	if err != nil {
		L.ArgError(3, err.Error())
		return 0
	}
	h.SetField(Field{Key: key, Type: typ, Data: data})
	return 0
}

// FIELDS(target) returns {key = data, ...}.
func luaFields(L *lua.LState) int {
	h := checkHolder(L, 1)
	tbl := L.NewTable()
	for _, f := range h.Fields() {
		tbl.RawSetString(f.Key, toLua(L, f.Data))
	}
	L.Push(tbl)
	return 1
}

// toLua converts JSON-shaped Go data to a Lua value.
func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case []any:
		tbl := L.CreateTable(len(v), 0)
		for _, e := range v {
			tbl.Append(toLua(L, e))
		}
		return tbl
	case map[string]any:
		tbl := L.CreateTable(0, len(v))
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			tbl.RawSetString(k, toLua(L, v[k]))
		}
		return tbl
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

// fromLua converts a Lua value to JSON-shaped Go data. Tables whose keys
// are exactly 1..n become slices. open holds the tables on the current
// conversion path; a table may appear more than once but not inside itself.
func fromLua(v lua.LValue, open map[*lua.LTable]bool, depth int) (any, error) {
	switch v := v.(type) {
	case *lua.LNilType:
		return nil, nil
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		return float64(v), nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if open[v] {
			return nil, errors.New("cannot store a cyclic table in a field")
		}
		if depth >= maxFieldDepth {
			return nil, fmt.Errorf("tables nested deeper than %d cannot be stored in a field", maxFieldDepth)
		}
		open[v] = true
		defer delete(open, v)
		n := v.Len()
		count := 0
		v.ForEach(func(lua.LValue, lua.LValue) { count++ })
		if n > 0 && n == count {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				e, err := fromLua(v.RawGetInt(i), open, depth+1)
				if err != nil {
					return nil, err
				}
				out = append(out, e)
			}
			return out, nil
		}
		out := make(map[string]any, count)
		var ferr error
		v.ForEach(func(k, e lua.LValue) {
			if ferr != nil {
				return
			}
			d, err := fromLua(e, open, depth+1)
			if err != nil {
				ferr = err
				return
			}
			out[k.String()] = d
		})
		if ferr != nil {
			return nil, ferr
		}
		return out, nil
	default:
		return nil, fmt.Errorf("cannot store %s in a field", v.Type())
	}
}
