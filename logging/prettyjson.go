package logging

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PrettyJSONHandler is a slog.Handler that writes each record as an indented
// JSON object. Groups become nested objects. It favours readability on a
// terminal over throughput.
type PrettyJSONHandler struct {
	w         io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	addSource bool

	attrs  []boundAttr
	groups []string
}

// boundAttr remembers how many groups were open when the attr was attached.
type boundAttr struct {
	depth int
	attr  slog.Attr
}

func NewPrettyJSONHandler(w io.Writer, opts *slog.HandlerOptions) *PrettyJSONHandler {
	h := &PrettyJSONHandler{
		w:     w,
		mu:    &sync.Mutex{},
		level: slog.LevelInfo,
	}
	if opts != nil {
		if opts.Level != nil {
			h.level = opts.Level
		}
		h.addSource = opts.AddSource
	}
	return h
}

func (h *PrettyJSONHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *PrettyJSONHandler) Handle(_ context.Context, r slog.Record) error {
	when := r.Time
	if when.IsZero() {
		when = time.Now()
	}

	payload := map[string]any{
		"time":  when.Format(time.RFC3339Nano),
		"level": r.Level.String(),
		"msg":   r.Message,
	}
	if h.addSource {
		if src := sourceFromPC(r.PC); src != "" {
			payload["source"] = src
		}
	}

	for _, ba := range h.attrs {
		putAttr(groupMap(payload, h.groups[:ba.depth]), ba.attr)
	}
	dst := groupMap(payload, h.groups)
	r.Attrs(func(a slog.Attr) bool {
		putAttr(dst, a)
		return true
	})

	b, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		b = []byte(`{"time":` + strconv.Quote(payload["time"].(string)) +
			`,"level":` + strconv.Quote(r.Level.String()) +
			`,"msg":` + strconv.Quote(r.Message) +
			`,"log_error":` + strconv.Quote(err.Error()) + `}`)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err = h.w.Write(append(b, '\n'))
	return err
}

func (h *PrettyJSONHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.attrs = append([]boundAttr(nil), h.attrs...)
	for _, a := range attrs {
		clone.attrs = append(clone.attrs, boundAttr{depth: len(h.groups), attr: a})
	}
	return &clone
}

func (h *PrettyJSONHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	clone.groups = append(append([]string(nil), h.groups...), name)
	return &clone
}

func groupMap(root map[string]any, groups []string) map[string]any {
	dst := root
	for _, g := range groups {
		child, ok := dst[g].(map[string]any)
		if !ok {
			child = map[string]any{}
			dst[g] = child
		}
		dst = child
	}
	return dst
}

func putAttr(dst map[string]any, a slog.Attr) {
	v := a.Value.Resolve()
	if a.Key == "" && v.Kind() != slog.KindGroup {
		return
	}

	if v.Kind() == slog.KindGroup {
		target := dst
		if a.Key != "" {
			child := map[string]any{}
			dst[a.Key] = child
			target = child
		}
		for _, ga := range v.Group() {
			putAttr(target, ga)
		}
		return
	}

	switch v.Kind() {
	case slog.KindDuration:
		dst[a.Key] = v.Duration().String()
	case slog.KindTime:
		dst[a.Key] = v.Time().Format(time.RFC3339Nano)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			dst[a.Key] = err.Error()
			return
		}
		dst[a.Key] = v.Any()
	default:
		dst[a.Key] = v.Any()
	}
}

func sourceFromPC(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	f, _ := frames.Next()
	if f.File == "" {
		return ""
	}
	file := f.File
	if idx := strings.LastIndexByte(file, '/'); idx >= 0 {
		file = file[idx+1:]
	}
	return file + ":" + strconv.Itoa(f.Line)
}
