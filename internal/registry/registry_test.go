package registry

import (
	"reflect"
	"strings"
	"testing"

	"sounding_parser/internal/bulletin"
)

type stubResult struct {
	parser string
	id     int64
}

func (r *stubResult) Type() string     { return r.parser }
func (r *stubResult) MessageID() int64 { return r.id }

type stubParser struct {
	name     string
	parts    []string
	priority int
	marker   string
}

func (p *stubParser) Name() string    { return p.name }
func (p *stubParser) Parts() []string { return p.parts }
func (p *stubParser) Priority() int   { return p.priority }
func (p *stubParser) QuickCheck(text string) bool {
	return strings.Contains(text, p.marker)
}
func (p *stubParser) Parse(msg *bulletin.Message) Result {
	return &stubResult{parser: p.name, id: int64(msg.ID)}
}

func newTestRegistry() *Registry {
	r := New()
	r.Register(&stubParser{name: "aa", parts: []string{"TTAA"}, priority: 10, marker: "TTAA"})
	r.Register(&stubParser{name: "bb", parts: []string{"TTBB"}, priority: 10, marker: "TTBB"})
	r.Register(&stubParser{name: "aa-early", parts: []string{"TTAA"}, priority: 1, marker: "TTAA"})
	r.RegisterCatchAll(&stubParser{name: "unknown"})
	r.Sort()
	return r
}

func types(results []Result) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Type())
	}
	return out
}

func TestDispatch(t *testing.T) {
	r := newTestRegistry()

	tests := []struct {
		name string
		msg  *bulletin.Message
		want []string
	}{
		{"by part in priority order", &bulletin.Message{Part: "TTAA", Text: "TTAA 51231"}, []string{"aa-early", "aa"}},
		{"part without parser falls to catch-all", &bulletin.Message{Part: "TTCC", Text: "TTCC 51231"}, []string{"unknown"}},
		{"no part uses quick checks", &bulletin.Message{Text: "TTBB 51238"}, []string{"bb"}},
		{"quick check rejects", &bulletin.Message{Part: "TTAA", Text: "TTBB 51238"}, []string{"unknown"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := types(r.Dispatch(tt.msg)); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Dispatch() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatchFirst(t *testing.T) {
	r := newTestRegistry()

	got := r.DispatchFirst(&bulletin.Message{ID: 4, Part: "TTAA", Text: "TTAA"})
	if got == nil || got.Type() != "aa-early" || got.MessageID() != 4 {
		t.Errorf("DispatchFirst() = %+v, want aa-early/4", got)
	}
}

func TestRegistryIntrospection(t *testing.T) {
	r := newTestRegistry()

	if got := r.RegisteredParts(); !reflect.DeepEqual(got, []string{"TTAA", "TTBB"}) {
		t.Errorf("RegisteredParts() = %v", got)
	}
	if got := r.ParserCount(); got != 4 {
		t.Errorf("ParserCount() = %d, want 4", got)
	}
	if got := len(r.AllParsers()); got != 4 {
		t.Errorf("len(AllParsers()) = %d, want 4", got)
	}
}
