package sandbox

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/alexbotov/pokepay-go/pkg/pokepay"
)

// Fixture is a canned reply for one logical method and path. Path segments
// written as {name} match any single segment.
type Fixture struct {
	Method string         `json:"method"`
	Path   string         `json:"path"`
	Status int            `json:"status"`
	Reply  map[string]any `json:"reply"`
}

// Validate checks the fixture and fills the default status
func (f *Fixture) Validate() error {
	f.Method = strings.ToUpper(f.Method)
	if !pokepay.Method(f.Method).Valid() {
		return fmt.Errorf("unsupported method %q", f.Method)
	}
	if !strings.HasPrefix(f.Path, "/") {
		return fmt.Errorf("path %q must start with /", f.Path)
	}
	if strings.HasPrefix(f.Path, "/_sandbox") {
		return fmt.Errorf("path %q is reserved", f.Path)
	}
	if f.Status == 0 {
		f.Status = http.StatusOK
	}
	if f.Status < 100 || f.Status > 599 {
		return fmt.Errorf("invalid status %d", f.Status)
	}
	if f.Reply == nil {
		f.Reply = map[string]any{}
	}
	return nil
}

func (f *Fixture) key() string {
	return f.Method + " " + f.Path
}

func (f *Fixture) matches(method, path string) bool {
	if f.Method != method {
		return false
	}
	want := strings.Split(strings.Trim(f.Path, "/"), "/")
	got := strings.Split(strings.Trim(path, "/"), "/")
	if len(want) != len(got) {
		return false
	}
	for i := range want {
		if strings.HasPrefix(want[i], "{") && strings.HasSuffix(want[i], "}") {
			continue
		}
		if want[i] != got[i] {
			return false
		}
	}
	return true
}

// FixtureTable holds registered fixtures
type FixtureTable struct {
	mu       sync.RWMutex
	fixtures map[string]*Fixture
}

// NewFixtureTable creates an empty table
func NewFixtureTable() *FixtureTable {
	return &FixtureTable{fixtures: make(map[string]*Fixture)}
}

// Put registers f, replacing any fixture for the same method and path
func (t *FixtureTable) Put(f Fixture) error {
	if err := f.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixtures[f.key()] = &f
	return nil
}

// Match returns the fixture for method and path. Exact paths win over
// templated ones.
func (t *FixtureTable) Match(method, path string) (*Fixture, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if f, ok := t.fixtures[method+" "+path]; ok {
		return f, true
	}
	for _, f := range t.fixtures {
		if f.matches(method, path) {
			return f, true
		}
	}
	return nil, false
}

// List returns all fixtures ordered by path then method
func (t *FixtureTable) List() []Fixture {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Fixture, 0, len(t.fixtures))
	for _, f := range t.fixtures {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Method < out[j].Method
	})
	return out
}

// Clear removes every fixture
func (t *FixtureTable) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fixtures = make(map[string]*Fixture)
}
