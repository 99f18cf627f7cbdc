// Package deps models pack dependencies as a directed graph: an edge from A
// to B means pack A depends on pack B. The graph is only used for
// reachability; upstream tooling guarantees it is acyclic, but traversal
// still tolerates cycles.
package deps

import (
	"encoding/json"
	"os"
	"sort"

	apperrors "github.com/garunski/marketplace-publisher/pkg/publisher/errors"
)

// Dependency is one declared dependency of a pack.
type Dependency struct {
	Mandatory   bool   `json:"mandatory"`
	MinVersion  string `json:"minVersion,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Author      string `json:"author,omitempty"`
}

// PackDependencies is the calculated dependency record of one pack.
type PackDependencies struct {
	Dependencies    map[string]Dependency `json:"dependencies"`
	DisplayedImages []string              `json:"displayedImages,omitempty"`
}

// Mapping is the pack dependencies file: pack name to its record.
type Mapping map[string]PackDependencies

// LoadMapping reads the pack dependencies file. An empty path yields an
// empty mapping.
func LoadMapping(path string) (Mapping, error) {
	if path == "" {
		return Mapping{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.WrapMetadata(err, "read pack dependencies "+path)
	}
	var m Mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, apperrors.WrapMetadata(err, "decode pack dependencies "+path)
	}
	return m, nil
}

type Graph struct {
	// adjacency maps each pack to the packs it depends on
	adjacency map[string][]string
	// mandatory is the subset of adjacency a pack cannot be installed without
	mandatory map[string][]string
}

func New() *Graph {
	return &Graph{
		adjacency: make(map[string][]string),
		mandatory: make(map[string][]string),
	}
}

// FromMapping builds the graph of every pack in m.
func FromMapping(m Mapping) *Graph {
	g := New()
	for name, rec := range m {
		for dep, d := range rec.Dependencies {
			g.AddEdge(name, dep, d.Mandatory)
		}
	}
	return g
}

// AddEdge records that from depends on to.
func (g *Graph) AddEdge(from, to string, mandatory bool) {
	if from == to {
		return
	}
	g.adjacency[from] = appendUnique(g.adjacency[from], to)
	if mandatory {
		g.mandatory[from] = appendUnique(g.mandatory[from], to)
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

// Direct returns the first-level dependencies of name, sorted.
func (g *Graph) Direct(name string) []string {
	out := append([]string(nil), g.adjacency[name]...)
	sort.Strings(out)
	return out
}

// Closure returns every pack reachable from name through mandatory edges,
// excluding name itself, sorted.
func (g *Graph) Closure(name string) []string {
	visited := map[string]bool{name: true}
	stack := append([]string(nil), g.mandatory[name]...)
	var out []string

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		out = append(out, n)
		stack = append(stack, g.mandatory[n]...)
	}

	sort.Strings(out)
	return out
}

// Missing returns the members of names for which present reports false.
func Missing(names []string, present func(string) bool) []string {
	var out []string
	for _, n := range names {
		if !present(n) {
			out = append(out, n)
		}
	}
	return out
}
