package workflow

import (
	"fmt"
	"sort"

	"github.com/renderflow/renderflow/model"
	"gopkg.in/yaml.v3"
)

// Parse decodes a workflow document. Two forms are accepted: a plain
// ordered steps list, and the authoring tool form of nodes plus a
// connections graph, which is flattened to an ordered list by topological
// sort. JSON documents parse too since YAML is a superset.
func Parse(data []byte) (*model.Workflow, error) {
	doc := &document{}
	if err := yaml.Unmarshal(data, doc); err != nil {
		return nil, err
	}
	ret := &model.Workflow{Name: doc.Name, Description: doc.Description}
	if len(doc.Nodes) == 0 {
		ret.Steps = doc.Steps
		return ret, nil
	}
	if len(doc.Steps) > 0 {
		return nil, fmt.Errorf("workflow %q declares both steps and nodes", doc.Name)
	}
	steps, err := doc.orderedNodes()
	if err != nil {
		return nil, err
	}
	ret.Steps = steps
	return ret, nil
}

type document struct {
	Name        string                  `yaml:"name"`
	Description string                  `yaml:"description"`
	Steps       []*model.StepDefinition `yaml:"steps"`
	Nodes       []*node                 `yaml:"nodes"`
	Connections map[string]*nodeOutput  `yaml:"connections"`
}

type node struct {
	ID         string                 `yaml:"id"`
	Name       string                 `yaml:"name"`
	Type       string                 `yaml:"type"`
	Plugin     string                 `yaml:"plugin"`
	Parameters map[string]interface{} `yaml:"parameters"`
	Inputs     map[string]string      `yaml:"inputs"`
	Outputs    map[string]string      `yaml:"outputs"`
}

func (n *node) typeID() string {
	if n.Type != "" {
		return n.Type
	}
	return n.Plugin
}

type nodeOutput struct {
	Main yaml.Node `yaml:"main"`
}

type connectionTarget struct {
	Node string `yaml:"node"`
}

type edge struct {
	from, to string
}

// edges flattens a node's outgoing connections. Both the authoring tool
// object form main: {"0": [...]} and the simple array form main: [[...]]
// are supported.
func (o *nodeOutput) edges(from string) ([]edge, error) {
	var ret []edge
	appendTargets := func(value *yaml.Node) error {
		var targets []connectionTarget
		if err := value.Decode(&targets); err != nil {
			return fmt.Errorf("connections for %q: %w", from, err)
		}
		for _, target := range targets {
			if target.Node == "" {
				return fmt.Errorf("connections for %q: entry requires a node name", from)
			}
			ret = append(ret, edge{from: from, to: target.Node})
		}
		return nil
	}
	switch o.Main.Kind {
	case 0, yaml.AliasNode:
		return nil, nil
	case yaml.MappingNode:
		for i := 1; i < len(o.Main.Content); i += 2 {
			if err := appendTargets(o.Main.Content[i]); err != nil {
				return nil, err
			}
		}
	case yaml.SequenceNode:
		for _, item := range o.Main.Content {
			if err := appendTargets(item); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("connections.main for %q must be a mapping or sequence", from)
	}
	return ret, nil
}

// orderedNodes resolves the connection graph to an ordered step list
// using Kahn's algorithm, preserving declaration order among ready nodes.
func (d *document) orderedNodes() ([]*model.StepDefinition, error) {
	index := make(map[string]int, len(d.Nodes))
	nameToID := make(map[string]string, len(d.Nodes))
	byID := make(map[string]*node, len(d.Nodes))
	for i, item := range d.Nodes {
		if item.ID == "" {
			item.ID = fmt.Sprintf("node-%d", i)
		}
		if _, ok := byID[item.ID]; ok {
			return nil, fmt.Errorf("duplicate node id %q", item.ID)
		}
		index[item.ID] = i
		byID[item.ID] = item
		if item.Name != "" {
			nameToID[item.Name] = item.ID
		}
	}

	var edges []edge
	for from, output := range d.Connections {
		if output == nil {
			continue
		}
		outgoing, err := output.edges(from)
		if err != nil {
			return nil, err
		}
		edges = append(edges, outgoing...)
	}

	indegree := make(map[string]int, len(d.Nodes))
	adjacency := make(map[string][]string, len(d.Nodes))
	for id := range byID {
		indegree[id] = 0
	}
	for _, e := range edges {
		// connections may reference nodes by display name
		fromID, toID := e.from, e.to
		if id, ok := nameToID[fromID]; ok {
			fromID = id
		}
		if id, ok := nameToID[toID]; ok {
			toID = id
		}
		if _, ok := byID[fromID]; !ok {
			return nil, fmt.Errorf("connection references unknown node %q", e.from)
		}
		if _, ok := byID[toID]; !ok {
			return nil, fmt.Errorf("connection references unknown node %q", e.to)
		}
		adjacency[fromID] = append(adjacency[fromID], toID)
		indegree[toID]++
	}

	var ready []string
	for id, degree := range indegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}
	sortByIndex(ready, index)

	ordered := make([]*model.StepDefinition, 0, len(d.Nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		item := byID[id]
		ordered = append(ordered, &model.StepDefinition{
			ID:         item.ID,
			Name:       item.Name,
			Type:       item.typeID(),
			Parameters: item.Parameters,
			Inputs:     item.Inputs,
			Outputs:    item.Outputs,
		})
		for _, next := range adjacency[id] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
		sortByIndex(ready, index)
	}
	if len(ordered) != len(d.Nodes) {
		return nil, fmt.Errorf("workflow connections contain a cycle")
	}
	return ordered, nil
}

func sortByIndex(ids []string, index map[string]int) {
	sort.Slice(ids, func(i, j int) bool {
		return index[ids[i]] < index[ids[j]]
	})
}
