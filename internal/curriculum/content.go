package curriculum

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-n-ai/pai-planner/internal/topickey"
)

// DefaultSubtopic is used for disciplines that resolve to no subtopics at all.
const DefaultSubtopic = "Fundamentals"

// NodeKind tags the variant held by a ContentNode.
type NodeKind uint8

const (
	KindEmpty NodeKind = iota
	KindText
	KindList
	KindMap
)

// ContentNode is one node of the freeform program content tree.
type ContentNode struct {
	Kind    NodeKind
	Text    string
	Items   []ContentNode
	Entries []ContentEntry
}

// ContentEntry is a keyed child of a KindMap node. Order follows the source document.
type ContentEntry struct {
	Key   string
	Value ContentNode
}

// Names of sub-lists that stand in for their parent when flattening.
var namedLists = []string{"topics", "topicos", "subtopics", "subtopicos"}

// Text returns a text leaf.
func Text(s string) ContentNode { return ContentNode{Kind: KindText, Text: s} }

// List returns a list node.
func List(items ...ContentNode) ContentNode { return ContentNode{Kind: KindList, Items: items} }

// Map returns a keyed node.
func Map(entries ...ContentEntry) ContentNode { return ContentNode{Kind: KindMap, Entries: entries} }

// Entry returns a keyed child for Map.
func Entry(key string, value ContentNode) ContentEntry { return ContentEntry{Key: key, Value: value} }

// Keys returns the keys of a map node in document order.
func (n ContentNode) Keys() []string {
	if n.Kind != KindMap {
		return nil
	}
	keys := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		if k := strings.TrimSpace(e.Key); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// Lookup finds the child of a map node whose key matches name case-insensitively.
func (n ContentNode) Lookup(name string) (ContentNode, bool) {
	name = strings.TrimSpace(name)
	if n.Kind != KindMap || name == "" {
		return ContentNode{}, false
	}
	for _, e := range n.Entries {
		if strings.EqualFold(strings.TrimSpace(e.Key), name) {
			return e.Value, true
		}
	}
	return ContentNode{}, false
}

// Leaves flattens the node into leaf strings. Lists recurse; a map holding a
// named sub-list is replaced by it; any other map recurses into each value and
// falls back to the key when the value yields nothing.
func (n ContentNode) Leaves() []string {
	switch n.Kind {
	case KindText:
		if s := strings.TrimSpace(n.Text); s != "" {
			return []string{s}
		}
	case KindList:
		var out []string
		for _, item := range n.Items {
			out = append(out, item.Leaves()...)
		}
		return out
	case KindMap:
		for _, name := range namedLists {
			if sub, ok := n.Lookup(name); ok && sub.Kind == KindList {
				return sub.Leaves()
			}
		}
		var out []string
		for _, e := range n.Entries {
			nested := e.Value.Leaves()
			if len(nested) == 0 {
				if k := strings.TrimSpace(e.Key); k != "" {
					nested = []string{k}
				}
			}
			out = append(out, nested...)
		}
		return out
	}
	return nil
}

// Subtopics resolves the subtopics of d: explicit topic entries win, then the
// program content under the discipline's name, then DefaultSubtopic.
func Subtopics(d Discipline, content ContentNode) []string {
	var raw []string
	for _, t := range d.Topics {
		raw = append(raw, t.flatten()...)
	}
	out := uniqueFolded(raw)
	if len(out) == 0 {
		if node, ok := content.Lookup(d.Name); ok {
			out = uniqueFolded(node.Leaves())
		}
	}
	if len(out) == 0 {
		out = []string{DefaultSubtopic}
	}
	return out
}

// uniqueFolded drops blanks and entries that fold to an already seen value,
// keeping the first spelling.
func uniqueFolded(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := topickey.Fold(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}

func (n *ContentNode) UnmarshalYAML(value *yaml.Node) error {
	*n = fromYAML(value)
	return nil
}

func fromYAML(v *yaml.Node) ContentNode {
	if v == nil {
		return ContentNode{}
	}
	switch v.Kind {
	case yaml.DocumentNode:
		if len(v.Content) == 0 {
			return ContentNode{}
		}
		return fromYAML(v.Content[0])
	case yaml.AliasNode:
		return fromYAML(v.Alias)
	case yaml.ScalarNode:
		if v.ShortTag() == "!!str" {
			return Text(v.Value)
		}
	case yaml.SequenceNode:
		items := make([]ContentNode, 0, len(v.Content))
		for _, c := range v.Content {
			items = append(items, fromYAML(c))
		}
		return List(items...)
	case yaml.MappingNode:
		entries := make([]ContentEntry, 0, len(v.Content)/2)
		for i := 0; i+1 < len(v.Content); i += 2 {
			entries = append(entries, Entry(v.Content[i].Value, fromYAML(v.Content[i+1])))
		}
		return Map(entries...)
	}
	return ContentNode{}
}

// UnmarshalJSON decodes token by token so map entries keep document order.
func (n *ContentNode) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	node, err := decodeJSONNode(dec)
	if err != nil {
		return fmt.Errorf("decode program content: %w", err)
	}
	*n = node
	return nil
}

func decodeJSONNode(dec *json.Decoder) (ContentNode, error) {
	tok, err := dec.Token()
	if err != nil {
		return ContentNode{}, err
	}
	switch t := tok.(type) {
	case string:
		return Text(t), nil
	case json.Delim:
		switch t {
		case '[':
			var items []ContentNode
			for dec.More() {
				item, err := decodeJSONNode(dec)
				if err != nil {
					return ContentNode{}, err
				}
				items = append(items, item)
			}
			if _, err := dec.Token(); err != nil {
				return ContentNode{}, err
			}
			return List(items...), nil
		case '{':
			var entries []ContentEntry
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return ContentNode{}, err
				}
				key, _ := keyTok.(string)
				value, err := decodeJSONNode(dec)
				if err != nil {
					return ContentNode{}, err
				}
				entries = append(entries, Entry(key, value))
			}
			if _, err := dec.Token(); err != nil {
				return ContentNode{}, err
			}
			return Map(entries...), nil
		}
	}
	// Numbers, booleans and null carry no topic names.
	return ContentNode{}, nil
}
