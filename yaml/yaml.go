// Package yaml provides a YAML format for remold documents.
package yaml

import (
	"encoding/base64"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zoobzio/remold"
)

// yamlFormat implements remold.Format for YAML.
type yamlFormat struct{}

// New returns a YAML format. Mappings keep their key order on output.
func New() remold.Format {
	return &yamlFormat{}
}

// ContentType returns the MIME type for YAML.
func (f *yamlFormat) ContentType() string {
	return "application/yaml"
}

// Marshal encodes a document value as YAML.
func (f *yamlFormat) Marshal(v any) ([]byte, error) {
	node, err := toNode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func toNode(v any) (*yaml.Node, error) {
	switch val := v.(type) {
	case *remold.Document:
		if val == nil {
			v = nil
			break
		}
		node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		var err error
		val.Range(func(key string, item any) bool {
			var child *yaml.Node
			if child, err = toNode(item); err != nil {
				return false
			}
			node.Content = append(node.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
				child,
			)
			return true
		})
		if err != nil {
			return nil, err
		}
		return node, nil
	case []any:
		if val == nil {
			v = nil
			break
		}
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range val {
			child, err := toNode(item)
			if err != nil {
				return nil, err
			}
			node.Content = append(node.Content, child)
		}
		return node, nil
	case []byte:
		v = base64.StdEncoding.EncodeToString(val)
	}

	node := &yaml.Node{}
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	return node, nil
}

// Unmarshal decodes YAML data into v, which must be a *any.
func (f *yamlFormat) Unmarshal(data []byte, v any) error {
	out, ok := v.(*any)
	if !ok {
		return fmt.Errorf("yaml: unmarshal target must be *any, got %T", v)
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	val, err := fromNode(&node)
	if err != nil {
		return err
	}
	*out = val
	return nil
}

func fromNode(n *yaml.Node) (any, error) {
	switch n.Kind {
	case 0:
		return nil, nil
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return fromNode(n.Content[0])
	case yaml.AliasNode:
		return fromNode(n.Alias)
	case yaml.MappingNode:
		doc := remold.NewDocument()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key := n.Content[i]
			if key.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("yaml: line %d: mapping keys must be scalars", key.Line)
			}
			item, err := fromNode(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			doc.Set(key.Value, item)
		}
		return doc, nil
	case yaml.SequenceNode:
		items := make([]any, 0, len(n.Content))
		for _, child := range n.Content {
			item, err := fromNode(child)
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return items, nil
	}

	var out any
	if err := n.Decode(&out); err != nil {
		return nil, err
	}
	switch s := out.(type) {
	case int:
		return int64(s), nil
	case time.Time:
		return s.UTC(), nil
	}
	return out, nil
}
