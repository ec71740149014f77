package model

import (
	"encoding/json"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ignoredMarker is how Ignored lines are written in report files.
const ignoredMarker = "ignored"

const nullTag = "!!null"

// MarshalYAML encodes Indeterminate as null, Ignored as "ignored" and hit
// counts as integers.
func (s LineStatus) MarshalYAML() (interface{}, error) {
	switch {
	case s == Ignored:
		return ignoredMarker, nil
	case s < Uncovered:
		return nil, nil
	}

	return int(s), nil
}

// UnmarshalYAML is the inverse of MarshalYAML.
func (s *LineStatus) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line status: expected scalar, got node kind %d", value.Kind)
	}

	if value.ShortTag() == nullTag {
		*s = Indeterminate
		return nil
	}

	return s.parse(value.Value)
}

// MarshalJSON uses the same encoding as MarshalYAML.
func (s LineStatus) MarshalJSON() ([]byte, error) {
	switch {
	case s == Ignored:
		return json.Marshal(ignoredMarker)
	case s < Uncovered:
		return []byte("null"), nil
	}

	return []byte(strconv.Itoa(int(s))), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *LineStatus) UnmarshalJSON(data []byte) error {
	text := string(data)
	if text == "null" {
		*s = Indeterminate
		return nil
	}

	if unquoted, err := strconv.Unquote(text); err == nil {
		text = unquoted
	}

	return s.parse(text)
}

// UnmarshalYAML decodes a coverage map node by node. yaml.v3 never hands
// null scalars to LineStatus.UnmarshalYAML, so sequences are walked here.
func (c *Coverage) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("coverage: expected mapping, got node kind %d", value.Kind)
	}

	decoded := make(Coverage, len(value.Content)/2)

	for i := 0; i+1 < len(value.Content); i += 2 {
		path := Path(value.Content[i].Value)
		node := value.Content[i+1]

		if node.ShortTag() == nullTag {
			decoded[path] = []LineStatus{}
			continue
		}

		if node.Kind != yaml.SequenceNode {
			return fmt.Errorf("coverage %s: expected sequence, got node kind %d", path, node.Kind)
		}

		lines := make([]LineStatus, len(node.Content))
		for j, item := range node.Content {
			if err := lines[j].UnmarshalYAML(item); err != nil {
				return fmt.Errorf("coverage %s line %d: %w", path, j+1, err)
			}
		}

		decoded[path] = lines
	}

	*c = decoded

	return nil
}

func (s *LineStatus) parse(text string) error {
	if text == ignoredMarker {
		*s = Ignored
		return nil
	}

	hits, err := strconv.Atoi(text)
	if err != nil || hits < 0 {
		return fmt.Errorf("line status: invalid value %q", text)
	}

	*s = LineStatus(hits)

	return nil
}
