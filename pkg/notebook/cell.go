package notebook

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Cell types as they appear in the cell_type field.
const (
	CellTypeCode     = "code"
	CellTypeMarkdown = "markdown"
	CellTypeRaw      = "raw"
)

// Cell is a single notebook cell. Source is kept joined into one string
// regardless of how the file stored it; unknown fields stay in raw.
//
// execution_count is tri-state: the key can be absent, present but null,
// or present with a number. HasExecutionCount distinguishes the first
// case from the other two, ExecutionCount the second from the third.
type Cell struct {
	CellType       string
	Source         string
	Outputs        []*Output
	ExecutionCount *int

	hasExecutionCount bool
	raw               map[string]json.RawMessage
}

// Output is one entry of a code cell's outputs list. Text is the joined
// text payload when present; fields other than text are preserved in raw.
type Output struct {
	OutputType string
	Name       string
	Text       string

	hasText bool
	raw     map[string]json.RawMessage
}

// NewMarkdownCell returns a markdown cell with the given source.
func NewMarkdownCell(source string) *Cell {
	return &Cell{
		CellType: CellTypeMarkdown,
		Source:   source,
		raw: map[string]json.RawMessage{
			"metadata": json.RawMessage("{}"),
		},
	}
}

// NewCodeCell returns an unexecuted code cell with the given source.
func NewCodeCell(source string) *Cell {
	return &Cell{
		CellType:          CellTypeCode,
		Source:            source,
		Outputs:           []*Output{},
		hasExecutionCount: true,
		raw: map[string]json.RawMessage{
			"metadata": json.RawMessage("{}"),
		},
	}
}

// NewStreamOutput returns a stream output, name being "stdout" or
// "stderr".
func NewStreamOutput(name, text string) *Output {
	nameRaw, _ := json.Marshal(name)
	return &Output{
		OutputType: "stream",
		Name:       name,
		Text:       text,
		hasText:    true,
		raw: map[string]json.RawMessage{
			"output_type": json.RawMessage(`"stream"`),
			"name":        nameRaw,
		},
	}
}

// IsCode reports whether the cell is a code cell.
func (c *Cell) IsCode() bool {
	return c.CellType == CellTypeCode
}

// IsMarkdown reports whether the cell is a markdown cell.
func (c *Cell) IsMarkdown() bool {
	return c.CellType == CellTypeMarkdown
}

// HasExecutionCount reports whether the execution_count key is present
// at all, even as null.
func (c *Cell) HasExecutionCount() bool {
	return c.hasExecutionCount
}

// SetExecutionCount sets the execution_count key to n, or to null when
// n is nil.
func (c *Cell) SetExecutionCount(n *int) {
	c.hasExecutionCount = true
	c.ExecutionCount = n
}

func parseCell(raw map[string]json.RawMessage) (*Cell, error) {
	c := &Cell{raw: raw}

	if typeRaw, ok := raw["cell_type"]; ok {
		if err := json.Unmarshal(typeRaw, &c.CellType); err != nil {
			return nil, errors.Wrap(err, "decoding cell_type")
		}
	}

	if sourceRaw, ok := raw["source"]; ok {
		source, err := joinLines(sourceRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decoding source")
		}
		c.Source = source
	}

	if countRaw, ok := raw["execution_count"]; ok {
		c.hasExecutionCount = true
		if string(countRaw) != "null" {
			var n int
			if err := json.Unmarshal(countRaw, &n); err != nil {
				return nil, errors.Wrap(err, "decoding execution_count")
			}
			c.ExecutionCount = &n
		}
	}

	if outputsRaw, ok := raw["outputs"]; ok {
		var outputMaps []map[string]json.RawMessage
		if err := json.Unmarshal(outputsRaw, &outputMaps); err != nil {
			return nil, errors.Wrap(err, "decoding outputs")
		}
		c.Outputs = make([]*Output, 0, len(outputMaps))
		for i, om := range outputMaps {
			out, err := parseOutput(om)
			if err != nil {
				return nil, errors.Wrapf(err, "output %d", i)
			}
			c.Outputs = append(c.Outputs, out)
		}
	}

	return c, nil
}

func (c *Cell) encode(wantID bool) (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(c.raw)+4)
	for k, v := range c.raw {
		out[k] = v
	}

	typeRaw, err := json.Marshal(c.CellType)
	if err != nil {
		return nil, err
	}
	out["cell_type"] = typeRaw

	sourceRaw, err := json.Marshal(splitLines(c.Source))
	if err != nil {
		return nil, err
	}
	out["source"] = sourceRaw

	if c.hasExecutionCount {
		if c.ExecutionCount == nil {
			out["execution_count"] = json.RawMessage("null")
		} else {
			countRaw, err := json.Marshal(*c.ExecutionCount)
			if err != nil {
				return nil, err
			}
			out["execution_count"] = countRaw
		}
	} else {
		delete(out, "execution_count")
	}

	if _, hadOutputs := c.raw["outputs"]; hadOutputs || c.IsCode() {
		outputMaps := make([]map[string]json.RawMessage, 0, len(c.Outputs))
		for _, o := range c.Outputs {
			om, err := o.encode()
			if err != nil {
				return nil, err
			}
			outputMaps = append(outputMaps, om)
		}
		outputsRaw, err := json.Marshal(outputMaps)
		if err != nil {
			return nil, err
		}
		out["outputs"] = outputsRaw
	}

	if _, hasID := out["id"]; wantID && !hasID {
		idRaw, err := json.Marshal(uuid.NewString()[:8])
		if err != nil {
			return nil, err
		}
		out["id"] = idRaw
	}

	return out, nil
}

func parseOutput(raw map[string]json.RawMessage) (*Output, error) {
	o := &Output{raw: raw}

	if typeRaw, ok := raw["output_type"]; ok {
		if err := json.Unmarshal(typeRaw, &o.OutputType); err != nil {
			return nil, errors.Wrap(err, "decoding output_type")
		}
	}
	if nameRaw, ok := raw["name"]; ok {
		if err := json.Unmarshal(nameRaw, &o.Name); err != nil {
			return nil, errors.Wrap(err, "decoding name")
		}
	}
	if textRaw, ok := raw["text"]; ok {
		o.hasText = true
		text, err := joinLines(textRaw)
		if err != nil {
			return nil, errors.Wrap(err, "decoding text")
		}
		o.Text = text
	}

	return o, nil
}

// HasName reports whether the output carries a name field, as stream
// outputs do.
func (o *Output) HasName() bool {
	_, ok := o.raw["name"]
	return ok
}

func (o *Output) encode() (map[string]json.RawMessage, error) {
	out := make(map[string]json.RawMessage, len(o.raw))
	for k, v := range o.raw {
		out[k] = v
	}
	if o.hasText {
		textRaw, err := json.Marshal(splitLines(o.Text))
		if err != nil {
			return nil, err
		}
		out["text"] = textRaw
	}
	return out, nil
}

// joinLines accepts the two shapes nbformat allows for text payloads,
// a plain string or a list of lines, and returns the joined string.
func joinLines(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var lines []string
	if err := json.Unmarshal(raw, &lines); err != nil {
		return "", errors.New("expected a string or a list of strings")
	}
	return strings.Join(lines, ""), nil
}

// splitLines breaks s into lines that keep their trailing newline, the
// shape nbformat stores multi-line text in. An empty string yields an
// empty list.
func splitLines(s string) []string {
	lines := []string{}
	for len(s) > 0 {
		idx := strings.IndexByte(s, '\n')
		if idx < 0 {
			lines = append(lines, s)
			break
		}
		lines = append(lines, s[:idx+1])
		s = s[idx+1:]
	}
	return lines
}
