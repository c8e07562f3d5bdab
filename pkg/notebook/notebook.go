// Package notebook reads and writes Jupyter notebooks (nbformat >= 4).
//
// Parsing keeps every field it does not understand in raw form so that
// reading a notebook and writing it back is lossless apart from the
// normalizations the Jupyter ecosystem itself applies: multi-line
// sources are stored as lists of lines, keys are sorted, and the file
// is indented with a single space.
package notebook

import (
	"bytes"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
)

// MinSupportedVersion is the oldest major nbformat version the parser accepts.
const MinSupportedVersion = 4

// Notebook is a parsed Jupyter notebook. Top-level fields other than the
// cell list (metadata, nbformat markers) are preserved verbatim in raw.
type Notebook struct {
	Cells         []*Cell
	NBFormat      int
	NBFormatMinor int

	raw map[string]json.RawMessage
}

// New returns an empty notebook at the current nbformat version.
func New() *Notebook {
	return &Notebook{
		NBFormat:      4,
		NBFormatMinor: 5,
		raw: map[string]json.RawMessage{
			"nbformat":       json.RawMessage("4"),
			"nbformat_minor": json.RawMessage("5"),
			"metadata":       json.RawMessage("{}"),
		},
	}
}

// Read loads and parses a notebook file.
func Read(path string) (*Notebook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading notebook")
	}
	nb, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	return nb, nil
}

// Parse decodes notebook JSON. It rejects documents without an nbformat
// marker and documents older than MinSupportedVersion.
func Parse(data []byte) (*Notebook, error) {
	raw := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "decoding notebook JSON")
	}

	nb := &Notebook{raw: raw, NBFormatMinor: -1}

	versionRaw, ok := raw["nbformat"]
	if !ok {
		return nil, errors.New("not a Jupyter notebook: missing nbformat field")
	}
	if err := json.Unmarshal(versionRaw, &nb.NBFormat); err != nil {
		return nil, errors.Wrap(err, "decoding nbformat field")
	}
	if nb.NBFormat < MinSupportedVersion {
		return nil, errors.Errorf("unsupported nbformat version %d (need >= %d)", nb.NBFormat, MinSupportedVersion)
	}
	if minorRaw, ok := raw["nbformat_minor"]; ok {
		if err := json.Unmarshal(minorRaw, &nb.NBFormatMinor); err != nil {
			return nil, errors.Wrap(err, "decoding nbformat_minor field")
		}
	}

	cellsRaw, ok := raw["cells"]
	if !ok {
		return nil, errors.New("not a Jupyter notebook: missing cells field")
	}
	var cellMaps []map[string]json.RawMessage
	if err := json.Unmarshal(cellsRaw, &cellMaps); err != nil {
		return nil, errors.Wrap(err, "decoding cells")
	}
	nb.Cells = make([]*Cell, 0, len(cellMaps))
	for i, cm := range cellMaps {
		cell, err := parseCell(cm)
		if err != nil {
			return nil, errors.Wrapf(err, "cell %d", i)
		}
		nb.Cells = append(nb.Cells, cell)
	}

	return nb, nil
}

// InsertCell inserts c so that it ends up at index idx. An idx at or past
// the end appends.
func (nb *Notebook) InsertCell(idx int, c *Cell) {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(nb.Cells) {
		nb.Cells = append(nb.Cells, c)
		return
	}
	nb.Cells = append(nb.Cells, nil)
	copy(nb.Cells[idx+1:], nb.Cells[idx:])
	nb.Cells[idx] = c
}

// MoveCell removes the cell at from and re-inserts it at to, shifting
// the cells in between. Out-of-range indices are a no-op.
func (nb *Notebook) MoveCell(from, to int) {
	if from < 0 || from >= len(nb.Cells) || to < 0 || to > len(nb.Cells) || from == to {
		return
	}
	c := nb.Cells[from]
	nb.Cells = append(nb.Cells[:from], nb.Cells[from+1:]...)
	if to > len(nb.Cells) {
		to = len(nb.Cells)
	}
	nb.InsertCell(to, c)
}

// Bytes serializes the notebook the way Jupyter tooling does: sources
// split into line lists, keys sorted at every level, one-space indent,
// HTML left unescaped, and a trailing newline.
func (nb *Notebook) Bytes() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(nb.raw))
	for k, v := range nb.raw {
		out[k] = v
	}

	cellMaps := make([]map[string]json.RawMessage, 0, len(nb.Cells))
	for i, c := range nb.Cells {
		cm, err := c.encode(nb.cellIDsWanted())
		if err != nil {
			return nil, errors.Wrapf(err, "encoding cell %d", i)
		}
		cellMaps = append(cellMaps, cm)
	}
	cellsRaw, err := json.Marshal(cellMaps)
	if err != nil {
		return nil, errors.Wrap(err, "encoding cells")
	}
	out["cells"] = cellsRaw

	// Round-trip through interface{} so nested objects get sorted keys
	// without disturbing number literals.
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(mustMarshal(out)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "normalizing notebook JSON")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", " ")
	if err := enc.Encode(doc); err != nil {
		return nil, errors.Wrap(err, "encoding notebook JSON")
	}
	return buf.Bytes(), nil
}

// Write serializes the notebook and writes it to path.
func (nb *Notebook) Write(path string) error {
	data, err := nb.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "writing notebook")
	}
	return nil
}

// cellIDsWanted reports whether cells should carry an id field, which
// nbformat introduced in 4.5.
func (nb *Notebook) cellIDsWanted() bool {
	return nb.NBFormat > 4 || (nb.NBFormat == 4 && nb.NBFormatMinor >= 5)
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
