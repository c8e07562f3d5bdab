package notebook

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleNotebook = `{
 "cells": [
  {
   "cell_type": "markdown",
   "metadata": {},
   "source": [
    "# Title\n",
    "intro"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": 2,
   "metadata": {},
   "outputs": [
    {
     "name": "stdout",
     "output_type": "stream",
     "text": [
      "hello\n"
     ]
    }
   ],
   "source": [
    "print('hello')"
   ]
  },
  {
   "cell_type": "code",
   "execution_count": null,
   "metadata": {},
   "outputs": [],
   "source": []
  }
 ],
 "metadata": {
  "language_info": {
   "name": "python"
  }
 },
 "nbformat": 4,
 "nbformat_minor": 4
}
`

func TestParse(t *testing.T) {
	nb, err := Parse([]byte(sampleNotebook))
	require.NoError(t, err)

	assert.Equal(t, 4, nb.NBFormat)
	assert.Equal(t, 4, nb.NBFormatMinor)
	require.Len(t, nb.Cells, 3)

	assert.True(t, nb.Cells[0].IsMarkdown())
	assert.Equal(t, "# Title\nintro", nb.Cells[0].Source)
	assert.False(t, nb.Cells[0].HasExecutionCount())

	code := nb.Cells[1]
	assert.True(t, code.IsCode())
	assert.Equal(t, "print('hello')", code.Source)
	assert.True(t, code.HasExecutionCount())
	require.NotNil(t, code.ExecutionCount)
	assert.Equal(t, 2, *code.ExecutionCount)
	require.Len(t, code.Outputs, 1)
	assert.Equal(t, "stream", code.Outputs[0].OutputType)
	assert.Equal(t, "stdout", code.Outputs[0].Name)
	assert.Equal(t, "hello\n", code.Outputs[0].Text)
	assert.True(t, code.Outputs[0].HasName())

	empty := nb.Cells[2]
	assert.Equal(t, "", empty.Source)
	assert.True(t, empty.HasExecutionCount())
	assert.Nil(t, empty.ExecutionCount)
}

func TestNewRoundTrips(t *testing.T) {
	nb := New()
	nb.InsertCell(0, NewMarkdownCell("# fresh"))

	data, err := nb.Bytes()
	require.NoError(t, err)

	reread, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, 4, reread.NBFormat)
	assert.Equal(t, 5, reread.NBFormatMinor)
	require.Len(t, reread.Cells, 1)
	assert.Equal(t, "# fresh", reread.Cells[0].Source)
}

func TestParseStringSource(t *testing.T) {
	nb, err := Parse([]byte(`{
		"nbformat": 4,
		"cells": [{"cell_type": "code", "execution_count": 1, "outputs": [], "source": "x = 1\nprint(x)"}]
	}`))
	require.NoError(t, err)
	require.Len(t, nb.Cells, 1)
	assert.Equal(t, "x = 1\nprint(x)", nb.Cells[0].Source)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "invalid JSON",
			input: "{not json",
			want:  "decoding notebook JSON",
		},
		{
			name:  "missing nbformat",
			input: `{"cells": []}`,
			want:  "missing nbformat field",
		},
		{
			name:  "old version",
			input: `{"cells": [], "nbformat": 3}`,
			want:  "unsupported nbformat version 3",
		},
		{
			name:  "missing cells",
			input: `{"nbformat": 4}`,
			want:  "missing cells field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	nb, err := Parse([]byte(sampleNotebook))
	require.NoError(t, err)

	data, err := nb.Bytes()
	require.NoError(t, err)
	assert.Equal(t, sampleNotebook, string(data))
}

func TestBytesFormatting(t *testing.T) {
	nb, err := Parse([]byte(`{"nbformat": 4, "nbformat_minor": 4, "metadata": {"zebra": 1, "alpha": 2}, "cells": []}`))
	require.NoError(t, err)

	data, err := nb.Bytes()
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasSuffix(text, "}\n"), "expected trailing newline")
	assert.Contains(t, text, "\n \"cells\"", "expected one-space indent")
	assert.Less(t, strings.Index(text, `"alpha"`), strings.Index(text, `"zebra"`), "expected sorted keys")
}

func TestBytesDoesNotEscapeHTML(t *testing.T) {
	nb, err := Parse([]byte(`{"nbformat": 4, "cells": []}`))
	require.NoError(t, err)
	nb.InsertCell(0, NewMarkdownCell("a < b & c > d"))

	data, err := nb.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(data), "a < b & c > d")
	assert.NotContains(t, string(data), `\u003c`)
}

func TestBytesSplitsSourceIntoLines(t *testing.T) {
	nb, err := Parse([]byte(`{"nbformat": 4, "cells": []}`))
	require.NoError(t, err)
	nb.InsertCell(0, NewCodeCell("x = 1\nprint(x)"))

	data, err := nb.Bytes()
	require.NoError(t, err)

	var doc struct {
		Cells []struct {
			Source []string `json:"source"`
		} `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Cells, 1)
	assert.Equal(t, []string{"x = 1\n", "print(x)"}, doc.Cells[0].Source)
}

func TestReadWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "demo.ipynb")
	require.NoError(t, os.WriteFile(path, []byte(sampleNotebook), 0o644))

	nb, err := Read(path)
	require.NoError(t, err)

	nb.InsertCell(1, NewMarkdownCell("inserted"))
	require.NoError(t, nb.Write(path))

	reread, err := Read(path)
	require.NoError(t, err)
	require.Len(t, reread.Cells, 4)
	assert.Equal(t, "inserted", reread.Cells[1].Source)
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "absent.ipynb"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading notebook")
}

func TestInsertCell(t *testing.T) {
	nb := &Notebook{NBFormat: 4, raw: map[string]json.RawMessage{}}
	nb.InsertCell(0, NewMarkdownCell("a"))
	nb.InsertCell(10, NewMarkdownCell("c"))
	nb.InsertCell(1, NewMarkdownCell("b"))

	require.Len(t, nb.Cells, 3)
	assert.Equal(t, "a", nb.Cells[0].Source)
	assert.Equal(t, "b", nb.Cells[1].Source)
	assert.Equal(t, "c", nb.Cells[2].Source)
}

func TestMoveCell(t *testing.T) {
	nb := &Notebook{NBFormat: 4, raw: map[string]json.RawMessage{}}
	for _, s := range []string{"a", "b", "c", "d"} {
		nb.InsertCell(len(nb.Cells), NewMarkdownCell(s))
	}

	nb.MoveCell(3, 1)
	got := make([]string, 0, len(nb.Cells))
	for _, c := range nb.Cells {
		got = append(got, c.Source)
	}
	assert.Equal(t, []string{"a", "d", "b", "c"}, got)

	nb.MoveCell(7, 0)
	assert.Len(t, nb.Cells, 4)
}

func TestCellIDsAddedForRecentMinorVersions(t *testing.T) {
	nb, err := Parse([]byte(`{"nbformat": 4, "nbformat_minor": 5, "cells": []}`))
	require.NoError(t, err)
	nb.InsertCell(0, NewCodeCell("pass"))

	data, err := nb.Bytes()
	require.NoError(t, err)

	var doc struct {
		Cells []struct {
			ID string `json:"id"`
		} `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Len(t, doc.Cells, 1)
	assert.Len(t, doc.Cells[0].ID, 8)
}

func TestCellIDsNotAddedForOlderMinorVersions(t *testing.T) {
	nb, err := Parse([]byte(`{"nbformat": 4, "nbformat_minor": 4, "cells": []}`))
	require.NoError(t, err)
	nb.InsertCell(0, NewCodeCell("pass"))

	data, err := nb.Bytes()
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"id"`)
}
