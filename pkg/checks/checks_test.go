package checks

import (
	"testing"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// executedCell returns a code cell that looks like it ran cleanly.
func executedCell(source string, count int) *notebook.Cell {
	c := notebook.NewCodeCell(source)
	c.SetExecutionCount(&count)
	return c
}

// exampleNotebook builds a notebook that passes every builtin check for
// the given repo and path.
func exampleNotebook(owner, repo, path string) *notebook.Notebook {
	badges := PreviewBadgeMarkdown(owner, repo, path) + "\n" +
		MybinderBadgeMarkdown(owner, repo, path) + "\n" +
		ColabBadgeMarkdown(owner, repo, path)

	nb := &notebook.Notebook{NBFormat: 4, NBFormatMinor: 4}
	nb.InsertCell(0, notebook.NewMarkdownCell(badges))
	nb.InsertCell(1, notebook.NewMarkdownCell("What this example shows."))
	nb.InsertCell(2, executedCell(BuildHeader(repo, ""), 1))
	nb.InsertCell(3, executedCell("print('hello')", 2))
	return nb
}

func TestLookup(t *testing.T) {
	c, ok := Lookup("badges")
	require.True(t, ok)
	assert.Equal(t, "badges", c.Name())

	_, ok = Lookup("no-such-check")
	assert.False(t, ok)
}

func TestAllSorted(t *testing.T) {
	all := All()
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name(), all[i].Name())
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{
		"badges",
		"colab-header",
		"execution-count",
		"outputs",
		"plotting",
		"structure",
	}, Names())
}

func TestValidateNames(t *testing.T) {
	assert.NoError(t, ValidateNames([]string{"badges", "outputs"}))

	err := ValidateNames([]string{"badges", "bogus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown check: bogus")
}

func TestContextOwner(t *testing.T) {
	assert.Equal(t, "open-atmos", (&Context{}).Owner())
	assert.Equal(t, "acme", (&Context{RepoOwner: "acme"}).Owner())
}

func TestDescriptionsPresent(t *testing.T) {
	for _, c := range All() {
		assert.NotEmpty(t, c.Description(), c.Name())
	}
}
