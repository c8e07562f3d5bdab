package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/aymanbagabas/go-udiff"
	"github.com/pkg/errors"
)

// headerCellIndex is where the Colab bootstrap header belongs: after
// the badge and description cells.
const headerCellIndex = 2

// pipInstallRe captures the examples and main package arguments of the
// pip_install_on_colab call inside the header.
var pipInstallRe = regexp.MustCompile(`pip_install_on_colab\(\s*['"]([^'"]+)['"]\s*,\s*['"]([^'"]+)['"]\s*\)`)

// headerKeyPatterns identify a cell as a Colab header even when its
// exact wording has drifted.
var headerKeyPatterns = []string{
	"install open-atmos-jupyter-utils",
	"google.colab",
	"pip_install_on_colab",
}

// BuildHeader returns the canonical Colab bootstrap header for a repo.
// version is appended verbatim to both package names, so pass a pip
// constraint like ">=2.31" or an empty string.
func BuildHeader(repo, version string) string {
	return fmt.Sprintf(`import os, sys
os.environ['NUMBA_THREADING_LAYER'] = 'workqueue'  # PySDM & PyMPDATA don't work with TBB; OpenMP has extra dependencies on macOS
if 'google.colab' in sys.modules:
    !pip --quiet install open-atmos-jupyter-utils
    from open_atmos_jupyter_utils import pip_install_on_colab
    pip_install_on_colab('%s-examples%s', '%s%s')`, repo, version, repo, version)
}

// LooksLikeHeader reports whether a cell source resembles the Colab
// header closely enough to be treated as one.
func LooksLikeHeader(source string) bool {
	for _, pattern := range headerKeyPatterns {
		if !strings.Contains(source, pattern) {
			return false
		}
	}
	return true
}

// ExtractVersions pulls the version suffixes of the examples and main
// packages out of a header cell. ok is false when the cell has no
// well-formed pip_install_on_colab call for this repo.
func ExtractVersions(source, repo string) (examplesVersion, mainVersion string, ok bool) {
	m := pipInstallRe.FindStringSubmatch(source)
	if m == nil {
		return "", "", false
	}

	examplesPkg, mainPkg := m[1], m[2]
	examplesPrefix := repo + "-examples"
	if !strings.HasPrefix(examplesPkg, examplesPrefix) || !strings.HasPrefix(mainPkg, repo) {
		return "", "", false
	}

	return examplesPkg[len(examplesPrefix):], mainPkg[len(repo):], true
}

// ResolveVersion picks the version the header should pin. A version
// already in the notebook wins over the pinned one; with neither, the
// header installs unpinned.
func ResolveVersion(existing, pinned string) string {
	if existing != "" {
		return existing
	}
	return pinned
}

// ColabHeaderCheck verifies that the notebook carries the canonical
// Colab bootstrap header as its third cell. As a Fixer it inserts a
// missing header, rewrites a stale one and moves a misplaced one into
// position.
type ColabHeaderCheck struct{}

func (c *ColabHeaderCheck) Name() string { return "colab-header" }

func (c *ColabHeaderCheck) Description() string {
	return "third cell is the canonical Colab bootstrap header"
}

func (c *ColabHeaderCheck) Run(_ context.Context, nb *notebook.Notebook, cc *Context) error {
	if cc.RepoName == "" {
		return errors.New("repo name is required for the colab-header check")
	}
	if len(nb.Cells) < 3 {
		return errors.New("Notebook should have at least 3 cells")
	}

	idx := findHeaderCell(nb)
	if idx < 0 {
		return errors.New("Colab header is missing")
	}

	cell := nb.Cells[idx]
	want, err := canonicalHeaderFor(cell.Source, cc)
	if err != nil {
		return err
	}

	if cell.Source != want {
		diff := udiff.Unified("expected", "actual", want+"\n", cell.Source+"\n")
		return errors.Errorf("Colab header is incorrect\n%s", diff)
	}
	if idx != headerCellIndex {
		return errors.Errorf("Colab header is misplaced (cell %d, expected cell %d)", idx, headerCellIndex)
	}
	return nil
}

// FixUp repairs what Run flags: it inserts the header when missing,
// rewrites a stale header and moves a misplaced one to its slot. A
// malformed header or disagreeing versions still fail, there is no
// safe automatic rewrite for those.
func (c *ColabHeaderCheck) FixUp(_ context.Context, nb *notebook.Notebook, cc *Context) (bool, error) {
	if cc.RepoName == "" {
		return false, errors.New("repo name is required for the colab-header check")
	}
	if len(nb.Cells) < 3 {
		return false, errors.New("Notebook should have at least 3 cells")
	}

	idx := findHeaderCell(nb)
	if idx < 0 {
		header := BuildHeader(cc.RepoName, ResolveVersion("", cc.PinnedVersion))
		nb.InsertCell(headerCellIndex, notebook.NewCodeCell(header))
		return true, nil
	}

	cell := nb.Cells[idx]
	want, err := canonicalHeaderFor(cell.Source, cc)
	if err != nil {
		return false, err
	}

	modified := false
	if cell.Source != want {
		cell.Source = want
		modified = true
	}
	if idx != headerCellIndex {
		nb.MoveCell(idx, headerCellIndex)
		modified = true
	}
	return modified, nil
}

// findHeaderCell returns the index of the first code cell that looks
// like a Colab header, or -1.
func findHeaderCell(nb *notebook.Notebook) int {
	for idx, cell := range nb.Cells {
		if cell.IsCode() && LooksLikeHeader(cell.Source) {
			return idx
		}
	}
	return -1
}

// canonicalHeaderFor validates the versions found in an existing header
// cell and renders the header the cell should contain.
func canonicalHeaderFor(source string, cc *Context) (string, error) {
	examplesVersion, mainVersion, ok := ExtractVersions(source, cc.RepoName)
	if !ok {
		return "", errors.New("Colab header is malformed")
	}
	if examplesVersion != mainVersion {
		return "", errors.Errorf("Version mismatch in header: %q != %q", examplesVersion, mainVersion)
	}
	return BuildHeader(cc.RepoName, ResolveVersion(mainVersion, cc.PinnedVersion)), nil
}
