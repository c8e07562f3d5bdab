package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/AgnieszkaZaba/devops-tests/pkg/notebook"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
)

// PreviewBadgeMarkdown returns the GitHub render badge line for a notebook.
func PreviewBadgeMarkdown(owner, repo, path string) string {
	badge := "https://img.shields.io/static/v1?label=render%20on&logo=github&color=87ce3e&message=GitHub"
	link := fmt.Sprintf("https://github.com/%s/%s/blob/main/%s", owner, repo, path)
	return fmt.Sprintf("[![preview notebook](%s)](%s)", badge, link)
}

// MybinderBadgeMarkdown returns the mybinder.org launch badge line for a notebook.
func MybinderBadgeMarkdown(owner, repo, path string) string {
	badge := "https://mybinder.org/badge_logo.svg"
	link := fmt.Sprintf("https://mybinder.org/v2/gh/%s/%s.git/main?urlpath=lab/tree/%s", owner, repo, path)
	return fmt.Sprintf("[![launch on mybinder.org](%s)](%s)", badge, link)
}

// ColabBadgeMarkdown returns the Google Colab launch badge line for a notebook.
func ColabBadgeMarkdown(owner, repo, path string) string {
	badge := "https://colab.research.google.com/assets/colab-badge.svg"
	link := fmt.Sprintf("https://colab.research.google.com/github/%s/%s/blob/main/%s", owner, repo, path)
	return fmt.Sprintf("[![launch on Colab](%s)](%s)", badge, link)
}

// BadgesCheck verifies that the first cell is a markdown cell holding
// exactly the three launch badges, preview, mybinder and Colab, each
// pointing at this notebook.
type BadgesCheck struct{}

func (c *BadgesCheck) Name() string { return "badges" }

func (c *BadgesCheck) Description() string {
	return "first cell holds the GitHub preview, mybinder and Colab badges"
}

func (c *BadgesCheck) Run(_ context.Context, nb *notebook.Notebook, cc *Context) error {
	if cc.RepoName == "" {
		return errors.New("repo name is required for the badges check")
	}
	if len(nb.Cells) == 0 {
		return errors.New("notebook has no cells")
	}

	first := nb.Cells[0]
	if !first.IsMarkdown() {
		return errors.New("First cell is not a markdown cell")
	}

	lines := strings.Split(first.Source, "\n")
	if len(lines) != 3 {
		return errors.New("First cell does not contain exactly 3 lines (badges)")
	}

	owner := cc.Owner()
	expected := []struct {
		ordinal string
		label   string
		want    string
	}{
		{"First", "Github preview badge", PreviewBadgeMarkdown(owner, cc.RepoName, cc.Path)},
		{"Second", "MyBinder badge", MybinderBadgeMarkdown(owner, cc.RepoName, cc.Path)},
		{"Third", "Colab badge", ColabBadgeMarkdown(owner, cc.RepoName, cc.Path)},
	}

	var result *multierror.Error
	for i, exp := range expected {
		if lines[i] == exp.want {
			continue
		}
		result = multierror.Append(result, badgeError(exp.ordinal, exp.label, lines[i], exp.want))
	}
	return result.ErrorOrNil()
}

// badgeError explains how a badge line deviates. Parsing the line tells
// a badge pointing at the wrong place apart from a line that is not a
// badge at all.
func badgeError(ordinal, label, got, want string) error {
	base := fmt.Sprintf("%s badge does not match %s", ordinal, label)

	gotDest, gotBadge := parseBadgeLink(got)
	if !gotBadge {
		return errors.Errorf("%s (not a markdown badge image link, expected %s)", base, want)
	}
	wantDest, _ := parseBadgeLink(want)
	if gotDest != wantDest {
		return errors.Errorf("%s (links to %s, expected %s)", base, gotDest, wantDest)
	}
	return errors.Errorf("%s (expected %s)", base, want)
}

// parseBadgeLink reports whether line is a markdown link wrapping an
// image and returns the link destination.
func parseBadgeLink(line string) (string, bool) {
	md := goldmark.New()
	doc := md.Parser().Parse(gmtext.NewReader([]byte(line)))

	var dest string
	var found bool
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}
		for child := link.FirstChild(); child != nil; child = child.NextSibling() {
			if _, ok := child.(*ast.Image); ok {
				dest = string(link.Destination)
				found = true
				return ast.WalkStop, nil
			}
		}
		return ast.WalkContinue, nil
	})
	return dest, found
}
