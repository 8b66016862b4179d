// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package syncer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRoundTrip(t *testing.T) {
	cases := []string{
		"plain paragraph",
		"- item one\n- item two",
		"- [ ] eggs\n- [x] milk",
		"**all bold**",
		"prefix **bold middle** suffix",
		"- [ ] task with **bold** inside",
		"escaped \\*asterisk\\* stays literal",
	}
	for _, md := range cases {
		doc := MarkdownToDoc(md).Normalize()
		assert.Equal(t, md, DocToMarkdown(doc), "markdown %q must survive the doc model", md)
	}
}

func TestMainHTMLRoundTrip(t *testing.T) {
	cases := []string{
		"plain paragraph",
		"- item one\n- item two",
		"- [ ] eggs\n- [x] milk\n**Urgent**",
		"first\n\nsecond after blank",
		"a **b** c",
	}
	for _, md := range cases {
		doc := MarkdownToDoc(md).Normalize()
		html := DocToMainHTML(doc, false)
		parsed, err := ParseMainHTML(html)
		require.NoError(t, err)
		assert.Equal(t, md, DocToMarkdown(parsed.Normalize()), "markdown %q must survive the widget dialect", md)
	}
}

func TestMainHTMLShoppingListShape(t *testing.T) {
	doc := MarkdownToDoc("# Shopping\n- [ ] eggs\n- [x] milk\n**Urgent**").Normalize()
	html := DocToMainHTML(doc, false)

	assert.Contains(t, html, `<li class="unchecked">`)
	assert.Contains(t, html, `<li class="checked">`)
	assert.Contains(t, html, `<span style=" font-weight:600;">Urgent</span>`)
	assert.Contains(t, html, "<ul>")
	assert.Contains(t, html, "</ul>")
}

func TestNormalizeTrimsAndCollapsesEmptyParagraphs(t *testing.T) {
	doc := MarkdownToDoc("\n\nfirst\n\n\n\nsecond\n\n").Normalize()
	assert.Equal(t, "first\n\nsecond", DocToMarkdown(doc))
}

func TestStyleIsBold(t *testing.T) {
	assert.True(t, StyleIsBold(" font-weight:600;"))
	assert.True(t, StyleIsBold("font-weight: 700"))
	assert.True(t, StyleIsBold("color:red; font-weight:bold;"))
	assert.False(t, StyleIsBold(" font-weight:400;"))
	assert.False(t, StyleIsBold("color:red"))
	assert.False(t, StyleIsBold(""))
}

func TestParseMainHTMLRejectsPartialDocument(t *testing.T) {
	_, err := ParseMainHTML("<html><head></head><p>torn mid-write")
	assert.ErrorIs(t, err, ErrPartialHTML)
}

func TestParseMainHTMLNestedLiParagraphIsInline(t *testing.T) {
	html := htmlSkeletonHead(false) + "\n<ul>\n" +
		`<li class="unchecked"><p style="x">eggs</p></li>` + "\n</ul>\n" + htmlSkeletonFoot
	doc, err := ParseMainHTML(html)
	require.NoError(t, err)
	require.Len(t, doc.Normalize().Lines, 1)
	l := doc.Normalize().Lines[0]
	assert.Equal(t, ListItem, l.Kind)
	assert.Equal(t, Unchecked, l.State)
	assert.Equal(t, "eggs", l.PlainText())
}

func TestReplaceBoldItemsPreservesStructure(t *testing.T) {
	doc := MarkdownToDoc("- [ ] **A**\nno bold here\n- [x] **B**").Normalize()
	out := ReplaceBoldItemsInLines(doc, []string{"A2", "B2"})

	require.Len(t, out.Lines, 3)
	assert.Equal(t, "A2", out.Lines[0].PlainText())
	assert.Equal(t, Unchecked, out.Lines[0].State)
	assert.Equal(t, "no bold here", out.Lines[1].PlainText())
	assert.Equal(t, "B2", out.Lines[2].PlainText())
	assert.Equal(t, Checked, out.Lines[2].State)
}

func TestReplaceBoldItemsAppendsLeftovers(t *testing.T) {
	doc := MarkdownToDoc("**only one**").Normalize()
	out := ReplaceBoldItemsInLines(doc, []string{"first", "second"})

	require.Len(t, out.Lines, 2)
	assert.Equal(t, "second", out.Lines[1].PlainText())
	assert.Equal(t, Paragraph, out.Lines[1].Kind)
	assert.True(t, out.Lines[1].HasBold())
}

func TestReplaceBoldItemsShortMirrorLeavesTailUntouched(t *testing.T) {
	doc := MarkdownToDoc("**A**\n**B**").Normalize()
	out := ReplaceBoldItemsInLines(doc, []string{"A2"})

	require.Len(t, out.Lines, 2)
	assert.Equal(t, "A2", out.Lines[0].PlainText())
	assert.Equal(t, "B", out.Lines[1].PlainText(), "unmatched bold line must not be dropped")
}

func TestBoldItemsAndItemsHash(t *testing.T) {
	doc := MarkdownToDoc("- [ ] **A**\nplain\n**B**").Normalize()
	items := doc.BoldItems()
	assert.Equal(t, []string{"A", "B"}, items)
	assert.Equal(t, ItemsHash([]string{"A", "B"}), ItemsHash([]string{" A ", "B"}), "items are trimmed before hashing")
	assert.NotEqual(t, ItemsHash([]string{"A"}), ItemsHash([]string{"A", "B"}))
}

func TestCheckboxMarkerCSSToggle(t *testing.T) {
	doc := MarkdownToDoc("- [ ] eggs").Normalize()
	plain := DocToMainHTML(doc, false)
	marked := DocToMainHTML(doc, true)

	assert.False(t, HasCheckboxMarkerCSS(plain))
	assert.True(t, HasCheckboxMarkerCSS(marked))

	// In-place toggling must be bit-identical with a fresh render so
	// content-equality-guarded writes stay effective.
	assert.Equal(t, marked, SetCheckboxMarkerCSS(plain, true))
	assert.Equal(t, plain, SetCheckboxMarkerCSS(marked, false))

	// Toggling only rewrites the style block.
	assert.Contains(t, SetCheckboxMarkerCSS(marked, false), "eggs")
}

func TestDocHashStableAcrossEquivalentSources(t *testing.T) {
	fromMd := MarkdownToDoc("- [ ] eggs\n**Urgent**").Normalize()
	parsed, err := ParseMainHTML(DocToMainHTML(fromMd, false))
	require.NoError(t, err)
	assert.Equal(t, fromMd.Hash(), parsed.Normalize().Hash())
}

func TestParseMirrorItems(t *testing.T) {
	mirror := DocToMirrorHTML([]string{"A2", "B2"})
	items, err := ParseMirrorItems(mirror)
	require.NoError(t, err)
	assert.Equal(t, []string{"A2", "B2"}, items)
}
