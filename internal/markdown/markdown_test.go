// ABOUTME: Tests for terminal markdown rendering
// ABOUTME: Runs with colors disabled so output is plain text

package markdown

import (
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func render(t *testing.T, source string, width int) string {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
	return Render(source, width)
}

func TestRender_Empty(t *testing.T) {
	assert.Empty(t, Render("", 80))
}

func TestRender_Paragraph(t *testing.T) {
	out := render(t, "We cover auto, home, life, and renters insurance.", 80)
	assert.Equal(t, "We cover auto, home, life, and renters insurance.", out)
}

func TestRender_WrapsToWidth(t *testing.T) {
	out := render(t, "one two three four five six seven eight nine ten", 20)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len(line), 20)
	}
	assert.Greater(t, strings.Count(out, "\n"), 0)
}

func TestRender_Heading(t *testing.T) {
	out := render(t, "# Claims process\n\nFile online.", 80)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "Claims process", lines[0])
	assert.Contains(t, out, "File online.")
}

func TestRender_UnorderedList(t *testing.T) {
	out := render(t, "- auto\n- home\n- renters", 80)
	assert.Contains(t, out, "- auto")
	assert.Contains(t, out, "- home")
	assert.Contains(t, out, "- renters")
}

func TestRender_OrderedList(t *testing.T) {
	out := render(t, "1. Report the incident\n2. Upload photos\n3. Track the claim", 80)
	assert.Contains(t, out, "1. Report the incident")
	assert.Contains(t, out, "3. Track the claim")
}

func TestRender_CodeBlock(t *testing.T) {
	out := render(t, "```\nPOLICY-12345\n```", 80)
	assert.Contains(t, out, "│ POLICY-12345")
}

func TestRender_InlineStylesKeepText(t *testing.T) {
	out := render(t, "Your **deductible** applies to *each* claim.", 80)
	assert.Contains(t, out, "deductible")
	assert.Contains(t, out, "each")
}

func TestRender_Link(t *testing.T) {
	out := render(t, "See [our claims page](https://sureline.example/claims).", 80)
	assert.Contains(t, out, "our claims page")
	assert.Contains(t, out, "(https://sureline.example/claims)")
}
