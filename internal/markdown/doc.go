// ABOUTME: Package doc for terminal markdown rendering
// ABOUTME: Turns assistant replies into ANSI-styled wrapped text

// Package markdown renders assistant replies for terminal display.
//
// Replies arrive as markdown. Render walks the parsed document and
// emits ANSI-styled text wrapped to the requested width: styled
// headings, indented lists, guttered code blocks, and inline emphasis.
// Styling honors the NO_COLOR conventions through the color package's
// global toggle.
package markdown
