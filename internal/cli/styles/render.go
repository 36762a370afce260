package styles

import (
	"fmt"
	"strings"
)

// Icons used in CLI output.
const (
	IconCheck  = "✓"
	IconCross  = "✗"
	IconInfo   = "ℹ"
	IconConfig = "⚙"
)

// Renderer renders CLI messages with the theme applied.
type Renderer struct {
	theme *Theme
}

// NewRenderer creates a Renderer with the given theme.
func NewRenderer(theme *Theme) *Renderer {
	return &Renderer{theme: theme}
}

// RenderConfigPath renders the config file location and whether it exists.
func (r *Renderer) RenderConfigPath(path string, exists bool) string {
	status := r.theme.Subtle.Render("(not created yet, run 'camdeck config init')")
	if exists {
		status = r.theme.SuccessStyle.Render("(exists)")
	}
	return fmt.Sprintf("  %s %s %s",
		r.theme.Highlight.Render(IconConfig),
		r.theme.Normal.Render(path),
		status,
	)
}

// RenderCreated renders a file-was-written message.
func (r *Renderer) RenderCreated(path string) string {
	return fmt.Sprintf("  %s Wrote %s",
		r.theme.SuccessStyle.Render(IconCheck),
		r.theme.Subtle.Render(path),
	)
}

// RenderExists renders the message for an init that found an existing file.
func (r *Renderer) RenderExists(path string) string {
	return fmt.Sprintf("  %s %s already exists, leaving it untouched",
		r.theme.WarningStyle.Render(IconInfo),
		r.theme.Subtle.Render(path),
	)
}

// RenderError renders an error message.
func (r *Renderer) RenderError(err error) string {
	return fmt.Sprintf("  %s %s",
		r.theme.ErrorStyle.Render(IconCross),
		r.theme.ErrorStyle.Render(err.Error()),
	)
}

// RenderVersion renders the build information block.
func (r *Renderer) RenderVersion(name, version, commit, buildDate, goVersion string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s %s\n",
		r.theme.Title.Render(name),
		r.theme.Highlight.Render(version),
	))
	sb.WriteString(r.theme.Subtle.Render(fmt.Sprintf("  commit:  %s\n", commit)))
	sb.WriteString(r.theme.Subtle.Render(fmt.Sprintf("  built:   %s\n", buildDate)))
	sb.WriteString(r.theme.Subtle.Render(fmt.Sprintf("  go:      %s", goVersion)))
	return sb.String()
}
