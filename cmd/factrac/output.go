package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/brcs124/2FacTrac/internal/bridge"
	"github.com/brcs124/2FacTrac/internal/model"
	"github.com/brcs124/2FacTrac/internal/theme"
)

// printResult writes r to w as JSON (the bridge wire form) or as styled
// text. A non-nil checkErr is reported alongside the result.
func printResult(w io.Writer, format string, r model.AggregateResult, checkErr error) error {
	switch strings.ToLower(format) {
	case "json":
		resp := bridge.NewResponse(r)
		if checkErr != nil {
			resp.Error = checkErr.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case "text", "":
		_, err := fmt.Fprintln(w, renderText(r, checkErr))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func renderText(r model.AggregateResult, checkErr error) string {
	var lines []string
	if checkErr != nil {
		lines = append(lines, theme.ErrorStyle.Render("Check failed: "+checkErr.Error()))
	}

	if r.IsEmpty() {
		lines = append(lines, theme.DimmedStyle.Render("No verification info found."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	lines = append(lines,
		theme.HeaderStyle.Render("Verification"),
		row("Code", r.Code, theme.CodeStyle),
		row("Link", r.Link, theme.LinkStyle),
	)
	if r.Sender != "" {
		lines = append(lines, row("From", r.Sender, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func row(label, value string, style lipgloss.Style) string {
	v := theme.DimmedStyle.Render("N/A")
	if value != "" {
		v = style.Render(value)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, theme.LabelStyle.Render(label), v)
}
