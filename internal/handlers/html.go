package handlers

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// HTMLHandler strips markup and script/style bodies, leaving visible text.
type HTMLHandler struct{}

var _ Handler = (*HTMLHandler)(nil)

func (h *HTMLHandler) Name() string { return "html" }

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	commentRe     = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockTagRe    = regexp.MustCompile(`(?i)</?(p|div|br|li|tr|h[1-6]|table|section|article)[^>]*>`)
	tagRe         = regexp.MustCompile(`<[^>]+>`)
)

var htmlEntities = strings.NewReplacer(
	"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`,
	"&apos;", "'", "&#39;", "'", "&nbsp;", " ",
	"&auml;", "ä", "&ouml;", "ö", "&uuml;", "ü",
	"&Auml;", "Ä", "&Ouml;", "Ö", "&Uuml;", "Ü", "&szlig;", "ß",
	"&euro;", "€",
)

func (h *HTMLHandler) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s; %w", path, err)
	}

	text := DecodeText(data)
	text = scriptStyleRe.ReplaceAllString(text, " ")
	text = commentRe.ReplaceAllString(text, " ")
	text = blockTagRe.ReplaceAllString(text, "\n")
	text = tagRe.ReplaceAllString(text, " ")
	text = htmlEntities.Replace(text)

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n"), nil
}
