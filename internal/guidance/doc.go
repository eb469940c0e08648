// Package guidance loads per-rule remediation documents from disk and caches
// them for the life of the process.
//
// Documents live at <dir>/<ruleID>.md unless a rules.toml override names
// another path. A document may open with YAML front matter:
//
//	---
//	title: Use FileSystem instead of node:fs
//	related: [node-path]
//	---
//	# Goal
//	...
//
// Everything after the front matter is opaque markdown.
package guidance

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Doc is one cached guidance document. Callers must treat it as read-only;
// the same pointer is shared by every finding that references the rule.
type Doc struct {
	RuleID   string    `json:"ruleId"`
	Title    string    `json:"title,omitempty"`
	Related  []string  `json:"related,omitempty"`
	Markdown string    `json:"markdown"`
	Path     string    `json:"path"`
	LoadedAt time.Time `json:"loadedAt"`
}

type frontMatter struct {
	Title   string   `yaml:"title"`
	Rule    string   `yaml:"rule"`
	Related []string `yaml:"related"`
}

var (
	openFence  = []byte("---\n")
	closeFence = []byte("\n---")
)

// Parse builds a Doc from raw file content.
func Parse(ruleID, path string, data []byte, loadedAt time.Time) (*Doc, error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	doc := &Doc{RuleID: ruleID, Path: path, LoadedAt: loadedAt, Markdown: string(data)}

	if bytes.HasPrefix(data, openFence) {
		rest := data[len(openFence):]
		end := bytes.Index(rest, closeFence)
		if end >= 0 {
			var fm frontMatter
			if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
				return nil, fmt.Errorf("invalid front matter in %s: %w", path, err)
			}
			if fm.Rule != "" && fm.Rule != ruleID {
				return nil, fmt.Errorf("%s declares rule %q, expected %q", path, fm.Rule, ruleID)
			}
			body := rest[end+len(closeFence):]
			if i := bytes.IndexByte(body, '\n'); i >= 0 {
				body = body[i+1:]
			} else {
				body = nil
			}
			doc.Markdown = string(body)
			doc.Title = fm.Title
			doc.Related = fm.Related
		}
	}

	if doc.Title == "" {
		doc.Title = firstHeading(doc.Markdown)
	}
	return doc, nil
}

func firstHeading(md string) string {
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(line[2:])
		}
	}
	return ""
}
