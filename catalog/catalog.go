// Package catalog maps provider names to the model identifiers offered in
// the UI. The builtin curated lists are merged with user-configured entries
// at startup; the merged result is immutable afterwards.
package catalog

import "sort"

type Provider struct {
	Name   string
	Models []string
}

// Builtins returns the curated per-provider model lists.
func Builtins() []Provider {
	return []Provider{
		{Name: "Anthropic", Models: []string{
			"claude-3-5-sonnet-20240620",
			"claude-3-haiku",
			"claude-3-opus",
			"claude-3-opus-20240229",
			"claude-3.5-sonnet",
		}},
		{Name: "Gemini", Models: []string{
			"gemini-1.5-flash",
			"gemini-1.5-pro",
		}},
		{Name: "OpenAI", Models: []string{
			"gpt-4.1-mini",
			"gpt-4o",
			"gpt-4o-mini",
			"o3-mini",
		}},
	}
}

// Merge unions the builtin catalog with user-supplied providers. Models are
// de-duplicated and sorted lexically, providers sorted by name, so repeated
// merges of the same input always yield the same result. Nil or empty input
// degrades to the builtins.
func Merge(user []Provider) []Provider {
	models := make(map[string]map[string]struct{})

	add := func(p Provider) {
		set, ok := models[p.Name]
		if !ok {
			set = make(map[string]struct{})
			models[p.Name] = set
		}
		for _, m := range p.Models {
			if m != "" {
				set[m] = struct{}{}
			}
		}
	}

	for _, p := range Builtins() {
		add(p)
	}
	for _, p := range user {
		if p.Name != "" {
			add(p)
		}
	}

	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	sort.Strings(names)

	merged := make([]Provider, 0, len(names))
	for _, name := range names {
		list := make([]string, 0, len(models[name]))
		for m := range models[name] {
			list = append(list, m)
		}
		sort.Strings(list)
		merged = append(merged, Provider{Name: name, Models: list})
	}
	return merged
}

// Models returns the merged model list for one provider, nil when unknown.
func Models(merged []Provider, name string) []string {
	for _, p := range merged {
		if p.Name == name {
			return p.Models
		}
	}
	return nil
}
