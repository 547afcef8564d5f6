package exceptions

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Rule is one allow-list entry. All three patterns must match for the
// rule to cover a changeset. A pattern left empty in the file matches
// only an empty subject; there are no negative rules.
type Rule struct {
	File   string `yaml:"file" json:"file"`
	ID     string `yaml:"id" json:"id"`
	Author string `yaml:"author" json:"author"`
}

// Rules is the allow-list for one run, read-only once loaded.
type Rules []Rule

// Covers reports whether any rule matches the given changeset triple.
// The first matching rule wins; rule order is otherwise irrelevant.
func (rs Rules) Covers(file, id, author string) bool {
	for _, r := range rs {
		if Match(r.File, file) && Match(r.ID, id) && Match(r.Author, author) {
			return true
		}
	}
	return false
}

// Load reads the YAML allow-list at path. An empty path or a missing
// file yields an empty rule set; governance simply has no exceptions
// then. A present but unparsable file is an error.
func Load(path string) (Rules, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading exceptions file %s: %w", path, err)
	}

	var doc struct {
		Exceptions Rules `yaml:"exceptions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing exceptions file %s: %w", path, err)
	}
	return doc.Exceptions, nil
}
