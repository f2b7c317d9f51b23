package dataset

import (
	"encoding/json"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hazardmap/powergrid/internal/normalize"
)

type aliasFile struct {
	Aliases map[string]string `json:"aliases" yaml:"aliases"`
}

// LoadAliases reads an alias table from JSON or YAML ({"aliases": {from:
// to}}). An empty path yields an empty table; a named but missing file is an
// error.
func LoadAliases(path string) (*normalize.AliasTable, error) {
	if path == "" {
		return normalize.NewAliasTable(nil), nil
	}
	data, err := readFile(path, "aliases")
	if err != nil {
		return nil, err
	}

	var f aliasFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, malformed(err, "aliases", path)
	}
	return normalize.NewAliasTable(f.Aliases), nil
}
