package normalize

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed aliases.yaml
var aliasRawData []byte

// aliasFile is the top-level structure of the embedded YAML.
type aliasFile struct {
	Entities map[string]map[string][]string `yaml:"entities"`
}

// AliasTable maps entity -> logical field -> ordered source paths.
type AliasTable map[string]map[string][]string

var (
	aliasOnce  sync.Once
	aliasTable AliasTable
	aliasErr   error
)

// Aliases returns the embedded alias table, parsing it on first access.
func Aliases() (AliasTable, error) {
	aliasOnce.Do(func() {
		var f aliasFile
		if err := yaml.Unmarshal(aliasRawData, &f); err != nil {
			aliasErr = fmt.Errorf("normalize: parse aliases: %w", err)
			return
		}
		aliasTable = AliasTable(f.Entities)
	})
	return aliasTable, aliasErr
}

// Paths returns the source paths for entity.field, or nil if unknown.
func (t AliasTable) Paths(entity, field string) []string {
	return t[entity][field]
}
