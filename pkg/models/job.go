package models

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Job is the root of a replication job file.
type Job struct {
	Name          string            `yaml:"name"`
	Policy        string            `yaml:"policy"`
	Source        TableSpec         `yaml:"source"`
	Destination   TableSpec         `yaml:"destination"`
	Rename        RenameList        `yaml:"rename"`
	RenameMode    string            `yaml:"rename_mode"`
	Casts         map[string]string `yaml:"casts"`
	PipelineDepth int               `yaml:"pipeline_depth"`
}

// TableSpec describes one side of the replication. BatchSize, Columns and
// CustomFetch are only meaningful for the source.
type TableSpec struct {
	Conn        string   `yaml:"conn"`
	Driver      string   `yaml:"driver"`
	Schema      string   `yaml:"schema"`
	Table       string   `yaml:"table"`
	RowID       string   `yaml:"row_id"`
	BatchSize   int      `yaml:"batch_size"`
	Columns     []string `yaml:"columns"`
	CustomFetch string   `yaml:"custom_fetch"`
}

type RenamePair struct {
	From string
	To   string
}

// RenameList keeps the order in which rename entries appear in the file.
type RenameList []RenamePair

func (r *RenameList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: rename must be a mapping of old: new column names", node.Line)
	}
	out := make(RenameList, 0, len(node.Content)/2)
	seen := make(map[string]bool, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		var from, to string
		if err := node.Content[i].Decode(&from); err != nil {
			return err
		}
		if err := node.Content[i+1].Decode(&to); err != nil {
			return err
		}
		if seen[from] {
			return fmt.Errorf("line %d: column %q renamed twice", node.Content[i].Line, from)
		}
		seen[from] = true
		out = append(out, RenamePair{From: from, To: to})
	}
	*r = out
	return nil
}
