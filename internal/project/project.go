// Package project loads and validates the declarative project file naming
// the parts to build. The file is plain YAML; schema validation happens
// after decoding so error messages can point at the offending field.
package project

import (
	"fmt"
	"os"
	"regexp"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/partforge/partforge/internal/parts"
	partforgeerrors "github.com/partforge/partforge/pkg/errors"
)

var yamlLineRegex = regexp.MustCompile(`line (\d+)`)

// Project is the decoded project file.
type Project struct {
	Name  string                `yaml:"name,omitempty" validate:"omitempty,part_name"`
	Parts map[string]parts.Spec `yaml:"parts" validate:"required,min=1,dive,keys,part_name,endkeys"`
}

// Load reads and validates the project file at path.
func Load(path string) (*Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, partforgeerrors.NewSchemaValidationError(path, err.Error(), err)
	}
	return Parse(data, path)
}

// Parse decodes and validates project file content. The path only labels
// errors.
func Parse(data []byte, path string) (*Project, error) {
	var p Project
	if err := yaml.Unmarshal(data, &p); err != nil {
		field := path
		if line := extractLine(err); line > 0 {
			field = fmt.Sprintf("%s:%d", path, line)
		}
		return nil, partforgeerrors.NewSchemaValidationError(field, err.Error(), err)
	}

	if err := Validate(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate performs schema and cross-field validation on the project.
func Validate(p *Project) error {
	if p == nil {
		return partforgeerrors.NewSchemaValidationError("project", "project is nil", nil)
	}

	if err := validatorInstance().Struct(p); err != nil {
		return convertValidationError(err)
	}

	for name, spec := range p.Parts {
		for _, dep := range spec.After {
			if dep == name {
				return partforgeerrors.NewSchemaValidationError(
					fieldForPart(name, "after"), "part depends on itself", nil)
			}
			if _, ok := p.Parts[dep]; !ok {
				return partforgeerrors.NewSchemaValidationError(
					fieldForPart(name, "after"), fmt.Sprintf("references unknown part %q", dep), nil)
			}
		}
	}

	return nil
}

// PartList materializes the declared parts over the given work directories,
// in deterministic name order.
func (p *Project) PartList(dirs parts.Dirs) []*parts.Part {
	names := make([]string, 0, len(p.Parts))
	for name := range p.Parts {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]*parts.Part, 0, len(names))
	for _, name := range names {
		list = append(list, parts.New(name, p.Parts[name], dirs))
	}
	return list
}

func fieldForPart(name, field string) string {
	return fmt.Sprintf("parts.%s.%s", name, field)
}

func extractLine(err error) int {
	if err == nil {
		return 0
	}

	matches := yamlLineRegex.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return 0
	}

	var line int
	if _, scanErr := fmt.Sscanf(matches[1], "%d", &line); scanErr != nil {
		return 0
	}
	return line
}
