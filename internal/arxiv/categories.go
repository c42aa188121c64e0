package arxiv

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var categoriesYAML []byte

// Category is one browsable arXiv subject class.
type Category struct {
	ID          string `yaml:"id" json:"id"`
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
}

// Section groups categories for display.
type Section struct {
	Title      string     `yaml:"title" json:"title"`
	Categories []Category `yaml:"categories" json:"categories"`
}

type taxonomy struct {
	Sections []Section `yaml:"sections"`
}

var (
	taxonomyOnce sync.Once
	taxonomyData taxonomy
	taxonomyErr  error
)

// Sections returns the embedded category taxonomy.
func Sections() ([]Section, error) {
	taxonomyOnce.Do(func() {
		taxonomyErr = yaml.Unmarshal(categoriesYAML, &taxonomyData)
		if taxonomyErr != nil {
			taxonomyErr = fmt.Errorf("failed to parse category taxonomy: %w", taxonomyErr)
		}
	})
	return taxonomyData.Sections, taxonomyErr
}

// CategoryQuery returns the search query for browsing one category.
func CategoryQuery(id string) string {
	return fmt.Sprintf("cat:%s", id)
}
