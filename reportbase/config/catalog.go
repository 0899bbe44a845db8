package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// WorkCatalog lists the work categories a report can describe and the
// subtypes allowed within each category. Category and subtype names are the
// Russian labels shown to the crews on site, so they are stored verbatim.
type WorkCatalog struct {
	Categories []WorkCategory `yaml:"categories"`
}

type WorkCategory struct {
	Name     string   `yaml:"name"`
	Subtypes []string `yaml:"subtypes"`
}

func DefaultWorkCatalog() *WorkCatalog {
	return &WorkCatalog{
		Categories: []WorkCategory{
			{
				Name: "Инженерные коммуникации",
				Subtypes: []string{
					"Отопление",
					"Водоснабжение и канализация",
					"Пожаротушение",
					"Вентиляция и кондиционирование",
					"Электроснабжение",
					"Слаботочные системы",
				},
			},
			{
				Name: "Внутриплощадочные сети",
				Subtypes: []string{
					"НВК",
					"Работы с ГНБ",
					"ЭС",
				},
			},
			{
				// Landscaping reports are filed without a subtype.
				Name: "Благоустройство",
			},
			{
				Name: "Общестроительные работы",
				Subtypes: []string{
					"Монолит",
					"Устройство котлована",
					"Демонтажные работы",
					"Кладочные работы",
					"Фасадные работы",
					"Кровельные работы",
					"Отделочные работы",
				},
			},
		},
	}
}

func LoadWorkCatalog(path string) (*WorkCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading work catalog file '%v': %w", path, err)
	}

	var catalog WorkCatalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("error parsing work catalog file '%v': %w", path, err)
	}

	if len(catalog.Categories) == 0 {
		return nil, fmt.Errorf("work catalog file '%v' lists no categories", path)
	}

	return &catalog, nil
}

func (c *WorkCatalog) category(name string) *WorkCategory {
	for i := range c.Categories {
		if c.Categories[i].Name == name {
			return &c.Categories[i]
		}
	}
	return nil
}

// CheckValidWork verifies that the category is listed in the catalog and
// that the subtype, when given, belongs to that category.
func (c *WorkCatalog) CheckValidWork(categoryName string, subtype *string) error {
	category := c.category(categoryName)
	if category == nil {
		return fmt.Errorf("invalid work category '%v'", categoryName)
	}

	if subtype == nil {
		return nil
	}

	for _, s := range category.Subtypes {
		if s == *subtype {
			return nil
		}
	}
	return fmt.Errorf("invalid work subtype '%v' for category '%v'", *subtype, categoryName)
}

func (c *WorkCatalog) CategoryNames() []string {
	names := make([]string, 0, len(c.Categories))
	for _, category := range c.Categories {
		names = append(names, category.Name)
	}
	return names
}
