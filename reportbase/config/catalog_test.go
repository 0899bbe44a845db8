package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalogValidation(t *testing.T) {
	catalog := DefaultWorkCatalog()

	require.Len(t, catalog.CategoryNames(), 4)

	subtype := "Монолит"
	assert.NoError(t, catalog.CheckValidWork("Общестроительные работы", nil))
	assert.NoError(t, catalog.CheckValidWork("Общестроительные работы", &subtype))
	assert.Error(t, catalog.CheckValidWork("Благоустройство", &subtype))
	assert.NoError(t, catalog.CheckValidWork("Благоустройство", nil))
	assert.Error(t, catalog.CheckValidWork("unknown", nil))

	wrong := "Отопление"
	assert.Error(t, catalog.CheckValidWork("Общестроительные работы", &wrong))
	assert.NoError(t, catalog.CheckValidWork("Инженерные коммуникации", &wrong))
}

func TestLoadCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")

	content := `categories:
  - name: demolition
    subtypes:
      - interior
      - exterior
  - name: cleanup
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0666))

	catalog, err := LoadWorkCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"demolition", "cleanup"}, catalog.CategoryNames())

	interior := "interior"
	assert.NoError(t, catalog.CheckValidWork("demolition", &interior))
	assert.Error(t, catalog.CheckValidWork("cleanup", &interior))
}

func TestLoadCatalogErrors(t *testing.T) {
	_, err := LoadWorkCatalog(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, []byte("categories: []"), 0666))

	_, err = LoadWorkCatalog(path)
	assert.Error(t, err)
}
