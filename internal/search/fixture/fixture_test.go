package fixture

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFixture(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixtures.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndSearch(t *testing.T) {
	path := writeFixture(t, `{
		"acme widget A1": [
			{"url": "https://acme-store.com/a1.jpg", "width": 1600, "height": 1200},
			{"url": "https://cdn.example.com/a1-alt.png", "width": 800, "height": 600}
		]
	}`)

	p, err := Load(path)
	require.NoError(t, err)

	got, err := p.Search(context.Background(), "acme widget A1", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "acme-store.com", got[0].Domain)
	assert.Equal(t, 1600, got[0].Width)

	got, err = p.Search(context.Background(), "acme widget A1", 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestSearchUnknownQuery(t *testing.T) {
	p, err := Load(writeFixture(t, `{}`))
	require.NoError(t, err)

	got, err := p.Search(context.Background(), "never seen", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	_, err = Load(writeFixture(t, `not json`))
	assert.Error(t, err)
}
