package fetcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archive writes a zip of name/body pairs into dir.
func archive(t *testing.T, dir string, pairs ...string) string {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	return writeFixture(t, dir, "capacity.zip", multiZipBytes(t, pairs...))
}

func TestReadZIPTable_PicksCSV(t *testing.T) {
	path := archive(t, t.TempDir(),
		"readme.txt", "notes",
		"__MACOSX/data/._akiyouryou.csv", "resource fork",
		"data/akiyouryou.CSV", "施設名\n",
	)

	name, data, err := ReadZIPTable(path, ".csv")
	require.NoError(t, err)
	assert.Equal(t, "akiyouryou.CSV", name)
	assert.Equal(t, "施設名\n", string(data))
}

func TestReadZIPTable_RequiresExactlyOne(t *testing.T) {
	path := archive(t, t.TempDir(), "a.csv", "a", "b.csv", "b")

	_, _, err := ReadZIPTable(path, ".csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1")

	_, _, err = ReadZIPTable(path, ".xlsx")
	require.Error(t, err)
}

func TestReadZIPTable_EmptyExtMatchesAnything(t *testing.T) {
	path := archive(t, t.TempDir(), "kikan.txt", "x")
	name, data, err := ReadZIPTable(path, "")
	require.NoError(t, err)
	assert.Equal(t, "kikan.txt", name)
	assert.Equal(t, "x", string(data))
}

func TestReadZIPTable_InvalidArchive(t *testing.T) {
	path := writeFixture(t, t.TempDir(), "bad.zip", []byte("not a zip"))
	_, _, err := ReadZIPTable(path, "")
	require.Error(t, err)
}
