package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAliasTable_Apply(t *testing.T) {
	tbl := NewAliasTable(map[string]string{
		"新東京変電":  "新東京変電所",
		"ＳＨＩＮ変電所": "新宿変電所",
		"旧名":     "新名変電所",
		"":       "ignored",
		"same":   "same",
	})

	assert.Equal(t, "新宿変電所", tbl.Apply("SHIN変電所"))
	assert.Equal(t, "新名変電所", tbl.Apply("旧名"))
	assert.Equal(t, "unknown", tbl.Apply("unknown"))
	assert.Equal(t, 2, tbl.Len())
}

func TestAliasTable_SingleStep(t *testing.T) {
	tbl := NewAliasTable(map[string]string{
		"a": "b",
		"b": "c",
	})
	assert.Equal(t, "b", tbl.Apply("a"))
}

func TestAliasTable_Canonical(t *testing.T) {
	tbl := NewAliasTable(map[string]string{"旧名 変電": "新名変電所"})
	assert.Equal(t, "新名変電所", tbl.Canonical("旧名　変電所"))
}

func TestAliasTable_Nil(t *testing.T) {
	var tbl *AliasTable
	assert.Equal(t, "x", tbl.Apply("x"))
	assert.Equal(t, 0, tbl.Len())
}
