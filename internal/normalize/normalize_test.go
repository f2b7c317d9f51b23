package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

var sampleNames = []string{
	"",
	"   ",
	"新宿変電所",
	"新宿変電",
	"新宿",
	"新宿　変電所",
	"ＡＢＣ変電所（１５４ｋＶ）",
	"東京北(275kV)変電所",
	"東京北 ( 66 KV ) 変電",
	"(1(154kV)kV)",
	"Example Substation",
	"example sub-station",
	"北斗線",
	"[新]  豊島  変電所 ",
	"ｶﾀｶﾅ変電所",
	"Substation",
	"変電所",
}

func TestLight_Idempotent(t *testing.T) {
	for _, n := range sampleNames {
		once := Light(n)
		assert.Equal(t, once, Light(once), "input %q", n)
	}
}

func TestKey_Idempotent(t *testing.T) {
	for _, n := range sampleNames {
		once := Key(n)
		assert.Equal(t, once, Key(once), "input %q", n)
	}
}

func TestLight_NestedVoltageAnnotations(t *testing.T) {
	raw := strings.Repeat("(1", 10) + "(154kV)" + strings.Repeat("kV)", 10) + "変電所"
	once := Light(raw)
	assert.Equal(t, "変電所", once)
	assert.Equal(t, once, Light(once))
	assert.Equal(t, Key(raw), Key(Key(raw)))
}

func TestLight_Empty(t *testing.T) {
	assert.Equal(t, "", Light(""))
	assert.Equal(t, "", Light(" 　 "))
}

func TestLight_FullWidth(t *testing.T) {
	assert.Equal(t, "ABC変電所", Light("ＡＢＣ変電所"))
}

func TestLight_StripsVoltageAnnotation(t *testing.T) {
	assert.Equal(t, "ABC変電所", Light("ＡＢＣ変電所（１５４ｋＶ）"))
	assert.Equal(t, "東京北 変電所", Light("東京北(275kV) 変電所"))
	assert.Equal(t, "東京北 変電所", Light("東京北 ( 66 KV ) 変電"))
}

func TestLight_CollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "新宿 変電所", Light("新宿　　変電所"))
	assert.Equal(t, "新宿 変電所", Light("  新宿 \t 変電所  "))
}

func TestLight_StandardizesSuffix(t *testing.T) {
	assert.Equal(t, "新宿変電所", Light("新宿変電"))
	assert.Equal(t, "新宿変電所", Light("新宿変電所"))
	assert.Equal(t, "新宿", Light("新宿"))
	assert.Equal(t, "Example Substation", Light("Example substation"))
	assert.Equal(t, "Example Substation", Light("Example Sub-Station"))
}

func TestLight_KeepsHalfWidthKatakanaReadable(t *testing.T) {
	assert.Equal(t, "カタカナ変電所", Light("ｶﾀｶﾅ変電所"))
}

func TestKey_StripsSuffix(t *testing.T) {
	assert.Equal(t, "新宿", Key("新宿変電所"))
	assert.Equal(t, "新宿", Key("新宿変電"))
	assert.Equal(t, "新宿", Key("新宿 変電所"))
	assert.Equal(t, "example", Key("Example Substation"))
}

func TestKey_StripsBracketsAndSpaces(t *testing.T) {
	assert.Equal(t, "新豊島", Key("[新]  豊島  変電所 "))
	assert.Equal(t, "abc", Key("ＡＢＣ変電所（１５４ｋＶ）"))
}

func TestKey_SameFacilityDifferentSpelling(t *testing.T) {
	assert.Equal(t, Key("東京北変電所"), Key("東京北 (275kV) 変電"))
	assert.Equal(t, Key("ＡＢＣ"), Key("abc substation"))
}

func TestIsLine(t *testing.T) {
	assert.True(t, IsLine("北斗線"))
	assert.True(t, IsLine("北斗線 "))
	assert.False(t, IsLine("北斗変電所"))
	assert.False(t, IsLine(""))
}

func TestQuery(t *testing.T) {
	assert.Equal(t, "新宿変電所", Query("新宿変電所"))
	assert.Equal(t, "新宿 変電所", Query("新宿"))
}
