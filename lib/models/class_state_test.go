package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMakeClassKeyNormalizes(t *testing.T) {
	key := MakeClassKey("com sci", "35l", "26w")
	assert.Equal(t, "COM SCI_35L_26W", key)

	assert.Equal(t, key, MakeClassKey("COM  SCI", " 35L ", "26W"))
	assert.Equal(t, key, MakeClassKey("Com Sci", "35L", "26w"))
}

func TestParseClassKeyRoundtrip(t *testing.T) {
	subject, catalog, term := ParseClassKey(MakeClassKey("COM SCI", "35L", "26W"))
	assert.Equal(t, "COM SCI", subject)
	assert.Equal(t, "35L", catalog)
	assert.Equal(t, "26W", term)
}

func TestParseClassKeyTolerantOfShortKeys(t *testing.T) {
	subject, catalog, term := ParseClassKey("PSYCH")
	assert.Equal(t, "PSYCH", subject)
	assert.Empty(t, catalog)
	assert.Empty(t, term)
}

func TestSnapshotKeyMatchesClassKey(t *testing.T) {
	snap := Snapshot{Subject: "math", CatalogNumber: "33a", Term: "26W"}
	assert.Equal(t, MakeClassKey("MATH", "33A", "26W"), snap.Key())
}
