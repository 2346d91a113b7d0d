package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	assert.Len(t, c.Events(), 7)

	standup, ok := c.Lookup("  standup   NIGHT ")
	require.True(t, ok)
	assert.Equal(t, "Standup Night", standup.Title)
	assert.True(t, standup.Seated())
	assert.Equal(t, KindSeated, standup.Kind)
	assert.Equal(t, 280, standup.Seating.Capacity())
	assert.Equal(t, DefaultUTRMinLength, standup.UTRMinLength)

	premium, err := standup.Seating.Price("A")
	require.NoError(t, err)
	executive, err := standup.Seating.Price("N")
	require.NoError(t, err)
	assert.Equal(t, 230.0, premium)
	assert.Equal(t, premium, executive)
	assert.Equal(t, "premium", standup.Seating.TierOf("e"))
	assert.Equal(t, "executive", standup.Seating.TierOf("F"))

	hackathon, ok := c.Lookup("hackathon")
	require.True(t, ok)
	assert.True(t, hackathon.IsTeam())
	assert.False(t, hackathon.Seated())

	meme, ok := c.Lookup("Meme Contest")
	require.True(t, ok)
	assert.False(t, meme.Paid)
	assert.Zero(t, meme.UTRMinLength)

	_, ok = c.Lookup("Poetry Slam")
	assert.False(t, ok)
}

func TestParseInfersKind(t *testing.T) {
	c, err := Parse([]byte(`
events:
  - title: E1
    seating:
      tiers: {standard: 100}
      rows:
        - {label: a, columns: 8, tier: standard}
  - title: Quiz
    team: {min: 2, max: 3}
`))
	require.NoError(t, err)

	e1, ok := c.Lookup("e1")
	require.True(t, ok)
	assert.Equal(t, KindSeated, e1.Kind)

	quiz, ok := c.Lookup("quiz")
	require.True(t, ok)
	assert.Equal(t, KindTeam, quiz.Kind)
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	cases := map[string]string{
		"empty":         `events: []`,
		"duplicate":     "events:\n  - title: Quiz\n  - title: ' quiz '\n",
		"seated no map": "events:\n  - title: Show\n    kind: seated\n",
		"bad team":      "events:\n  - title: Quiz\n    team: {min: 3, max: 2}\n",
		"unpriced row":  "events:\n  - title: Show\n    seating:\n      tiers: {}\n      rows:\n        - {label: A, columns: 2, tier: vip}\n",
		"not yaml":      "events: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events:\n  - title: Film Night\n"), 0o600))

	c, err := Load(path)
	require.NoError(t, err)
	_, ok := c.Lookup("film night")
	assert.True(t, ok)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	def, err := Load("")
	require.NoError(t, err)
	assert.Len(t, def.Events(), 7)
}
