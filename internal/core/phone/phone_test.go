package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EquivalentRepresentations(t *testing.T) {
	t.Parallel()

	want := Key{Plain: "6281234567890", Local: "081234567890", Plus: "+6281234567890"}

	inputs := []string{
		"081234567890",
		"6281234567890",
		"+6281234567890",
		"6281234567890@c.us",
		"+62 812-3456-7890",
		"0812 3456 7890",
		"81234567890",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			got := Normalize(in)
			assert.Equal(t, want, got)
			assert.Equal(t, []string{want.Plain, want.Local, want.Plus}, got.Variants())
		})
	}
}

func TestNormalize_SenderMatchesStoredLocalFormat(t *testing.T) {
	t.Parallel()

	key := Normalize("6281234567890@c.us")
	require.False(t, key.Ambiguous)
	assert.Equal(t, "6281234567890", key.Plain)
	assert.Equal(t, "081234567890", key.Local)
	assert.Equal(t, "+6281234567890", key.Plus)

	assert.True(t, key.Matches("0812-3456-7890"))
	assert.True(t, key.Matches("+62 812 3456 7890"))
	assert.False(t, key.Matches("0812-3456-7899"))
	assert.False(t, key.Matches(""))
}

func TestNormalize_AmbiguousLength(t *testing.T) {
	t.Parallel()

	short := Normalize("12345")
	assert.True(t, short.Ambiguous)
	assert.Equal(t, "12345", short.Plain)
	assert.Equal(t, []string{"12345"}, short.Variants())
	assert.Empty(t, short.Local)
	assert.Empty(t, short.Plus)

	long := Normalize("12345678901234567")
	assert.True(t, long.Ambiguous)
	assert.Equal(t, []string{"12345678901234567"}, long.Variants())
}

func TestNormalize_Empty(t *testing.T) {
	t.Parallel()

	key := Normalize(" @c.us ")
	assert.True(t, key.IsZero())
	assert.Nil(t, key.Variants())
	assert.Empty(t, key.JID())
}

func TestKey_JID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "6281234567890@c.us", Normalize("0812-3456-7890").JID())
	assert.Equal(t, "6281234567890@c.us", Normalize("6281234567890@s.whatsapp.net").JID())
}

func TestIsGroupJID(t *testing.T) {
	t.Parallel()

	assert.True(t, IsGroupJID("120363025246125486@g.us"))
	assert.False(t, IsGroupJID("6281234567890@c.us"))
}
