package localization_test

import (
	"anonchat/backend/internal/localization"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCatalogs(t *testing.T) {
	l, err := localization.NewDefault("en")
	require.NoError(t, err)

	assert.True(t, l.Has("en"))
	assert.True(t, l.Has("uk-UA"))
	assert.Equal(t, "The other person has disconnected.", l.GetString("en", "partner_disconnected"))
	assert.Equal(t, "✅ Sent\nSuccess: 3 | Failed: 1", l.Format("en-GB", "broadcast_report", 3, 1))
	assert.NotEqual(t, l.GetString("en", "connected"), l.GetString("uk", "connected"))
}

func TestEmbeddedCatalogsHaveSameKeys(t *testing.T) {
	l, err := localization.NewDefault("en")
	require.NoError(t, err)

	for _, key := range []string{"welcome", "help", "help_admin", "status", "delivery_failed", "internal_error"} {
		assert.NotEqual(t, key, l.GetString("uk", key), "missing uk key %s", key)
	}
}

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json": {Data: []byte(`{"hello":"Hello","only_en":"English"}`)},
		"i18n/uk.json": {Data: []byte(`{"hello":"Привіт"}`)},
		"i18n/README":  {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizer(fsys, "i18n", "uk")
	require.NoError(t, err)

	assert.Equal(t, "Привіт", l.GetString("", "hello"), "empty language uses the default")
	assert.Equal(t, "Привіт", l.GetString("de", "hello"))
	assert.Equal(t, "English", l.GetString("uk", "only_en"))
	assert.Equal(t, "missing", l.GetString("en", "missing"))
}

func TestNewLocalizer_BadJSON(t *testing.T) {
	fsys := fstest.MapFS{"i18n/en.json": {Data: []byte(`{`)}}

	_, err := localization.NewLocalizer(fsys, "i18n", "en")
	assert.Error(t, err)
}
