package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRegistryProvidesInitialIDs(t *testing.T) {
	r := NewRegistry(Logger, Console)

	assert.True(t, r.Has(Logger))
	assert.True(t, r.Has(Console))
	assert.False(t, r.Has(HTTPKernel))
	assert.Equal(t, []ID{Console, Logger}, r.IDs())
}

func TestProvideRecordsProvider(t *testing.T) {
	r := NewRegistry()
	r.Provide(Messenger, "example.com/messenger")

	provider, ok := r.Provider(Messenger)
	assert.True(t, ok)
	assert.Equal(t, "example.com/messenger", provider)

	_, ok = r.Provider(Security)
	assert.False(t, ok)
}

func TestNilRegistryProvidesNothing(t *testing.T) {
	var r *Registry
	assert.False(t, r.Has(Logger))
	assert.Nil(t, r.IDs())
	_, ok := r.Provider(Logger)
	assert.False(t, ok)
}

func TestDefaultRegistryAlwaysHasLogger(t *testing.T) {
	assert.True(t, Has(Logger))
}

func TestHint(t *testing.T) {
	assert.Equal(t, "github.com/drblury/sentryflow/integration/console", Hint(Console))
	assert.Equal(t, "github.com/drblury/sentryflow/integration/security", Hint(Security))
	assert.Empty(t, Hint(Logger))
}
