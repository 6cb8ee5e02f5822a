package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOSC(t *testing.T) {
	out, err := NewOSC("127.0.0.1:9000")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.NoError(t, out.Close())
}

func TestNewOSC_InvalidAddress(t *testing.T) {
	_, err := NewOSC("no-port")
	assert.Error(t, err)

	_, err = NewOSC("127.0.0.1:notaport")
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	short := "hello"
	assert.Equal(t, short, truncate(short))

	exact := strings.Repeat("a", maxChatboxRunes)
	assert.Equal(t, exact, truncate(exact))

	long := strings.Repeat("あ", maxChatboxRunes+10)
	got := truncate(long)
	assert.Len(t, []rune(got), maxChatboxRunes)
}
