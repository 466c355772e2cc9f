package console

import (
	"bufio"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStdio(input string, interactive bool) (*Stdio, *strings.Builder) {
	out := &strings.Builder{}
	return &Stdio{
		reader:      bufio.NewReader(strings.NewReader(input)),
		out:         out,
		interactive: interactive,
	}, out
}

// Проверяем что NewStdio возвращает валидный объект
func TestNewStdio(t *testing.T) {
	assert.NotNil(t, NewStdio())
}

func TestStdio_PrintlnAndPrintf(t *testing.T) {
	stdio, out := newTestStdio("", false)

	stdio.Println("hello", "world")
	stdio.Printf("test %d %s\n", 1, "abc")

	assert.Equal(t, "hello world\ntest 1 abc\n", out.String())
}

func TestStdio_ReadInput(t *testing.T) {
	t.Run("interactive shows prompt", func(t *testing.T) {
		stdio, out := newTestStdio("  add y=x  \nlist\n", true)

		line, err := stdio.ReadInput("> ")
		require.NoError(t, err)
		assert.Equal(t, "add y=x", line)
		assert.Equal(t, "> ", out.String())
	})

	t.Run("piped input has no prompt", func(t *testing.T) {
		stdio, out := newTestStdio("list\n", false)

		line, err := stdio.ReadInput("> ")
		require.NoError(t, err)
		assert.Equal(t, "list", line)
		assert.Empty(t, out.String())
	})

	t.Run("last line without newline", func(t *testing.T) {
		stdio, _ := newTestStdio("who", false)

		line, err := stdio.ReadInput("> ")
		require.NoError(t, err)
		assert.Equal(t, "who", line)

		_, err = stdio.ReadInput("> ")
		assert.ErrorIs(t, err, io.EOF)
	})
}
