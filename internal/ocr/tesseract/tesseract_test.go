package tesseract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plate-reader/internal/domain/reader"
)

// fakeBinary writes a shell script standing in for tesseract.
func fakeBinary(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a unix shell")
	}
	path := filepath.Join(t.TempDir(), "fake-tesseract")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestNewMissingBinary(t *testing.T) {
	_, err := New(Options{Binary: filepath.Join(t.TempDir(), "nope")})
	assert.True(t, errors.Is(err, reader.ErrOCRUnavailable))
}

func TestRecognize(t *testing.T) {
	argsFile := filepath.Join(t.TempDir(), "args")
	bin := fakeBinary(t, `echo "$@" > `+argsFile+`
printf '0B34567\n' > "$2.txt"`)

	e, err := New(Options{Binary: bin, PageSegMode: 7, Whitelist: "AB01"})
	require.NoError(t, err)

	text, err := e.Recognize(context.Background(), "/tmp/crop.png")
	require.NoError(t, err)
	assert.Equal(t, "0B34567\n", text)

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	fields := strings.Fields(string(args))
	require.Len(t, fields, 6)
	assert.Equal(t, "/tmp/crop.png", fields[0])
	assert.Equal(t, []string{"--psm", "7", "-c", "tessedit_char_whitelist=AB01"}, fields[2:])
}

func TestRecognizeMissingOutput(t *testing.T) {
	bin := fakeBinary(t, "exit 0")
	e, err := New(Options{Binary: bin})
	require.NoError(t, err)

	_, err = e.Recognize(context.Background(), "/tmp/crop.png")
	assert.True(t, errors.Is(err, reader.ErrOCROutputMissing))
}

func TestRecognizeFailure(t *testing.T) {
	bin := fakeBinary(t, "echo boom >&2; exit 3")
	e, err := New(Options{Binary: bin})
	require.NoError(t, err)

	_, err = e.Recognize(context.Background(), "/tmp/crop.png")
	require.Error(t, err)
	assert.True(t, errors.Is(err, reader.ErrOCRUnavailable))
	assert.Contains(t, err.Error(), "boom")
}
