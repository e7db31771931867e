// Package testutil содержит общие помощники для тестов.
package testutil

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

// CaptureStdout выполняет fn, перехватывая stdout, и возвращает вывод.
func CaptureStdout(t *testing.T, fn func()) string {
	t.Helper()
	orig := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err, "не удалось создать pipe для stdout")

	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()
	_ = w.Close() //nolint:errcheck // pipe теста

	var buf bytes.Buffer
	_, err = buf.ReadFrom(r)
	require.NoError(t, err, "не удалось прочитать stdout")
	return buf.String()
}
