package tee

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTeeSavesWithinLimit(t *testing.T) {
	client := &bytes.Buffer{}
	tee := NewTee(client, 10)

	tee.Write([]byte("hello "))
	tee.Write([]byte("you"))

	assert.Equal(t, "hello you", client.String())
	assert.Equal(t, "hello you", string(tee.Response()))
	assert.False(t, tee.Overflowed())
	assert.EqualValues(t, 9, tee.Written())
}

func TestTeeExactLimit(t *testing.T) {
	tee := NewTee(&bytes.Buffer{}, 5)
	tee.Write([]byte("12345"))
	assert.False(t, tee.Overflowed())
	assert.Equal(t, "12345", string(tee.Response()))
}

func TestTeeOverflowKeepsRelaying(t *testing.T) {
	client := &bytes.Buffer{}
	tee := NewTee(client, 8)

	tee.Write([]byte("12345"))
	tee.Write([]byte("6789"))
	// would fit on its own, but the copy is already abandoned
	tee.Write([]byte("0"))

	assert.Equal(t, "1234567890", client.String())
	assert.True(t, tee.Overflowed())
	assert.Nil(t, tee.Response())
	assert.EqualValues(t, 10, tee.Written())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("client went away")
}

func TestTeeClientError(t *testing.T) {
	tee := NewTee(failingWriter{}, 8)
	_, err := tee.Write([]byte("123"))
	require.Error(t, err)
	assert.Empty(t, tee.Response())
}
