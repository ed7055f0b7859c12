package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPasswords(t *testing.T) {
	got, err := checkPasswords("s3cret-pass", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "s3cret-pass", got)

	_, err = checkPasswords("s3cret-pass", "s3cret-pasS")
	assert.EqualError(t, err, "passwords do not match")

	_, err = checkPasswords("abc", "abc")
	assert.Error(t, err)
}

func TestConfirmed(t *testing.T) {
	assert.True(t, confirmed("y\n"))
	assert.True(t, confirmed(" YES "))
	assert.False(t, confirmed("\n"))
	assert.False(t, confirmed("nope"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "editor", truncate("editor", 20))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}

func TestFormatOptionalTime(t *testing.T) {
	assert.Equal(t, "never", formatOptionalTime(nil, "never"))
	ts := time.Date(2025, 6, 1, 12, 30, 0, 0, time.Local)
	assert.Equal(t, "2025-06-01 12:30", formatOptionalTime(&ts, "never"))
}
