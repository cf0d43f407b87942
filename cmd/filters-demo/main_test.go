package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filters.lopezb.com/internal/filters/bloom"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDemo_Defaults(t *testing.T) {
	out, err := execute(t, "--seed", "7")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "bit_count: 5760", lines[0])
	assert.Equal(t, "hash_count: 4", lines[1])
	assert.Equal(t, "contains(a): true", lines[2])
	assert.Equal(t, "contains(b): true", lines[3])
	assert.Equal(t, "contains(c): true", lines[4])
	assert.True(t, strings.HasPrefix(lines[5], "contains(z): "), lines[5])
}

func TestDemo_SeedIsReproducible(t *testing.T) {
	first, err := execute(t, "--seed", "42", "--capacity", "1", "--rate", "0.5", "x")
	require.NoError(t, err)
	second, err := execute(t, "--seed", "42", "--capacity", "1", "--rate", "0.5", "x")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, first, "bit_count: 14\n")
	assert.Contains(t, first, "hash_count: 1\n")
	assert.Contains(t, first, "contains(x): true\n")
}

func TestDemo_ProbeNotDuplicated(t *testing.T) {
	out, err := execute(t, "y", "z")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(out, "contains(z)"))
	assert.Contains(t, out, "contains(z): true\n")
}

func TestDemo_Algorithm(t *testing.T) {
	out, err := execute(t, "--algorithm", bloom.AlgorithmMurmur3)
	require.NoError(t, err)
	assert.Contains(t, out, "contains(a): true\n")

	_, err = execute(t, "--algorithm", "md5")
	require.ErrorIs(t, err, bloom.ErrInvalidArgument)
}

func TestDemo_InvalidRate(t *testing.T) {
	for _, rate := range []string{"0", "1", "2"} {
		_, err := execute(t, "--rate", rate)
		require.ErrorIs(t, err, bloom.ErrInvalidArgument, rate)
	}
}
