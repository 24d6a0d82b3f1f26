package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSui(t *testing.T) {
	mist, err := parseSui("1.5")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_500_000_000), mist)

	mist, err = parseSui(" 0.000000001 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), mist)

	for _, bad := range []string{"", "abc", "0", "-1", "0.0000000001", "100000000000"} {
		_, err := parseSui(bad)
		assert.Error(t, err, bad)
	}
}

func TestRunUsage(t *testing.T) {
	assert.ErrorIs(t, run(context.Background(), nil), errUsage)
	assert.ErrorIs(t, run(context.Background(), []string{"-nope"}), errUsage)
}
