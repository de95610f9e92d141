package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitDSN(t *testing.T) {
	name, master, ok, err := splitDSN("postgres://u:p@db:5432/karatcart?sslmode=disable")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "karatcart", name)
	assert.Equal(t, "postgres://u:p@db:5432/postgres?sslmode=disable", master)
}

func TestSplitDSNSkipsOtherForms(t *testing.T) {
	_, _, ok, err := splitDSN("host=db user=u dbname=karatcart")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, ok, err = splitDSN("postgresql://u:p@db:5432")
	require.NoError(t, err)
	assert.False(t, ok)
}
