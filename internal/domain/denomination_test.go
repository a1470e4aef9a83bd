package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCatalog_OrdersDescending(t *testing.T) {
	c, err := NewCatalog(
		Denomination{Value: 10, Tag: "ten"},
		Denomination{Value: 1, Tag: "one"},
		Denomination{Value: 100, Tag: "hundred"},
	)
	require.NoError(t, err)

	ds := c.Denominations()
	require.Len(t, ds, 3)
	assert.Equal(t, int64(100), ds[0].Value)
	assert.Equal(t, int64(10), ds[1].Value)
	assert.Equal(t, int64(1), ds[2].Value)
	assert.True(t, c.HasUnit())
	assert.True(t, c.IsChain())
}

func TestNewCatalog_Rejects(t *testing.T) {
	cases := map[string][]Denomination{
		"empty":         nil,
		"zero value":    {{Value: 0, Tag: "zero"}},
		"negative":      {{Value: -5, Tag: "neg"}},
		"empty tag":     {{Value: 5}},
		"duplicate val": {{Value: 5, Tag: "a"}, {Value: 5, Tag: "b"}},
		"duplicate tag": {{Value: 5, Tag: "a"}, {Value: 1, Tag: "a"}},
	}
	for name, ds := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewCatalog(ds...)
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, 5, c.Len())
	assert.True(t, c.HasUnit())
	assert.True(t, c.IsChain())

	d, ok := c.ByValue(1000)
	require.True(t, ok)
	assert.Equal(t, "kubeshop:coin_1000", d.Tag)

	d, ok = c.ByTag("kubeshop:coin_1")
	require.True(t, ok)
	assert.Equal(t, int64(1), d.Value)

	_, ok = c.ByValue(5)
	assert.False(t, ok)
}

func TestCatalog_NotChain(t *testing.T) {
	c := MustCatalog(Denomination{Value: 4, Tag: "four"}, Denomination{Value: 3, Tag: "three"})
	assert.False(t, c.IsChain())
	assert.False(t, c.HasUnit())
}

func TestCatalog_DenominationsIsCopy(t *testing.T) {
	c := DefaultCatalog()
	ds := c.Denominations()
	ds[0].Value = 7
	assert.Equal(t, int64(10000), c.Denominations()[0].Value)
}
