package ring

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRing_DropsOldestOnOverflow(t *testing.T) {
	t.Parallel()

	r := New[int](3)
	for i := 1; i <= 5; i++ {
		r.Push(i)
	}

	assert.Equal(t, []int{3, 4, 5}, r.Items())
	assert.Equal(t, 3, r.Len())
}

func TestRing_SetCapTrims(t *testing.T) {
	t.Parallel()

	r := New[string](5)
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.SetCap(2)

	assert.Equal(t, []string{"b", "c"}, r.Items())
	assert.Equal(t, 2, r.Cap())
}

func TestRing_JSONIsPlainArray(t *testing.T) {
	t.Parallel()

	r := New[int](4)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))

	r.Push(7)
	r.Push(8)
	data, err = json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `[7,8]`, string(data))

	restored := New[int](4)
	require.NoError(t, json.Unmarshal(data, restored))
	assert.Equal(t, []int{7, 8}, restored.Items())
	assert.Equal(t, 4, restored.Cap())
}
