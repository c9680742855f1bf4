package challenge

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_AllTypesAndTiers_VerifyOwnAnswer(t *testing.T) {
	t.Parallel()

	g := NewSeededGenerator(42)
	for _, typ := range []Type{TypeMath, TypeTyping, TypePattern} {
		for _, d := range []Difficulty{Easy, Medium, Hard} {
			c := g.Generate(typ, d)
			assert.Equal(t, typ, c.Type)
			assert.Equal(t, d, c.Difficulty)
			assert.NotEmpty(t, c.ID)
			assert.NotEmpty(t, c.Prompt)
			assert.True(t, g.Verify(c, c.Answer), "%s/%s must accept its own answer", typ, d)
			assert.True(t, g.Verify(c, "  "+c.Answer+"\n"), "surrounding whitespace is tolerated")
		}
	}
}

func TestGenerate_RandomPicksConcreteType(t *testing.T) {
	t.Parallel()

	g := NewSeededGenerator(7)
	for range 20 {
		c := g.Generate(TypeRandom, Medium)
		assert.Contains(t, []Type{TypeMath, TypeTyping, TypePattern}, c.Type)
	}
}

func TestVerify_RejectsWrongAnswers(t *testing.T) {
	t.Parallel()

	g := NewSeededGenerator(1)

	m := g.Generate(TypeMath, Medium)
	want, err := strconv.Atoi(m.Answer)
	require.NoError(t, err)
	assert.False(t, Verify(m, strconv.Itoa(want+1)))
	assert.False(t, Verify(m, "forty"))
	assert.False(t, Verify(m, ""))

	ty := g.Generate(TypeTyping, Hard)
	assert.False(t, Verify(ty, strings.ToUpper(ty.Answer)+"x"))
}

func TestPattern_EasyIsArithmetic(t *testing.T) {
	t.Parallel()

	c := NewSeededGenerator(3).Generate(TypePattern, Easy)

	body := strings.TrimSuffix(strings.TrimPrefix(c.Prompt, "What comes next? "), ", ?")
	parts := strings.Split(body, ", ")
	require.Len(t, parts, 5)

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		require.NoError(t, err)
		nums[i] = n
	}
	step := nums[1] - nums[0]
	assert.Equal(t, strconv.Itoa(nums[4]+step), c.Answer)
}

func TestChallenge_ExpiredAndView(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	c := NewSeededGenerator(9).Generate(TypeMath, Easy)
	assert.False(t, c.Expired(now), "no expiry means never expired")

	c.ExpiresAt = now.Add(time.Minute)
	assert.False(t, c.Expired(now))
	assert.True(t, c.Expired(now.Add(time.Minute)))

	v := c.View()
	assert.Equal(t, c.ID, v.ID)
	assert.Equal(t, c.Prompt, v.Prompt)
}

func TestParseTypeAndDifficulty(t *testing.T) {
	t.Parallel()

	typ, err := ParseType("pattern")
	require.NoError(t, err)
	assert.Equal(t, TypePattern, typ)
	_, err = ParseType("riddle")
	assert.Error(t, err)

	d, err := ParseDifficulty("hard")
	require.NoError(t, err)
	assert.Equal(t, Hard, d)
	_, err = ParseDifficulty("insane")
	assert.Error(t, err)
}
