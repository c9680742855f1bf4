// Package challenge generates and verifies the puzzles that gate bypass and
// unlock actions.
package challenge

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Type is the puzzle family.
type Type string

const (
	TypeMath    Type = "math"
	TypeTyping  Type = "typing"
	TypePattern Type = "pattern"
	TypeRandom  Type = "random" // pick one of the concrete types per challenge
)

// Difficulty is the puzzle tier.
type Difficulty string

const (
	Easy   Difficulty = "easy"
	Medium Difficulty = "medium"
	Hard   Difficulty = "hard"
)

// ParseType returns the Type for s, or an error for unknown names.
func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeMath, TypeTyping, TypePattern, TypeRandom:
		return t, nil
	}
	return "", fmt.Errorf("unknown challenge type %q", s)
}

// ParseDifficulty returns the Difficulty for s, or an error for unknown names.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(s); d {
	case Easy, Medium, Hard:
		return d, nil
	}
	return "", fmt.Errorf("unknown difficulty %q", s)
}

// Challenge is a generated puzzle together with its expected answer.
type Challenge struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	Difficulty Difficulty `json:"difficulty"`
	Prompt     string     `json:"prompt"`
	Answer     string     `json:"answer"`
	CreatedAt  time.Time  `json:"createdAt"`
	ExpiresAt  time.Time  `json:"expiresAt,omitzero"`
}

// Expired reports whether the challenge can no longer be answered.
func (c Challenge) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// View is the client-safe projection of a Challenge (no answer).
type View struct {
	ID         string     `json:"id"`
	Type       Type       `json:"type"`
	Difficulty Difficulty `json:"difficulty"`
	Prompt     string     `json:"prompt"`
	ExpiresAt  time.Time  `json:"expiresAt,omitzero"`
}

// View hides the expected answer.
func (c Challenge) View() View {
	return View{ID: c.ID, Type: c.Type, Difficulty: c.Difficulty, Prompt: c.Prompt, ExpiresAt: c.ExpiresAt}
}

// Generator produces puzzles. It is safe for concurrent use.
type Generator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewGenerator returns a Generator seeded from the runtime's entropy source.
func NewGenerator() *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}
}

// NewSeededGenerator returns a deterministic Generator, for tests.
func NewSeededGenerator(seed uint64) *Generator {
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate builds a puzzle of kind t at difficulty d. The caller sets the
// expiry on the returned value.
func (g *Generator) Generate(t Type, d Difficulty) Challenge {
	g.mu.Lock()
	defer g.mu.Unlock()

	if t == TypeRandom || t == "" {
		t = []Type{TypeMath, TypeTyping, TypePattern}[g.rng.IntN(3)]
	}
	if d == "" {
		d = Medium
	}

	var prompt, answer string
	switch t {
	case TypeTyping:
		prompt, answer = g.typing(d)
	case TypePattern:
		prompt, answer = g.pattern(d)
	default:
		t = TypeMath
		prompt, answer = g.math(d)
	}

	return Challenge{
		ID:         uuid.NewString(),
		Type:       t,
		Difficulty: d,
		Prompt:     prompt,
		Answer:     answer,
	}
}

// Verify checks answer against the challenge's expected answer.
// Numeric answers tolerate surrounding whitespace; typing answers must match
// exactly apart from leading and trailing whitespace.
func (g *Generator) Verify(c Challenge, answer string) bool {
	return Verify(c, answer)
}

// Verify is the stateless form of Generator.Verify.
func Verify(c Challenge, answer string) bool {
	answer = strings.TrimSpace(answer)
	switch c.Type {
	case TypeMath, TypePattern:
		want, err := strconv.Atoi(c.Answer)
		if err != nil {
			return false
		}
		got, err := strconv.Atoi(answer)
		return err == nil && got == want
	default:
		return answer == c.Answer
	}
}

func (g *Generator) between(lo, hi int) int {
	return lo + g.rng.IntN(hi-lo+1)
}

func (g *Generator) math(d Difficulty) (string, string) {
	switch d {
	case Easy:
		a, b := g.between(2, 20), g.between(2, 20)
		return fmt.Sprintf("%d + %d = ?", a, b), strconv.Itoa(a + b)
	case Hard:
		a, b := g.between(12, 49), g.between(12, 49)
		c, e := g.between(3, 19), g.between(3, 19)
		return fmt.Sprintf("(%d × %d) − (%d × %d) = ?", a, b, c, e), strconv.Itoa(a*b - c*e)
	default:
		a, b, c := g.between(6, 19), g.between(6, 19), g.between(10, 99)
		return fmt.Sprintf("%d × %d + %d = ?", a, b, c), strconv.Itoa(a*b + c)
	}
}

const (
	lowerAlphabet = "abcdefghijkmnopqrstuvwxyz"
	mixedAlphabet = "abcdefghijkmnopqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	hardAlphabet  = mixedAlphabet + "!@#$%&*?+="
)

func (g *Generator) typing(d Difficulty) (string, string) {
	length, alphabet := 12, mixedAlphabet
	switch d {
	case Easy:
		length, alphabet = 8, lowerAlphabet
	case Hard:
		length, alphabet = 24, hardAlphabet
	}

	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[g.rng.IntN(len(alphabet))])
	}
	text := b.String()
	return fmt.Sprintf("Type exactly: %s", text), text
}

func (g *Generator) pattern(d Difficulty) (string, string) {
	const shown = 5
	seq := make([]int, shown+1)

	switch d {
	case Easy:
		start, step := g.between(1, 20), g.between(2, 9)
		for i := range seq {
			seq[i] = start + i*step
		}
	case Hard:
		// Second-order sequence: the step itself grows by a constant.
		start, step, accel := g.between(1, 15), g.between(2, 7), g.between(2, 5)
		seq[0] = start
		for i := 1; i < len(seq); i++ {
			seq[i] = seq[i-1] + step + (i-1)*accel
		}
	default:
		start, ratio := g.between(1, 5), g.between(2, 3)
		seq[0] = start
		for i := 1; i < len(seq); i++ {
			seq[i] = seq[i-1] * ratio
		}
	}

	parts := make([]string, shown)
	for i := 0; i < shown; i++ {
		parts[i] = strconv.Itoa(seq[i])
	}
	return fmt.Sprintf("What comes next? %s, ?", strings.Join(parts, ", ")), strconv.Itoa(seq[shown])
}
