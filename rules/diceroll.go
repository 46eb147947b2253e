package rules

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/hauntsaninja/slackreact/event"
	"github.com/hauntsaninja/slackreact/rule"
)

// diePattern matches AdX dice notation; an absent A means one die.
var diePattern = regexp.MustCompile(`\b(\d*)d(\d+)\b`)

// maxDice bounds one roll so a message cannot ask for an absurd allocation.
const maxDice = 1000

// NewDieRoll builds the dice rule: it answers AdX notation in any channel
// with the sorted rolls and their sum, honoring "drop lowest" and
// "drop highest".
func NewDieRoll(rt rule.Runtime) (rule.Rule, error) {
	r := rule.NewRegex(rule.Base{
		RuleName:   "die_roll",
		Runtime:    rt,
		AnyChannel: true,
	}, diePattern)
	r.TextFunc = func(_ context.Context, ev event.Event) ([]string, error) {
		m := r.Match(ev)
		if m == nil {
			return nil, nil
		}
		return []string{rollDice(m, ev.Text)}, nil
	}
	return r, nil
}

// rollDice performs one AdX roll from the pattern's submatches.
func rollDice(m []string, text string) string {
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	if sides < 1 {
		return "I can't roll a die with no sides."
	}
	if count > maxDice {
		return fmt.Sprintf("I only have %d dice.", maxDice)
	}

	rolls := make([]int, count)
	for i := range rolls {
		rolls[i] = rand.Intn(sides) + 1
	}
	sort.Ints(rolls)

	if strings.Contains(text, "drop lowest") && len(rolls) > 0 {
		rolls = rolls[1:]
	}
	if strings.Contains(text, "drop highest") && len(rolls) > 0 {
		rolls = rolls[:len(rolls)-1]
	}

	sum := 0
	shown := make([]string, len(rolls))
	for i, roll := range rolls {
		sum += roll
		shown[i] = strconv.Itoa(roll)
	}
	return fmt.Sprintf("Sum of %d from rolling: %s", sum, strings.Join(shown, ", "))
}
