package corpus

import (
	"fmt"

	"github.com/bastiangx/choiceserve/pkg/choice"
)

var syntheticWords = []string{
	"file", "manager", "script", "open", "search", "web", "clip", "board",
	"kit", "container", "git", "branch", "window", "resize", "color", "picker",
}

var syntheticGroups = []string{"Files", "Web", "System", "Dev", "Media"}

// Synthetic builds a deterministic grouped corpus of n choices: one header per
// group, keywords on every seventh choice, a pass choice, a miss choice and an
// info choice. The last three are only added when n is large enough to hold them.
func Synthetic(n int) []*choice.Choice {
	if n <= 0 {
		return nil
	}
	out := make([]*choice.Choice, 0, n)
	for _, g := range syntheticGroups {
		if len(out) == n {
			return out
		}
		out = append(out, &choice.Choice{ID: "header-" + g, Name: g, Group: g, Skip: true})
	}

	extras := []*choice.Choice{
		{ID: "info", Name: "Type to search", Info: true},
		{ID: "ask", Name: "Ask about the input", Group: "Pass", Pass: choice.Always()},
		{ID: "fallback", Name: "Create a new script", Miss: true},
	}
	body := n - len(out)
	if body > 2*len(extras) {
		body -= len(extras)
	} else {
		extras = nil
	}

	w := len(syntheticWords)
	for i := 0; i < body; i++ {
		c := &choice.Choice{
			ID:          fmt.Sprintf("choice-%d", i),
			Name:        fmt.Sprintf("%s %s %d", syntheticWords[i%w], syntheticWords[(i/w+i)%w], i),
			Description: fmt.Sprintf("Synthetic choice number %d", i),
			Group:       syntheticGroups[i%len(syntheticGroups)],
		}
		if i%7 == 0 {
			c.Keyword = fmt.Sprintf("%s%d", syntheticWords[i%w][:2], i%100)
		}
		if i%11 == 0 {
			c.Tag = fmt.Sprintf("cmd+%d", i%10)
		}
		out = append(out, c)
	}
	return append(out, extras...)
}
