package presence

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Roster is one observed player list. Players are sorted and de-duplicated
// at parse time so membership comparison is order-independent.
type Roster struct {
	Online     int
	Max        int
	Players    []string
	ObservedAt time.Time
}

var (
	// Structured form: "3/20: Alice, Bob"
	structuredRe = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*:\s*(.*)$`)
	// Vanilla form: "There are 3 of a max of 20 players online: Alice, Bob"
	vanillaRe = regexp.MustCompile(`(?i)there are (\d+) of (?:a )?max(?: of)? (\d+) players? online:?\s*(.*)`)
)

// ParseRoster understands both roster-response grammars the console is
// known to produce.
func ParseRoster(resp string) (*Roster, error) {
	resp = strings.TrimSpace(resp)

	m := structuredRe.FindStringSubmatch(resp)
	if m == nil {
		m = vanillaRe.FindStringSubmatch(resp)
	}
	if m == nil {
		return nil, fmt.Errorf("unrecognized roster response %q", resp)
	}

	online, _ := strconv.Atoi(m[1])
	max, _ := strconv.Atoi(m[2])

	seen := map[string]bool{}
	var players []string
	for _, p := range strings.Split(m[3], ",") {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		players = append(players, p)
	}
	sort.Strings(players)

	return &Roster{Online: online, Max: max, Players: players, ObservedAt: time.Now()}, nil
}

// Key is the comparison string used to decide whether an announcement edit
// is needed.
func (r *Roster) Key() string {
	return fmt.Sprintf("%d/%d:%s", r.Online, r.Max, strings.Join(r.Players, ","))
}

// Render formats the announcement text.
func (r *Roster) Render() string {
	text := fmt.Sprintf("🟢 Online %d/%d", r.Online, r.Max)
	if len(r.Players) > 0 {
		text += ": " + strings.Join(r.Players, ", ")
	}
	return text
}
