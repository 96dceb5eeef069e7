package gamelog

import (
	"log"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Standard server log header, e.g. "[12:34:56] [Server thread/INFO]: ".
	// Lines are matched with it stripped so the patterns below can anchor.
	headerRe = regexp.MustCompile(`^\[[\d:]+\] \[[^\]]+\]:\s*`)

	soldRe   = regexp.MustCompile(`^([A-Za-z0-9_]+) bought x(\d+) (.+?) from ([A-Za-z0-9_]+) in auction for ([\d,]+)\.?$`)
	addedRe  = regexp.MustCompile(`^([A-Za-z0-9_]+) added x(\d+) (.+?) in auction for ([\d,]+)\.?$`)
	verifyRe = regexp.MustCompile(`^([A-Za-z0-9_]+) issued server command: /verify\s*$`)
	chatRe   = regexp.MustCompile(`^\[Not Secure\](?: \[([^\]]+)\])? <([A-Za-z0-9_]+)> (.*)$`)
)

// Classify maps one log line to an Event. Classifiers run in fixed
// priority order and the first match wins. Lines with no recognized
// category marker yield nil; lines with a marker but a failing detail
// pattern yield Unrecognized so format drift is visible in the logs.
func Classify(line string) Event {
	body := headerRe.ReplaceAllString(strings.TrimRight(line, "\r"), "")

	switch {
	case strings.Contains(body, " in auction for "):
		if m := soldRe.FindStringSubmatch(body); m != nil && ValidUsername(m[1]) && ValidUsername(m[4]) {
			return AuctionSold{
				Buyer:  m[1],
				Qty:    atoiOrZero(m[2]),
				Item:   m[3],
				Seller: m[4],
				Price:  strings.ReplaceAll(m[5], ",", ""),
			}
		}
		if m := addedRe.FindStringSubmatch(body); m != nil && ValidUsername(m[1]) {
			return AuctionAdded{
				Seller: m[1],
				Qty:    atoiOrZero(m[2]),
				Item:   m[3],
				Price:  strings.ReplaceAll(m[4], ",", ""),
			}
		}
		return Unrecognized{Raw: line}

	case strings.Contains(body, "issued server command: /verify"):
		if m := verifyRe.FindStringSubmatch(body); m != nil && ValidUsername(m[1]) {
			return VerifyRequest{Username: m[1]}
		}
		return Unrecognized{Raw: line}

	case strings.Contains(body, "[Not Secure]"):
		if m := chatRe.FindStringSubmatch(body); m != nil && ValidUsername(m[2]) {
			return ChatLine{Prefix: m[1], Sender: m[2], Body: m[3]}
		}
		return Unrecognized{Raw: line}
	}

	return nil
}

// Classifier couples Classify with subscriber dispatch. The watcher feeds
// it raw lines; registered handlers receive each event in order.
type Classifier struct {
	handlers []func(Event)
}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Subscribe registers an event handler. Not safe to call once lines are
// flowing; all subscriptions happen during startup wiring.
func (c *Classifier) Subscribe(fn func(Event)) {
	c.handlers = append(c.handlers, fn)
}

// HandleLine classifies one appended line and fans the event out.
func (c *Classifier) HandleLine(line string) {
	ev := Classify(line)
	if ev == nil {
		return
	}
	if u, ok := ev.(Unrecognized); ok {
		log.Printf("gamelog: unrecognized variant of a known line format: %q", u.Raw)
	}
	for _, fn := range c.handlers {
		fn(ev)
	}
}

func atoiOrZero(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
