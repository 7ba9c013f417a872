// Package injection flags text that looks like an attempt to smuggle SQL into a
// literal. It is a second line of defense; quoting in the clause package is the
// first.
package injection

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/vantutran2k1/rsql/pkg/logger"
)

var ErrDetected = errors.New("potential sql injection detected")

type Mode int

const (
	// Strict makes Check return an error on a match.
	Strict Mode = iota
	// Advisory makes Check log a warning and let the value through.
	Advisory
)

func (m Mode) String() string {
	if m == Advisory {
		return "advisory"
	}
	return "strict"
}

type rule struct {
	name  string
	match func(string) bool
}

func regexRule(name, expr string) rule {
	re := regexp.MustCompile(expr)
	return rule{name: name, match: re.MatchString}
}

var operandPair = regexp.MustCompile(`([\w'"]+)\s*(?:=|!=|<>)\s*([\w'"]+)`)

// tautology reports comparisons whose two operands are the same token, such as
// 1=1 or 'a'='a'. RE2 has no backreferences, so the operands are compared here.
func tautology(s string) bool {
	for _, m := range operandPair.FindAllStringSubmatch(s, -1) {
		left := strings.Trim(m[1], `'"`)
		right := strings.Trim(m[2], `'"`)
		if left != "" && strings.EqualFold(left, right) {
			return true
		}
	}
	return false
}

var rules = []rule{
	regexRule("comment", `--|/\*|\*/`),
	regexRule("stacked statement", `(?i);\s*(drop|delete|update|insert|alter|create|truncate|grant|revoke|exec|execute)\b`),
	regexRule("union select", `(?i)\bunion(\s+all)?\s+select\b`),
	{name: "tautology", match: tautology},
	regexRule("boolean literal", `(?i)\b(or|and)\s+(true|false|1\s*=\s*1|0\s*=\s*1)\b`),
	regexRule("time delay", `(?i)\b(pg_sleep|sleep|benchmark)\s*\(|\bwaitfor\s+delay\b`),
}

// Detect returns the name of the first rule that matches s.
func Detect(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, r := range rules {
		if r.match(s) {
			return r.name, true
		}
	}
	return "", false
}

// Validate always fails on a match, whatever mode a Detector is configured with.
func Validate(s string) error {
	if name, ok := Detect(s); ok {
		return fmt.Errorf("%w: %s in %q", ErrDetected, name, preview(s))
	}
	return nil
}

type Detector struct {
	mode Mode
	log  *slog.Logger
}

type Option func(*Detector)

func WithMode(m Mode) Option {
	return func(d *Detector) { d.mode = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(d *Detector) { d.log = l }
}

func NewDetector(opts ...Option) *Detector {
	d := &Detector{mode: Strict}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Detector) Mode() Mode {
	return d.mode
}

func (d *Detector) Check(s string) error {
	name, ok := Detect(s)
	if !ok {
		return nil
	}
	if d.mode == Strict {
		return fmt.Errorf("%w: %s in %q", ErrDetected, name, preview(s))
	}

	l := d.log
	if l == nil {
		l = logger.Logger()
	}
	l.Warn("potentially dangerous sql pattern", "rule", name, "value", preview(s))
	return nil
}

func preview(s string) string {
	const max = 50
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
