// Package classifier maps an application and window title to an activity
// category using user corrections first and built-in patterns second.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/rs/zerolog"

	"github.com/sadopc/toki/internal/store"
)

const Uncategorized = "Uncategorized"

var ErrInvalidPattern = errors.New("invalid pattern")

type Source string

const (
	SourceUserRule Source = "user_rule"
	SourceBuiltIn  Source = "builtin"
	SourceDefault  Source = "default"
)

type Result struct {
	Category string
	Source   Source
	RuleID   string
}

// RuleStore is the persistence the classifier needs.
type RuleStore interface {
	GetRules(class store.PriorityClass) ([]store.Rule, error)
	PutRule(r *store.Rule) error
	RecordRuleHit(id string) error
}

type compiledRule struct {
	rule store.Rule
	re   *regexp.Regexp
}

type Classifier struct {
	rules RuleStore
	log   zerolog.Logger

	mu           sync.RWMutex
	user         []compiledRule
	builtinTitle []compiledRule
	builtinApp   []compiledRule
	cache        map[string]*regexp.Regexp
	broken       map[string]bool
}

// New loads both rule tiers from rules.
func New(rules RuleStore, log zerolog.Logger) (*Classifier, error) {
	c := &Classifier{
		rules:  rules,
		log:    log.With().Str("component", "classifier").Logger(),
		cache:  map[string]*regexp.Regexp{},
		broken: map[string]bool{},
	}
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads both tiers from storage. Compiled patterns are reused.
func (c *Classifier) Reload() error {
	user, err := c.rules.GetRules(store.ClassUser)
	if err != nil {
		return fmt.Errorf("load user rules: %w", err)
	}
	builtin, err := c.rules.GetRules(store.ClassBuiltIn)
	if err != nil {
		return fmt.Errorf("load builtin rules: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.user = c.compileAll(user)
	c.builtinTitle, c.builtinApp = nil, nil
	for _, cr := range c.compileAll(builtin) {
		if cr.rule.Target == store.TargetWindowTitle {
			c.builtinTitle = append(c.builtinTitle, cr)
		} else {
			c.builtinApp = append(c.builtinApp, cr)
		}
	}
	return nil
}

// compileAll compiles rules, dropping (and logging once) any that fail.
func (c *Classifier) compileAll(rules []store.Rule) []compiledRule {
	out := make([]compiledRule, 0, len(rules))
	for _, r := range rules {
		re, ok := c.cache[r.Pattern]
		if !ok {
			if c.broken[r.Pattern] {
				continue
			}
			var err error
			re, err = regexp.Compile(r.Pattern)
			if err != nil {
				c.broken[r.Pattern] = true
				c.log.Warn().Err(err).Str("rule", r.ID).Str("pattern", r.Pattern).Msg("rule disabled")
				continue
			}
			c.cache[r.Pattern] = re
		}
		out = append(out, compiledRule{rule: r, re: re})
	}
	return out
}

// Classify returns the category for appID and title. title may be empty.
// A user-rule hit is counted in storage; a failed count is only logged.
func (c *Classifier) Classify(appID, title string) Result {
	c.mu.RLock()
	res, ok := c.match(appID, title)
	c.mu.RUnlock()

	if !ok {
		return Result{Category: Uncategorized, Source: SourceDefault}
	}
	if res.Source == SourceUserRule {
		if err := c.rules.RecordRuleHit(res.RuleID); err != nil {
			c.log.Warn().Err(err).Str("rule", res.RuleID).Msg("record rule hit")
		}
	}
	return res
}

func (c *Classifier) match(appID, title string) (Result, bool) {
	for _, cr := range c.user {
		subject := appID
		if cr.rule.Target == store.TargetWindowTitle {
			if title == "" {
				continue
			}
			subject = title
		}
		if cr.re.MatchString(subject) {
			return Result{Category: cr.rule.Category, Source: SourceUserRule, RuleID: cr.rule.ID}, true
		}
	}
	if title != "" {
		for _, cr := range c.builtinTitle {
			if cr.re.MatchString(title) {
				return Result{Category: cr.rule.Category, Source: SourceBuiltIn, RuleID: cr.rule.ID}, true
			}
		}
	}
	for _, cr := range c.builtinApp {
		if cr.re.MatchString(appID) {
			return Result{Category: cr.rule.Category, Source: SourceBuiltIn, RuleID: cr.rule.ID}, true
		}
	}
	return Result{}, false
}

// AddCorrection stores a user rule that outranks every existing rule.
func (c *Classifier) AddCorrection(pattern string, target store.PatternTarget, category string) (*store.Rule, error) {
	r, re, err := NewCorrection(pattern, target, category)
	if err != nil {
		return nil, err
	}
	if err := c.rules.PutRule(r); err != nil {
		return nil, fmt.Errorf("save correction: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache[pattern] = re
	kept := []compiledRule{{rule: *r, re: re}}
	for _, cr := range c.user {
		if cr.rule.Pattern == pattern && cr.rule.Target == target {
			continue
		}
		kept = append(kept, cr)
	}
	c.user = kept
	return r, nil
}

// NewCorrection validates a correction and builds the user rule for it
// without persisting it.
func NewCorrection(pattern string, target store.PatternTarget, category string) (*store.Rule, *regexp.Regexp, error) {
	if target != store.TargetAppID && target != store.TargetWindowTitle {
		return nil, nil, fmt.Errorf("%w: unknown target %q", ErrInvalidPattern, target)
	}
	if category == "" {
		return nil, nil, fmt.Errorf("%w: empty category", ErrInvalidPattern)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return &store.Rule{Pattern: pattern, Target: target, Category: category, Class: store.ClassUser}, re, nil
}

// Rules returns a copy of the active rules in evaluation order.
func (c *Classifier) Rules() []store.Rule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []store.Rule
	for _, group := range [][]compiledRule{c.user, c.builtinTitle, c.builtinApp} {
		for _, cr := range group {
			out = append(out, cr.rule)
		}
	}
	return out
}
