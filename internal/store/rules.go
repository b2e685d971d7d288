package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var builtinSeed = []struct {
	category string
	pattern  string
}{
	{"Coding", `(?i)(vscode|code|cursor|todesktop|intellij|pycharm|webstorm|sublime|vim|nvim|neovim|emacs|xcode|android.studio|zed|antigravity|windsurf|replit)`},
	{"AI-CLI", `(?i)(claude|gemini|openai|anthropic|copilot|aider|continue)`},
	{"Terminal", `(?i)(terminal|iterm|konsole|gnome-terminal|wezterm|alacritty|kitty|hyper|warp)`},
	{"Break", `(?i)(instagram|facebook|twitter|tiktok|youtube|netflix|twitch|reddit|linkedin\.com/feed|threads|snapchat|pinterest|tumblr|weibo|bilibili)`},
	{"Research", `(?i)(stackoverflow|github\.com|gitlab\.com|docs\.|documentation|api\s+reference|mdn\s+web|devdocs|plane\.so|jira|linear\.app|notion\.so)`},
	{"Browser", `(?i)(chrome|firefox|safari|edge|brave|arc|opera|vivaldi)`},
	{"Communication", `(?i)(slack|discord|teams|zoom|skype|telegram|whatsapp|messages|mail)`},
	{"Documentation", `(?i)(notion|obsidian|evernote|onenote|bear|typora|logseq|roam)`},
	{"Design", `(?i)(figma|sketch|adobe|photoshop|illustrator|canva|affinity)`},
	{"Database", `(?i)(dbeaver|tableplus|sequel|datagrip|mongodb|postico|pgadmin)`},
	{"Git", `(?i)(github|gitlab|sourcetree|gitkraken|fork|tower)`},
}

const ruleColumns = `id, pattern, pattern_target, category, priority_class, hit_count, last_hit, created_at`

// GetRules returns the rules of one priority class. User rules come newest
// first; built-in rules keep their seed order.
func (s *Store) GetRules(class PriorityClass) ([]Rule, error) {
	order := "rowid ASC"
	if class == ClassUser {
		order = "rowid DESC"
	}
	rows, err := s.db.Query(
		`SELECT `+ruleColumns+` FROM classification_rules WHERE priority_class = ? ORDER BY `+order, class,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s rules: %w", class, err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *r)
	}
	return rules, rows.Err()
}

func (s *Store) GetRule(id string) (*Rule, error) {
	r, err := scanRule(s.db.QueryRow(`SELECT `+ruleColumns+` FROM classification_rules WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("get rule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get rule %s: %w", id, err)
	}
	return r, nil
}

// PutRule inserts r, assigning an id when empty. Re-adding an existing
// (pattern, target, class) moves it to the newest position with the new category.
func (s *Store) PutRule(r *Rule) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM classification_rules WHERE pattern = ? AND pattern_target = ? AND priority_class = ?`,
		r.Pattern, r.Target, r.Class,
	); err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO classification_rules (id, pattern, pattern_target, category, priority_class, hit_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Pattern, r.Target, r.Category, r.Class, r.HitCount, formatTime(r.CreatedAt),
	); err != nil {
		return fmt.Errorf("put rule: %w", err)
	}
	return tx.Commit()
}

// RecordRuleHit atomically increments the rule's hit counter.
func (s *Store) RecordRuleHit(id string) error {
	res, err := s.db.Exec(
		`UPDATE classification_rules SET hit_count = hit_count + 1, last_hit = ? WHERE id = ?`,
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("record hit %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record hit %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteRule(id string) error {
	_, err := s.db.Exec(`DELETE FROM classification_rules WHERE id = ? AND priority_class = ?`, id, ClassUser)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	r := &Rule{}
	var lastHit sql.NullString
	var createdAt string
	if err := row.Scan(&r.ID, &r.Pattern, &r.Target, &r.Category, &r.Class, &r.HitCount, &lastHit, &createdAt); err != nil {
		return nil, err
	}
	r.LastHit = parseNullTime(lastHit)
	r.CreatedAt = parseTime(createdAt)
	return r, nil
}
