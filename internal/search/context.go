// Package search composes contextual vector queries: the caller's free-text
// query is enriched with profile data and interaction history before being
// embedded and run against the vector index.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jobstream-labs/jobstream/internal/model"
)

// ContextStore is the slice of the record store the composer reads when
// assembling user context.
type ContextStore interface {
	GetUser(ctx context.Context, userID string) (model.User, error)
	RecentSearchQueries(ctx context.Context, userID string, limit int) ([]string, error)
	RecentClickedJobIDs(ctx context.Context, userID string, limit int) ([]string, error)
	Descriptions(ctx context.Context, ids []string) ([]string, error)
}

// UserData flattens a user's profile into "skills, work history, preferences".
// Unset sections contribute an empty segment, so a blank profile yields
// ", , " rather than an error: the downstream embedding simply gets less
// signal.
func UserData(user model.User) string {
	skills := strings.Join(user.Skills, ", ")

	var history []string
	for _, experience := range user.WorkHistory {
		keys := make([]string, 0, len(experience))
		for k := range experience {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			history = append(history, experience[k])
		}
	}

	prefKeys := make([]string, 0, len(user.Preferences))
	for k := range user.Preferences {
		prefKeys = append(prefKeys, k)
	}
	sort.Strings(prefKeys)
	prefs := make([]string, 0, len(prefKeys))
	for _, k := range prefKeys {
		prefs = append(prefs, user.Preferences[k])
	}

	return fmt.Sprintf("%s, %s, %s", skills, strings.Join(history, ", "), strings.Join(prefs, ", "))
}

// Truncate cuts a description to at most n characters. A negative n means no
// truncation.
func Truncate(s string, n int) string {
	if n < 0 || len(s) <= n {
		return s
	}
	return s[:n]
}

// UserMetadata assembles the full context string: profile data, recent
// search queries, and descriptions of recently clicked postings, each
// section comma-joined.
func (c *Composer) UserMetadata(ctx context.Context, userID string) (string, error) {
	user, err := c.store.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("loading user profile: %w", err)
	}

	queries, err := c.store.RecentSearchQueries(ctx, userID, c.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("loading search history: %w", err)
	}

	jobIDs, err := c.store.RecentClickedJobIDs(ctx, userID, c.cfg.HistoryLimit)
	if err != nil {
		return "", fmt.Errorf("loading click history: %w", err)
	}
	var descs []string
	if len(jobIDs) > 0 {
		full, err := c.store.Descriptions(ctx, jobIDs)
		if err != nil {
			return "", fmt.Errorf("loading clicked descriptions: %w", err)
		}
		descs = make([]string, len(full))
		for i, d := range full {
			descs[i] = Truncate(d, c.cfg.DescTruncation)
		}
	}

	return fmt.Sprintf("%s, %s, %s",
		UserData(user),
		strings.Join(queries, ", "),
		strings.Join(descs, ", "),
	), nil
}
