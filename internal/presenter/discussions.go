// Package presenter turns conversation summaries and message threads into
// ready-to-render view rows.
package presenter

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"chat-client/internal/logger"
	"chat-client/internal/models"
)

// FilterType selects which discussions are listed.
type FilterType string

const (
	FilterAll       FilterType = "all"
	FilterUnread    FilterType = "unread"
	FilterFavorites FilterType = "favorites"
	FilterGroups    FilterType = "groups"
	FilterArchived  FilterType = "archived"
)

// ParseFilter maps user input to a FilterType, defaulting to FilterAll.
func ParseFilter(s string) FilterType {
	switch f := FilterType(strings.ToLower(strings.TrimSpace(s))); f {
	case FilterUnread, FilterFavorites, FilterGroups, FilterArchived:
		return f
	}
	return FilterAll
}

const previewLength = 30

// DiscussionItem is one row of the discussion list.
type DiscussionItem struct {
	ID          string
	Name        string
	Phone       string
	IsGroup     bool
	IsFavorite  bool
	IsArchived  bool
	UnreadCount int
	LastMessage models.Message
	Selected    bool
}

// Preview returns the last message content cut to 30 characters.
func (d DiscussionItem) Preview() string {
	content := d.LastMessage.Content
	if utf8.RuneCountInString(content) <= previewLength {
		return content
	}
	return string([]rune(content)[:previewLength]) + "..."
}

// Badge renders the unread counter, "" when nothing is unread.
func (d DiscussionItem) Badge() string {
	switch {
	case d.UnreadCount <= 0:
		return ""
	case d.UnreadCount > 9:
		return "9+"
	}
	return strconv.Itoa(d.UnreadCount)
}

// Initials returns the avatar letters.
func (d DiscussionItem) Initials() string {
	if d.IsGroup {
		return "G"
	}
	var b strings.Builder
	for _, part := range strings.Fields(d.Name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteRune(r)
		if b.Len() >= 2 {
			break
		}
	}
	if b.Len() == 0 {
		return "C"
	}
	return strings.ToUpper(b.String())
}

// Filter keeps the items matching f. Archived items only show under FilterArchived.
func Filter(items []DiscussionItem, f FilterType) []DiscussionItem {
	out := make([]DiscussionItem, 0, len(items))
	for _, it := range items {
		if f == FilterArchived {
			if it.IsArchived {
				out = append(out, it)
			}
			continue
		}
		if it.IsArchived {
			continue
		}
		switch f {
		case FilterUnread:
			if it.UnreadCount > 0 {
				out = append(out, it)
			}
		case FilterFavorites:
			if it.IsFavorite {
				out = append(out, it)
			}
		case FilterGroups:
			if it.IsGroup {
				out = append(out, it)
			}
		default:
			out = append(out, it)
		}
	}
	return out
}

// Search keeps the items whose name, last message or phone contains term, ignoring case.
func Search(items []DiscussionItem, term string) []DiscussionItem {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return append([]DiscussionItem(nil), items...)
	}
	out := make([]DiscussionItem, 0, len(items))
	for _, it := range items {
		if strings.Contains(strings.ToLower(it.Name), term) ||
			strings.Contains(strings.ToLower(it.LastMessage.Content), term) ||
			(it.Phone != "" && strings.Contains(it.Phone, term)) {
			out = append(out, it)
		}
	}
	return out
}

// DiscussionList is the stateful list: an unfiltered source plus the current
// filter, search term and selection. The view is rebuilt from the source on
// every change.
type DiscussionList struct {
	mu       sync.Mutex
	source   []DiscussionItem
	filter   FilterType
	term     string
	selected string
	onSelect func(DiscussionItem)
}

// NewDiscussionList creates an empty list. onSelect may be nil.
func NewDiscussionList(onSelect func(DiscussionItem)) *DiscussionList {
	return &DiscussionList{filter: FilterAll, onSelect: onSelect}
}

// SetSource replaces the unfiltered items, keeping the selection when the item still exists.
func (l *DiscussionList) SetSource(items []DiscussionItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.source = append([]DiscussionItem(nil), items...)
	for i := range l.source {
		l.source[i].Selected = l.source[i].ID == l.selected
	}
}

// SetFilter changes the filter.
func (l *DiscussionList) SetFilter(f FilterType) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.filter = f
}

// SetSearch changes the search term.
func (l *DiscussionList) SetSearch(term string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.term = term
}

// View returns filter then search applied to the source.
func (l *DiscussionList) View() []DiscussionItem {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Search(Filter(l.source, l.filter), l.term)
}

// Select marks id as the only selected item, clears its unread badge and
// notifies the selection callback. An unknown id leaves the selection as is.
func (l *DiscussionList) Select(id string) (DiscussionItem, bool) {
	l.mu.Lock()
	idx := -1
	for i := range l.source {
		if l.source[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return DiscussionItem{}, false
	}
	for i := range l.source {
		l.source[i].Selected = i == idx
	}
	l.source[idx].UnreadCount = 0
	l.selected = id
	picked := l.source[idx]
	cb := l.onSelect
	l.mu.Unlock()

	if cb != nil {
		cb(picked)
	}
	return picked, true
}

// Selected returns the id of the selected item, "" when none.
func (l *DiscussionList) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected
}

// Directory resolves display data for counterparts and groups.
type Directory interface {
	GetUser(ctx context.Context, id string) (models.User, error)
	GetGroup(ctx context.Context, id string) (models.Group, error)
}

// Enrich joins summaries with directory names and discussion flags. A failed
// lookup falls back to a placeholder name rather than dropping the row.
func Enrich(ctx context.Context, summaries []models.Summary, dir Directory, discussions []models.Discussion) []DiscussionItem {
	flags := make(map[string]models.Discussion, len(discussions))
	for _, d := range discussions {
		if d.GroupID != "" {
			flags[d.GroupID] = d
		} else if d.ContactID != "" {
			flags[d.ContactID] = d
		}
	}

	items := make([]DiscussionItem, 0, len(summaries))
	for _, s := range summaries {
		it := DiscussionItem{
			ID:          s.ID,
			IsGroup:     s.IsGroup,
			UnreadCount: s.UnreadCount,
			LastMessage: s.LastMessage,
		}
		if s.IsGroup {
			it.Name = "Unknown group"
			if g, err := dir.GetGroup(ctx, s.ID); err == nil {
				it.Name = g.Name
			} else {
				logger.Warn("group lookup failed", zap.String("group_id", s.ID), zap.Error(err))
			}
		} else {
			it.Name = "Unknown contact"
			if u, err := dir.GetUser(ctx, s.ID); err == nil {
				it.Name = u.DisplayName()
				it.Phone = u.Phone
			} else {
				logger.Warn("user lookup failed", zap.String("user_id", s.ID), zap.Error(err))
			}
		}
		if d, ok := flags[s.ID]; ok {
			it.IsFavorite = d.IsFavorite
			it.IsArchived = d.IsArchived
		}
		items = append(items, it)
	}
	return items
}
