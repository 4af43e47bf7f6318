package presenter

import (
	"sort"
	"time"
	"unicode/utf8"

	"chat-client/internal/models"
)

const dayLayout = "2006-01-02"

// DayGroup holds the messages of one calendar day.
type DayGroup struct {
	Day      string
	Messages []models.Message
}

// GroupByDay buckets messages by the date part of their timestamp, read in
// loc (UTC when nil). Groups and their messages are chronological.
func GroupByDay(messages []models.Message, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]models.Message(nil), messages...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	var groups []DayGroup
	index := map[string]int{}
	for _, m := range sorted {
		day := m.Timestamp.In(loc).Format(dayLayout)
		i, ok := index[day]
		if !ok {
			i = len(groups)
			index[day] = i
			groups = append(groups, DayGroup{Day: day})
		}
		groups[i].Messages = append(groups[i].Messages, m)
	}
	return groups
}

// DayLabel renders a separator label relative to now.
func DayLabel(day string, now time.Time) string {
	switch day {
	case now.Format(dayLayout):
		return "Today"
	case now.AddDate(0, 0, -1).Format(dayLayout):
		return "Yesterday"
	}
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return day
	}
	return t.Format("02/01/2006")
}

// Icon is a status glyph and the style class it is drawn with. An empty
// Style means unstyled.
type Icon struct {
	Glyph string
	Style string
}

// StatusIcon maps a message status to its icon.
func StatusIcon(s models.MessageStatus) Icon {
	switch s {
	case models.StatusSending:
		return Icon{Glyph: "◷", Style: "pending"}
	case models.StatusSent:
		return Icon{Glyph: "✓", Style: "sent"}
	case models.StatusDelivered:
		return Icon{Glyph: "✓✓", Style: "delivered"}
	case models.StatusRead:
		return Icon{Glyph: "✓✓", Style: "read"}
	case models.StatusFailed:
		return Icon{Glyph: "!", Style: "failed"}
	}
	return Icon{Glyph: "✓✓"}
}

// ReactionCount is one emoji and how many users reacted with it.
type ReactionCount struct {
	Emoji string
	Count int
}

// Bubble is a rendered message.
type Bubble struct {
	Message      models.Message
	Own          bool
	ShowAvatar   bool
	Time         string
	Status       Icon
	ReplyPreview string
	Reactions    []ReactionCount
}

// Row is either a day separator or a bubble.
type Row struct {
	Separator string
	Bubble    *Bubble
}

const replyPreviewLength = 40

// BuildThread renders a thread for userID. The avatar is shown only on the
// first received message of a run from the same sender within a day. Days
// and times are read in now's location.
func BuildThread(userID string, messages []models.Message, now time.Time) []Row {
	byID := make(map[string]models.Message, len(messages))
	for _, m := range messages {
		byID[m.ID] = m
	}

	var rows []Row
	for _, g := range GroupByDay(messages, now.Location()) {
		rows = append(rows, Row{Separator: DayLabel(g.Day, now)})
		for i, m := range g.Messages {
			own := m.SenderID == userID
			b := &Bubble{
				Message:    m,
				Own:        own,
				ShowAvatar: !own && (i == 0 || g.Messages[i-1].SenderID != m.SenderID),
				Time:       m.Timestamp.In(now.Location()).Format("15:04"),
				Reactions:  countReactions(m.Reactions),
			}
			if own {
				b.Status = StatusIcon(m.Status)
			}
			if m.ReplyTo != nil {
				b.ReplyPreview = replyPreview(byID, *m.ReplyTo)
			}
			rows = append(rows, Row{Bubble: b})
		}
	}
	return rows
}

func replyPreview(byID map[string]models.Message, id string) string {
	orig, ok := byID[id]
	if !ok {
		return "Original message unavailable"
	}
	if utf8.RuneCountInString(orig.Content) <= replyPreviewLength {
		return orig.Content
	}
	return string([]rune(orig.Content)[:replyPreviewLength]) + "..."
}

func countReactions(r models.Reactions) []ReactionCount {
	out := make([]ReactionCount, 0, len(r))
	for emoji, users := range r {
		if len(users) > 0 {
			out = append(out, ReactionCount{Emoji: emoji, Count: len(users)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Emoji < out[j].Emoji
	})
	return out
}
