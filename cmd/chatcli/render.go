package main

import (
	"fmt"
	"io"
	"strings"

	"chat-client/internal/models"
	"chat-client/internal/presenter"
	"chat-client/internal/session"
)

func renderDiscussions(w io.Writer, items []presenter.DiscussionItem) {
	if len(items) == 0 {
		fmt.Fprintln(w, "no conversations")
		return
	}
	for _, it := range items {
		marks := ""
		if it.IsFavorite {
			marks += "*"
		}
		if it.IsArchived {
			marks += "a"
		}
		kind := "contact"
		if it.IsGroup {
			kind = "group"
		}
		when := ""
		if !it.LastMessage.Timestamp.IsZero() {
			when = it.LastMessage.Timestamp.Local().Format("02/01 15:04")
		}
		fmt.Fprintf(w, "[%-2s] %-24s %-11s %3s %-2s %s  (%s %s)\n",
			it.Initials(), it.Name, when, it.Badge(), marks, it.Preview(), kind, it.ID)
	}
}

func renderThread(w io.Writer, t session.Target, rows []presenter.Row) {
	fmt.Fprintf(w, "== %s ==\n", t.Name)
	if len(rows) == 0 {
		fmt.Fprintln(w, "no messages yet")
		return
	}
	for _, r := range rows {
		if r.Bubble == nil {
			fmt.Fprintf(w, "-- %s --\n", r.Separator)
			continue
		}
		b := r.Bubble
		var line strings.Builder
		switch {
		case b.Own:
			line.WriteString("  me")
		case b.ShowAvatar:
			line.WriteString("  " + b.Message.SenderID)
		default:
			line.WriteString("    ")
		}
		line.WriteString(" " + b.Time + " ")
		if b.ReplyPreview != "" {
			line.WriteString("> " + b.ReplyPreview + " | ")
		}
		line.WriteString(b.Message.Content)
		if b.Message.IsEdited && !b.Message.IsDeleted {
			line.WriteString(" (edited)")
		}
		if b.Status.Glyph != "" {
			line.WriteString(" " + b.Status.Glyph)
		}
		for _, rc := range b.Reactions {
			fmt.Fprintf(&line, " %s%d", rc.Emoji, rc.Count)
		}
		fmt.Fprintln(w, line.String())
	}
}

func renderContacts(w io.Writer, contacts []models.Contact) {
	if len(contacts) == 0 {
		fmt.Fprintln(w, "no contacts")
		return
	}
	for _, c := range contacts {
		status := ""
		if c.User != nil {
			if c.User.IsOnline {
				status = "online"
			} else if !c.User.LastSeen.IsZero() {
				status = "last seen " + c.User.LastSeen.Local().Format("02/01 15:04")
			}
		}
		fav := ""
		if c.IsFavorite {
			fav = "*"
		}
		fmt.Fprintf(w, "%-1s %-24s %-16s %-24s %s\n", fav, c.Name, c.Phone, status, c.ContactUserID)
	}
}
