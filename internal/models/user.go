package models

import "time"

// User is a registered account.
type User struct {
	ID        string    `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Phone     string    `json:"phone"`
	Avatar    *string   `json:"avatar"`
	Status    string    `json:"status"`
	IsOnline  bool      `json:"isOnline"`
	LastSeen  time.Time `json:"lastSeen"`
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayName joins first and last name.
func (u User) DisplayName() string {
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Contact is an entry in a user's address book.
type Contact struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	ContactUserID string    `json:"contactUserId"`
	Name          string    `json:"name"`
	Phone         string    `json:"phone"`
	IsBlocked     bool      `json:"isBlocked"`
	IsFavorite    bool      `json:"isFavorite"`
	CreatedAt     time.Time `json:"createdAt"`
	User          *User     `json:"user,omitempty"`
}

// Group is a multi-member chat room.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"createdBy"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	Closed      bool      `json:"closed"`
	CreatedAt   time.Time `json:"createdAt"`
}

// IsMember reports whether userID belongs to the group.
func (g Group) IsMember(userID string) bool {
	return contains(g.Members, userID)
}

// IsAdmin reports whether userID administers the group.
func (g Group) IsAdmin(userID string) bool {
	return contains(g.Admins, userID)
}

// Discussion is the per-contact or per-group discussion list record.
type Discussion struct {
	ID                string          `json:"id"`
	ContactID         string          `json:"contactId,omitempty"`
	GroupID           string          `json:"groupId,omitempty"`
	IsGroup           bool            `json:"isGroup"`
	Participants      []string        `json:"participants"`
	LastMessage       *MessagePreview `json:"lastMessage,omitempty"`
	LastActivity      time.Time       `json:"lastActivity"`
	CreatedBy         string          `json:"createdBy"`
	IsFavorite        bool            `json:"isFavorite"`
	IsArchived        bool            `json:"isArchived"`
	HasUnreadMessages bool            `json:"hasUnreadMessages"`
	LastReadAt        *time.Time      `json:"lastReadAt,omitempty"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
