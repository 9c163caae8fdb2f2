// Package domain defines the persistence models for users, the follow
// graph, chats, and messages. These types are mapped with GORM and form
// the core data layer of the social backend.
package domain

import (
	"sort"
	"time"
)

// User represents a registered account. Relationship state (followers,
// following, pending requests) lives in the Follow and FollowRequest edge
// tables rather than on the user row itself, so that each edge mutation is
// a single-row write.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Username / Email: unique login identifiers.
//   - PasswordHash: bcrypt hash; never serialized.
//   - IsPrivate: when true, follows require an accepted request.
//   - ResetToken / ResetTokenExpires: active password-reset token, if any.
type User struct {
	ID           string `json:"id"        gorm:"type:char(36);primaryKey"`
	Username     string `json:"username"  gorm:"type:varchar(64);not null;uniqueIndex:ux_users_username"`
	Email        string `json:"email"     gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	PasswordHash string `json:"-"         gorm:"type:varchar(255);not null"`
	IsPrivate    bool   `json:"is_private" gorm:"not null;default:false"`

	ResetToken        *string    `json:"-" gorm:"type:varchar(512)"`
	ResetTokenExpires *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// UserRef is the minimal identity projection embedded in list responses
// (followers, chat participants, message senders).
type UserRef struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// Ref projects the user to its identity summary.
func (u User) Ref() UserRef { return UserRef{ID: u.ID, Username: u.Username} }

// Follow is a directed edge: FollowerID follows FolloweeID. A pair (A,B)
// appears at most once; both "A's following" and "B's followers" are views
// over the same row, which keeps the graph symmetric by construction.
type Follow struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	FollowerID string    `json:"follower_id" gorm:"type:char(36);not null;uniqueIndex:ux_follow_edge,priority:1;index"`
	FolloweeID string    `json:"followee_id" gorm:"type:char(36);not null;uniqueIndex:ux_follow_edge,priority:2;index"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Follow.
func (Follow) TableName() string { return "follows" }

// FollowRequest is a pending follow of a private account: RequesterID has
// asked to follow TargetID. Accepting promotes the row into a Follow edge;
// rejecting deletes it. A requester never holds both a pending request and
// a follow edge toward the same target.
type FollowRequest struct {
	ID          string    `json:"id"           gorm:"type:char(36);primaryKey"`
	RequesterID string    `json:"requester_id" gorm:"type:char(36);not null;uniqueIndex:ux_follow_request,priority:1"`
	TargetID    string    `json:"target_id"    gorm:"type:char(36);not null;uniqueIndex:ux_follow_request,priority:2;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for FollowRequest.
func (FollowRequest) TableName() string { return "follow_requests" }

// Chat represents a conversation. Direct chats have exactly two
// participants and a PairKey that makes the unordered pair unique at the
// storage layer; group chats have a nil PairKey and carry a name plus an
// admin flag on each participant row.
//
// LastMessageID is a denormalized pointer to the newest message. It is
// written in the same transaction as the message insert; a stale value
// (pointing at an older message) is tolerated, a dangling one is not.
type Chat struct {
	ID            string    `json:"id"       gorm:"type:char(36);primaryKey"`
	IsGroup       bool      `json:"is_group" gorm:"not null;default:false"`
	GroupName     string    `json:"group_name,omitempty" gorm:"type:varchar(255)"`
	PairKey       *string   `json:"-"        gorm:"type:varchar(80);uniqueIndex:ux_chats_pair_key"`
	LastMessageID *string   `json:"last_message_id,omitempty" gorm:"type:char(36)"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// DirectPairKey builds the canonical key for a two-party chat: both user
// ids sorted and joined, so (A,B) and (B,A) collide on the unique index.
func DirectPairKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + ":" + ids[1]
}

// ChatParticipant is a membership edge between a user and a chat.
// IsAdmin is only meaningful for group chats.
type ChatParticipant struct {
	ID        string    `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id" gorm:"type:char(36);not null;uniqueIndex:ux_chat_member,priority:1;index"`
	UserID    string    `json:"user_id" gorm:"type:char(36);not null;uniqueIndex:ux_chat_member,priority:2;index"`
	IsAdmin   bool      `json:"is_admin" gorm:"not null;default:false"`
	CreatedAt time.Time `json:"created_at"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for ChatParticipant.
func (ChatParticipant) TableName() string { return "chat_participants" }

// Message is an append-only ledger entry within a chat. Messages are never
// edited or deleted; retrieval orders by (created_at, id) so pagination is
// deterministic even when timestamps collide.
type Message struct {
	ID        string    `json:"id"       gorm:"type:char(36);primaryKey"`
	ChatID    string    `json:"chat_id"  gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	SenderID  string    `json:"sender_id" gorm:"type:char(36);not null"`
	Content   string    `json:"content"  gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_chat_msgs,priority:2"`

	Chat Chat `json:"-" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }
