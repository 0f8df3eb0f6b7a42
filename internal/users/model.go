package users

import (
	"strings"
	"time"
)

// User is the persisted profile document. Username is the foreign key used everywhere.
type User struct {
	Username       string    `gorm:"column:username;primaryKey;size:64;not null"`
	JoinedAt       time.Time `gorm:"column:joined_at;not null"`
	Preferences    string    `gorm:"column:preferences;not null;default:''"`
	Exclusions     string    `gorm:"column:exclusions;not null;default:''"`
	FollowerCount  int64     `gorm:"column:follower_count;not null;default:0"`
	FollowingCount int64     `gorm:"column:following_count;not null;default:0"`
	RecipeCount    int64     `gorm:"column:recipe_count;not null;default:0"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}

// Follow is one edge of the follow graph. Rows with Follower = A form A's
// following set; rows with Followee = B form B's followers set.
type Follow struct {
	Follower  string    `gorm:"column:follower;primaryKey;size:64;not null"`
	Followee  string    `gorm:"column:followee;primaryKey;size:64;not null;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
}

// TableName provides the explicit table binding for GORM.
func (Follow) TableName() string {
	return "user_follows"
}

// Actor identifies the caller of an operation. The zero value is anonymous.
type Actor struct {
	Username string
	Admin    bool
}

// Authenticated reports whether the actor carries a username.
func (a Actor) Authenticated() bool {
	return strings.TrimSpace(a.Username) != ""
}

// Is reports whether the actor is the named user.
func (a Actor) Is(username string) bool {
	return a.Authenticated() && a.Username == username
}

// SessionContext holds the standing tag filters applied to a caller's searches.
// It is populated at login, replaced when preferences are saved and cleared at logout.
type SessionContext struct {
	Preferences string `json:"preferences"`
	Exclusions  string `json:"exclusions"`
}

// NewSessionContext captures the standing filters stored on the user.
func NewSessionContext(user User) SessionContext {
	return SessionContext{
		Preferences: user.Preferences,
		Exclusions:  user.Exclusions,
	}
}

// Profile is the read model of a user including both sides of the follow graph.
type Profile struct {
	User      User
	Followers []string
	Following []string
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}

// IsAdmin reports whether the actor holds the administrator role.
func (a Actor) IsAdmin() bool {
	return a.Authenticated() && a.Admin
}
