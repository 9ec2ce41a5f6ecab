package store

import "time"

type User struct {
	ID                    string
	DisplayName           string
	Email                 string
	PasswordHash          string
	GoogleSub             string
	AvatarURL             string
	IsEmailVerified       bool
	VerificationToken     string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type Project struct {
	ID          string
	Name        string
	Description string
	CreatedBy   string
	// Role is the caller's membership role when listed for a user.
	Role       string
	BoardCount int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Member struct {
	ProjectID   string
	UserID      string
	DisplayName string
	Email       string
	Role        string
	CreatedAt   time.Time
}

type Board struct {
	ID          string
	ProjectID   string
	Name        string
	Description string
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Phase struct {
	ID       string
	BoardID  string
	Name     string
	Color    string
	Position int
}

type Column struct {
	ID       string
	BoardID  string
	PhaseID  string
	Position int
}

type Block struct {
	ID        string
	BoardID   string
	ColumnID  string
	Type      string
	Title     string
	Content   string
	Note      string
	Emoji     string
	Color     string
	Position  int
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Tag struct {
	ID        string
	BoardID   string
	Name      string
	Color     string
	CreatedAt time.Time
}

type BlockTag struct {
	BlockID string
	TagID   string
}

type Comment struct {
	ID         string
	BlockID    string
	BoardID    string
	AuthorID   string
	AuthorName string
	Content    string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Attachment struct {
	ID            string
	BlockID       string
	BoardID       string
	Type          string
	URL           string
	Title         string
	ObjectKey     string
	FileName      string
	ContentType   string
	SizeBytes     int64
	TargetBoardID *string
	CreatedBy     string
	CreatedAt     time.Time
}

type Emotion struct {
	ColumnID  string
	BoardID   string
	Intensity int
	Label     string
	Emoji     string
	UpdatedAt time.Time
}

type SheetsConnection struct {
	ID             string
	BlockID        string
	BoardID        string
	SpreadsheetID  string
	GID            string
	SheetName      string
	Cell           string
	Label          string
	RefreshSeconds int
	LastValue      *string
	LastFetchedAt  *time.Time
	LastError      string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// BoardContent is the grid of a board without its comments, attachments
// and sheets bindings. Snapshots and duplicates move this shape around.
type BoardContent struct {
	Phases    []Phase
	Columns   []Column
	Blocks    []Block
	Tags      []Tag
	BlockTags []BlockTag
	Emotions  []Emotion
}

// BoardTree is everything needed to render a board.
type BoardTree struct {
	Board Board
	BoardContent
	Attachments       []Attachment
	SheetsConnections []SheetsConnection
	CommentCounts     map[string]int
}

// Scope locates an entity inside the project/board hierarchy.
type Scope struct {
	ProjectID string
	BoardID   string
}

// Removed lists what a cascading delete took with it, so search documents and
// uploaded objects can be cleaned up after the commit.
type Removed struct {
	BlockIDs   []string
	ObjectKeys []string
}
