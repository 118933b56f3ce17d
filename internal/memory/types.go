package memory

import (
	"errors"
	"time"
)

// ErrStorage wraps database failures. The agent treats memory failures
// as fatal for the current chat cycle, unlike knowledge failures.
var ErrStorage = errors.New("memory: storage failed")

// ErrInvalidInput is returned for empty chat ids or contents.
var ErrInvalidInput = errors.New("memory: invalid input")

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one utterance within a chat. Sequence is monotonically
// increasing and gapless per chat at assignment time; eviction removes
// oldest turns so the lowest stored sequence moves up over time.
type Turn struct {
	ID        int64
	ChatID    string
	Role      Role
	Content   string
	Sequence  int64
	CreatedAt time.Time
}

// Summary describes a chat's stored history without its contents.
type Summary struct {
	ChatID    string
	Turns     int64
	FirstSeq  int64
	LastSeq   int64
	UpdatedAt time.Time
}
