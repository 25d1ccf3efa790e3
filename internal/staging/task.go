// Package staging records document changes as synchronization tasks.
package staging

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/events"
)

// TaskType names the change a task replays on a target server.
type TaskType string

const (
	TaskCreateDocument     TaskType = "CREATEDOC"
	TaskUpdateDocument     TaskType = "UPDATEDOC"
	TaskDeleteDocument     TaskType = "DELETEDOC"
	TaskMoveDocument       TaskType = "MOVEDOC"
	TaskLinkDocument       TaskType = "LINKDOC"
	TaskChangeDocumentType TaskType = "CHANGEDOCTYPE"
)

// Task is one recorded document change.
type Task struct {
	bun.BaseModel `bun:"table:staging_tasks,alias:st"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Type      TaskType  `bun:"task_type,notnull" json:"task_type"`
	SiteID    uuid.UUID `bun:"site_id,notnull,type:uuid" json:"site_id"`
	NodeID    uuid.UUID `bun:"node_id,notnull,type:uuid" json:"node_id"`
	Culture   string    `bun:"culture" json:"culture,omitempty"`
	AliasPath string    `bun:"alias_path,notnull" json:"alias_path"`
	Title     string    `bun:"title,notnull" json:"title"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// TaskCollectionArgs is raised once a document operation has gathered all
// of its tasks.
type TaskCollectionArgs struct {
	events.Lifecycle

	Tasks []*Task
}

// NewTask builds a task for a document change. The title follows the
// "<verb> document '<path>'" form shown in the staging log.
func NewTask(kind TaskType, siteID, nodeID uuid.UUID, culture, aliasPath string) *Task {
	return &Task{
		Type:      kind,
		SiteID:    siteID,
		NodeID:    nodeID,
		Culture:   culture,
		AliasPath: aliasPath,
		Title:     title(kind, aliasPath, culture),
	}
}

func title(kind TaskType, aliasPath, culture string) string {
	verb := map[TaskType]string{
		TaskCreateDocument:     "Create",
		TaskUpdateDocument:     "Update",
		TaskDeleteDocument:     "Delete",
		TaskMoveDocument:       "Move",
		TaskLinkDocument:       "Link",
		TaskChangeDocumentType: "Change type of",
	}[kind]
	if verb == "" {
		verb = string(kind)
	}
	out := verb + " document '" + aliasPath + "'"
	if culture != "" {
		out += " (" + culture + ")"
	}
	return out
}
