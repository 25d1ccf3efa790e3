package documents

import (
	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/events"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

// InsertArgs is raised when a node is created with its first culture version.
type InsertArgs struct {
	events.Lifecycle

	Node *TreeNode
}

// UpdateArgs is raised when a culture version or its node changes. Node
// holds the new state; Previous the state before the update.
type UpdateArgs struct {
	events.Lifecycle

	Node     *TreeNode
	Previous *TreeNode
}

// ParentChanged reports whether the node moved under another parent.
func (a *UpdateArgs) ParentChanged() bool {
	if a == nil || a.Node == nil || a.Previous == nil {
		return false
	}
	return !sameID(a.Node.Node.ParentID, a.Previous.Node.ParentID)
}

// AliasChanged reports whether the node alias changed.
func (a *UpdateArgs) AliasChanged() bool {
	if a == nil || a.Node == nil || a.Previous == nil {
		return false
	}
	return a.Node.Node.Alias != a.Previous.Node.Alias
}

// PathChanged reports whether the node alias path changed.
func (a *UpdateArgs) PathChanged() bool {
	if a == nil || a.Node == nil || a.Previous == nil {
		return false
	}
	return a.Node.AliasPath() != a.Previous.AliasPath()
}

// NamePathChanged reports whether the culture name path changed.
func (a *UpdateArgs) NamePathChanged() bool {
	if a == nil || a.Node == nil || a.Previous == nil {
		return false
	}
	return a.Node.NamePath() != a.Previous.NamePath()
}

// NewCultureArgs is raised when a translation is added to a node.
type NewCultureArgs struct {
	events.Lifecycle

	Node *TreeNode
	// PreviousAlias is the node alias before the translation was added.
	PreviousAlias string
}

// AliasChanged reports whether adding the culture renamed the node.
func (a *NewCultureArgs) AliasChanged() bool {
	return a != nil && a.Node != nil && a.Node.Node.Alias != a.PreviousAlias
}

// DeleteArgs is raised when culture versions, a node, or a subtree are removed.
type DeleteArgs struct {
	events.Lifecycle

	Node *TreeNode
	// Cultures lists the culture versions removed from Node.
	Cultures []string
	// NodeDeleted is set when the node itself was removed.
	NodeDeleted bool
	// Removed lists every other node removed with it: descendants and
	// links pointing into the removed subtree.
	Removed []uuid.UUID
}

// InsertLinkArgs is raised when a link node is created.
type InsertLinkArgs struct {
	events.Lifecycle

	Node *TreeNode
}

// ChangeToLinkArgs is raised when a standard document becomes a link or a
// link becomes a standard document. Node is the culture version being
// converted; after the commit it reflects the converted state.
type ChangeToLinkArgs struct {
	events.Lifecycle

	Node   *TreeNode
	ToLink bool
}

// ChangeTypeArgs is raised when a node switches document type.
type ChangeTypeArgs struct {
	events.Lifecycle

	Node         *TreeNode
	PreviousType *DocumentType
}

// FormDefinitionArgs is raised when the fields of a document type change.
type FormDefinitionArgs struct {
	events.Lifecycle

	Type     *DocumentType
	Previous *DocumentType
	// RequiresRepositoryRefresh is set when field names or types changed,
	// so serialized documents of the class are out of date.
	RequiresRepositoryRefresh bool
}

// Events holds the document lifecycle handlers.
type Events struct {
	Insert                  *events.Handler[*InsertArgs]
	Update                  *events.Handler[*UpdateArgs]
	InsertNewCulture        *events.Handler[*NewCultureArgs]
	Delete                  *events.Handler[*DeleteArgs]
	InsertLink              *events.Handler[*InsertLinkArgs]
	ChangeToLink            *events.Handler[*ChangeToLinkArgs]
	ChangeDocumentType      *events.Handler[*ChangeTypeArgs]
	FormDefinitionChange    *events.Handler[*FormDefinitionArgs]
	TaskCollectionCompleted *events.Handler[*staging.TaskCollectionArgs]
}

// NewEvents returns handlers with no subscribers.
func NewEvents() *Events {
	return &Events{
		Insert:                  events.NewHandler[*InsertArgs]("document.insert"),
		Update:                  events.NewHandler[*UpdateArgs]("document.update"),
		InsertNewCulture:        events.NewHandler[*NewCultureArgs]("document.insert_new_culture"),
		Delete:                  events.NewHandler[*DeleteArgs]("document.delete"),
		InsertLink:              events.NewHandler[*InsertLinkArgs]("document.insert_link"),
		ChangeToLink:            events.NewHandler[*ChangeToLinkArgs]("document.change_to_link"),
		ChangeDocumentType:      events.NewHandler[*ChangeTypeArgs]("document.change_document_type"),
		FormDefinitionChange:    events.NewHandler[*FormDefinitionArgs]("class.form_definition_change"),
		TaskCollectionCompleted: events.NewHandler[*staging.TaskCollectionArgs]("staging.task_collection_completed"),
	}
}

func sameID(a, b *uuid.UUID) bool {
	switch {
	case a == nil && b == nil:
		return true
	case a == nil || b == nil:
		return false
	default:
		return *a == *b
	}
}
