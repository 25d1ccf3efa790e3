package documents

import (
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RootAliasPath is the alias path of every site root node.
const RootAliasPath = "/"

// RootClassName is the document type of site root nodes.
const RootClassName = "cms.root"

// Workflow steps recorded on culture versions.
const (
	WorkflowStepPublished = "published"
	WorkflowStepEdit      = "edit"
)

// Site groups a document tree and the cultures it is published in.
type Site struct {
	bun.BaseModel `bun:"table:sites,alias:s"`

	ID             uuid.UUID `bun:",pk,type:uuid" json:"id"`
	Name           string    `bun:"name,notnull,unique" json:"name"`
	DisplayName    string    `bun:"display_name,notnull" json:"display_name"`
	DefaultCulture string    `bun:"default_culture,notnull" json:"default_culture"`
	CreatedAt      time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// SiteCulture enables a culture on a site.
type SiteCulture struct {
	bun.BaseModel `bun:"table:site_cultures,alias:sc"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	SiteID    uuid.UUID `bun:"site_id,notnull,type:uuid" json:"site_id"`
	Culture   string    `bun:"culture,notnull" json:"culture"`
	CreatedAt time.Time `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
}

// FieldDefinition is one field of a document type form.
type FieldDefinition struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Caption  string `json:"caption,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// DocumentType describes a class of documents. Coupled types keep their
// fields in document_fields.
type DocumentType struct {
	bun.BaseModel `bun:"table:document_types,alias:dt"`

	ID          uuid.UUID         `bun:",pk,type:uuid" json:"id"`
	ClassName   string            `bun:"class_name,notnull,unique" json:"class_name"`
	DisplayName string            `bun:"display_name,notnull" json:"display_name"`
	IsCoupled   bool              `bun:"is_coupled,notnull" json:"is_coupled"`
	Fields      []FieldDefinition `bun:"fields,type:jsonb" json:"fields"`
	CreatedAt   time.Time         `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time         `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Field returns the definition named name.
func (t *DocumentType) Field(name string) (FieldDefinition, bool) {
	if t == nil {
		return FieldDefinition{}, false
	}
	for _, f := range t.Fields {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return FieldDefinition{}, false
}

// Node is the culture independent part of a document.
type Node struct {
	bun.BaseModel `bun:"table:document_nodes,alias:n"`

	ID             uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	SiteID         uuid.UUID  `bun:"site_id,notnull,type:uuid" json:"site_id"`
	ParentID       *uuid.UUID `bun:"parent_id,type:uuid" json:"parent_id,omitempty"`
	ClassID        uuid.UUID  `bun:"class_id,notnull,type:uuid" json:"class_id"`
	Alias          string     `bun:"alias,notnull" json:"alias"`
	AliasPath      string     `bun:"alias_path,notnull" json:"alias_path"`
	Level          int        `bun:"level,notnull" json:"level"`
	Order          int        `bun:"node_order,notnull" json:"order"`
	OriginalNodeID *uuid.UUID `bun:"original_node_id,type:uuid" json:"original_node_id,omitempty"`
	ACLID          *uuid.UUID `bun:"acl_id,type:uuid" json:"acl_id,omitempty"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// IsLink reports whether the node shows another node's content.
func (n *Node) IsLink() bool {
	return n != nil && n.OriginalNodeID != nil && *n.OriginalNodeID != uuid.Nil
}

// CultureData is the culture version of a node.
type CultureData struct {
	bun.BaseModel `bun:"table:document_cultures,alias:dc"`

	ID              uuid.UUID  `bun:",pk,type:uuid" json:"id"`
	NodeID          uuid.UUID  `bun:"node_id,notnull,type:uuid" json:"node_id"`
	Culture         string     `bun:"culture,notnull" json:"culture"`
	Name            string     `bun:"name,notnull" json:"name"`
	NamePath        string     `bun:"name_path,notnull" json:"name_path"`
	ForeignKeyValue *uuid.UUID `bun:"foreign_key_value,type:uuid" json:"foreign_key_value,omitempty"`
	WorkflowStep    string     `bun:"workflow_step" json:"workflow_step,omitempty"`
	Published       bool       `bun:"published,notnull" json:"published"`
	PublishedAt     *time.Time `bun:"published_at,nullzero" json:"published_at,omitempty"`
	CreatedAt       time.Time  `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt       time.Time  `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Fields is the coupled data row of a culture version.
type Fields struct {
	bun.BaseModel `bun:"table:document_fields,alias:df"`

	ID        uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	ClassName string         `bun:"class_name,notnull" json:"class_name"`
	Values    map[string]any `bun:"field_values,type:jsonb" json:"values"`
	CreatedAt time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// ACLEntry grants or denies permissions to a role.
type ACLEntry struct {
	Role    string   `json:"role"`
	Allowed []string `json:"allowed,omitempty"`
	Denied  []string `json:"denied,omitempty"`
}

// ACL holds the permissions a node defines and the ancestor ACLs it inherits.
type ACL struct {
	bun.BaseModel `bun:"table:acls,alias:a"`

	ID            uuid.UUID   `bun:",pk,type:uuid" json:"id"`
	OwnerNodeID   uuid.UUID   `bun:"owner_node_id,notnull,type:uuid" json:"owner_node_id"`
	InheritedACLs []uuid.UUID `bun:"inherited_acls,type:jsonb" json:"inherited_acls"`
	Entries       []ACLEntry  `bun:"entries,type:jsonb" json:"entries"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// Draft holds unpublished edits of a culture version.
type Draft struct {
	bun.BaseModel `bun:"table:document_drafts,alias:dd"`

	ID        uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	NodeID    uuid.UUID      `bun:"node_id,notnull,type:uuid" json:"node_id"`
	Culture   string         `bun:"culture,notnull" json:"culture"`
	Name      string         `bun:"name,notnull" json:"name"`
	Values    map[string]any `bun:"field_values,type:jsonb" json:"values"`
	CreatedAt time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
}

// TreeNode is a document as the API hands it out: one culture version of a
// node with its type, site and coupled data.
type TreeNode struct {
	Site    *Site
	Type    *DocumentType
	Node    *Node
	Culture *CultureData
	Fields  *Fields
	ACL     *ACL
}

// IsLink reports whether the document is a link.
func (t *TreeNode) IsLink() bool {
	return t != nil && t.Node.IsLink()
}

// IsInPublishStep reports whether the culture version is not waiting in an
// editing step.
func (t *TreeNode) IsInPublishStep() bool {
	if t == nil || t.Culture == nil {
		return true
	}
	switch t.Culture.WorkflowStep {
	case "", WorkflowStepPublished:
		return true
	default:
		return false
	}
}

// NodeID returns the node ID.
func (t *TreeNode) NodeID() uuid.UUID {
	if t == nil || t.Node == nil {
		return uuid.Nil
	}
	return t.Node.ID
}

// CultureCode returns the culture of the version, or "".
func (t *TreeNode) CultureCode() string {
	if t == nil || t.Culture == nil {
		return ""
	}
	return t.Culture.Culture
}

// AliasPath returns the node alias path.
func (t *TreeNode) AliasPath() string {
	if t == nil || t.Node == nil {
		return ""
	}
	return t.Node.AliasPath
}

// NamePath returns the culture name path.
func (t *TreeNode) NamePath() string {
	if t == nil || t.Culture == nil {
		return ""
	}
	return t.Culture.NamePath
}

// SiteName returns the site code name.
func (t *TreeNode) SiteName() string {
	if t == nil || t.Site == nil {
		return ""
	}
	return t.Site.Name
}

// ClassName returns the document type class name.
func (t *TreeNode) ClassName() string {
	if t == nil || t.Type == nil {
		return ""
	}
	return t.Type.ClassName
}

// Clone returns a copy that shares no mutable state with t.
func (t *TreeNode) Clone() *TreeNode {
	if t == nil {
		return nil
	}
	out := &TreeNode{Site: t.Site, Type: t.Type}
	if t.Node != nil {
		node := *t.Node
		out.Node = &node
	}
	if t.Culture != nil {
		culture := *t.Culture
		out.Culture = &culture
	}
	if t.Fields != nil {
		fields := *t.Fields
		fields.Values = maps.Clone(t.Fields.Values)
		out.Fields = &fields
	}
	if t.ACL != nil {
		acl := *t.ACL
		out.ACL = &acl
	}
	return out
}
