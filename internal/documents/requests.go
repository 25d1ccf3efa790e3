package documents

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// CreateSiteRequest creates a site with its root node.
type CreateSiteRequest struct {
	Name           string
	DisplayName    string
	DefaultCulture string
	// Cultures lists additional cultures to enable next to DefaultCulture.
	Cultures []string
}

func (r CreateSiteRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&r.DefaultCulture, validation.Required, validation.Length(2, 10)),
	)
}

// InsertRequest creates a node under ParentID with its first culture version.
type InsertRequest struct {
	ParentID  uuid.UUID
	ClassName string
	Culture   string
	Name      string
	// Alias overrides the alias derived from Name.
	Alias  string
	Order  int
	Fields map[string]any
}

func (r InsertRequest) Validate() error {
	errs := validation.Errors{}
	if r.ParentID == uuid.Nil {
		errs["parent_id"] = validation.NewError("documents.insert.parent_required", "parent_id is required")
	}
	if strings.TrimSpace(r.ClassName) == "" {
		errs["class_name"] = validation.NewError("documents.insert.class_required", "class_name is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		errs["name"] = validation.NewError("documents.insert.name_required", "name is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// UpdateRequest changes a culture version. Nil fields are left untouched;
// Fields entries are merged into the coupled data.
type UpdateRequest struct {
	NodeID   uuid.UUID
	Culture  string
	Name     *string
	Alias    *string
	ParentID *uuid.UUID
	Order    *int
	Fields   map[string]any

	publish bool
}

func (r UpdateRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.update.node_required", "node_id is required")
	}
	if r.Name != nil && strings.TrimSpace(*r.Name) == "" {
		errs["name"] = validation.NewError("documents.update.name_blank", "name cannot be blank")
	}
	if r.ParentID != nil && *r.ParentID == uuid.Nil {
		errs["parent_id"] = validation.NewError("documents.update.parent_invalid", "parent_id cannot be empty")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// NewCultureRequest adds a translation to a node.
type NewCultureRequest struct {
	NodeID  uuid.UUID
	Culture string
	Name    string
	Fields  map[string]any
}

func (r NewCultureRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.culture.node_required", "node_id is required")
	}
	if strings.TrimSpace(r.Culture) == "" {
		errs["culture"] = validation.NewError("documents.culture.culture_required", "culture is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		errs["name"] = validation.NewError("documents.culture.name_required", "name is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// DeleteRequest removes one culture version (Culture), every culture
// version (AllCultures), and with Recursive the whole subtree.
type DeleteRequest struct {
	NodeID      uuid.UUID
	Culture     string
	AllCultures bool
	Recursive   bool
}

func (r DeleteRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.delete.node_required", "node_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// InsertLinkRequest creates a link to OriginalNodeID under ParentID.
type InsertLinkRequest struct {
	OriginalNodeID uuid.UUID
	ParentID       uuid.UUID
	Alias          string
	Order          int
}

func (r InsertLinkRequest) Validate() error {
	errs := validation.Errors{}
	if r.OriginalNodeID == uuid.Nil {
		errs["original_node_id"] = validation.NewError("documents.link.original_required", "original_node_id is required")
	}
	if r.ParentID == uuid.Nil {
		errs["parent_id"] = validation.NewError("documents.link.parent_required", "parent_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ConvertToLinkRequest turns the Culture version of NodeID into a link to
// OriginalNodeID. The node's other culture versions are deleted.
type ConvertToLinkRequest struct {
	NodeID         uuid.UUID
	Culture        string
	OriginalNodeID uuid.UUID
}

func (r ConvertToLinkRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.to_link.node_required", "node_id is required")
	}
	if r.OriginalNodeID == uuid.Nil {
		errs["original_node_id"] = validation.NewError("documents.to_link.original_required", "original_node_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ConvertFromLinkRequest copies the Culture version of the original into
// the link, making it a standard document.
type ConvertFromLinkRequest struct {
	NodeID  uuid.UUID
	Culture string
}

func (r ConvertFromLinkRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.from_link.node_required", "node_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ChangeTypeRequest switches a node to another document type. Field values
// whose names exist on the new type are kept.
type ChangeTypeRequest struct {
	NodeID    uuid.UUID
	ClassName string
}

func (r ChangeTypeRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.change_type.node_required", "node_id is required")
	}
	if strings.TrimSpace(r.ClassName) == "" {
		errs["class_name"] = validation.NewError("documents.change_type.class_required", "class_name is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SaveDraftRequest stores unpublished edits of a culture version.
type SaveDraftRequest struct {
	NodeID  uuid.UUID
	Culture string
	Name    string
	Fields  map[string]any
}

func (r SaveDraftRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.draft.node_required", "node_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PublishRequest applies the draft of a culture version.
type PublishRequest struct {
	NodeID  uuid.UUID
	Culture string
}

// SetPermissionsRequest breaks permission inheritance at NodeID.
type SetPermissionsRequest struct {
	NodeID  uuid.UUID
	Entries []ACLEntry
}

func (r SetPermissionsRequest) Validate() error {
	errs := validation.Errors{}
	if r.NodeID == uuid.Nil {
		errs["node_id"] = validation.NewError("documents.acl.node_required", "node_id is required")
	}
	for _, entry := range r.Entries {
		if strings.TrimSpace(entry.Role) == "" {
			errs["entries"] = validation.NewError("documents.acl.role_required", "entry role is required")
			break
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// RegisterTypeRequest creates a document type.
type RegisterTypeRequest struct {
	ClassName   string
	DisplayName string
	IsCoupled   bool
	Fields      []FieldDefinition
}

func (r RegisterTypeRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClassName, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Fields, validation.By(validateFieldDefinitions)),
	)
}

// UpdateFormDefinitionRequest replaces the fields of a document type.
type UpdateFormDefinitionRequest struct {
	ClassName string
	Fields    []FieldDefinition
}

func (r UpdateFormDefinitionRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.ClassName, validation.Required),
		validation.Field(&r.Fields, validation.By(validateFieldDefinitions)),
	)
}

func validateFieldDefinitions(value any) error {
	fields, _ := value.([]FieldDefinition)
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f.Name))
		if name == "" {
			return validation.NewError("documents.type.field_name_required", "field name is required")
		}
		if _, dup := seen[name]; dup {
			return validation.NewError("documents.type.field_duplicate", "field "+f.Name+" is defined twice")
		}
		seen[name] = struct{}{}
	}
	return nil
}
