package ci

import (
	"context"
	"fmt"
	"strings"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-cms-ci/internal/documents"
)

// ObjectKind identifies the database object an XML element serializes.
type ObjectKind string

const (
	ObjectNode    ObjectKind = "cms.node"
	ObjectCulture ObjectKind = "cms.document"
	ObjectFields  ObjectKind = "cms.fields"
	ObjectACL     ObjectKind = "cms.acl"
)

// SerializedObject is the object behind an element being post-processed.
type SerializedObject struct {
	Kind ObjectKind
	Tree *documents.TreeNode
}

// ObjectProcessor hooks into serialization. PreprocessDeserialized runs on
// an element read from disk before it is decoded; PostprocessSerialized
// runs on the element produced for object.
type ObjectProcessor interface {
	PreprocessDeserialized(ctx context.Context, el *etree.Element) error
	PostprocessSerialized(ctx context.Context, object SerializedObject, el *etree.Element) error
}

// DocumentProcessor labels node and culture elements with a comment
// holding their readable path.
type DocumentProcessor struct{}

func (DocumentProcessor) PreprocessDeserialized(context.Context, *etree.Element) error {
	return nil
}

func (DocumentProcessor) PostprocessSerialized(_ context.Context, object SerializedObject, el *etree.Element) error {
	if el == nil || object.Tree == nil {
		return nil
	}
	var label string
	switch object.Kind {
	case ObjectNode:
		label = object.Tree.AliasPath()
	case ObjectCulture:
		label = object.Tree.NamePath()
	}
	if strings.TrimSpace(label) == "" {
		return nil
	}
	parent := el.Parent()
	if parent == nil {
		return nil
	}
	parent.InsertChildAt(el.Index(), etree.NewComment(" "+label+" "))
	return nil
}

// ACLResolver translates ACL identifiers to the alias path of the node
// owning them and back. Identifiers differ between installations; owner
// paths do not.
type ACLResolver interface {
	OwnerPath(ctx context.Context, aclID uuid.UUID) (string, error)
	ACLID(ctx context.Context, siteName, ownerPath string) (uuid.UUID, error)
}

// ACLProcessor rewrites inherited ACL references of cms.acl elements from
// identifiers to owner paths and back.
type ACLProcessor struct {
	resolver ACLResolver
}

// NewACLProcessor returns a processor resolving through resolver.
func NewACLProcessor(resolver ACLResolver) *ACLProcessor {
	return &ACLProcessor{resolver: resolver}
}

// PreprocessDeserialized turns <acl owner="/path"/> references back into
// identifiers.
func (p *ACLProcessor) PreprocessDeserialized(ctx context.Context, el *etree.Element) error {
	acl := aclElement(el)
	if acl == nil {
		return nil
	}
	site := acl.SelectAttrValue("site", "")
	for _, ref := range inheritedRefs(acl) {
		owner := ref.SelectAttrValue("owner", "")
		if owner == "" {
			continue
		}
		id, err := p.resolver.ACLID(ctx, site, owner)
		if err != nil {
			return fmt.Errorf("ci: resolve acl owned by %s: %w", owner, err)
		}
		ref.RemoveAttr("owner")
		ref.SetText(id.String())
	}
	return nil
}

// PostprocessSerialized replaces inherited ACL identifiers with the alias
// path of their owner.
func (p *ACLProcessor) PostprocessSerialized(ctx context.Context, object SerializedObject, el *etree.Element) error {
	if object.Kind != ObjectACL {
		return nil
	}
	for _, ref := range inheritedRefs(el) {
		raw := strings.TrimSpace(ref.Text())
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("ci: inherited acl %q: %w", raw, err)
		}
		owner, err := p.resolver.OwnerPath(ctx, id)
		if err != nil {
			return fmt.Errorf("ci: owner of acl %s: %w", id, err)
		}
		ref.SetText("")
		ref.CreateAttr("owner", owner)
	}
	return nil
}

func aclElement(el *etree.Element) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == string(ObjectACL) {
		return el
	}
	return el.SelectElement(string(ObjectACL))
}

func inheritedRefs(el *etree.Element) []*etree.Element {
	if el == nil {
		return nil
	}
	inherited := el.SelectElement("InheritedACLs")
	if inherited == nil {
		return nil
	}
	return inherited.SelectElements("acl")
}

// StoreACLResolver resolves ACLs against the document tables.
type StoreACLResolver struct {
	db bun.IDB
}

// NewStoreACLResolver returns a resolver querying db.
func NewStoreACLResolver(db bun.IDB) *StoreACLResolver {
	return &StoreACLResolver{db: db}
}

func (r *StoreACLResolver) OwnerPath(ctx context.Context, aclID uuid.UUID) (string, error) {
	var paths []string
	err := r.db.NewSelect().
		Model((*documents.Node)(nil)).
		ColumnExpr("?TableAlias.alias_path").
		Join("JOIN acls AS a ON a.owner_node_id = ?TableAlias.id").
		Where("a.id = ?", aclID).
		Limit(1).
		Scan(ctx, &paths)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", documents.ErrACLNotFound
	}
	return paths[0], nil
}

func (r *StoreACLResolver) ACLID(ctx context.Context, siteName, ownerPath string) (uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.NewSelect().
		Model((*documents.ACL)(nil)).
		ColumnExpr("?TableAlias.id").
		Join("JOIN document_nodes AS n ON n.id = ?TableAlias.owner_node_id").
		Join("JOIN sites AS s ON s.id = n.site_id").
		Where("s.name = ?", siteName).
		Where("n.alias_path = ?", ownerPath).
		Limit(1).
		Scan(ctx, &ids)
	if err != nil {
		return uuid.Nil, err
	}
	if len(ids) == 0 {
		return uuid.Nil, documents.ErrACLNotFound
	}
	return ids[0], nil
}
