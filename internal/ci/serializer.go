package ci

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/documents"
)

const documentTag = "document"

// ErrUnknownUnit reports XML that is neither a document nor an ACL unit.
var ErrUnknownUnit = errors.New("ci: unknown repository unit")

// Unit is a repository file decoded back into document parts.
type Unit struct {
	Kind      ObjectKind
	SiteName  string
	ClassName string
	Node      *documents.Node
	Culture   *documents.CultureData
	Fields    map[string]any
	ACL       *documents.ACL
	// OwnerPath is the alias path of the node owning ACL.
	OwnerPath string
}

// Serializer turns culture versions and ACLs into XML units, running the
// processors over every object element.
type Serializer struct {
	processors []ObjectProcessor
}

// NewSerializer returns a serializer applying processors in order.
func NewSerializer(processors ...ObjectProcessor) *Serializer {
	return &Serializer{processors: slices.DeleteFunc(slices.Clone(processors), func(p ObjectProcessor) bool { return p == nil })}
}

// SerializeDocument writes the node, culture and coupled data of tree as
// one unit.
func (s *Serializer) SerializeDocument(ctx context.Context, tree *documents.TreeNode) ([]byte, error) {
	if tree == nil || tree.Node == nil || tree.Culture == nil {
		return nil, errors.New("ci: serialize requires a node with culture data")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	root := doc.CreateElement(documentTag)
	root.CreateAttr("site", tree.SiteName())
	root.CreateAttr("class", tree.ClassName())

	node := root.CreateElement(string(ObjectNode))
	appendText(node, "NodeID", tree.Node.ID.String())
	appendText(node, "NodeAlias", tree.Node.Alias)
	appendText(node, "NodeAliasPath", tree.Node.AliasPath)
	if tree.Node.ParentID != nil {
		appendText(node, "NodeParentID", tree.Node.ParentID.String())
	}
	appendText(node, "NodeClassName", tree.ClassName())
	appendText(node, "NodeLevel", strconv.Itoa(tree.Node.Level))
	appendText(node, "NodeOrder", strconv.Itoa(tree.Node.Order))
	if tree.Node.IsLink() {
		appendText(node, "NodeLinkedNodeID", tree.Node.OriginalNodeID.String())
	}
	if err := s.postprocess(ctx, SerializedObject{Kind: ObjectNode, Tree: tree}, node); err != nil {
		return nil, err
	}

	culture := root.CreateElement(string(ObjectCulture))
	appendText(culture, "DocumentCulture", tree.Culture.Culture)
	appendText(culture, "DocumentName", tree.Culture.Name)
	appendText(culture, "DocumentNamePath", tree.Culture.NamePath)
	appendText(culture, "DocumentWorkflowStep", tree.Culture.WorkflowStep)
	appendText(culture, "DocumentPublished", strconv.FormatBool(tree.Culture.Published))
	if tree.Culture.PublishedAt != nil {
		appendText(culture, "DocumentPublishedAt", tree.Culture.PublishedAt.UTC().Format(time.RFC3339))
	}
	if err := s.postprocess(ctx, SerializedObject{Kind: ObjectCulture, Tree: tree}, culture); err != nil {
		return nil, err
	}

	if tree.Fields != nil {
		fields := root.CreateElement(string(ObjectFields))
		fields.CreateAttr("class", tree.Fields.ClassName)
		keys := make([]string, 0, len(tree.Fields.Values))
		for key := range tree.Fields.Values {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			if err := appendField(fields, key, tree.Fields.Values[key]); err != nil {
				return nil, err
			}
		}
		if err := s.postprocess(ctx, SerializedObject{Kind: ObjectFields, Tree: tree}, fields); err != nil {
			return nil, err
		}
	}
	return write(doc)
}

// SerializeACL writes the ACL tree.Node owns.
func (s *Serializer) SerializeACL(ctx context.Context, tree *documents.TreeNode) ([]byte, error) {
	if tree == nil || tree.ACL == nil {
		return nil, errors.New("ci: serialize requires an owned acl")
	}
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	el := doc.CreateElement(string(ObjectACL))
	el.CreateAttr("site", tree.SiteName())
	el.CreateAttr("owner", tree.AliasPath())

	inherited := el.CreateElement("InheritedACLs")
	for _, id := range tree.ACL.InheritedACLs {
		inherited.CreateElement("acl").SetText(id.String())
	}
	entries := el.CreateElement("Entries")
	for _, entry := range tree.ACL.Entries {
		item := entries.CreateElement("entry")
		item.CreateAttr("role", entry.Role)
		for _, perm := range entry.Allowed {
			item.CreateElement("allow").SetText(perm)
		}
		for _, perm := range entry.Denied {
			item.CreateElement("deny").SetText(perm)
		}
	}
	if err := s.postprocess(ctx, SerializedObject{Kind: ObjectACL, Tree: tree}, el); err != nil {
		return nil, err
	}
	return write(doc)
}

// Deserialize decodes a unit read from the repository.
func (s *Serializer) Deserialize(ctx context.Context, data []byte) (*Unit, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("ci: parse unit: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrUnknownUnit
	}
	for _, p := range s.processors {
		if err := p.PreprocessDeserialized(ctx, root); err != nil {
			return nil, err
		}
	}

	switch root.Tag {
	case documentTag:
		return decodeDocument(root)
	case string(ObjectACL):
		return decodeACL(root)
	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnknownUnit, root.Tag)
	}
}

func (s *Serializer) postprocess(ctx context.Context, object SerializedObject, el *etree.Element) error {
	for _, p := range s.processors {
		if err := p.PostprocessSerialized(ctx, object, el); err != nil {
			return fmt.Errorf("ci: postprocess %s: %w", object.Kind, err)
		}
	}
	return nil
}

func decodeDocument(root *etree.Element) (*Unit, error) {
	unit := &Unit{
		Kind:      ObjectCulture,
		SiteName:  root.SelectAttrValue("site", ""),
		ClassName: root.SelectAttrValue("class", ""),
	}

	nodeEl := root.SelectElement(string(ObjectNode))
	if nodeEl == nil {
		return nil, fmt.Errorf("%w: missing <%s>", ErrUnknownUnit, ObjectNode)
	}
	id, err := uuid.Parse(childText(nodeEl, "NodeID"))
	if err != nil {
		return nil, fmt.Errorf("ci: NodeID: %w", err)
	}
	node := &documents.Node{
		ID:        id,
		Alias:     childText(nodeEl, "NodeAlias"),
		AliasPath: childText(nodeEl, "NodeAliasPath"),
	}
	if node.ParentID, err = optionalUUID(nodeEl, "NodeParentID"); err != nil {
		return nil, err
	}
	if node.OriginalNodeID, err = optionalUUID(nodeEl, "NodeLinkedNodeID"); err != nil {
		return nil, err
	}
	if node.Level, err = strconv.Atoi(childText(nodeEl, "NodeLevel")); err != nil {
		return nil, fmt.Errorf("ci: NodeLevel: %w", err)
	}
	if node.Order, err = strconv.Atoi(childText(nodeEl, "NodeOrder")); err != nil {
		return nil, fmt.Errorf("ci: NodeOrder: %w", err)
	}
	unit.Node = node

	if cultureEl := root.SelectElement(string(ObjectCulture)); cultureEl != nil {
		published, _ := strconv.ParseBool(childText(cultureEl, "DocumentPublished"))
		culture := &documents.CultureData{
			NodeID:       node.ID,
			Culture:      childText(cultureEl, "DocumentCulture"),
			Name:         childText(cultureEl, "DocumentName"),
			NamePath:     childText(cultureEl, "DocumentNamePath"),
			WorkflowStep: childText(cultureEl, "DocumentWorkflowStep"),
			Published:    published,
		}
		if raw := childText(cultureEl, "DocumentPublishedAt"); raw != "" {
			at, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				return nil, fmt.Errorf("ci: DocumentPublishedAt: %w", err)
			}
			culture.PublishedAt = &at
		}
		unit.Culture = culture
	}

	if fieldsEl := root.SelectElement(string(ObjectFields)); fieldsEl != nil {
		unit.Fields = map[string]any{}
		for _, field := range fieldsEl.SelectElements("field") {
			name := field.SelectAttrValue("name", "")
			value, err := decodeField(field)
			if err != nil {
				return nil, fmt.Errorf("ci: field %s: %w", name, err)
			}
			unit.Fields[name] = value
		}
	}
	return unit, nil
}

func decodeACL(root *etree.Element) (*Unit, error) {
	unit := &Unit{
		Kind:      ObjectACL,
		SiteName:  root.SelectAttrValue("site", ""),
		OwnerPath: root.SelectAttrValue("owner", ""),
		ACL:       &documents.ACL{InheritedACLs: []uuid.UUID{}},
	}
	for _, ref := range inheritedRefs(root) {
		raw := strings.TrimSpace(ref.Text())
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("ci: inherited acl %q: %w", raw, err)
		}
		unit.ACL.InheritedACLs = append(unit.ACL.InheritedACLs, id)
	}
	if entries := root.SelectElement("Entries"); entries != nil {
		for _, item := range entries.SelectElements("entry") {
			entry := documents.ACLEntry{Role: item.SelectAttrValue("role", "")}
			for _, allow := range item.SelectElements("allow") {
				entry.Allowed = append(entry.Allowed, allow.Text())
			}
			for _, deny := range item.SelectElements("deny") {
				entry.Denied = append(entry.Denied, deny.Text())
			}
			unit.ACL.Entries = append(unit.ACL.Entries, entry)
		}
	}
	return unit, nil
}

func appendText(parent *etree.Element, tag, value string) {
	parent.CreateElement(tag).SetText(value)
}

func appendField(parent *etree.Element, name string, value any) error {
	el := parent.CreateElement("field")
	el.CreateAttr("name", name)
	switch v := value.(type) {
	case nil:
		el.CreateAttr("type", "null")
	case string:
		el.CreateAttr("type", "string")
		el.SetText(v)
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("ci: encode field %s: %w", name, err)
		}
		el.CreateAttr("type", "json")
		el.SetText(string(raw))
	}
	return nil
}

func decodeField(el *etree.Element) (any, error) {
	switch el.SelectAttrValue("type", "string") {
	case "null":
		return nil, nil
	case "json":
		var value any
		if err := json.Unmarshal([]byte(el.Text()), &value); err != nil {
			return nil, err
		}
		return value, nil
	default:
		return el.Text(), nil
	}
}

func childText(parent *etree.Element, tag string) string {
	el := parent.SelectElement(tag)
	if el == nil {
		return ""
	}
	return strings.TrimSpace(el.Text())
}

func optionalUUID(parent *etree.Element, tag string) (*uuid.UUID, error) {
	raw := childText(parent, tag)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("ci: %s: %w", tag, err)
	}
	return &id, nil
}

func write(doc *etree.Document) ([]byte, error) {
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("ci: write unit: %w", err)
	}
	return data, nil
}
