package documents_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/goliatone/go-cms-ci/internal/documents"
	"github.com/goliatone/go-cms-ci/internal/query"
	"github.com/goliatone/go-cms-ci/internal/staging"
)

func TestServiceCreateSiteInsertsRoot(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")

	if f.root.AliasPath() != documents.RootAliasPath || f.root.NamePath() != documents.RootAliasPath {
		t.Fatalf("unexpected root paths %q %q", f.root.AliasPath(), f.root.NamePath())
	}
	if f.root.ClassName() != documents.RootClassName {
		t.Fatalf("expected root class, got %q", f.root.ClassName())
	}
	multilingual, err := f.store.IsMultilingual(context.Background(), f.root.Site.ID)
	if err != nil {
		t.Fatalf("is multilingual: %v", err)
	}
	if !multilingual {
		t.Fatalf("expected a multilingual site")
	}

	_, err = f.svc.CreateSite(context.Background(), documents.CreateSiteRequest{Name: "main", DefaultCulture: "en-US"})
	if !errors.Is(err, documents.ErrSiteExists) {
		t.Fatalf("expected ErrSiteExists, got %v", err)
	}
}

func TestServiceInsertBuildsPathsAndUniqueAliases(t *testing.T) {
	f := newFixture(t)
	products := f.insert(t, f.root.NodeID(), "products", "")
	child := f.insert(t, products.NodeID(), "a", "")
	clash := f.insert(t, f.root.NodeID(), "products", "")

	if child.AliasPath() != "/products/a" || child.NamePath() != "/products/a" {
		t.Fatalf("unexpected child paths %q %q", child.AliasPath(), child.NamePath())
	}
	if child.Node.Level != 2 {
		t.Fatalf("expected level 2, got %d", child.Node.Level)
	}
	if clash.AliasPath() != "/products-1" {
		t.Fatalf("expected sibling alias to be made unique, got %q", clash.AliasPath())
	}
	if child.Fields == nil || child.Fields.Values["title"] != "a title" {
		t.Fatalf("expected coupled data, got %#v", child.Fields)
	}
	if child.Culture.ForeignKeyValue == nil || *child.Culture.ForeignKeyValue != child.Fields.ID {
		t.Fatalf("expected foreign key to reference coupled row")
	}

	loaded, err := f.svc.GetTreeNode(context.Background(), "main", "/products/a", "en-US")
	if err != nil {
		t.Fatalf("get tree node: %v", err)
	}
	if loaded.NodeID() != child.NodeID() {
		t.Fatalf("expected %s, got %s", child.NodeID(), loaded.NodeID())
	}

	kinds := make([]staging.TaskType, 0, len(f.tasks))
	for _, task := range f.tasks {
		kinds = append(kinds, task.Type)
	}
	want := []staging.TaskType{staging.TaskCreateDocument, staging.TaskCreateDocument, staging.TaskCreateDocument}
	if diff := cmp.Diff(want, kinds); diff != "" {
		t.Fatalf("task mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceInsertValidatesRequiredFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Insert(context.Background(), documents.InsertRequest{
		ParentID:  f.root.NodeID(),
		ClassName: "cms.article",
		Name:      "untitled",
	})
	if err == nil {
		t.Fatalf("expected missing title to fail")
	}

	_, err = f.svc.Insert(context.Background(), documents.InsertRequest{
		ParentID:  f.root.NodeID(),
		ClassName: "cms.article",
		Culture:   "fr-FR",
		Name:      "bonjour",
		Fields:    map[string]any{"title": "x"},
	})
	if !errors.Is(err, documents.ErrCultureNotEnabled) {
		t.Fatalf("expected ErrCultureNotEnabled, got %v", err)
	}
}

func TestServiceUpdateAliasCascadesToDescendants(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	products := f.insert(t, f.root.NodeID(), "products", "en-US")
	child := f.insert(t, products.NodeID(), "a", "en-US")
	f.translate(t, child.NodeID(), "de-DE", "a-de")

	var seen *documents.UpdateArgs
	f.svc.Events().Update.After(func(_ context.Context, args *documents.UpdateArgs) error {
		seen = args
		return nil
	})

	updated, err := f.svc.Update(ctx, documents.UpdateRequest{
		NodeID:  products.NodeID(),
		Culture: "en-US",
		Alias:   ptr("items"),
		Name:    ptr("Items"),
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.AliasPath() != "/items" || updated.NamePath() != "/Items" {
		t.Fatalf("unexpected paths %q %q", updated.AliasPath(), updated.NamePath())
	}
	if seen == nil || !seen.AliasChanged() || seen.ParentChanged() || !seen.PathChanged() {
		t.Fatalf("expected alias change to be reported, got %#v", seen)
	}

	en, err := f.svc.Get(ctx, child.NodeID(), "en-US")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if en.AliasPath() != "/items/a" || en.NamePath() != "/Items/a" {
		t.Fatalf("child not cascaded: %q %q", en.AliasPath(), en.NamePath())
	}
	de, err := f.svc.Get(ctx, child.NodeID(), "de-DE")
	if err != nil {
		t.Fatalf("get child de: %v", err)
	}
	if de.NamePath() != "/products/a-de" {
		t.Fatalf("expected de name path to keep the untranslated parent segment, got %q", de.NamePath())
	}
}

func TestServiceUpdateMoveRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := f.insert(t, f.root.NodeID(), "products", "")
	child := f.insert(t, products.NodeID(), "a", "")
	archive := f.insert(t, f.root.NodeID(), "archive", "")

	_, err := f.svc.Update(ctx, documents.UpdateRequest{NodeID: products.NodeID(), ParentID: ptr(child.NodeID())})
	if !errors.Is(err, documents.ErrMoveUnderDescendant) {
		t.Fatalf("expected ErrMoveUnderDescendant, got %v", err)
	}
	_, err = f.svc.Update(ctx, documents.UpdateRequest{NodeID: f.root.NodeID(), Alias: ptr("x")})
	if !errors.Is(err, documents.ErrRootImmutable) {
		t.Fatalf("expected ErrRootImmutable, got %v", err)
	}

	moved, err := f.svc.Update(ctx, documents.UpdateRequest{NodeID: products.NodeID(), ParentID: ptr(archive.NodeID())})
	if err != nil {
		t.Fatalf("move: %v", err)
	}
	if moved.AliasPath() != "/archive/products" || moved.Node.Level != 2 {
		t.Fatalf("unexpected moved node %q level %d", moved.AliasPath(), moved.Node.Level)
	}
	movedChild, err := f.svc.Get(ctx, child.NodeID(), "")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if movedChild.AliasPath() != "/archive/products/a" || movedChild.Node.Level != 3 || movedChild.NamePath() != "/archive/products/a" {
		t.Fatalf("child not cascaded: %q level %d name %q", movedChild.AliasPath(), movedChild.Node.Level, movedChild.NamePath())
	}
	last := f.tasks[len(f.tasks)-1]
	if last.Type != staging.TaskMoveDocument {
		t.Fatalf("expected MOVEDOC task, got %s", last.Type)
	}
}

func TestServiceInsertNewCultureRederivesAliasForDefaultCulture(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	node := f.insert(t, f.root.NodeID(), "produkte", "de-DE")
	child := f.insert(t, node.NodeID(), "a", "de-DE")

	var aliasChanged bool
	f.svc.Events().InsertNewCulture.After(func(_ context.Context, args *documents.NewCultureArgs) error {
		aliasChanged = args.AliasChanged()
		return nil
	})

	translated := f.translate(t, node.NodeID(), "en-US", "products")
	if !aliasChanged {
		t.Fatalf("expected alias change for the default culture")
	}
	if translated.AliasPath() != "/products" {
		t.Fatalf("expected /products, got %q", translated.AliasPath())
	}
	reloaded, err := f.svc.Get(ctx, child.NodeID(), "de-DE")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if reloaded.AliasPath() != "/products/a" {
		t.Fatalf("expected child path to follow, got %q", reloaded.AliasPath())
	}

	_, err = f.svc.InsertNewCulture(ctx, documents.NewCultureRequest{NodeID: node.NodeID(), Culture: "en-US", Name: "again"})
	if !errors.Is(err, documents.ErrCultureExists) {
		t.Fatalf("expected ErrCultureExists, got %v", err)
	}
}

func TestServiceDeleteCultureAndNode(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	node := f.insert(t, f.root.NodeID(), "products", "en-US")
	f.translate(t, node.NodeID(), "de-DE", "produkte")

	if err := f.svc.Delete(ctx, documents.DeleteRequest{NodeID: node.NodeID(), Culture: "de-DE"}); err != nil {
		t.Fatalf("delete culture: %v", err)
	}
	versions, err := f.svc.ListCultureVersions(ctx, node.NodeID())
	if err != nil {
		t.Fatalf("list cultures: %v", err)
	}
	if len(versions) != 1 || versions[0].CultureCode() != "en-US" {
		t.Fatalf("expected en-US only, got %d versions", len(versions))
	}

	var args *documents.DeleteArgs
	f.svc.Events().Delete.After(func(_ context.Context, a *documents.DeleteArgs) error {
		args = a
		return nil
	})
	if err := f.svc.Delete(ctx, documents.DeleteRequest{NodeID: node.NodeID()}); err != nil {
		t.Fatalf("delete last culture: %v", err)
	}
	if args == nil || !args.NodeDeleted {
		t.Fatalf("expected node deletion, got %#v", args)
	}
	if _, err := f.svc.Get(ctx, node.NodeID(), ""); !errors.Is(err, documents.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestServiceDeleteRecursiveRemovesSubtreeAndLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := f.insert(t, f.root.NodeID(), "products", "")
	child := f.insert(t, products.NodeID(), "a", "")
	other := f.insert(t, f.root.NodeID(), "other", "")
	link, err := f.svc.InsertLink(ctx, documents.InsertLinkRequest{OriginalNodeID: child.NodeID(), ParentID: other.NodeID()})
	if err != nil {
		t.Fatalf("insert link: %v", err)
	}

	err = f.svc.Delete(ctx, documents.DeleteRequest{NodeID: products.NodeID(), AllCultures: true})
	if !errors.Is(err, documents.ErrNodeHasChildren) {
		t.Fatalf("expected ErrNodeHasChildren, got %v", err)
	}

	var removed []uuid.UUID
	f.svc.Events().Delete.After(func(_ context.Context, a *documents.DeleteArgs) error {
		removed = a.Removed
		return nil
	})
	if err := f.svc.Delete(ctx, documents.DeleteRequest{NodeID: products.NodeID(), AllCultures: true, Recursive: true}); err != nil {
		t.Fatalf("delete recursive: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected child and link removed, got %v", removed)
	}

	remaining, err := f.store.ListNodes(ctx, query.Eq("n.site_id", f.root.Site.ID))
	if err != nil {
		t.Fatalf("list nodes: %v", err)
	}
	paths := make([]string, 0, len(remaining))
	for _, n := range remaining {
		paths = append(paths, n.AliasPath)
	}
	if diff := cmp.Diff([]string{"/", "/other"}, paths); diff != "" {
		t.Fatalf("remaining nodes mismatch (-want +got):\n%s", diff)
	}
	if _, err := f.svc.Get(ctx, link.NodeID(), ""); !errors.Is(err, documents.ErrNodeNotFound) {
		t.Fatalf("expected link removed, got %v", err)
	}
}

func TestServiceLinksResolveOriginalContent(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	original := f.insert(t, f.root.NodeID(), "products", "de-DE")
	f.translate(t, original.NodeID(), "en-US", "products")
	folder := f.insert(t, f.root.NodeID(), "folder", "")

	link, err := f.svc.InsertLink(ctx, documents.InsertLinkRequest{OriginalNodeID: original.NodeID(), ParentID: folder.NodeID()})
	if err != nil {
		t.Fatalf("insert link: %v", err)
	}
	if !link.IsLink() || link.AliasPath() != "/folder/products" {
		t.Fatalf("unexpected link %q", link.AliasPath())
	}
	if link.CultureCode() != "en-US" {
		t.Fatalf("expected the default culture of the original, got %q", link.CultureCode())
	}
	if link.Fields == nil || link.Fields.Values["title"] != "products" {
		t.Fatalf("expected original coupled data, got %#v", link.Fields)
	}

	_, err = f.svc.InsertLink(ctx, documents.InsertLinkRequest{OriginalNodeID: link.NodeID(), ParentID: f.root.NodeID()})
	if !errors.Is(err, documents.ErrLinkTargetIsLink) {
		t.Fatalf("expected ErrLinkTargetIsLink, got %v", err)
	}
}

func TestServiceConvertToLinkAndBack(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	original := f.insert(t, f.root.NodeID(), "original", "en-US")
	node := f.insert(t, f.root.NodeID(), "copy", "en-US")
	f.translate(t, node.NodeID(), "de-DE", "kopie")

	f.tasks = nil

	converted, err := f.svc.ConvertToLink(ctx, documents.ConvertToLinkRequest{
		NodeID:         node.NodeID(),
		Culture:        "en-US",
		OriginalNodeID: original.NodeID(),
	})
	if err != nil {
		t.Fatalf("convert to link: %v", err)
	}
	if !converted.IsLink() || converted.Culture.NodeID != original.NodeID() {
		t.Fatalf("expected link to original culture data")
	}
	logged := make([]string, 0, len(f.tasks))
	for _, task := range f.tasks {
		logged = append(logged, string(task.Type)+" "+task.Culture)
	}
	if diff := cmp.Diff([]string{"DELETEDOC de-DE", "UPDATEDOC en-US"}, logged); diff != "" {
		t.Fatalf("tasks mismatch (-want +got):\n%s", diff)
	}
	own, err := f.store.ListCultures(ctx, node.NodeID())
	if err != nil {
		t.Fatalf("list cultures: %v", err)
	}
	if len(own) != 0 {
		t.Fatalf("expected the link to own no culture data, got %d", len(own))
	}

	back, err := f.svc.ConvertFromLink(ctx, documents.ConvertFromLinkRequest{NodeID: node.NodeID(), Culture: "en-US"})
	if err != nil {
		t.Fatalf("convert from link: %v", err)
	}
	if back.IsLink() || back.Culture.NodeID != node.NodeID() {
		t.Fatalf("expected standalone document")
	}
	if back.Fields == nil || back.Fields.ID == converted.Fields.ID {
		t.Fatalf("expected a copied coupled row")
	}
	if back.Fields.Values["title"] != "original title" {
		t.Fatalf("expected copied values, got %#v", back.Fields.Values)
	}
}

func TestServiceConvertToLinkRollsBackOnFailure(t *testing.T) {
	f := newFixture(t, "en-US", "de-DE")
	ctx := context.Background()
	original := f.insert(t, f.root.NodeID(), "original", "en-US")
	node := f.insert(t, f.root.NodeID(), "copy", "en-US")
	f.translate(t, node.NodeID(), "de-DE", "kopie")
	f.tasks = nil

	if _, err := f.store.DB().ExecContext(ctx, `CREATE TRIGGER reject_links
BEFORE UPDATE OF original_node_id ON document_nodes
BEGIN SELECT RAISE(ABORT, 'links rejected'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err := f.svc.ConvertToLink(ctx, documents.ConvertToLinkRequest{
		NodeID:         node.NodeID(),
		Culture:        "en-US",
		OriginalNodeID: original.NodeID(),
	})
	if err == nil {
		t.Fatal("expected the conversion to fail")
	}

	cultures, err := f.store.ListCultures(ctx, node.NodeID())
	if err != nil {
		t.Fatalf("list cultures: %v", err)
	}
	if len(cultures) != 2 {
		t.Fatalf("expected both culture versions kept, got %d", len(cultures))
	}
	stored, err := f.store.GetNode(ctx, node.NodeID())
	if err != nil {
		t.Fatalf("get node: %v", err)
	}
	if stored.IsLink() {
		t.Fatal("expected the node to stay a standard document")
	}
	if len(f.tasks) != 0 {
		t.Fatalf("expected no staging tasks, got %d", len(f.tasks))
	}
}

func TestServiceChangeDocumentTypeMigratesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	types := f.svc.Types()
	if _, err := types.Register(ctx, documents.RegisterTypeRequest{
		ClassName: "cms.news",
		IsCoupled: true,
		Fields:    []documents.FieldDefinition{{Name: "title", Type: "text"}, {Name: "summary", Type: "text"}},
	}); err != nil {
		t.Fatalf("register news: %v", err)
	}
	node := f.insert(t, f.root.NodeID(), "story", "")

	changed, err := f.svc.ChangeDocumentType(ctx, documents.ChangeTypeRequest{NodeID: node.NodeID(), ClassName: "cms.news"})
	if err != nil {
		t.Fatalf("change type: %v", err)
	}
	if changed.ClassName() != "cms.news" {
		t.Fatalf("expected cms.news, got %q", changed.ClassName())
	}
	if diff := cmp.Diff(map[string]any{"title": "story title"}, changed.Fields.Values); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}

	folder, err := f.svc.ChangeDocumentType(ctx, documents.ChangeTypeRequest{NodeID: node.NodeID(), ClassName: "cms.folder"})
	if err != nil {
		t.Fatalf("change to folder: %v", err)
	}
	if folder.Fields != nil || folder.Culture.ForeignKeyValue != nil {
		t.Fatalf("expected coupled data removed")
	}
	if f.tasks[len(f.tasks)-1].Type != staging.TaskChangeDocumentType {
		t.Fatalf("expected CHANGEDOCTYPE task")
	}
}

func TestServiceDraftsPublishThroughUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	node := f.insert(t, f.root.NodeID(), "products", "")

	updates := 0
	f.svc.Events().Update.After(func(context.Context, *documents.UpdateArgs) error {
		updates++
		return nil
	})

	if _, err := f.svc.SaveDraft(ctx, documents.SaveDraftRequest{NodeID: node.NodeID(), Name: "Products v2", Fields: map[string]any{"body": "draft"}}); err != nil {
		t.Fatalf("save draft: %v", err)
	}
	if updates != 0 {
		t.Fatalf("drafts must not raise update events")
	}
	working, err := f.svc.Working(ctx, node.NodeID(), "")
	if err != nil {
		t.Fatalf("working: %v", err)
	}
	if working.IsInPublishStep() || working.Culture.Name != "Products v2" || working.Fields.Values["body"] != "draft" {
		t.Fatalf("unexpected working copy %#v", working.Culture)
	}
	published, err := f.svc.Get(ctx, node.NodeID(), "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !published.IsInPublishStep() || published.Culture.Name != "products" {
		t.Fatalf("published version changed by draft")
	}

	result, err := f.svc.Publish(ctx, documents.PublishRequest{NodeID: node.NodeID()})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if updates != 1 || result.Culture.Name != "Products v2" || result.Fields.Values["body"] != "draft" {
		t.Fatalf("publish did not apply the draft")
	}
	if _, err := f.store.GetDraft(ctx, node.NodeID(), "en-US"); !errors.Is(err, documents.ErrDraftNotFound) {
		t.Fatalf("expected draft removed, got %v", err)
	}
}

func TestServiceSetPermissionsBreaksInheritance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	products := f.insert(t, f.root.NodeID(), "products", "")
	child := f.insert(t, products.NodeID(), "a", "")

	if _, err := f.svc.SetPermissions(ctx, documents.SetPermissionsRequest{
		NodeID:  f.root.NodeID(),
		Entries: []documents.ACLEntry{{Role: "everyone", Allowed: []string{"read"}}},
	}); err != nil {
		t.Fatalf("root permissions: %v", err)
	}
	tree, err := f.svc.SetPermissions(ctx, documents.SetPermissionsRequest{
		NodeID:  products.NodeID(),
		Entries: []documents.ACLEntry{{Role: "editors", Allowed: []string{"modify"}}},
	})
	if err != nil {
		t.Fatalf("products permissions: %v", err)
	}
	if tree.ACL == nil || tree.ACL.OwnerNodeID != products.NodeID() {
		t.Fatalf("expected owned acl")
	}
	rootTree, err := f.svc.Get(ctx, f.root.NodeID(), "")
	if err != nil {
		t.Fatalf("get root: %v", err)
	}
	if diff := cmp.Diff([]uuid.UUID{rootTree.ACL.ID}, tree.ACL.InheritedACLs); diff != "" {
		t.Fatalf("inherited chain mismatch (-want +got):\n%s", diff)
	}
	reloaded, err := f.svc.Get(ctx, child.NodeID(), "")
	if err != nil {
		t.Fatalf("get child: %v", err)
	}
	if reloaded.Node.ACLID == nil || *reloaded.Node.ACLID != tree.ACL.ID {
		t.Fatalf("expected child to inherit the products acl")
	}
	if reloaded.ACL != nil {
		t.Fatalf("child does not own an acl")
	}
}

func TestServiceInsertEventPhases(t *testing.T) {
	f := newFixture(t)
	var phases []string
	f.svc.Events().Insert.Before(func(ctx context.Context, args *documents.InsertArgs) error {
		_, err := f.store.GetNode(ctx, args.Node.NodeID())
		phases = append(phases, "before:"+errString(err))
		return nil
	})
	f.svc.Events().Insert.After(func(ctx context.Context, args *documents.InsertArgs) error {
		_, err := f.store.GetNode(ctx, args.Node.NodeID())
		phases = append(phases, "after:"+errString(err))
		return nil
	})
	f.insert(t, f.root.NodeID(), "products", "")

	want := []string{"before:not found", "after:ok"}
	if diff := cmp.Diff(want, phases); diff != "" {
		t.Fatalf("phase mismatch (-want +got):\n%s", diff)
	}
}

func errString(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, documents.ErrNodeNotFound):
		return "not found"
	default:
		return err.Error()
	}
}

func TestTypeServiceFormDefinitionChangeIsAtomic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.insert(t, f.root.NodeID(), "products", "")

	if _, err := f.store.DB().ExecContext(ctx, `CREATE TRIGGER reject_field_updates
BEFORE UPDATE ON document_fields
BEGIN SELECT RAISE(ABORT, 'fields locked'); END`); err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	_, err := f.svc.Types().UpdateFormDefinition(ctx, documents.UpdateFormDefinitionRequest{
		ClassName: "cms.article",
		Fields:    []documents.FieldDefinition{{Name: "title", Type: "text", Required: true}},
	})
	if err == nil {
		t.Fatal("expected the definition update to fail")
	}

	docType, err := f.store.GetTypeByClassName(ctx, "cms.article")
	if err != nil {
		t.Fatalf("get type: %v", err)
	}
	if len(docType.Fields) != 2 {
		t.Fatalf("expected the previous definition kept, got %d fields", len(docType.Fields))
	}
	rows, err := f.store.ListFieldsByClass(ctx, "cms.article")
	if err != nil {
		t.Fatalf("list fields: %v", err)
	}
	if len(rows) != 1 || rows[0].Values["body"] != "text" {
		t.Fatalf("expected coupled data untouched, got %#v", rows)
	}
}

func TestServiceListChildrenReturnsEveryChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := range 30 {
		f.insert(t, f.root.NodeID(), fmt.Sprintf("item-%02d", i), "")
	}
	children, err := f.store.ListChildren(ctx, f.root.NodeID())
	if err != nil {
		t.Fatalf("list children: %v", err)
	}
	if len(children) != 30 {
		t.Fatalf("expected 30 children, got %d", len(children))
	}
}
