package documents

import (
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

func NewSiteRepository(db *bun.DB) repository.Repository[*Site] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Site]{
		NewRecord: func() *Site { return &Site{} },
		GetID: func(s *Site) uuid.UUID {
			return s.ID
		},
		SetID: func(s *Site, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier: func() string {
			return "name"
		},
		GetIdentifierValue: func(s *Site) string {
			return s.Name
		},
	})
}

func NewSiteCultureRepository(db *bun.DB) repository.Repository[*SiteCulture] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*SiteCulture]{
		NewRecord: func() *SiteCulture { return &SiteCulture{} },
		GetID: func(sc *SiteCulture) uuid.UUID {
			return sc.ID
		},
		SetID: func(sc *SiteCulture, id uuid.UUID) {
			sc.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(sc *SiteCulture) string {
			return sc.ID.String()
		},
	})
}

func NewDocumentTypeRepository(db *bun.DB) repository.Repository[*DocumentType] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*DocumentType]{
		NewRecord: func() *DocumentType { return &DocumentType{} },
		GetID: func(t *DocumentType) uuid.UUID {
			return t.ID
		},
		SetID: func(t *DocumentType, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "class_name"
		},
		GetIdentifierValue: func(t *DocumentType) string {
			return t.ClassName
		},
	})
}

func NewNodeRepository(db *bun.DB) repository.Repository[*Node] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Node]{
		NewRecord: func() *Node { return &Node{} },
		GetID: func(n *Node) uuid.UUID {
			return n.ID
		},
		SetID: func(n *Node, id uuid.UUID) {
			n.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(n *Node) string {
			return n.ID.String()
		},
	})
}

func NewCultureDataRepository(db *bun.DB) repository.Repository[*CultureData] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*CultureData]{
		NewRecord: func() *CultureData { return &CultureData{} },
		GetID: func(c *CultureData) uuid.UUID {
			return c.ID
		},
		SetID: func(c *CultureData, id uuid.UUID) {
			c.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(c *CultureData) string {
			return c.ID.String()
		},
	})
}

func NewFieldsRepository(db *bun.DB) repository.Repository[*Fields] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Fields]{
		NewRecord: func() *Fields { return &Fields{} },
		GetID: func(f *Fields) uuid.UUID {
			return f.ID
		},
		SetID: func(f *Fields, id uuid.UUID) {
			f.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(f *Fields) string {
			return f.ID.String()
		},
	})
}

func NewACLRepository(db *bun.DB) repository.Repository[*ACL] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*ACL]{
		NewRecord: func() *ACL { return &ACL{} },
		GetID: func(a *ACL) uuid.UUID {
			return a.ID
		},
		SetID: func(a *ACL, id uuid.UUID) {
			a.ID = id
		},
		GetIdentifier: func() string {
			return "owner_node_id"
		},
		GetIdentifierValue: func(a *ACL) string {
			return a.OwnerNodeID.String()
		},
	})
}

func NewDraftRepository(db *bun.DB) repository.Repository[*Draft] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Draft]{
		NewRecord: func() *Draft { return &Draft{} },
		GetID: func(d *Draft) uuid.UUID {
			return d.ID
		},
		SetID: func(d *Draft, id uuid.UUID) {
			d.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(d *Draft) string {
			return d.ID.String()
		},
	})
}
