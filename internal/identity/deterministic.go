package identity

import (
	"strings"

	hashid "github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
)

// UUID derives a deterministic UUID from a stable key using go-hashid.
//
// Keys must be prefixed by entity type to keep entities apart.
func UUID(key string) uuid.UUID {
	trimmed := strings.TrimSpace(key)
	if trimmed == "" {
		return uuid.Nil
	}
	uid, err := hashid.NewUUID(trimmed, hashid.WithHashAlgorithm(hashid.SHA256), hashid.WithNormalization(true))
	if err != nil || uid == uuid.Nil {
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(trimmed))
	}
	return uid
}

// CultureCode normalizes a culture code such as "en-us" to "en-US".
func CultureCode(code string) string {
	code = strings.TrimSpace(strings.ReplaceAll(code, "_", "-"))
	lang, region, ok := strings.Cut(code, "-")
	if !ok {
		return strings.ToLower(lang)
	}
	return strings.ToLower(lang) + "-" + strings.ToUpper(region)
}

// SiteUUID identifies a site by its code name.
func SiteUUID(siteName string) uuid.UUID {
	return UUID("cms-ci:site:" + strings.ToLower(strings.TrimSpace(siteName)))
}

// SiteCultureUUID identifies the assignment of a culture to a site.
func SiteCultureUUID(siteID uuid.UUID, culture string) uuid.UUID {
	return UUID("cms-ci:site_culture:" + siteID.String() + ":" + CultureCode(culture))
}

// DocumentTypeUUID identifies a document type by class name.
func DocumentTypeUUID(className string) uuid.UUID {
	return UUID("cms-ci:document_type:" + strings.ToLower(strings.TrimSpace(className)))
}

// CultureVersionUUID identifies the culture version of a node. The same
// (node, culture) pair always yields the same ID.
func CultureVersionUUID(nodeID uuid.UUID, culture string) uuid.UUID {
	return UUID("cms-ci:document_culture:" + nodeID.String() + ":" + CultureCode(culture))
}

// ACLUUID identifies the ACL owned by a node.
func ACLUUID(ownerNodeID uuid.UUID) uuid.UUID {
	return UUID("cms-ci:acl:" + ownerNodeID.String())
}
