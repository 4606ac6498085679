package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// SafeName reduces s to [A-Za-z0-9._-], replacing runs of anything else with "_".
func SafeName(s string) string {
	out := unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	out = strings.Trim(out, "_.")
	if out == "" {
		return "unnamed"
	}
	return out
}

// BasePath is where a tenant's base artifact for a document is stored.
func BasePath(tenantID uuid.UUID, externalID, ext string) string {
	return path.Join(tenantID.String(), fmt.Sprintf("%s_base.%s", SafeName(externalID), ext))
}

// ClientPath is where a client's customized artifact is stored. The client ID
// keeps the path unique when two names reduce to the same SafeName.
func ClientPath(tenantID uuid.UUID, externalID string, clientID uuid.UUID, clientName, ext string) string {
	return path.Join(tenantID.String(),
		fmt.Sprintf("%s_%s_%s.%s", SafeName(externalID), SafeName(clientName), clientID, ext))
}

// UploadPath is where an uploaded conversion input is stored.
func UploadPath(userID, filename string, at time.Time) string {
	return path.Join("uploads", SafeName(userID), fmt.Sprintf("%d_%s", at.UnixMilli(), SafeName(filename)))
}

// OutputPath is where a conversion job's deck is stored. It returns the
// download filename alongside the blob path.
func OutputPath(userID, inputFilename string, at time.Time) (blobPath, filename string) {
	base := strings.TrimSuffix(inputFilename, path.Ext(inputFilename))
	filename = SafeName(base) + "_presentation.pptx"
	blobPath = path.Join("outputs", SafeName(userID), fmt.Sprintf("%d_%s", at.UnixMilli(), filename))
	return blobPath, filename
}
