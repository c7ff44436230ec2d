package domain

import (
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/realmtree/internal/platform/errors"
	"github.com/louisbranch/realmtree/internal/platform/errors/i18n"
)

// Sentinels for errors.Is; matching is by code so wrapped, metadata-carrying
// variants compare equal.
var (
	ErrNotFound              = apperrors.New(apperrors.CodeNotFound, "record not found")
	ErrInvalidSegment        = apperrors.New(apperrors.CodeRealmInvalidSegment, "invalid path segment")
	ErrNoSuchParent          = apperrors.New(apperrors.CodeRealmNoSuchParent, "parent realm does not exist")
	ErrCyclicMove            = apperrors.New(apperrors.CodeRealmCyclicMove, "cannot move a realm below itself")
	ErrRootImmutable         = apperrors.New(apperrors.CodeRealmRootImmutable, "root realm is immutable")
	ErrDerivedFieldViolation = apperrors.New(apperrors.CodeRealmDerivedFieldViolation, "full_path is derived")
	ErrUniqueConflict        = apperrors.New(apperrors.CodeRealmUniqueConflict, "duplicate full path")
	ErrPathTaken             = apperrors.New(apperrors.CodeRealmPathTaken, "path already taken")
	ErrInvalidName           = apperrors.New(apperrors.CodeRealmInvalidName, "realm name must not be empty")
	ErrInvalidOrder          = apperrors.New(apperrors.CodeRealmInvalidOrder, "invalid child order")
	ErrNameSourceConflict    = apperrors.New(apperrors.CodeRealmNameSourceConflict, "name and name block are exclusive")
	ErrNameBlockOutsideRealm = apperrors.New(apperrors.CodeRealmNameBlockOutsideRealm, "name block belongs to another realm")
	ErrNameBlockUntitled     = apperrors.New(apperrors.CodeRealmNameBlockUntitled, "name block has no title source")
	ErrRetriableConflict     = apperrors.New(apperrors.CodeRetriableConflict, "concurrent conflicting mutation")
	ErrInvalidContentRef     = apperrors.New(apperrors.CodeContentInvalidReference, "invalid content reference")
	ErrTitleEmpty            = apperrors.New(apperrors.CodeContentTitleEmpty, "title must not be empty")
	ErrInvalidQueueReadLimit = apperrors.New(apperrors.CodeQueueInvalidLimit, "queue limit must be positive")
)

// InvalidSegment builds the rejection for a segment that failed validation.
func InvalidSegment(segment string, validity SegmentValidity) error {
	return apperrors.WithMetadata(
		apperrors.CodeRealmInvalidSegment,
		fmt.Sprintf("path segment %q rejected: %s", segment, validity),
		map[string]string{i18n.ReasonKey: validity.String(), "Segment": segment},
	)
}

// CheckSegment returns nil for valid segments and InvalidSegment otherwise.
func CheckSegment(segment string) error {
	if validity := ValidateSegment(segment); validity != SegmentValid {
		return InvalidSegment(segment, validity)
	}
	return nil
}

// PathTaken reports a sibling already using the derived path.
func PathTaken(path string) error {
	return apperrors.WithMetadata(apperrors.CodeRealmPathTaken, fmt.Sprintf("path %s already taken", path), map[string]string{"Path": path})
}

// NotFound reports a missing entity of the given kind.
func NotFound(kind string, key fmt.Stringer) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, fmt.Sprintf("%s %s not found", kind, key), map[string]string{"Kind": kind, "ID": key.String()})
}

// SegmentMessage renders the localized rejection text for a classification.
// Client-side pre-validation uses it so its wording matches server errors.
func SegmentMessage(locale string, validity SegmentValidity) string {
	if validity == SegmentValid {
		return ""
	}
	return i18n.GetCatalog(locale).Format(string(apperrors.CodeRealmInvalidSegment), map[string]string{i18n.ReasonKey: validity.String()})
}

// InvalidOrder rejects a child order or index assignment.
func InvalidOrder(detail string) error {
	return apperrors.New(apperrors.CodeRealmInvalidOrder, detail)
}

// CheckName rejects explicit names that are blank.
func CheckName(name *string) error {
	if name != nil && strings.TrimSpace(*name) == "" {
		return ErrInvalidName
	}
	return nil
}

// CheckTitle rejects blank content titles.
func CheckTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return ErrTitleEmpty
	}
	return nil
}

// NotFoundPath reports a full path no realm has.
func NotFoundPath(fullPath string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, fmt.Sprintf("realm %q not found", fullPath), map[string]string{"Kind": "realm", "Path": fullPath})
}
