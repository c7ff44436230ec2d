package i18n

// Error codes must match the codes defined in internal/platform/errors/codes.go.
// These are duplicated as strings to avoid an import cycle.
const (
	CodeNotFound                   = "NOT_FOUND"
	CodeRetriableConflict          = "RETRIABLE_CONFLICT"
	CodeRealmInvalidSegment        = "REALM_INVALID_SEGMENT"
	CodeRealmNoSuchParent          = "REALM_NO_SUCH_PARENT"
	CodeRealmCyclicMove            = "REALM_CYCLIC_MOVE"
	CodeRealmRootImmutable         = "REALM_ROOT_IMMUTABLE"
	CodeRealmDerivedFieldViolation = "REALM_DERIVED_FIELD_VIOLATION"
	CodeRealmUniqueConflict        = "REALM_UNIQUE_CONFLICT"
	CodeRealmPathTaken             = "REALM_PATH_TAKEN"
	CodeRealmInvalidName           = "REALM_INVALID_NAME"
	CodeRealmInvalidOrder          = "REALM_INVALID_ORDER"
	CodeRealmNameSourceConflict    = "REALM_NAME_SOURCE_CONFLICT"
	CodeRealmNameBlockOutsideRealm = "REALM_NAME_BLOCK_OUTSIDE_REALM"
	CodeRealmNameBlockUntitled     = "REALM_NAME_BLOCK_UNTITLED"
	CodeContentInvalidReference    = "CONTENT_INVALID_REFERENCE"
	CodeContentTitleEmpty          = "CONTENT_TITLE_EMPTY"
	CodeQueueInvalidLimit          = "QUEUE_INVALID_LIMIT"
)

var enUSMessages = map[Code]string{
	CodeNotFound:          "The requested {{.Kind}} does not exist.",
	CodeRetriableConflict: "Another change touched the same realms. Please try again.",

	CodeRealmInvalidSegment:                                  "The path segment is invalid.",
	CodeRealmInvalidSegment + "/too-short":                   "Path segments must be at least two characters long.",
	CodeRealmInvalidSegment + "/control-char":                "Path segments must not contain control characters.",
	CodeRealmInvalidSegment + "/whitespace":                  "Path segments must not contain whitespace.",
	CodeRealmInvalidSegment + "/illegal-chars":               "Path segments must not contain any of these characters: < > \" [ \\ ] ^ ` { | } # % / ?",
	CodeRealmInvalidSegment + "/reserved-chars-at-beginning": "Path segments must not start with any of these characters: - + ~ @ _ ! $ & ; : . , = * ' ( )",

	CodeRealmNoSuchParent:          "The parent realm does not exist.",
	CodeRealmCyclicMove:            "A realm cannot be moved below itself.",
	CodeRealmRootImmutable:         "The root realm cannot be deleted or re-identified.",
	CodeRealmDerivedFieldViolation: "The full path of a realm is derived and cannot be set directly.",
	CodeRealmUniqueConflict:        "Realm paths are inconsistent. Please contact an administrator.",
	CodeRealmPathTaken:             "A realm with the path {{.Path}} already exists.",
	CodeRealmInvalidName:           "Realm names must not be empty.",
	CodeRealmInvalidOrder:          "The requested child order is invalid.",
	CodeRealmNameSourceConflict:    "A realm takes its name either from text or from a block, not both.",
	CodeRealmNameBlockOutsideRealm: "The name block must belong to the realm itself.",
	CodeRealmNameBlockUntitled:     "Only video and series blocks can name a realm.",
	CodeContentInvalidReference:    "Blocks must reference exactly one existing video or series.",
	CodeContentTitleEmpty:          "Titles must not be empty.",
	CodeQueueInvalidLimit:          "The queue read limit must be greater than zero.",
}
