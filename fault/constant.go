package fault

// Message prefixes the remote boundary uses for failures that are not
// covered by the structured missing/duplicated lists. Classification
// falls back to these when the typed lists are empty.
const (
	PrefixUnknownParentExternalID = "Reference to unknown parent with externalId"
	PrefixParentIDsNotFound       = "The given parent ids do not exist"
	PrefixInvalidDataSetIDs       = "Invalid dataSetIds"
	PrefixAssetIDsNotFound        = "Asset ids not found"
	PrefixVersionConflict         = "A version conflict caused this ingest to fail"
)

// Descriptor field names used in the structured missing/duplicated lists.
const (
	fieldExternalID = "externalId"
	fieldID         = "id"
	fieldLegacyName = "legacyName"
)
