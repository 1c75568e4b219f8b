package core

// Resource identifies which identity field of a batch item an error
// pertains to. It keys the accessor table used to filter batches.
type Resource int

const (
	// ResourceNone marks an error with no usable identity field.
	ResourceNone Resource = iota
	// ResourceExternalID tags the item's external id field.
	ResourceExternalID
	// ResourceInternalID tags the item's numeric internal id field.
	ResourceInternalID
	// ResourceAssetID tags membership in the item's asset id list.
	ResourceAssetID
	// ResourceParentID tags the item's numeric parent id field.
	ResourceParentID
	// ResourceParentExternalID tags the item's parent external id field.
	ResourceParentExternalID
	// ResourceDataSetID tags the item's data set id field.
	ResourceDataSetID
	// ResourceLegacyName tags the item's legacy name field.
	ResourceLegacyName
)

// String implements fmt.Stringer.
func (r Resource) String() string {
	switch r {
	case ResourceExternalID:
		return "externalId"
	case ResourceInternalID:
		return "id"
	case ResourceAssetID:
		return "assetId"
	case ResourceParentID:
		return "parentId"
	case ResourceParentExternalID:
		return "parentExternalId"
	case ResourceDataSetID:
		return "dataSetId"
	case ResourceLegacyName:
		return "legacyName"
	default:
		return "none"
	}
}

// RequestKind selects the resource-specific error parser for a remote
// write operation.
type RequestKind int

const (
	// CreateAssets covers asset creation requests.
	CreateAssets RequestKind = iota
	// CreateTimeSeries covers time series creation requests.
	CreateTimeSeries
	// CreateEvents covers event creation requests.
	CreateEvents
	// UpsertInstances covers data-model instance upsert requests.
	UpsertInstances
)

// String implements fmt.Stringer.
func (k RequestKind) String() string {
	switch k {
	case CreateAssets:
		return "create-assets"
	case CreateTimeSeries:
		return "create-timeseries"
	case CreateEvents:
		return "create-events"
	case UpsertInstances:
		return "upsert-instances"
	default:
		return "unknown"
	}
}

// AccessorFunc extracts the identity values a batch item carries for one
// resource field. Items without the field return an empty slice.
type AccessorFunc[T any] func(item T) []Value

// AccessorTable maps each resource field to its identity accessor. It
// keeps identity extraction colocated and testable independently of the
// retry loop.
type AccessorTable[T any] map[Resource]AccessorFunc[T]
