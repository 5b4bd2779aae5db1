package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Snapshot store errors
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
	CodeSnapshotNotFound Code = "SNAPSHOT_NOT_FOUND"

	// Value extraction errors
	CodeSourceValueMissing Code = "SOURCE_VALUE_MISSING"

	// Target attribute errors
	CodeAttributeNotFoundOnTarget Code = "ATTRIBUTE_NOT_FOUND_ON_TARGET"
	CodeAttributeReadOnly         Code = "ATTRIBUTE_READ_ONLY"
	CodeAttributeTypeMismatch     Code = "ATTRIBUTE_TYPE_MISMATCH"
	CodeTargetBecameInvalid       Code = "TARGET_BECAME_INVALID"

	// Batch execution errors
	CodeBatchStrategyFault Code = "BATCH_STRATEGY_FAULT"

	// Mapping configuration errors
	CodeMappingEmptySourceAttribute Code = "MAPPING_EMPTY_SOURCE_ATTRIBUTE"
	CodeMappingEmptyTargetAttribute Code = "MAPPING_EMPTY_TARGET_ATTRIBUTE"
	CodeMappingInvalidKind          Code = "MAPPING_INVALID_KIND"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// Fatal reports whether the code aborts an entire batch rather than
// degrading a single target or mapping.
func (c Code) Fatal() bool {
	switch c {
	case CodeStoreUnavailable, CodeBatchStrategyFault:
		return true
	default:
		return false
	}
}
