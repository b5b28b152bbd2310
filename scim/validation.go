package scim

import (
	"fmt"
	"strings"
)

// ValidatePatchOperations checks the structural shape of a PATCH body's
// operations list (RFC 7644 §3.5.2): op must be add/remove/replace,
// remove requires a path, and add/replace require a value unless the
// path itself targets a specific attribute. This is the only validation
// the core performs on PATCH input — attribute-level rules (required
// fields, uniqueness, type checks) are a ResourceHandler's concern, not
// the engine's.
func ValidatePatchOperations(ops []PatchOperation) error {
	if len(ops) == 0 {
		return ErrInvalidValue("at least one operation is required")
	}
	for i, op := range ops {
		if err := validatePatchOperation(op); err != nil {
			return fmt.Errorf("operation %d: %w", i, err)
		}
	}
	return nil
}

func validatePatchOperation(op PatchOperation) error {
	opLower := strings.ToLower(op.Op)
	if opLower != "add" && opLower != "remove" && opLower != "replace" {
		return ErrInvalidValue(fmt.Sprintf("invalid op: %s", op.Op))
	}

	if opLower == "remove" && op.Path == "" {
		return ErrNoTarget("path is required for remove operation")
	}

	if (opLower == "add" || opLower == "replace") && op.Value == nil && op.Path == "" {
		return ErrInvalidValue(fmt.Sprintf("value is required for %s operation", op.Op))
	}

	return nil
}
