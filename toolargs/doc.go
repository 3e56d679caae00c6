// Package toolargs turns the loosely typed argument bags of tool calls into
// strongly typed values.
//
// Tool-calling clients do not agree on argument types: an id filter may arrive
// as a list, a single string, a JSON-encoded list inside a string, a number,
// or a placeholder such as "null". IDs folds all of these into either nil
// (no filter) or a non-empty list of trimmed identifiers. It only narrows to
// nil on genuinely empty input and never drops a usable identifier.
//
// The scalar accessors on Args apply the same tolerance to numbers and
// booleans: JSON numbers, numeric strings and "true"/"false" strings are all
// accepted, while values that cannot be interpreted produce an error wrapping
// ErrInvalidArgument that names the argument.
//
// # Usage
//
//	args, err := toolargs.Decode(req.Params.Arguments)
//	if err != nil {
//		return err
//	}
//	ids := args.IDs("dataset_ids")
//	page, err := args.Int("page", 1)
package toolargs
