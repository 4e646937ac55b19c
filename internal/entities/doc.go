// Package entities parses entity key-value pairs out of structured
// filenames.
//
// A name like sub-01_task-rest_bold.nii.gz yields the entities
// {sub: 01, task: rest}, the suffix bold and the extension .nii.gz.
// The datatype (func, anat, ...) comes from the directory layout rather
// than the filename. Parsing is driven entirely by a schema.Index, so
// custom naming conventions need no code changes.
//
// Parse never panics on malformed names; every failure is a typed
// *ParseError that callers log and skip.
package entities
