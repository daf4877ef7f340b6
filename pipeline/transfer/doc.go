// Package transfer imports and exports pipeline templates.
//
// Import stages each template's parent record, remaps document-local task ids to fresh
// ones, resolves automation references, then writes tasks in two passes (successors
// cleared, then set). Any failure deletes what was written for that template. Templates
// of one batch are independent of each other.
package transfer
