// Package checkpoint persists the set of completed item paths per pipeline
// stage so interrupted runs resume without repeating work.
//
// Each stage owns one JSON file under the state directory. Save always writes
// the complete set through a temp file, fsync, and rename, so a crash leaves
// either the previous file or the new one, never a torn write. Callers merge
// previous and newly completed paths before saving.
package checkpoint
