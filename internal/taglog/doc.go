// Package taglog reads and writes the pipeline's tabular logs under the
// library log directory:
//
//   - duplicate_log.csv: GroupID,Fingerprint,Path,Role (rewritten per run)
//   - move_log.csv: Source,Destination,Stage (appended)
//   - nsfw_log.csv: File,Classification,UnsafeScore,NewLocation
//   - media_tags.tsv, video_tags.tsv: FilePath followed by one tag per column
//
// Writers buffer rows until Flush so the stage runner can persist log rows
// before it saves the matching checkpoint.
package taglog
