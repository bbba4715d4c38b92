// Package checkpoint saves and resumes group-run progress.
//
// A group run audits many accounts one after another. When it is interrupted
// the checkpoint lists the accounts already done so a resumed run skips them.
// Failed accounts are recorded separately and retried on resume.
//
// Checkpoints are stored in platform-specific data directories:
//   - Linux: ~/.local/share/instaprofiler/checkpoints/
//   - macOS: ~/Library/Application Support/instaprofiler/checkpoints/
//   - Windows: %APPDATA%/instaprofiler/checkpoints/
//
// The checkpoint files are saved atomically and include a version field.
package checkpoint
