package domain

import "time"

// Screenshot is a job_screenshots row (spec §3.3). Cascade-deletes with
// its owning job. Duplicate suppression is by (job_id, name).
type Screenshot struct {
	ID          int64
	JobID       int64
	Name        string
	MimeType    string
	Description string
	Timestamp   time.Time
	ImageData   []byte // decoded from the worker's base64 image_data
}

// RawScreenshot is the wire shape a worker embeds in result.screenshot_data
// (§4.4 "Screenshot extraction").
type RawScreenshot struct {
	Name        string
	Base64Data  string
	MimeType    string
	Description string
}

// Valid reports whether a raw screenshot carries the minimum fields to be
// persisted. Entries missing name or image data are skipped (§4.1
// save_screenshots).
func (r RawScreenshot) Valid() bool {
	return r.Name != "" && r.Base64Data != ""
}
