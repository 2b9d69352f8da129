package httpapi

import (
	"encoding/base64"
	"net/http"
	"time"

	"github.com/bitstreamfno/orchestrator/internal/infrastructure/http/response"
)

type screenshotView struct {
	Name        string    `json:"name"`
	MimeType    string    `json:"mime_type"`
	Description string    `json:"description,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ImageData   string    `json:"image_data,omitempty"`
}

// listScreenshots returns screenshot metadata for a job, including
// base64-encoded bytes only when include_data=true (spec §4.9 default
// metadata-only).
func (a *API) listScreenshots(w http.ResponseWriter, r *http.Request) {
	id, ok := parseJobID(w, r)
	if !ok {
		return
	}

	includeData := r.URL.Query().Get("include_data") == "true"

	shots, err := a.store.ListScreenshots(r.Context(), id, includeData)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	views := make([]screenshotView, len(shots))
	for i, s := range shots {
		v := screenshotView{Name: s.Name, MimeType: s.MimeType, Description: s.Description, Timestamp: s.Timestamp}
		if includeData && len(s.ImageData) > 0 {
			v.ImageData = base64.StdEncoding.EncodeToString(s.ImageData)
		}
		views[i] = v
	}
	response.OK(w, views)
}
